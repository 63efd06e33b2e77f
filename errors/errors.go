// Package errors provides an error type that carries a gRPC status code, an
// optional public message, and the stack trace from where it was created.
// It implements the standard error interface and can be used interchangeably
// with code expecting a normal error return.
//
// For example:
//
//	var ErrSignInFailed = errors.NewC("sign in failed", codes.Unauthenticated)
//
//	func signIn() error {
//	    return errors.Mark(ErrSignInFailed, 0).Append("provider rejected consent")
//	}
package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// The maximum number of stackframes on any error.
var MaxStackDepth = 50

// Error is an error with an attached stacktrace, gRPC status code, and
// optional public message. It can be used wherever the builtin error
// interface is expected.
type Error struct {
	Err    error
	stack  []uintptr
	prefix string

	// gRPC status code to associate with an error response.
	code codes.Code

	// HTTP status code to associate with an error response, overriding the
	// mapping derived from the gRPC code.
	httpStatusCode int

	// Error message safe to show to a user.
	publicMessage string
}

// New makes an Error from the given value. If that value is already an error
// then it will be used directly, if not, it will be passed to
// fmt.Errorf("%v"). The stacktrace will point to the line of code that
// called New.
func New(e interface{}) *Error {
	return errorf(e, codes.Unknown, 1)
}

// NewC makes an Error with a status code defined.
func NewC(e interface{}, code codes.Code) *Error {
	return errorf(e, code, 1)
}

// Errorf creates a new error with the given message. Drop-in replacement for
// fmt.Errorf().
func Errorf(format string, a ...interface{}) *Error {
	return errorf(fmt.Errorf(format, a...), codes.Unknown, 1)
}

// Codef creates a new error with the given status code and formatted message.
func Codef(code codes.Code, format string, a ...interface{}) *Error {
	return errorf(fmt.Errorf(format, a...), code, 1)
}

func errorf(e interface{}, code codes.Code, skip int) *Error {
	var err error
	switch e := e.(type) {
	case error:
		err = e
	default:
		err = fmt.Errorf("%v", e)
	}

	stack := make([]uintptr, MaxStackDepth)
	length := runtime.Callers(2+skip, stack[:])
	return &Error{
		Err:   err,
		stack: stack[:length],
		code:  code,
	}
}

// Wrap makes an Error from the given value. If that value is already an
// *Error it is returned unchanged. The skip parameter indicates how far up
// the stack to start the stacktrace. 0 is from the current call, 1 from its
// caller, etc.
func Wrap(e interface{}, skip int) *Error {
	if e == nil {
		return nil
	}
	if err, ok := e.(*Error); ok {
		return err
	}
	return errorf(e, codes.Unknown, 1+skip)
}

// Mark takes an error and sets the stack trace from the point it was called,
// overriding any previous stack trace. Useful for sentinel errors, which
// otherwise carry the stack of their package init.
func Mark(e interface{}, skip int) *Error {
	if e == nil {
		return nil
	}
	if err, ok := e.(*Error); ok {
		stack := make([]uintptr, MaxStackDepth)
		length := runtime.Callers(2+skip, stack[:])
		return &Error{
			Err:            err.Err,
			stack:          stack[:length],
			code:           err.code,
			httpStatusCode: err.httpStatusCode,
			publicMessage:  err.publicMessage,
			prefix:         err.prefix,
		}
	}
	return Wrap(e, 1+skip)
}

// Error returns the underlying error's message.
func (err *Error) Error() string {
	msg := err.Err.Error()
	if err.prefix != "" {
		msg = fmt.Sprintf("%s: %s", err.prefix, msg)
	}
	return msg
}

// Append adds additional context to the error message, returning the same
// error for chaining.
func (err *Error) Append(info string) *Error {
	if err.prefix == "" {
		err.prefix = info
	} else {
		err.prefix = fmt.Sprintf("%s: %s", info, err.prefix)
	}
	return err
}

// Stack returns the callstack formatted the same way that go does in
// runtime/debug.Stack().
func (err *Error) Stack() []byte {
	buf := bytes.Buffer{}
	frames := runtime.CallersFrames(err.stack)
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&buf, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return buf.Bytes()
}

// ErrorStack returns a string that contains both the error message and the
// callstack.
func (err *Error) ErrorStack() string {
	return err.Error() + "\n" + string(err.Stack())
}

// Unwrap the error (implements api for As/Is functions).
func (err *Error) Unwrap() error {
	return err.Err
}

// Is allows errors produced by Mark to match the sentinel they were derived
// from: two *Errors match when they share the same underlying error.
func (err *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return err.Err == t.Err
	}
	return false
}

// Code returns the gRPC status code associated with the error.
func (err *Error) Code() codes.Code {
	return err.code
}

// WithCode sets the gRPC status code associated with the error.
func (err *Error) WithCode(code codes.Code) *Error {
	err.code = code
	return err
}

// PublicMessage returns the error string that should be shown to a user.
func (err *Error) PublicMessage() string {
	if err.publicMessage != "" {
		return err.publicMessage
	}
	return err.Error()
}

// WithPublicMessage sets the error string that should be shown to a user.
func (err *Error) WithPublicMessage(publicMessage string) *Error {
	err.publicMessage = publicMessage
	return err
}

// HTTPStatusCode returns the HTTP status code that should be returned to the
// client. If a code is set explicitly it is used, otherwise a default is
// derived from the gRPC code.
func (err *Error) HTTPStatusCode() int {
	if err.httpStatusCode != 0 {
		return err.httpStatusCode
	}
	switch err.code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// WithHTTPStatusCode sets the HTTP status code that should be returned to
// the client.
func (err *Error) WithHTTPStatusCode(code int) *Error {
	err.httpStatusCode = code
	return err
}

// GRPCStatus returns a gRPC status object for the error.
func (err *Error) GRPCStatus() *status.Status {
	return status.New(err.Code(), err.PublicMessage())
}

// Code returns a gRPC status code for an error. If the error is nil, it
// returns codes.OK. If the error exposes a `Code()` method, it is returned.
// Otherwise codes.Unknown is returned.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var coded codedError
	if stderrors.As(err, &coded) {
		return coded.Code()
	}
	return codes.Unknown
}

// HTTPStatusCode returns an HTTP status code for an error. If the error is
// nil, it returns http.StatusOK.
func HTTPStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var httpErr httpError
	if stderrors.As(err, &httpErr) {
		return httpErr.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}

type codedError interface {
	Code() codes.Code
}

type httpError interface {
	HTTPStatusCode() int
}

// Is reports whether any error in err's tree matches target. Re-exported so
// callers don't need to import both this package and the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
