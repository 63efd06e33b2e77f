// Package logging provides a context-carried structured logger. Components
// receive their logger through the context so that scopes can be layered as
// work moves between plugins.
package logging

import "context"

type ctxkey struct {
	logger Logger
}

// With attaches a logger to the context.
//
// This can be used to create logging scopes like so:
//
//	ctx := logging.With(ctx, logger.Named("session"))
func With(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxkey{}, &ctxkey{
		logger: logger,
	})
}

// FromContext returns a scoped logger. If no logger has been attached, a
// no-op logger is returned so call sites don't need nil checks.
func FromContext(ctx context.Context) Logger {
	c, ok := ctx.Value(ctxkey{}).(*ctxkey)
	if ok {
		return c.logger
	}
	return nopLogger{}
}

// EnsureLogger returns the context unchanged if it already carries a logger,
// otherwise it attaches a development logger. Useful in tests and examples.
func EnsureLogger(ctx context.Context) context.Context {
	if _, ok := ctx.Value(ctxkey{}).(*ctxkey); ok {
		return ctx
	}
	return With(ctx, NewDevLogger())
}

// Track a field across the lifetime of the context. Tracked values persist
// back up the call-chain to whoever attached the logger. Do not use this in
// loops without creating a new scope via With.
func Track(ctx context.Context, field string, value interface{}) {
	c, ok := ctx.Value(ctxkey{}).(*ctxkey)
	if ok {
		c.logger = c.logger.With(field, value)
	}
}

// Logger provides an abstract logging interface designed around uber-go/zap's
// sugared logger, but is intended to provide interop with other libraries.
type Logger interface {
	Debug(args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Debugf(msg string, args ...interface{})
	Info(args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Infof(msg string, args ...interface{})
	Warn(args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Warnf(msg string, args ...interface{})
	Error(args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Errorf(msg string, args ...interface{})

	// Named creates a child logger with the given name.
	Named(name string) Logger

	// With creates a child logger and attaches structured context to it.
	With(field string, value interface{}) Logger
}

func Debug(ctx context.Context, msg string) {
	FromContext(ctx).Debug(msg)
}

func Debugw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Debugw(msg, fields...)
}

func Debugf(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Debugf(msg, args...)
}

func Info(ctx context.Context, msg string) {
	FromContext(ctx).Info(msg)
}

func Infow(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Infow(msg, fields...)
}

func Infof(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Infof(msg, args...)
}

func Warn(ctx context.Context, msg string) {
	FromContext(ctx).Warn(msg)
}

func Warnw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Warnw(msg, fields...)
}

func Warnf(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Warnf(msg, args...)
}

func Error(ctx context.Context, msg string) {
	FromContext(ctx).Error(msg)
}

func Errorw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Errorw(msg, fields...)
}

func Errorf(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Errorf(msg, args...)
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(args ...interface{})                        {}
func (nopLogger) Debugw(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Debugf(msg string, args ...interface{})           {}
func (nopLogger) Info(args ...interface{})                         {}
func (nopLogger) Infow(msg string, keysAndValues ...interface{})   {}
func (nopLogger) Infof(msg string, args ...interface{})            {}
func (nopLogger) Warn(args ...interface{})                         {}
func (nopLogger) Warnw(msg string, keysAndValues ...interface{})   {}
func (nopLogger) Warnf(msg string, args ...interface{})            {}
func (nopLogger) Error(args ...interface{})                        {}
func (nopLogger) Errorw(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Errorf(msg string, args ...interface{})           {}
func (n nopLogger) Named(name string) Logger                       { return n }
func (n nopLogger) With(field string, value interface{}) Logger    { return n }
