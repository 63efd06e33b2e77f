package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestNewC(t *testing.T) {
	err := NewC("profile store unreachable", codes.Unavailable)
	assert.Equal(t, "profile store unreachable", err.Error())
	assert.Equal(t, codes.Unavailable, err.Code())
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatusCode())
}

func TestMarkPreservesSentinelIdentity(t *testing.T) {
	sentinel := NewC("record not found", codes.NotFound)
	marked := Mark(sentinel, 0)

	assert.NotSame(t, sentinel, marked)
	assert.True(t, Is(marked, sentinel))
	assert.Equal(t, codes.NotFound, marked.Code())
}

func TestAppendPrefixesMessage(t *testing.T) {
	err := NewC("boom", codes.Internal).Append("session")
	assert.Equal(t, "session: boom", err.Error())

	err = err.Append("portal")
	assert.Equal(t, "portal: session: boom", err.Error())
}

func TestWrapPassesThroughError(t *testing.T) {
	inner := NewC("inner", codes.InvalidArgument)
	assert.Same(t, inner, Wrap(inner, 0))

	wrapped := Wrap(fmt.Errorf("plain"), 0)
	assert.Equal(t, codes.Unknown, wrapped.Code())
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, codes.OK, Code(nil))
	assert.Equal(t, codes.Unknown, Code(fmt.Errorf("plain")))
	assert.Equal(t, codes.Unauthenticated, Code(NewC("no", codes.Unauthenticated)))
}

func TestPublicMessage(t *testing.T) {
	err := NewC("pq: connection refused", codes.Unavailable).
		WithPublicMessage("Something went wrong, please retry.")
	assert.Equal(t, "Something went wrong, please retry.", err.PublicMessage())
	assert.Equal(t, "pq: connection refused", err.Error())
}

func TestStackIsCaptured(t *testing.T) {
	err := New("kaboom")
	assert.Contains(t, string(err.Stack()), "errors_test.go")
}
