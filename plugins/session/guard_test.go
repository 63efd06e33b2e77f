package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/portal/plugins/profile"
)

func resolvedState() State {
	return State{
		Phase:   PhaseResolved,
		Profile: &profile.Profile{ID: "user-1", Role: profile.RolePatient, Language: "en"},
	}
}

func signedOutState() State {
	return State{Phase: PhaseResolved}
}

func TestDecideWaitsWhileLoading(t *testing.T) {
	g := NewGuard("/login")

	for _, phase := range []Phase{PhaseUnresolved, PhaseResolving} {
		d := g.Decide(State{Phase: phase}, "/dashboard")
		assert.Equal(t, Wait, d.Kind)
	}

	// Waiting must not capture a return path.
	_, ok := g.ConsumeReturnTo()
	assert.False(t, ok)
}

func TestDecideRedirectsWhenSignedOut(t *testing.T) {
	g := NewGuard("/login")

	d := g.Decide(signedOutState(), "/appointments")
	assert.Equal(t, Redirect, d.Kind)
	assert.Equal(t, "/login", d.RedirectTo)

	path, ok := g.ConsumeReturnTo()
	require.True(t, ok)
	assert.Equal(t, "/appointments", path)
}

func TestDecideRendersWhenResolved(t *testing.T) {
	g := NewGuard("/login")

	d := g.Decide(resolvedState(), "/dashboard")
	assert.Equal(t, Render, d.Kind)
}

func TestConsumeReturnToOnce(t *testing.T) {
	g := NewGuard("/login")
	g.Decide(signedOutState(), "/billing")

	path, ok := g.ConsumeReturnTo()
	require.True(t, ok)
	assert.Equal(t, "/billing", path)

	_, ok = g.ConsumeReturnTo()
	assert.False(t, ok, "captured path consumed exactly once")
}

func TestLatestRedirectWins(t *testing.T) {
	g := NewGuard("/login")
	g.Decide(signedOutState(), "/billing")
	g.Decide(signedOutState(), "/settings")

	path, ok := g.ConsumeReturnTo()
	require.True(t, ok)
	assert.Equal(t, "/settings", path)
}

func TestMiddleware(t *testing.T) {
	g := NewGuard("/login")

	var rendered bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rendered = true
	})

	t.Run("Wait", func(t *testing.T) {
		rendered = false
		h := g.Middleware(func() State { return State{Phase: PhaseResolving} })(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		assert.False(t, rendered)
	})

	t.Run("Redirect", func(t *testing.T) {
		rendered = false
		h := g.Middleware(func() State { return signedOutState() })(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		assert.False(t, rendered)

		path, ok := g.ConsumeReturnTo()
		require.True(t, ok)
		assert.Equal(t, "/dashboard", path)
	})

	t.Run("Render", func(t *testing.T) {
		rendered = false
		h := g.Middleware(resolvedState)(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, rendered)
	})
}
