package session

import (
	"net/http"
	"sync"
)

// DecisionKind classifies what the routing layer should do with a request.
type DecisionKind int

const (
	// Wait means session state is still loading; show nothing identity
	// derived yet.
	Wait DecisionKind = iota
	// Redirect means nobody is signed in; send the user to RedirectTo.
	Redirect
	// Render means a profile is resolved and the route may be shown.
	Render
)

// Decision is the outcome of guarding one route request.
type Decision struct {
	Kind       DecisionKind
	RedirectTo string
}

// Guard decides whether protected routes may render. Decisions are a pure
// function of session state and the requested path; the only side effect is
// remembering the path that triggered a redirect so the app can return to it
// after sign-in.
type Guard struct {
	signInPath string

	mu       sync.Mutex
	returnTo string
	captured bool
}

// NewGuard returns a guard that redirects unauthenticated requests to
// signInPath.
func NewGuard(signInPath string) *Guard {
	return &Guard{signInPath: signInPath}
}

// Decide maps session state and a requested path onto a guard decision.
// While state is loading the caller must wait; without a profile the caller
// is redirected to the sign-in path and the requested path is captured.
func (g *Guard) Decide(state State, requestedPath string) Decision {
	if state.Loading() {
		return Decision{Kind: Wait}
	}
	if state.Profile == nil {
		g.mu.Lock()
		g.returnTo = requestedPath
		g.captured = true
		g.mu.Unlock()
		return Decision{Kind: Redirect, RedirectTo: g.signInPath}
	}
	return Decision{Kind: Render}
}

// ConsumeReturnTo returns the path captured by the most recent redirect and
// clears it. The second return is false when nothing was captured; a
// successful sign-in should then land on the app's default route.
func (g *Guard) ConsumeReturnTo() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.captured {
		return "", false
	}
	path := g.returnTo
	g.returnTo = ""
	g.captured = false
	return path, true
}

// Middleware maps guard decisions onto an http.Handler chain. Waiting
// sessions get a 503 with a Retry-After hint, unauthenticated requests a 302
// to the sign-in path, and resolved sessions pass through.
func (g *Guard) Middleware(snapshot func() State) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Decide(snapshot(), r.URL.Path)
			switch d.Kind {
			case Wait:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session loading", http.StatusServiceUnavailable)
			case Redirect:
				http.Redirect(w, r, d.RedirectTo, http.StatusFound)
			case Render:
				next.ServeHTTP(w, r)
			}
		})
	}
}
