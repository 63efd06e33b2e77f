// Package session owns the client's authentication state. A single event
// loop applies identity provider events in arrival order, provisions the
// profile record on sign-in, and exposes a read-only snapshot to everything
// else. Route guarding and the continuity token build on that state.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/carebridge/portal"
	"github.com/carebridge/portal/errors"
	"github.com/carebridge/portal/logging"
	"github.com/carebridge/portal/plugins/eventbus"
	"github.com/carebridge/portal/plugins/identity"
	"github.com/carebridge/portal/plugins/profile"
)

// Constant name for identifying the session plugin.
const PluginName = "session"

// Topics published on the event bus as the session transitions.
const (
	// ResolvedEvent carries the profile.Profile adopted after sign-in.
	ResolvedEvent = "session.resolved"
	// ClearedEvent is published after sign-out completes.
	ClearedEvent = "session.cleared"
	// LanguageEvent carries the new language code after a preference update.
	LanguageEvent = "session.language"
)

var (
	// The identity provider rejected the sign-in attempt.
	ErrSignInFailed = errors.NewC("session: sign in failed", codes.Unauthenticated)

	// The profile record could not be read or created. The session stays in
	// the resolving phase; a fresh sign-in is required.
	ErrProfileResolution = errors.NewC("session: profile resolution failed", codes.Unavailable)

	// The language preference could not be persisted.
	ErrPreferenceUpdate = errors.NewC("session: preference update failed", codes.Internal)
)

func init() {
	portal.RegisterConfigKeys(
		portal.ConfigKeyInfo{
			Key:         "session.signingKey",
			Description: "HMAC key used to sign session continuity tokens",
			Type:        "string",
		},
		portal.ConfigKeyInfo{
			Key:         "session.tokenExpiration",
			Description: "Lifetime of session continuity tokens",
			Type:        "duration",
		},
	)
}

// Phase tracks how far the session has progressed since process start.
type Phase int

const (
	// PhaseUnresolved means no provider event has been received yet.
	PhaseUnresolved Phase = iota
	// PhaseResolving means a sign-in is being provisioned.
	PhaseResolving
	// PhaseResolved means the last provider event was fully processed.
	PhaseResolved
)

// State is the session snapshot consumers read. Profile is nil when no user
// is signed in; Loading gates consumers until the first provider event has
// been fully processed.
type State struct {
	Profile *profile.Profile
	Phase   Phase
}

// Loading reports whether consumers should hold off rendering identity
// derived UI.
func (s State) Loading() bool {
	return s.Phase != PhaseResolved
}

// Option allows configuration of the SessionPlugin.
type Option func(*SessionPlugin)

// WithSigningKey sets the key used to sign continuity tokens.
func WithSigningKey(key string) Option {
	return func(p *SessionPlugin) {
		p.signingKey = []byte(key)
	}
}

// WithTokenExpiration sets the continuity token lifetime.
func WithTokenExpiration(d time.Duration) Option {
	return func(p *SessionPlugin) {
		p.tokenExpiration = d
	}
}

// Plugin returns a new SessionPlugin.
func Plugin(opts ...Option) *SessionPlugin {
	p := &SessionPlugin{
		signingKey:      []byte(portal.ConfigString("session.signingKey")),
		tokenExpiration: portal.ConfigDuration("session.tokenExpiration"),
		events:          make(chan identity.Event, 16),
		cmds:            make(chan func(), 16),
		done:            make(chan struct{}),
		subscribers:     map[int]func(State){},
	}
	for _, opt := range opts {
		opt(p)
	}
	if len(p.signingKey) == 0 {
		p.signingKey = randomSigningKey()
		logging.Warn(context.Background(),
			"session: using a random signing key, continuity tokens will not survive restarts")
	}
	if p.tokenExpiration == 0 {
		p.tokenExpiration = 30 * 24 * time.Hour
	}
	return p
}

func randomSigningKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("session: failed to generate random signing key: " + err.Error())
	}
	return []byte(hex.EncodeToString(key))
}

// SessionPlugin is the single writer of session state. Provider events and
// preference updates are serialized through its event loop; everything else
// observes via Snapshot and Subscribe.
type SessionPlugin struct {
	hub      *identity.IdentityPlugin
	profiles *profile.ProfilePlugin
	bus      eventbus.EventBus
	guard    *Guard

	signingKey      []byte
	tokenExpiration time.Duration

	events chan identity.Event
	cmds   chan func()
	done   chan struct{}
	once   sync.Once

	mu              sync.RWMutex
	state           State
	currentProvider string
	resolutionErr   error
	subscribers     map[int]func(State)
	nextSub         int
}

// From portal.Plugin.
func (s *SessionPlugin) Name() string {
	return PluginName
}

// From portal.DependentPlugin.
func (s *SessionPlugin) Deps() []string {
	return []string{identity.PluginName, profile.PluginName}
}

// From portal.OptionalDependentPlugin.
func (s *SessionPlugin) OptDeps() []string {
	return []string{eventbus.PluginName}
}

// From portal.InitializablePlugin. Starts the event loop.
func (s *SessionPlugin) Init(ctx context.Context, r *portal.Registry) error {
	hub, ok := r.Get(identity.PluginName).(*identity.IdentityPlugin)
	if !ok {
		return errors.New("session: identity plugin not registered")
	}
	profiles, ok := r.Get(profile.PluginName).(*profile.ProfilePlugin)
	if !ok {
		return errors.New("session: profile plugin not registered")
	}
	s.hub = hub
	s.profiles = profiles
	if ebp, ok := r.Get(eventbus.PluginName).(*eventbus.EventBusPlugin); ok && ebp != nil {
		s.bus = ebp.EventBus
	}

	s.guard = NewGuard(portal.ConfigString("session.signInPath"))

	// The hub dispatches synchronously, so enqueueing here preserves the
	// announcement order.
	s.hub.Subscribe(func(ctx context.Context, ev identity.Event) {
		s.events <- ev
	})

	go s.run(context.WithoutCancel(ctx))
	return nil
}

// Close stops the event loop. Pending events are discarded.
func (s *SessionPlugin) Close() {
	s.once.Do(func() { close(s.done) })
}

// Guard returns the route guard bound to this session's state.
func (s *SessionPlugin) Guard() *Guard {
	return s.guard
}

// Snapshot returns the current session state. The returned profile pointer
// refers to a private copy; mutating it does not affect the session.
func (s *SessionPlugin) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyStateLocked()
}

func (s *SessionPlugin) copyStateLocked() State {
	st := State{Phase: s.state.Phase}
	if s.state.Profile != nil {
		p := *s.state.Profile
		st.Profile = &p
	}
	return st
}

// Subscribe registers a callback invoked after every state transition, from
// the event loop goroutine. The returned function removes the callback.
func (s *SessionPlugin) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// BeginSignIn runs the named provider's authentication flow and blocks until
// the resulting session state has been resolved. The session is loading for
// the whole call, including while the provider's consent flow is in flight,
// so the route guard waits instead of redirecting or rendering a stale
// profile. A provider rejection restores the prior phase and returns
// ErrSignInFailed; a profile store failure returns ErrProfileResolution and
// leaves the session loading.
func (s *SessionPlugin) BeginSignIn(ctx context.Context, provider string, creds identity.Credentials) error {
	var prev Phase
	err := s.do(ctx, func() {
		s.transition(func() {
			prev = s.state.Phase
			s.state.Phase = PhaseResolving
		})
	})
	if err != nil {
		return err
	}

	if _, err := s.hub.SignIn(ctx, provider, creds); err != nil {
		// Rejected attempts leave state as it was before the call.
		restoreErr := s.do(context.WithoutCancel(ctx), func() {
			s.transition(func() { s.state.Phase = prev })
		})
		if restoreErr != nil {
			logging.Errorw(ctx, "session: failed to restore phase after rejected sign in",
				"error", restoreErr)
		}
		if errors.Is(err, identity.ErrUnknownProvider) {
			return err
		}
		return errors.Mark(ErrSignInFailed, 0).Append(err.Error())
	}
	if err := s.flush(ctx); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolutionErr
}

// SignOut clears the session. Safe to call when nobody is signed in.
func (s *SessionPlugin) SignOut(ctx context.Context) error {
	s.mu.RLock()
	provider := s.currentProvider
	s.mu.RUnlock()

	if err := s.hub.SignOut(ctx, provider); err != nil {
		return err
	}
	return s.flush(ctx)
}

// UpdatePreferredLanguage persists the user's language choice and updates the
// in-memory profile copy. Without a resolved profile this is a no-op: the
// selection stays local to the locale layer.
func (s *SessionPlugin) UpdatePreferredLanguage(ctx context.Context, code string) error {
	reply := make(chan error, 1)
	select {
	case s.cmds <- func() { reply <- s.applyLanguage(ctx, code) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errors.New("session: closed")
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do runs fn on the event loop and blocks until it has executed.
func (s *SessionPlugin) do(ctx context.Context, fn func()) error {
	reply := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(reply) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errors.New("session: closed")
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flush round-trips the event loop so that everything enqueued before the
// call has been applied.
func (s *SessionPlugin) flush(ctx context.Context) error {
	return s.do(ctx, func() {})
}

// run is the single writer of session state.
func (s *SessionPlugin) run(ctx context.Context) {
	ctx = logging.With(ctx, logging.FromContext(ctx).Named("session"))
	for {
		// Provider events drain ahead of commands so that a flush observes
		// every event announced before it.
		select {
		case ev := <-s.events:
			s.apply(ctx, ev)
			continue
		default:
		}
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			s.apply(ctx, ev)
		case fn := <-s.cmds:
			fn()
		}
	}
}

// apply processes one provider event. Events are handled strictly in arrival
// order; a sign-out queued during provisioning takes effect right after the
// in-flight write completes.
func (s *SessionPlugin) apply(ctx context.Context, ev identity.Event) {
	switch ev.Kind {
	case identity.SignedIn:
		s.transition(func() {
			s.state.Phase = PhaseResolving
			s.resolutionErr = nil
			s.currentProvider = ev.Identity.Provider
		})

		p, err := s.profiles.Provision(ctx, ev.Identity)
		if err != nil {
			logging.Errorw(ctx, "session: profile resolution failed",
				"subject", ev.Identity.Subject, "error", err)
			s.transition(func() {
				s.resolutionErr = errors.Mark(ErrProfileResolution, 0).Append(err.Error())
			})
			return
		}

		logging.Infow(ctx, "session: resolved", "id", p.ID, "role", p.Role.String())
		s.transition(func() {
			s.state.Profile = &p
			s.state.Phase = PhaseResolved
		})
		if s.bus != nil {
			s.bus.Publish(ResolvedEvent, p)
		}

	case identity.SignedOut:
		logging.Info(ctx, "session: cleared")
		s.transition(func() {
			s.state.Profile = nil
			s.state.Phase = PhaseResolved
			s.resolutionErr = nil
			s.currentProvider = ""
		})
		if s.bus != nil {
			s.bus.Publish(ClearedEvent, struct{}{})
		}
	}
}

// applyLanguage runs on the event loop.
func (s *SessionPlugin) applyLanguage(ctx context.Context, code string) error {
	s.mu.RLock()
	current := s.state.Profile
	s.mu.RUnlock()

	if current == nil {
		logging.Debugw(ctx, "session: language selection without profile, skipping persist", "language", code)
		return nil
	}

	if err := s.profiles.UpdateLanguage(ctx, current.ID, code); err != nil {
		return errors.Mark(ErrPreferenceUpdate, 0).Append(err.Error())
	}

	s.transition(func() {
		p := *s.state.Profile
		p.Language = code
		s.state.Profile = &p
	})
	if s.bus != nil {
		s.bus.Publish(LanguageEvent, code)
	}
	return nil
}

// transition mutates state under lock and notifies subscribers with a copy.
// Only called from the event loop goroutine.
func (s *SessionPlugin) transition(mutate func()) {
	s.mu.Lock()
	mutate()
	snapshot := s.copyStateLocked()
	subs := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}
