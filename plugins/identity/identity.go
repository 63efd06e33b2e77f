// Package identity provides the boundary between the session core and
// external identity providers.
//
// Authentication is delegated to a Provider, which verifies the user's
// credentials and returns a verified Identity. Providers register themselves
// with the IdentityPlugin hub, which fans sign-in and sign-out announcements
// out to listeners and, when available, the event bus.
//
// Observe the googleidp or fakeidp packages for complete provider examples.
package identity

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/carebridge/portal"
	"github.com/carebridge/portal/errors"
	"github.com/carebridge/portal/logging"
	"github.com/carebridge/portal/plugins/eventbus"
)

// Constant name for identifying the identity plugin.
const PluginName = "identity"

// Topics published on the event bus when the authenticated identity changes.
const (
	SignedInEvent  = "identity.signedin"
	SignedOutEvent = "identity.signedout"
)

var (
	// No provider registered under the requested name.
	ErrUnknownProvider = errors.NewC("identity: unknown provider", codes.NotFound)

	// The provider rejected the presented credentials.
	ErrBadCredentials = errors.NewC("identity: credentials rejected", codes.Unauthenticated)
)

// Credentials carry provider-specific secrets, codes, or tokens. The hub
// treats them as opaque.
type Credentials map[string]string

// Identity describes a user as verified by an external provider.
type Identity struct {
	// Provider specific identifier for the user.
	Subject string

	// Name of the provider that verified the user.
	Provider string

	// The email address received from the provider, if available.
	Email string

	// Whether the provider has verified the email address.
	EmailVerified bool

	// Display name received from the provider, if available.
	Name string

	// URL of the user's avatar, if available.
	PictureURL string

	// Phone number received from the provider, if available.
	PhoneNumber string

	// Unique identifier for the authentication session.
	SessionID string

	// The time at which the user was authenticated.
	AuthTime time.Time
}

// EventKind distinguishes identity announcements.
type EventKind int

const (
	// SignedIn announces a newly verified identity.
	SignedIn EventKind = iota
	// SignedOut announces that the previous identity is gone.
	SignedOut
)

// Event is delivered to listeners when the authenticated identity changes.
type Event struct {
	Kind     EventKind
	Identity Identity // Zero value for SignedOut events.
}

// Listener receives identity events. Listeners are invoked in subscription
// order and should return quickly; slow work belongs on the event bus.
type Listener func(context.Context, Event)

// Provider is implemented by identity providers. BeginAuthenticationFlow
// blocks until the provider has verified the credentials or failed.
type Provider interface {
	// ProviderName identifies the provider in sign-in requests.
	ProviderName() string

	// BeginAuthenticationFlow verifies the given credentials and returns the
	// authenticated identity. The returned identity must have Subject,
	// Provider, and SessionID populated.
	BeginAuthenticationFlow(ctx context.Context, creds Credentials) (Identity, error)

	// SignOut releases any provider-side session state. Safe to call when no
	// session is active.
	SignOut(ctx context.Context) error
}

// IdentityOption allows configuration of the IdentityPlugin.
type IdentityOption func(*IdentityPlugin)

// WithProvider registers a provider at construction time. Providers may also
// register themselves during Init via AddProvider.
func WithProvider(p Provider) IdentityOption {
	return func(ip *IdentityPlugin) {
		ip.providers[p.ProviderName()] = p
	}
}

// Plugin returns a new IdentityPlugin hub.
func Plugin(opts ...IdentityOption) *IdentityPlugin {
	ip := &IdentityPlugin{
		providers: map[string]Provider{},
	}
	for _, opt := range opts {
		opt(ip)
	}
	return ip
}

// IdentityPlugin is the hub that providers register with and that the session
// manager drives sign-in flows through.
type IdentityPlugin struct {
	mu        sync.Mutex
	providers map[string]Provider
	listeners []Listener
	nextID    int
	subs      map[int]int // Subscription id to listener index.

	bus eventbus.EventBus
}

// From portal.Plugin.
func (ip *IdentityPlugin) Name() string {
	return PluginName
}

// From portal.OptionalDependentPlugin.
func (ip *IdentityPlugin) OptDeps() []string {
	return []string{eventbus.PluginName}
}

// From portal.InitializablePlugin.
func (ip *IdentityPlugin) Init(ctx context.Context, r *portal.Registry) error {
	if ebp, ok := r.Get(eventbus.PluginName).(*eventbus.EventBusPlugin); ok && ebp != nil {
		ip.bus = ebp.EventBus
	}
	return nil
}

// AddProvider registers a provider with the hub. Called by provider plugins
// during their Init.
func (ip *IdentityPlugin) AddProvider(p Provider) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	ip.providers[p.ProviderName()] = p
}

// Provider returns the registered provider with the given name.
func (ip *IdentityPlugin) Provider(name string) (Provider, error) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	p, ok := ip.providers[name]
	if !ok {
		return nil, errors.Mark(ErrUnknownProvider, 0).Append(name)
	}
	return p, nil
}

// SignIn runs the named provider's authentication flow and announces the
// verified identity to listeners.
func (ip *IdentityPlugin) SignIn(ctx context.Context, provider string, creds Credentials) (Identity, error) {
	p, err := ip.Provider(provider)
	if err != nil {
		return Identity{}, err
	}
	id, err := p.BeginAuthenticationFlow(ctx, creds)
	if err != nil {
		return Identity{}, err
	}
	logging.Infow(ctx, "identity: user authenticated",
		"provider", id.Provider, "subject", id.Subject, "session", id.SessionID)
	ip.Announce(ctx, id)
	return id, nil
}

// SignOut runs the named provider's sign-out and announces the change.
// Safe to call when no session is active.
func (ip *IdentityPlugin) SignOut(ctx context.Context, provider string) error {
	if provider != "" {
		p, err := ip.Provider(provider)
		if err != nil {
			return err
		}
		if err := p.SignOut(ctx); err != nil {
			return err
		}
	}
	ip.AnnounceSignOut(ctx)
	return nil
}

// Subscribe registers a listener for identity events. The returned function
// removes the listener.
func (ip *IdentityPlugin) Subscribe(l Listener) func() {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if ip.subs == nil {
		ip.subs = map[int]int{}
	}
	id := ip.nextID
	ip.nextID++
	ip.subs[id] = len(ip.listeners)
	ip.listeners = append(ip.listeners, l)
	return func() {
		ip.mu.Lock()
		defer ip.mu.Unlock()
		idx, ok := ip.subs[id]
		if !ok {
			return
		}
		delete(ip.subs, id)
		ip.listeners[idx] = nil
	}
}

// Announce delivers a signed-in event to all listeners in subscription order,
// then publishes it on the event bus if one is available. Providers may call
// this directly for externally initiated sessions, such as a restored
// continuity token.
func (ip *IdentityPlugin) Announce(ctx context.Context, id Identity) {
	ip.dispatch(ctx, Event{Kind: SignedIn, Identity: id})
	if ip.bus != nil {
		ip.bus.Publish(SignedInEvent, id)
	}
}

// AnnounceSignOut delivers a signed-out event to all listeners.
func (ip *IdentityPlugin) AnnounceSignOut(ctx context.Context) {
	ip.dispatch(ctx, Event{Kind: SignedOut})
	if ip.bus != nil {
		ip.bus.Publish(SignedOutEvent, struct{}{})
	}
}

// dispatch invokes listeners synchronously so that events are observed in
// announcement order. Listeners that need concurrency subscribe on the bus.
func (ip *IdentityPlugin) dispatch(ctx context.Context, ev Event) {
	ip.mu.Lock()
	listeners := make([]Listener, len(ip.listeners))
	copy(listeners, ip.listeners)
	ip.mu.Unlock()

	for _, l := range listeners {
		if l != nil {
			l(ctx, ev)
		}
	}
}
