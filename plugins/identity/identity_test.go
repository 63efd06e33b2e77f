package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/portal/errors"
)

type stubProvider struct {
	name     string
	identity Identity
	err      error
	signOuts int
}

func (p *stubProvider) ProviderName() string { return p.name }

func (p *stubProvider) BeginAuthenticationFlow(ctx context.Context, creds Credentials) (Identity, error) {
	if p.err != nil {
		return Identity{}, p.err
	}
	return p.identity, nil
}

func (p *stubProvider) SignOut(ctx context.Context) error {
	p.signOuts++
	return nil
}

func TestSignIn(t *testing.T) {
	provider := &stubProvider{
		name: "stub",
		identity: Identity{
			Subject:   "user-1",
			Provider:  "stub",
			SessionID: "session-1",
			AuthTime:  time.Now(),
		},
	}
	hub := Plugin(WithProvider(provider))

	var events []Event
	hub.Subscribe(func(ctx context.Context, ev Event) {
		events = append(events, ev)
	})

	id, err := hub.SignIn(t.Context(), "stub", nil)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.Subject)

	require.Len(t, events, 1)
	assert.Equal(t, SignedIn, events[0].Kind)
	assert.Equal(t, "user-1", events[0].Identity.Subject)
}

func TestSignInUnknownProvider(t *testing.T) {
	hub := Plugin()

	_, err := hub.SignIn(t.Context(), "nope", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestSignInProviderError(t *testing.T) {
	provider := &stubProvider{name: "stub", err: errors.New("rejected")}
	hub := Plugin(WithProvider(provider))

	var announced bool
	hub.Subscribe(func(ctx context.Context, ev Event) {
		announced = true
	})

	_, err := hub.SignIn(t.Context(), "stub", nil)
	require.Error(t, err)
	assert.False(t, announced, "failed sign-in should not be announced")
}

func TestSignOut(t *testing.T) {
	provider := &stubProvider{name: "stub", identity: Identity{Subject: "user-1"}}
	hub := Plugin(WithProvider(provider))

	var events []Event
	hub.Subscribe(func(ctx context.Context, ev Event) {
		events = append(events, ev)
	})

	require.NoError(t, hub.SignOut(t.Context(), "stub"))
	assert.Equal(t, 1, provider.signOuts)

	require.Len(t, events, 1)
	assert.Equal(t, SignedOut, events[0].Kind)
	assert.Equal(t, Identity{}, events[0].Identity)
}

func TestSignOutWithoutProvider(t *testing.T) {
	hub := Plugin()

	var events []Event
	hub.Subscribe(func(ctx context.Context, ev Event) {
		events = append(events, ev)
	})

	// An empty provider name announces without touching any provider.
	require.NoError(t, hub.SignOut(t.Context(), ""))
	require.Len(t, events, 1)
	assert.Equal(t, SignedOut, events[0].Kind)
}

func TestListenerOrdering(t *testing.T) {
	provider := &stubProvider{name: "stub", identity: Identity{Subject: "user-1"}}
	hub := Plugin(WithProvider(provider))

	var order []string
	hub.Subscribe(func(ctx context.Context, ev Event) {
		order = append(order, "first")
	})
	hub.Subscribe(func(ctx context.Context, ev Event) {
		order = append(order, "second")
	})

	hub.Announce(t.Context(), provider.identity)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestUnsubscribe(t *testing.T) {
	hub := Plugin()

	var calls int
	unsub := hub.Subscribe(func(ctx context.Context, ev Event) {
		calls++
	})

	hub.AnnounceSignOut(t.Context())
	unsub()
	hub.AnnounceSignOut(t.Context())

	assert.Equal(t, 1, calls)

	// Unsubscribing twice is a no-op.
	unsub()
}

func TestAddProvider(t *testing.T) {
	hub := Plugin()
	hub.AddProvider(&stubProvider{name: "stub"})

	p, err := hub.Provider("stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", p.ProviderName())
}
