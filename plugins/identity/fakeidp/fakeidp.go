// Package fakeidp provides an identity provider for testing purposes.
//
// The provider accepts arbitrary credentials and mints identities from them,
// so tests and local development can sign in as any user without external
// dependencies. Credentials can also script failures.
package fakeidp

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"

	"github.com/carebridge/portal"
	"github.com/carebridge/portal/errors"
	"github.com/carebridge/portal/plugins/identity"
)

const (
	// PluginName is the name of the fake identity provider plugin.
	PluginName = "identity_fake"

	// ProviderName is the name used in sign-in requests.
	ProviderName = "fake"

	// Default identity values if not provided.
	defaultSubject = "fake-user-123"
	defaultEmail   = "fake-user@example.com"
	defaultName    = "Fake User"
)

// Option allows configuration of the fake provider.
type Option func(*FakeIDP)

// WithDefaultIdentity sets the identity to use when no credentials are
// provided.
func WithDefaultIdentity(id identity.Identity) Option {
	return func(p *FakeIDP) {
		p.defaultIdentity = id
	}
}

// WithCredentialValidator sets a custom validator for sign-in requests.
// Return an error to reject the sign-in.
func WithCredentialValidator(v func(ctx context.Context, creds identity.Credentials) error) Option {
	return func(p *FakeIDP) {
		p.validator = v
	}
}

// Plugin returns a new fake identity provider for testing purposes.
func Plugin(opts ...Option) *FakeIDP {
	p := &FakeIDP{
		defaultIdentity: identity.Identity{
			Provider:      ProviderName,
			Subject:       defaultSubject,
			Email:         defaultEmail,
			EmailVerified: true,
			Name:          defaultName,
		},
		validator: func(ctx context.Context, creds identity.Credentials) error {
			return nil // Accept all by default.
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FakeIDP mints identities from the credentials it is handed.
type FakeIDP struct {
	defaultIdentity identity.Identity
	validator       func(ctx context.Context, creds identity.Credentials) error
}

// From portal.Plugin.
func (p *FakeIDP) Name() string {
	return PluginName
}

// From portal.DependentPlugin.
func (p *FakeIDP) Deps() []string {
	return []string{identity.PluginName}
}

// From portal.InitializablePlugin.
func (p *FakeIDP) Init(ctx context.Context, r *portal.Registry) error {
	hub := r.Get(identity.PluginName).(*identity.IdentityPlugin)
	hub.AddProvider(p)
	return nil
}

// From identity.Provider.
func (p *FakeIDP) ProviderName() string {
	return ProviderName
}

// From identity.Provider. Builds an identity from the provided credentials,
// falling back to the default identity for unset fields.
func (p *FakeIDP) BeginAuthenticationFlow(ctx context.Context, creds identity.Credentials) (identity.Identity, error) {
	// Simulated failures for tests.
	if errorCode, ok := creds["error_code"]; ok {
		code := codes.Unknown
		if c, err := strconv.Atoi(errorCode); err == nil {
			code = codes.Code(c)
		}
		msg := "simulated error"
		if m, ok := creds["error_message"]; ok && m != "" {
			msg = m
		}
		return identity.Identity{}, errors.NewC(msg, code)
	}

	if err := p.validator(ctx, creds); err != nil {
		return identity.Identity{}, err
	}

	id := p.defaultIdentity
	id.SessionID = uuid.NewString()
	id.AuthTime = time.Now()

	if subject, ok := creds["subject"]; ok && subject != "" {
		id.Subject = subject
	}
	if email, ok := creds["email"]; ok && email != "" {
		id.Email = email
	}
	if name, ok := creds["name"]; ok && name != "" {
		id.Name = name
	}
	if picture, ok := creds["picture"]; ok && picture != "" {
		id.PictureURL = picture
	}
	if phone, ok := creds["phone"]; ok && phone != "" {
		id.PhoneNumber = phone
	}
	if verified, ok := creds["email_verified"]; ok {
		id.EmailVerified = verified == "true"
	}

	return id, nil
}

// From identity.Provider.
func (p *FakeIDP) SignOut(ctx context.Context) error {
	return nil
}
