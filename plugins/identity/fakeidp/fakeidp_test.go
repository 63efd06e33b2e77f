package fakeidp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/carebridge/portal/errors"
	"github.com/carebridge/portal/plugins/identity"
)

func TestDefaultIdentity(t *testing.T) {
	p := Plugin()

	id, err := p.BeginAuthenticationFlow(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, defaultSubject, id.Subject)
	assert.Equal(t, defaultEmail, id.Email)
	assert.Equal(t, defaultName, id.Name)
	assert.Equal(t, ProviderName, id.Provider)
	assert.True(t, id.EmailVerified)
	assert.NotEmpty(t, id.SessionID)
	assert.False(t, id.AuthTime.IsZero())
}

func TestCredentialOverrides(t *testing.T) {
	p := Plugin()

	id, err := p.BeginAuthenticationFlow(t.Context(), identity.Credentials{
		"subject":        "patient-42",
		"email":          "patient@example.com",
		"name":           "Pat Patient",
		"picture":        "https://example.com/p.png",
		"phone":          "+15551234567",
		"email_verified": "false",
	})
	require.NoError(t, err)
	assert.Equal(t, "patient-42", id.Subject)
	assert.Equal(t, "patient@example.com", id.Email)
	assert.Equal(t, "Pat Patient", id.Name)
	assert.Equal(t, "https://example.com/p.png", id.PictureURL)
	assert.Equal(t, "+15551234567", id.PhoneNumber)
	assert.False(t, id.EmailVerified)
}

func TestScriptedError(t *testing.T) {
	p := Plugin()

	_, err := p.BeginAuthenticationFlow(t.Context(), identity.Credentials{
		"error_code":    "16", // Unauthenticated
		"error_message": "bad password",
	})
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, errors.Code(err))
	assert.Contains(t, err.Error(), "bad password")
}

func TestCustomValidator(t *testing.T) {
	p := Plugin(WithCredentialValidator(func(ctx context.Context, creds identity.Credentials) error {
		if creds["subject"] == "blocked" {
			return errors.NewC("identity blocked", codes.PermissionDenied)
		}
		return nil
	}))

	_, err := p.BeginAuthenticationFlow(t.Context(), identity.Credentials{"subject": "blocked"})
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, errors.Code(err))

	_, err = p.BeginAuthenticationFlow(t.Context(), identity.Credentials{"subject": "ok"})
	assert.NoError(t, err)
}

func TestSessionIDsAreUnique(t *testing.T) {
	p := Plugin()

	a, err := p.BeginAuthenticationFlow(t.Context(), nil)
	require.NoError(t, err)
	b, err := p.BeginAuthenticationFlow(t.Context(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestSignOut(t *testing.T) {
	p := Plugin()
	assert.NoError(t, p.SignOut(t.Context()))
}
