package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/portal/plugins/identity"
	"github.com/carebridge/portal/plugins/identity/fakeidp"
	"github.com/carebridge/portal/storage/memorystore"
)

func testTokenIdentity() identity.Identity {
	return identity.Identity{
		Subject:       "user-1",
		Provider:      "fake",
		Email:         "pat@example.com",
		EmailVerified: true,
		Name:          "Pat Patient",
		PictureURL:    "https://example.com/pat.png",
		PhoneNumber:   "+15551234567",
		SessionID:     "session-1",
		AuthTime:      time.Now().Truncate(time.Second),
	}
}

func TestTokenRoundTrip(t *testing.T) {
	s := newTestSession(t, memorystore.New())
	id := testTokenIdentity()

	token, err := s.IssueToken(id)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsed, err := s.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, id.Subject, parsed.Subject)
	assert.Equal(t, id.Provider, parsed.Provider)
	assert.Equal(t, id.Email, parsed.Email)
	assert.True(t, parsed.EmailVerified)
	assert.Equal(t, id.Name, parsed.Name)
	assert.Equal(t, id.PictureURL, parsed.PictureURL)
	assert.Equal(t, id.PhoneNumber, parsed.PhoneNumber)
	assert.Equal(t, id.SessionID, parsed.SessionID)
	assert.Equal(t, id.AuthTime.Unix(), parsed.AuthTime.Unix())
}

func TestTokenExpired(t *testing.T) {
	s := newTestSession(t, memorystore.New())

	token, err := s.IssueToken(testTokenIdentity())
	require.NoError(t, err)

	defer func() { timeFunc = time.Now }()
	timeFunc = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = s.ParseToken(token)
	require.Error(t, err)
}

func TestTokenWrongKey(t *testing.T) {
	a := newTestSession(t, memorystore.New())
	b := Plugin(WithSigningKey("a-completely-different-key-456789"))

	token, err := a.IssueToken(testTokenIdentity())
	require.NoError(t, err)

	_, err = b.ParseToken(token)
	require.Error(t, err)
}

func TestTokenGarbage(t *testing.T) {
	s := newTestSession(t, memorystore.New())

	_, err := s.ParseToken("not.a.token")
	require.Error(t, err)
}

func TestRestore(t *testing.T) {
	s := newTestSession(t, memorystore.New())

	// Establish a profile, capture a token, then sign out.
	require.NoError(t, s.BeginSignIn(t.Context(), fakeidp.ProviderName, identity.Credentials{
		"subject": "user-1",
	}))
	id := testTokenIdentity()
	token, err := s.IssueToken(id)
	require.NoError(t, err)
	require.NoError(t, s.SignOut(t.Context()))
	require.Nil(t, s.Snapshot().Profile)

	// A fresh process presents the token and gets the session back without a
	// consent flow.
	require.NoError(t, s.Restore(t.Context(), token))

	state := s.Snapshot()
	assert.False(t, state.Loading())
	require.NotNil(t, state.Profile)
	assert.Equal(t, "user-1", state.Profile.ID)
}

func TestRestoreInvalidToken(t *testing.T) {
	s := newTestSession(t, memorystore.New())

	err := s.Restore(t.Context(), "garbage")
	require.Error(t, err)
	assert.True(t, s.Snapshot().Loading(), "failed restore leaves state untouched")
}
