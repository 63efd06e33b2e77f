package googleidp

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/portal"
	"github.com/carebridge/portal/plugins/identity"
)

func TestConsentURL(t *testing.T) {
	p := Plugin(
		WithClient("client-id", "client-secret"),
		WithRedirectURL("https://app.example.com/auth/callback"),
	)

	raw := p.ConsentURL("state-token")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "/o/oauth2/v2/auth", u.Path)

	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "https://app.example.com/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "state-token", q.Get("state"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
}

func TestInitRequiresClient(t *testing.T) {
	r := &portal.Registry{}
	r.Register(identity.Plugin())

	t.Run("MissingID", func(t *testing.T) {
		p := Plugin(WithClient("", "secret"))
		err := p.Init(t.Context(), r)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "client id")
	})

	t.Run("MissingSecret", func(t *testing.T) {
		p := Plugin(WithClient("id", ""))
		err := p.Init(t.Context(), r)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "client secret")
	})
}

func TestInitRegistersProvider(t *testing.T) {
	r := &portal.Registry{}
	hub := identity.Plugin()
	r.Register(hub)

	p := Plugin(WithClient("id", "secret"))
	require.NoError(t, p.Init(t.Context(), r))

	registered, err := hub.Provider(ProviderName)
	require.NoError(t, err)
	assert.Equal(t, ProviderName, registered.ProviderName())
}

func TestUserInfoFromClaims(t *testing.T) {
	t.Run("Complete", func(t *testing.T) {
		info, err := userInfoFromClaims(map[string]interface{}{
			"sub":            "108",
			"email":          "doc@example.com",
			"email_verified": true,
			"name":           "Dr. Example",
			"picture":        "https://example.com/pic.png",
		})
		require.NoError(t, err)
		assert.Equal(t, "108", info.ID)
		assert.Equal(t, "doc@example.com", info.Email)
		assert.True(t, info.VerifiedEmail)
		assert.Equal(t, "Dr. Example", info.Name)
		assert.Equal(t, "https://example.com/pic.png", info.Picture)
	})

	t.Run("MissingSubject", func(t *testing.T) {
		_, err := userInfoFromClaims(map[string]interface{}{
			"email": "doc@example.com",
		})
		require.Error(t, err)
	})

	t.Run("PartialClaims", func(t *testing.T) {
		info, err := userInfoFromClaims(map[string]interface{}{"sub": "108"})
		require.NoError(t, err)
		assert.Equal(t, "108", info.ID)
		assert.Empty(t, info.Email)
	})
}

func TestUnexpectedCredentials(t *testing.T) {
	p := Plugin(WithClient("id", "secret"))

	_, err := p.BeginAuthenticationFlow(t.Context(), identity.Credentials{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "`code` or an `idtoken`")
}
