// Package googleidp provides identity verification via Google SSO.
//
// Two methods of authentication are supported:
//   - Client side: the Google SDK hands the app an ID token, which is passed
//     in the credentials as `idtoken` and validated against the client ID.
//   - Server side: the app redirects the user to the URL from ConsentURL,
//     Google redirects back with an authorization code, which is passed in
//     the credentials as `code` and exchanged for the user's profile.
//
// Configure a Google OAuth app per
// https://support.google.com/cloud/answer/6158849 and set
// identity.google.id, identity.google.secret, and identity.google.redirect
// in carebridge.yaml or the corresponding CB__ environment variables.
package googleidp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
	"google.golang.org/grpc/codes"

	"github.com/carebridge/portal"
	"github.com/carebridge/portal/errors"
	"github.com/carebridge/portal/logging"
	"github.com/carebridge/portal/plugins/identity"
)

const (
	// PluginName is the name of the Google identity provider plugin.
	PluginName = "identity_google"

	// ProviderName is the name used in sign-in requests.
	ProviderName = "google"

	userInfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"
)

func init() {
	portal.RegisterConfigKeys(
		portal.ConfigKeyInfo{
			Key:         "identity.google.id",
			Description: "Google OAuth2 client ID",
			Type:        "string",
		},
		portal.ConfigKeyInfo{
			Key:         "identity.google.secret",
			Description: "Google OAuth2 client secret",
			Type:        "string",
		},
		portal.ConfigKeyInfo{
			Key:         "identity.google.redirect",
			Description: "Redirect URL registered with the Google OAuth app",
			Type:        "string",
		},
	)
}

// Option allows configuration of the GoogleIDP.
type Option func(*GoogleIDP)

// WithClient configures the provider with the given client id and secret.
func WithClient(id, secret string) Option {
	return func(p *GoogleIDP) {
		p.clientID = id
		p.clientSecret = secret
	}
}

// WithRedirectURL overrides the configured OAuth redirect URL.
func WithRedirectURL(u string) Option {
	return func(p *GoogleIDP) {
		p.redirectURL = u
	}
}

// Plugin returns a new Google identity provider.
func Plugin(opts ...Option) *GoogleIDP {
	p := &GoogleIDP{
		clientID:     portal.ConfigString("identity.google.id"),
		clientSecret: portal.ConfigString("identity.google.secret"),
		redirectURL:  portal.ConfigString("identity.google.redirect"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GoogleIDP verifies users via Google SSO.
type GoogleIDP struct {
	clientID     string
	clientSecret string
	redirectURL  string
}

// From portal.Plugin.
func (p *GoogleIDP) Name() string {
	return PluginName
}

// From portal.DependentPlugin.
func (p *GoogleIDP) Deps() []string {
	return []string{identity.PluginName}
}

// From portal.InitializablePlugin.
func (p *GoogleIDP) Init(ctx context.Context, r *portal.Registry) error {
	if p.clientID == "" {
		return errors.New("googleidp: config missing client id")
	}
	if p.clientSecret == "" {
		return errors.New("googleidp: config missing client secret")
	}
	hub := r.Get(identity.PluginName).(*identity.IdentityPlugin)
	hub.AddProvider(p)
	return nil
}

// From identity.Provider.
func (p *GoogleIDP) ProviderName() string {
	return ProviderName
}

// ConsentURL returns the Google consent page URL to redirect the user to for
// a server side flow. state is echoed back in the callback.
func (p *GoogleIDP) ConsentURL(state string) string {
	q := url.Values{}
	q.Add("client_id", p.clientID)
	q.Add("scope", "openid email profile")
	q.Add("response_type", "code")
	q.Add("redirect_uri", p.redirectURL)
	q.Add("state", state)
	q.Add("access_type", "online")
	q.Add("prompt", "select_account")

	u := url.URL{
		Scheme:   "https",
		Host:     "accounts.google.com",
		Path:     "/o/oauth2/v2/auth",
		RawQuery: q.Encode(),
	}
	return u.String()
}

// From identity.Provider. Accepts either an `idtoken` credential from a
// client side flow or a `code` credential from a server side flow.
func (p *GoogleIDP) BeginAuthenticationFlow(ctx context.Context, creds identity.Credentials) (identity.Identity, error) {
	var userInfo *userInfo
	var err error

	switch {
	case creds["code"] != "":
		userInfo, err = p.exchangeAuthorizationCode(ctx, creds["code"])
	case creds["idtoken"] != "":
		userInfo, err = p.validateIDToken(ctx, creds["idtoken"])
	default:
		return identity.Identity{}, errors.NewC(
			"googleidp: unexpected credentials, a `code` or an `idtoken` are required",
			codes.InvalidArgument)
	}
	if err != nil {
		return identity.Identity{}, err
	}

	id := identity.Identity{
		Provider:      ProviderName,
		SessionID:     uuid.NewString(),
		AuthTime:      time.Now(),
		Subject:       userInfo.ID,
		Name:          userInfo.Name,
		Email:         userInfo.Email,
		EmailVerified: userInfo.VerifiedEmail,
		PictureURL:    userInfo.Picture,
	}

	logging.Infow(ctx, "googleidp: user authenticated",
		"subject", id.Subject, "email", id.Email)

	return id, nil
}

// From identity.Provider. Google sessions are browser-side, there is nothing
// to release here.
func (p *GoogleIDP) SignOut(ctx context.Context) error {
	return nil
}

// Exchange an OAuth2 authorization code retrieved from Google for the user's
// profile.
func (p *GoogleIDP) exchangeAuthorizationCode(ctx context.Context, code string) (*userInfo, error) {
	conf := &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  p.redirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.profile",
			"https://www.googleapis.com/auth/userinfo.email",
		},
	}

	logging.Infow(ctx, "googleidp: starting token exchange", "redirect_url", conf.RedirectURL)
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Codef(codes.Internal, "googleidp: token exchange failed: %s", err)
	}

	client := conf.Client(ctx, token)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, userInfoEndpoint, nil)
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Codef(codes.Internal, "googleidp: failed to fetch user profile: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Codef(codes.Internal, "googleidp: failed to get user info, status: %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Codef(codes.Internal, "googleidp: failed to parse user info: %s", err)
	}
	return &info, nil
}

// Validate an ID token retrieved via a client side sign-in. See:
// https://developers.google.com/identity/sign-in/web/backend-auth
func (p *GoogleIDP) validateIDToken(ctx context.Context, token string) (*userInfo, error) {
	payload, err := idtoken.Validate(ctx, token, p.clientID)
	if err != nil {
		logging.Errorw(ctx, "googleidp: failed to validate id token", "error", err)
		return nil, errors.Codef(codes.InvalidArgument, "googleidp: failed to validate id token: %s", err)
	}
	return userInfoFromClaims(payload.Claims)
}

// userInfo matches the shape of Google's userinfo endpoint response and the
// overlapping ID token claims.
type userInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func userInfoFromClaims(claims map[string]interface{}) (*userInfo, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, errors.NewC("googleidp: id token missing subject", codes.InvalidArgument)
	}
	info := &userInfo{ID: sub}
	if v, ok := claims["email"].(string); ok {
		info.Email = v
	}
	if v, ok := claims["email_verified"].(bool); ok {
		info.VerifiedEmail = v
	}
	if v, ok := claims["name"].(string); ok {
		info.Name = v
	}
	if v, ok := claims["picture"].(string); ok {
		info.Picture = v
	}
	return info, nil
}
