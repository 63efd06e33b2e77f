package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/codes"

	"github.com/carebridge/portal/errors"
	"github.com/carebridge/portal/plugins/identity"
)

// Leeway for token expiration checks.
const jwtLeeway = 5 * time.Second

var (
	// The token was not signed correctly or carries bad claims.
	ErrInvalidToken = errors.NewC("session: token is invalid", codes.Unauthenticated)

	// Allows for time to be stubbed in tests.
	timeFunc = time.Now
)

// Claims registered in a session continuity token.
type Claims struct {
	// Standard public JWT claims per https://www.iana.org/assignments/jwt/jwt.xhtml
	jwt.RegisteredClaims
	Name          string           `json:"name,omitempty"`
	Email         string           `json:"email,omitempty"`
	EmailVerified bool             `json:"email_verified,omitempty"`
	Picture       string           `json:"picture,omitempty"`
	PhoneNumber   string           `json:"phone_number,omitempty"`
	AuthTime      *jwt.NumericDate `json:"auth_time,omitempty"`

	// Custom claims.
	Provider string `json:"idp"`
}

func (c *Claims) Validate() error {
	if c.Provider == "" {
		return errors.Mark(ErrInvalidToken, 0).Append("missing provider")
	}
	return nil
}

// IssueToken creates a signed continuity token for the given identity. A
// restarted client process can present the token to Restore and skip a fresh
// consent flow until it expires.
func (s *SessionPlugin) IssueToken(id identity.Identity) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.SessionID,
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(timeFunc()),
			ExpiresAt: jwt.NewNumericDate(timeFunc().Add(s.tokenExpiration)),
		},
		Name:          id.Name,
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		Picture:       id.PictureURL,
		PhoneNumber:   id.PhoneNumber,
		AuthTime:      jwt.NewNumericDate(id.AuthTime),
		Provider:      id.Provider,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", errors.Wrap(err, 0).WithCode(codes.Internal)
	}
	return ss, nil
}

// ParseToken validates a continuity token and returns the identity encoded
// within. Invalid and expired tokens will error.
func (s *SessionPlugin) ParseToken(tokenString string) (identity.Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(jwtLeeway),
		jwt.WithTimeFunc(timeFunc),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return identity.Identity{}, errors.Wrap(err, 0).WithCode(codes.Unauthenticated)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return identity.Identity{}, errors.Mark(ErrInvalidToken, 0).Append("invalid claims")
	}
	if err := claims.Validate(); err != nil {
		return identity.Identity{}, err
	}

	id := identity.Identity{
		Subject:       claims.Subject,
		Provider:      claims.Provider,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		PictureURL:    claims.Picture,
		PhoneNumber:   claims.PhoneNumber,
		SessionID:     claims.ID,
	}
	if claims.AuthTime != nil {
		id.AuthTime = claims.AuthTime.Time
	}
	return id, nil
}

// Restore announces the identity carried by a continuity token as a sign-in,
// then waits for the session to resolve. Used at process start before any
// interactive flow.
func (s *SessionPlugin) Restore(ctx context.Context, tokenString string) error {
	id, err := s.ParseToken(tokenString)
	if err != nil {
		return err
	}
	s.hub.Announce(ctx, id)
	if err := s.flush(ctx); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolutionErr
}
