package auth

import (
	"errors"
	"fmt"
	"time"

	"notes-api/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// clockSkew is the tolerance applied to exp, nbf and iat.
const clockSkew = 30 * time.Second

var (
	// ErrSessionInvalid is returned for any credential that is present but
	// fails verification. Callers must not treat it as anonymous.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrSigningUnavailable is returned by Issue when no secret is configured.
	ErrSigningUnavailable = errors.New("auth: JWT_SECRET is not configured")
)

// Manager issues and verifies HS256 bearer tokens against a shared secret.
// It holds no mutable state and is safe for concurrent use.
type Manager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewManager never fails: an empty secret yields a Manager that rejects every
// credential and cannot issue tokens.
func NewManager(cfg config.AuthConfig) *Manager {
	return &Manager{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		ttl:      cfg.TokenTTL,
	}
}

// CanSign reports whether a secret is configured.
func (m *Manager) CanSign() bool {
	return len(m.secret) > 0
}

/* ===================== ISSUE ===================== */

// Issue signs a token for userID valid from now for the configured TTL.
func (m *Manager) Issue(now time.Time, userID string) (string, error) {
	if !m.CanSign() {
		return "", ErrSigningUnavailable
	}
	if userID == "" {
		return "", errors.New("auth: user id is required")
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			Issuer:   m.issuer,
			Audience: audienceOrNil(m.audience),
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.NewString(),
		},
	}
	if m.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

/* ===================== VERIFY ===================== */

// Verify checks a credential. An empty credential is not an error: it yields
// nil claims, meaning anonymous. Every other failure wraps ErrSessionInvalid.
func (m *Manager) Verify(tokenString string, now time.Time) (*Claims, error) {
	if tokenString == "" {
		return nil, nil
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(clockSkew),
		jwt.WithIssuedAt(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		if !m.CanSign() {
			return nil, ErrSigningUnavailable
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject missing", ErrSessionInvalid)
	}
	return &claims, nil
}

// Authenticate verifies the credential carried by a raw authorization header
// value. See CredentialFromHeader for the accepted forms.
func (m *Manager) Authenticate(header string, now time.Time) (*Claims, error) {
	return m.Verify(CredentialFromHeader(header), now)
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
