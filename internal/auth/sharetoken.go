package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ShareClaims identify the sharee a share token was minted for. Grant
// freshness is enforced separately against the stored grants; the token only
// proves the email address.
type ShareClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ShareTokenIssuer mints and verifies share tokens.
type ShareTokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

const defaultShareTokenTTL = 72 * time.Hour

// NewShareTokenIssuer builds an issuer signing with the given secret.
func NewShareTokenIssuer(secret string, ttl time.Duration) (*ShareTokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("share token secret is required")
	}
	if ttl <= 0 {
		ttl = defaultShareTokenTTL
	}
	return &ShareTokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock overrides the issuer's clock. Intended for tests.
func (i *ShareTokenIssuer) WithClock(now func() time.Time) *ShareTokenIssuer {
	i.now = now
	return i
}

// Issue mints a share token for the sharee email.
func (i *ShareTokenIssuer) Issue(email string) (string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", time.Time{}, fmt.Errorf("sharee email is required")
	}
	issuedAt := i.now().UTC()
	expiresAt := issuedAt.Add(i.ttl)
	claims := ShareClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign share token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify parses a share token and returns the sharee email it was minted for.
func (i *ShareTokenIssuer) Verify(token string) (string, error) {
	claims := &ShareClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidCredentials
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return "", ErrInvalidCredentials
	}
	return email, nil
}
