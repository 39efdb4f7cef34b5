package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAPIKeyHashRoundTrip(t *testing.T) {
	hash, err := HashAPIKey("gateway-key-1")
	if err != nil {
		t.Fatalf("HashAPIKey: %v", err)
	}
	if !strings.HasPrefix(hash, "pbkdf2$sha256$") {
		t.Fatalf("unexpected hash format %q", hash)
	}
	if err := VerifyAPIKey(hash, "gateway-key-1"); err != nil {
		t.Fatalf("VerifyAPIKey rejected the original key: %v", err)
	}
	if err := VerifyAPIKey(hash, "wrong-key"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyAPIKeyRejectsMalformedHash(t *testing.T) {
	cases := []string{
		"",
		"plaintext",
		"bcrypt$sha256$1$a$b",
		"pbkdf2$sha256$zero$a$b",
	}
	for _, hash := range cases {
		if err := VerifyAPIKey(hash, "anything"); err == nil {
			t.Fatalf("hash %q must be rejected", hash)
		}
	}
}

func TestShareTokenRoundTrip(t *testing.T) {
	issuer, err := NewShareTokenIssuer("share-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewShareTokenIssuer: %v", err)
	}
	token, expiresAt, err := issuer.Issue("Viewer@Example.COM")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiry %v is not in the future", expiresAt)
	}
	email, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if email != "viewer@example.com" {
		t.Fatalf("email = %q, want lowercased", email)
	}
}

func TestShareTokenRejectsWrongSecret(t *testing.T) {
	issuer, err := NewShareTokenIssuer("share-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewShareTokenIssuer: %v", err)
	}
	token, _, err := issuer.Issue("viewer@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	other, err := NewShareTokenIssuer("different-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewShareTokenIssuer: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestShareTokenExpires(t *testing.T) {
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clock := start
	issuer, err := NewShareTokenIssuer("share-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewShareTokenIssuer: %v", err)
	}
	issuer.WithClock(func() time.Time { return clock })

	token, _, err := issuer.Issue("viewer@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	clock = start.Add(2 * time.Hour)
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected expired token rejection, got %v", err)
	}
}
