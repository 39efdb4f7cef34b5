package blob

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestSignSourceURLAppendsCredentials(t *testing.T) {
	signer := SourceDelegation{AccessKey: "source-access", SecretKey: "source-secret", Region: "eu-west-2"}
	notBefore := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	expiresAt := notBefore.Add(190 * time.Minute)

	signed, err := signer.SignSourceURL("https://source.example.org/courtroom-7/seg0.mp4", notBefore, expiresAt)
	if err != nil {
		t.Fatalf("SignSourceURL: %v", err)
	}
	parsed, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	query := parsed.Query()
	if got := query.Get("X-Amz-Algorithm"); got != "AWS4-HMAC-SHA256" {
		t.Fatalf("algorithm = %q", got)
	}
	if got := query.Get("X-Amz-Credential"); !strings.HasPrefix(got, "source-access/20260314/eu-west-2/s3/aws4_request") {
		t.Fatalf("credential = %q", got)
	}
	if got := query.Get("X-Amz-Date"); got != "20260314T090000Z" {
		t.Fatalf("date = %q", got)
	}
	if got := query.Get("X-Amz-Expires"); got != "11400" {
		t.Fatalf("expires = %q", got)
	}
	if query.Get("X-Amz-Signature") == "" {
		t.Fatal("signature missing")
	}
	if parsed.Path != "/courtroom-7/seg0.mp4" {
		t.Fatalf("path changed: %q", parsed.Path)
	}
}

func TestSignSourceURLPassthroughWhenDisabled(t *testing.T) {
	signer := SourceDelegation{}
	if signer.Enabled() {
		t.Fatal("empty credentials must not enable delegation")
	}
	raw := "https://source.example.org/courtroom-7/seg0.mp4"
	signed, err := signer.SignSourceURL(raw, time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("SignSourceURL: %v", err)
	}
	if signed != raw {
		t.Fatalf("url rewritten without credentials: %q", signed)
	}
}

func TestSignSourceURLRejectsEmptyWindow(t *testing.T) {
	signer := SourceDelegation{AccessKey: "a", SecretKey: "b"}
	moment := time.Now()
	if _, err := signer.SignSourceURL("https://source.example.org/x", moment, moment); err == nil {
		t.Fatal("zero-length window must fail")
	}
	if _, err := signer.SignSourceURL("https://source.example.org/x", moment, moment.Add(-time.Minute)); err == nil {
		t.Fatal("inverted window must fail")
	}
}

func TestSignSourceURLRequiresAbsoluteURL(t *testing.T) {
	signer := SourceDelegation{AccessKey: "a", SecretKey: "b"}
	if _, err := signer.SignSourceURL("/courtroom-7/seg0.mp4", time.Now(), time.Now().Add(time.Hour)); err == nil {
		t.Fatal("relative url must fail")
	}
}

func TestSignSourceURLIsDeterministic(t *testing.T) {
	signer := SourceDelegation{AccessKey: "source-access", SecretKey: "source-secret"}
	notBefore := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	expiresAt := notBefore.Add(time.Hour)

	first, err := signer.SignSourceURL("https://source.example.org/seg0.mp4", notBefore, expiresAt)
	if err != nil {
		t.Fatalf("SignSourceURL: %v", err)
	}
	second, err := signer.SignSourceURL("https://source.example.org/seg0.mp4", notBefore, expiresAt)
	if err != nil {
		t.Fatalf("SignSourceURL: %v", err)
	}
	if first != second {
		t.Fatal("same inputs must produce the same signature")
	}
}
