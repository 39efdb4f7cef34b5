package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SourceDelegation signs source-platform URLs with query credentials so the
// durable store can read blobs from an endpoint that refuses anonymous
// access. The signed window is expected to be widened on both sides by the
// caller to tolerate clock skew between the platforms.
type SourceDelegation struct {
	AccessKey string
	SecretKey string
	Region    string
}

// Enabled reports whether delegation credentials were configured. When the
// source endpoint allows anonymous reads no signing is needed.
func (s SourceDelegation) Enabled() bool {
	return strings.TrimSpace(s.AccessKey) != "" && strings.TrimSpace(s.SecretKey) != ""
}

var _ DelegationSigner = SourceDelegation{}

// SignSourceURL appends presigned read credentials valid between notBefore
// and expiresAt to rawURL.
func (s SourceDelegation) SignSourceURL(rawURL string, notBefore, expiresAt time.Time) (string, error) {
	if !s.Enabled() {
		return rawURL, nil
	}
	if !expiresAt.After(notBefore) {
		return "", fmt.Errorf("delegation window is empty")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("source url must be absolute")
	}

	region := signingRegion(s.Region)
	amzDate := notBefore.UTC().Format(amzDateFormat)
	dateStamp := notBefore.UTC().Format(amzDateStampFormat)
	scope := credentialScope(dateStamp, region)
	expires := int64(expiresAt.Sub(notBefore) / time.Second)

	query := parsed.Query()
	query.Set("X-Amz-Algorithm", signingAlgorithm)
	query.Set("X-Amz-Credential", strings.TrimSpace(s.AccessKey)+"/"+scope)
	query.Set("X-Amz-Date", amzDate)
	query.Set("X-Amz-Expires", strconv.FormatInt(expires, 10))
	query.Set("X-Amz-SignedHeaders", "host")
	parsed.RawQuery = query.Encode()

	canonicalRequest := strings.Join([]string{
		"GET",
		canonicalURI(parsed),
		canonicalQuery(parsed),
		"host:" + parsed.Host + "\n",
		"host",
		"UNSIGNED-PAYLOAD",
	}, "\n")
	hash := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		amzDate,
		scope,
		hex.EncodeToString(hash[:]),
	}, "\n")
	signingKey := deriveSigningKey(strings.TrimSpace(s.SecretKey), dateStamp, region)
	signature := hmacSHA256Hex(signingKey, stringToSign)

	query.Set("X-Amz-Signature", signature)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
