package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// Copy coordination headers understood by the storage gateway.
const (
	headerCopySource = "x-amz-copy-source"
	headerCopyID     = "x-amz-copy-id"
	headerCopyStatus = "x-amz-copy-status"
)

// Config describes the durable store endpoint and credentials.
type Config struct {
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	Prefix         string
	RequestTimeout time.Duration
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return cfg
}

// New builds a store client for the configured endpoint and bucket.
func New(cfg Config) (Client, error) {
	cfg = applyConfigDefaults(cfg)
	trimmedBucket := strings.TrimSpace(cfg.Bucket)
	trimmedEndpoint := strings.TrimSpace(cfg.Endpoint)
	if trimmedBucket == "" || trimmedEndpoint == "" {
		return nil, fmt.Errorf("blob endpoint and bucket are required")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	endpoint := trimmedEndpoint
	if strings.Contains(endpoint, "://") {
		if parsed, err := url.Parse(endpoint); err == nil {
			endpoint = parsed.Host
		}
	}
	baseURL := &url.URL{Scheme: scheme, Host: endpoint}
	if baseURL.Host == "" {
		return nil, fmt.Errorf("invalid blob endpoint %q", cfg.Endpoint)
	}
	sanitized := cfg
	sanitized.Bucket = trimmedBucket
	return &storeClient{
		cfg:        sanitized,
		endpoint:   baseURL,
		httpClient: &http.Client{Timeout: sanitized.RequestTimeout},
	}, nil
}

type storeClient struct {
	cfg        Config
	endpoint   *url.URL
	httpClient *http.Client
}

func (c *storeClient) Head(ctx context.Context, key string) (ObjectInfo, bool, error) {
	finalKey := c.applyPrefix(key)
	target := c.objectURL(finalKey)
	request, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return ObjectInfo{}, false, fmt.Errorf("create head request: %w", err)
	}
	if err := c.signRequest(request, emptyPayloadHash); err != nil {
		return ObjectInfo{}, false, err
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return ObjectInfo{}, false, fmt.Errorf("head object %s: %w", finalKey, err)
	}
	defer func() {
		_ = response.Body.Close()
	}()
	if response.StatusCode == http.StatusNotFound {
		return ObjectInfo{}, false, nil
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return ObjectInfo{}, false, fmt.Errorf("head object %s: unexpected status %d", finalKey, response.StatusCode)
	}
	info := ObjectInfo{
		Key:         finalKey,
		ContentType: response.Header.Get("Content-Type"),
	}
	if raw := strings.TrimSpace(response.Header.Get("Content-Length")); raw != "" {
		if size, err := strconv.ParseInt(raw, 10, 64); err == nil {
			info.SizeBytes = size
		}
	} else if response.ContentLength > 0 {
		info.SizeBytes = response.ContentLength
	}
	return info, true, nil
}

func (c *storeClient) GetRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid byte span %d-%d", start, end)
	}
	finalKey := c.applyPrefix(key)
	target := c.objectURL(finalKey)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create range request: %w", err)
	}
	request.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	if err := c.signRequest(request, emptyPayloadHash); err != nil {
		return nil, err
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", finalKey, err)
	}
	if response.StatusCode != http.StatusPartialContent && response.StatusCode != http.StatusOK {
		_ = response.Body.Close()
		return nil, fmt.Errorf("get object %s: unexpected status %d", finalKey, response.StatusCode)
	}
	return response.Body, nil
}

func (c *storeClient) StartCopy(ctx context.Context, key, sourceURL string) (string, error) {
	finalKey := c.applyPrefix(key)
	target := c.objectURL(finalKey)
	request, err := http.NewRequestWithContext(ctx, http.MethodPut, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create copy request: %w", err)
	}
	request.Header.Set(headerCopySource, sourceURL)
	if err := c.signRequest(request, emptyPayloadHash); err != nil {
		return "", err
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("start copy %s: %w", finalKey, err)
	}
	defer func() {
		_ = response.Body.Close()
	}()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("start copy %s: unexpected status %d", finalKey, response.StatusCode)
	}
	return strings.TrimSpace(response.Header.Get(headerCopyID)), nil
}

func (c *storeClient) CopyStatus(ctx context.Context, key, copyID string) (CopyState, error) {
	finalKey := c.applyPrefix(key)
	target := c.objectURL(finalKey)
	request, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return CopyFailed, fmt.Errorf("create status request: %w", err)
	}
	if copyID != "" {
		request.Header.Set(headerCopyID, copyID)
	}
	if err := c.signRequest(request, emptyPayloadHash); err != nil {
		return CopyFailed, err
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return CopyFailed, fmt.Errorf("copy status %s: %w", finalKey, err)
	}
	defer func() {
		_ = response.Body.Close()
	}()
	if response.StatusCode == http.StatusNotFound {
		return CopyFailed, nil
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return CopyFailed, fmt.Errorf("copy status %s: unexpected status %d", finalKey, response.StatusCode)
	}
	switch strings.ToLower(strings.TrimSpace(response.Header.Get(headerCopyStatus))) {
	case "pending":
		return CopyPending, nil
	case "failed", "aborted":
		return CopyFailed, nil
	default:
		// The gateway stops reporting a status once the copy has committed.
		return CopySuccess, nil
	}
}

func (c *storeClient) AbortCopy(ctx context.Context, key, copyID string) error {
	finalKey := c.applyPrefix(key)
	target := c.objectURL(finalKey)
	query := target.Query()
	query.Set("copyId", copyID)
	target.RawQuery = query.Encode()
	request, err := http.NewRequestWithContext(ctx, http.MethodDelete, target.String(), nil)
	if err != nil {
		return fmt.Errorf("create abort request: %w", err)
	}
	if err := c.signRequest(request, emptyPayloadHash); err != nil {
		return err
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("abort copy %s: %w", finalKey, err)
	}
	defer func() {
		_ = response.Body.Close()
	}()
	if response.StatusCode >= 200 && response.StatusCode < 300 || response.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("abort copy %s: unexpected status %d", finalKey, response.StatusCode)
}

func (c *storeClient) Delete(ctx context.Context, key string) error {
	finalKey := c.applyPrefix(key)
	target := c.objectURL(finalKey)
	request, err := http.NewRequestWithContext(ctx, http.MethodDelete, target.String(), nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	if err := c.signRequest(request, emptyPayloadHash); err != nil {
		return err
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("delete object %s: %w", finalKey, err)
	}
	defer func() {
		_ = response.Body.Close()
	}()
	if response.StatusCode >= 200 && response.StatusCode < 300 || response.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("delete object %s: unexpected status %d", finalKey, response.StatusCode)
}

func (c *storeClient) applyPrefix(key string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(key), "/")
	prefix := strings.Trim(strings.TrimSpace(c.cfg.Prefix), "/")
	if prefix == "" {
		return trimmed
	}
	if trimmed == "" {
		return prefix
	}
	if trimmed == prefix || strings.HasPrefix(trimmed, prefix+"/") {
		return trimmed
	}
	return prefix + "/" + trimmed
}

func (c *storeClient) objectURL(finalKey string) *url.URL {
	basePath := strings.TrimRight(c.endpoint.Path, "/")
	path := "/" + strings.TrimLeft(c.cfg.Bucket, "/")
	trimmedKey := strings.TrimLeft(finalKey, "/")
	if trimmedKey != "" {
		path += "/" + trimmedKey
	}
	if basePath != "" {
		path = basePath + path
	}
	u := *c.endpoint
	u.Path = path
	return &u
}

func (c *storeClient) signRequest(req *http.Request, payloadHash string) error {
	req.Host = req.URL.Host
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("x-amz-content-sha256", payloadHash)
	accessKey := strings.TrimSpace(c.cfg.AccessKey)
	secretKey := strings.TrimSpace(c.cfg.SecretKey)
	if accessKey == "" || secretKey == "" {
		return nil
	}
	region := signingRegion(c.cfg.Region)
	now := time.Now().UTC()
	amzDate := now.Format(amzDateFormat)
	dateStamp := now.Format(amzDateStampFormat)
	req.Header.Set("x-amz-date", amzDate)
	canonicalHeaders, signedHeaders := canonicalizeHeaders(req)
	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalURI(req.URL),
		canonicalQuery(req.URL),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")
	hash := sha256.Sum256([]byte(canonicalRequest))
	scope := credentialScope(dateStamp, region)
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		amzDate,
		scope,
		hex.EncodeToString(hash[:]),
	}, "\n")
	signingKey := deriveSigningKey(secretKey, dateStamp, region)
	signature := hmacSHA256Hex(signingKey, stringToSign)
	authorization := fmt.Sprintf(
		"%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		signingAlgorithm,
		accessKey,
		scope,
		signedHeaders,
		signature,
	)
	req.Header.Set("Authorization", authorization)
	return nil
}

const (
	signingAlgorithm   = "AWS4-HMAC-SHA256"
	amzDateFormat      = "20060102T150405Z"
	amzDateStampFormat = "20060102"
)

func signingRegion(region string) string {
	region = strings.TrimSpace(region)
	if region == "" {
		return "us-east-1"
	}
	return region
}

func credentialScope(dateStamp, region string) string {
	return strings.Join([]string{dateStamp, region, "s3", "aws4_request"}, "/")
}

func canonicalizeHeaders(req *http.Request) (string, string) {
	headerMap := make(map[string][]string)
	for key, values := range req.Header {
		lower := strings.ToLower(key)
		if lower == "authorization" {
			continue
		}
		cleaned := make([]string, 0, len(values))
		for _, v := range values {
			cleaned = append(cleaned, strings.TrimSpace(v))
		}
		headerMap[lower] = cleaned
	}
	if _, ok := headerMap["host"]; !ok && req.Host != "" {
		headerMap["host"] = []string{req.Host}
	}
	keys := make([]string, 0, len(headerMap))
	for key := range headerMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var builder strings.Builder
	var signed []string
	for _, key := range keys {
		values := headerMap[key]
		builder.WriteString(key)
		builder.WriteByte(':')
		builder.WriteString(strings.Join(values, ","))
		builder.WriteByte('\n')
		signed = append(signed, key)
	}
	return builder.String(), strings.Join(signed, ";")
}

func canonicalURI(u *url.URL) string {
	if u == nil {
		return "/"
	}
	path := u.EscapedPath()
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

func canonicalQuery(u *url.URL) string {
	if u == nil {
		return ""
	}
	values, err := url.ParseQuery(u.RawQuery)
	if err != nil || len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var builder strings.Builder
	for idx, key := range keys {
		if idx > 0 {
			builder.WriteByte('&')
		}
		sort.Strings(values[key])
		for vIdx, value := range values[key] {
			if vIdx > 0 {
				builder.WriteByte('&')
			}
			builder.WriteString(url.QueryEscape(key))
			builder.WriteByte('=')
			builder.WriteString(url.QueryEscape(value))
		}
	}
	return builder.String()
}

func deriveSigningKey(secret, dateStamp, region string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte("s3"))
	return hmacSHA256(kService, []byte("aws4_request"))
}

func hmacSHA256(key []byte, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func hmacSHA256Hex(key []byte, data string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

var emptyPayloadHash = hashSHA256Hex(nil)

func hashSHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
