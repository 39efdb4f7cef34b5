// Package casemgmt integrates with the external case-management service that
// owns the authoritative case record for each archived hearing.
package casemgmt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CasePayload is the case document exchanged with the upstream service.
// SegmentRefs lists the archive segment references already attached to the
// case; the uploader uses it to keep updates idempotent.
type CasePayload struct {
	CaseRef          string   `json:"caseRef"`
	RecordingRef     string   `json:"recordingRef"`
	JurisdictionCode string   `json:"jurisdictionCode,omitempty"`
	ServiceCode      string   `json:"serviceCode,omitempty"`
	SegmentRefs      []string `json:"segmentRefs,omitempty"`
}

// HasSegmentRef reports whether the payload already references the segment.
func (p CasePayload) HasSegmentRef(ref string) bool {
	for _, existing := range p.SegmentRefs {
		if strings.EqualFold(existing, ref) {
			return true
		}
	}
	return false
}

// Case is the upstream case record keyed by the external id.
type Case struct {
	ID            string      `json:"id"`
	Payload       CasePayload `json:"payload"`
	RetentionDate time.Time   `json:"retentionDate"`
}

// Client is the case-management surface required by the uploader and the
// retention maintenance workers.
type Client interface {
	CreateCase(ctx context.Context, payload CasePayload, retentionDate time.Time) (string, error)
	GetCase(ctx context.Context, externalID string) (Case, error)
	UpdateCase(ctx context.Context, externalID string, payload CasePayload) error
}

// Config describes the upstream endpoint.
type Config struct {
	BaseURL        string
	APIToken       string
	RequestTimeout time.Duration
}

const defaultRequestTimeout = 30 * time.Second

// NewHTTPClient builds a Client for the configured endpoint.
func NewHTTPClient(cfg Config) (Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("case management base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse case management url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("case management url must include scheme and host")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &httpClient{
		baseURL:    strings.TrimRight(parsed.String(), "/"),
		token:      strings.TrimSpace(cfg.APIToken),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type httpClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type createCaseRequest struct {
	Payload       CasePayload `json:"payload"`
	RetentionDate time.Time   `json:"retentionDate"`
}

type createCaseResponse struct {
	ID string `json:"id"`
}

func (c *httpClient) CreateCase(ctx context.Context, payload CasePayload, retentionDate time.Time) (string, error) {
	var response createCaseResponse
	err := c.do(ctx, http.MethodPost, "/cases", createCaseRequest{
		Payload:       payload,
		RetentionDate: retentionDate.UTC(),
	}, &response)
	if err != nil {
		return "", fmt.Errorf("create case %s: %w", payload.CaseRef, err)
	}
	if strings.TrimSpace(response.ID) == "" {
		return "", fmt.Errorf("create case %s: upstream returned empty id", payload.CaseRef)
	}
	return response.ID, nil
}

func (c *httpClient) GetCase(ctx context.Context, externalID string) (Case, error) {
	var record Case
	if err := c.do(ctx, http.MethodGet, "/cases/"+url.PathEscape(externalID), nil, &record); err != nil {
		return Case{}, fmt.Errorf("get case %s: %w", externalID, err)
	}
	return record, nil
}

func (c *httpClient) UpdateCase(ctx context.Context, externalID string, payload CasePayload) error {
	if err := c.do(ctx, http.MethodPut, "/cases/"+url.PathEscape(externalID), payload, nil); err != nil {
		return fmt.Errorf("update case %s: %w", externalID, err)
	}
	return nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer func() {
		_ = response.Body.Close()
	}()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", response.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
