package casemgmt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateCaseRoundTrip(t *testing.T) {
	var gotAuth string
	var gotBody createCaseRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/cases" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(createCaseResponse{ID: "ext-42"})
	}))
	defer server.Close()

	client, err := NewHTTPClient(Config{BaseURL: server.URL, APIToken: "token-1"})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	retention := time.Date(2033, 3, 14, 0, 0, 0, 0, time.UTC)
	id, err := client.CreateCase(context.Background(), CasePayload{
		CaseRef:      "CASE-88",
		RecordingRef: "hearing-2041",
		SegmentRefs:  []string{"seg0.mp4"},
	}, retention)
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	if id != "ext-42" {
		t.Fatalf("external id = %q, want ext-42", id)
	}
	if gotAuth != "Bearer token-1" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if !gotBody.RetentionDate.Equal(retention) {
		t.Fatalf("retention date = %v, want %v", gotBody.RetentionDate, retention)
	}
	if gotBody.Payload.CaseRef != "CASE-88" {
		t.Fatalf("case ref = %q", gotBody.Payload.CaseRef)
	}
}

func TestGetCaseDecodesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cases/ext-42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Case{
			ID: "ext-42",
			Payload: CasePayload{
				CaseRef:     "CASE-88",
				SegmentRefs: []string{"seg0.mp4", "seg1.mp4"},
			},
		})
	}))
	defer server.Close()

	client, err := NewHTTPClient(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	record, err := client.GetCase(context.Background(), "ext-42")
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if !record.Payload.HasSegmentRef("SEG1.MP4") {
		t.Fatal("expected case-insensitive segment ref match")
	}
	if record.Payload.HasSegmentRef("seg2.mp4") {
		t.Fatal("unexpected segment ref match")
	}
}

func TestUpdateCaseSurfacesUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conflict", http.StatusConflict)
	}))
	defer server.Close()

	client, err := NewHTTPClient(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	if err := client.UpdateCase(context.Background(), "ext-42", CasePayload{}); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestNewHTTPClientRejectsBadURL(t *testing.T) {
	if _, err := NewHTTPClient(Config{BaseURL: "   "}); err == nil {
		t.Fatal("expected error for empty base url")
	}
	if _, err := NewHTTPClient(Config{BaseURL: "not-a-url"}); err == nil {
		t.Fatal("expected error for relative url")
	}
}
