// Package api exposes the HTTP surface: segment intake, retrieval with range
// support, share grants, and folder listings.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"hearingvault/internal/blob"
	"hearingvault/internal/ingest"
	"hearingvault/internal/observability/metrics"
	"hearingvault/internal/storage"
)

// Handler carries the collaborators shared by every endpoint.
type Handler struct {
	Store    storage.Repository
	Blobs    blob.Client
	Pipeline *ingest.Pipeline
	Shares   ShareTokenVerifier
	Metrics  *metrics.Recorder
	Logger   *slog.Logger

	// APIKeyHash is the pbkdf2 hash of the gateway intake key. Empty
	// disables key checks, for local development only.
	APIKeyHash string

	// FreshnessWindow bounds how old the governing share grant may be.
	FreshnessWindow time.Duration

	Now func() time.Time
}

const defaultFreshnessWindow = 72 * time.Hour

// ShareTokenVerifier issues and validates sharee tokens.
type ShareTokenVerifier interface {
	Issue(email string) (string, time.Time, error)
	Verify(token string) (string, error)
}

// NewHandler builds a Handler with defaults applied.
func NewHandler(store storage.Repository, blobs blob.Client) *Handler {
	return &Handler{
		Store:           store,
		Blobs:           blobs,
		Logger:          slog.Default(),
		FreshnessWindow: defaultFreshnessWindow,
		Now:             time.Now,
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) freshnessWindow() time.Duration {
	if h.FreshnessWindow > 0 {
		return h.FreshnessWindow
	}
	return defaultFreshnessWindow
}

// Health reports datastore reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
