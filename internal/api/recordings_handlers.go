package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hearingvault/internal/models"
)

// RecordingByID routes /api/recordings/{id}/segments/{n},
// /api/recordings/{id}/files/{filename}, and /api/recordings/{id}/share.
func (h *Handler) RecordingByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/recordings/")
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown recording resource"))
		return
	}
	recordingID := parts[0]

	switch parts[1] {
	case "segments":
		if len(parts) != 3 {
			writeError(w, http.StatusNotFound, fmt.Errorf("segment number is required"))
			return
		}
		h.serveSegmentByNumber(w, r, recordingID, parts[2])
	case "files":
		if len(parts) != 3 {
			writeError(w, http.StatusNotFound, fmt.Errorf("filename is required"))
			return
		}
		h.serveSegmentByFilename(w, r, recordingID, parts[2])
	case "share":
		h.createShareGrant(w, r, recordingID)
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown recording resource"))
	}
}

func (h *Handler) serveSegmentByNumber(w http.ResponseWriter, r *http.Request, recordingID, rawIndex string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	who, err := h.resolveCaller(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	segmentIndex, err := strconv.Atoi(rawIndex)
	if err != nil || segmentIndex < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid segment number %q", rawIndex))
		return
	}
	recording, segment, err := h.locateBySegmentNumber(r.Context(), recordingID, segmentIndex, who)
	if err != nil {
		h.writeLocateError(w, err)
		return
	}
	h.streamSegment(w, r, recording, segment, who)
}

func (h *Handler) serveSegmentByFilename(w http.ResponseWriter, r *http.Request, recordingID, rawFilename string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	who, err := h.resolveCaller(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	filename, err := url.PathUnescape(rawFilename)
	if err != nil || strings.TrimSpace(filename) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid filename"))
		return
	}
	recording, segment, err := h.locateByFilename(r.Context(), recordingID, filename, who)
	if err != nil {
		h.writeLocateError(w, err)
		return
	}
	h.streamSegment(w, r, recording, segment, who)
}

func (h *Handler) writeLocateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLinkExpired):
		writeError(w, http.StatusForbidden, ErrLinkExpired)
	case errors.Is(err, ErrNoSharedFile):
		writeError(w, http.StatusForbidden, ErrNoSharedFile)
	case errors.Is(err, ErrSegmentNotFound):
		writeError(w, http.StatusNotFound, ErrSegmentNotFound)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type shareRequest struct {
	Email string `json:"email"`
}

type shareResponse struct {
	Grant     models.ShareGrant `json:"grant"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// createShareGrant handles POST /api/recordings/{id}/share.
func (h *Handler) createShareGrant(w http.ResponseWriter, r *http.Request, recordingID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	if _, err := h.requireAPIKey(r); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if h.Shares == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("share access is not enabled"))
		return
	}

	var request shareRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode share request: %w", err))
		return
	}
	email := strings.ToLower(strings.TrimSpace(request.Email))
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, fmt.Errorf("a valid sharee email is required"))
		return
	}

	recording, err := h.fetchRecording(r.Context(), recordingID)
	if err != nil {
		h.writeLocateError(w, err)
		return
	}
	grant, err := h.Store.CreateShareGrant(r.Context(), recording.ID, email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("persist share grant: %w", err))
		return
	}
	token, expiresAt, err := h.Shares.Issue(email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("mint share token: %w", err))
		return
	}
	h.logger().Info("share grant created",
		"recording_id", recording.ID, "email", email, "grant_id", grant.ID)
	writeJSON(w, http.StatusCreated, shareResponse{Grant: grant, Token: token, ExpiresAt: expiresAt})
}
