package api

import (
	"fmt"
	"net/http"
	"strings"

	"hearingvault/internal/models"
)

// Segments handles POST /api/segments: descriptor intake with backpressure.
func (h *Handler) Segments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	if _, err := h.requireAPIKey(r); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	var descriptor models.SegmentDescriptor
	if err := decodeJSON(r, &descriptor); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode descriptor: %w", err))
		return
	}
	if err := validateDescriptor(descriptor); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	accepted, err := h.Pipeline.Offer(r.Context(), descriptor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("admit segment: %w", err))
		return
	}
	if !accepted {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"status": "rejected",
			"error":  "intake queue is full, resubmit later",
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func validateDescriptor(descriptor models.SegmentDescriptor) error {
	required := map[string]string{
		"folder":       descriptor.Folder,
		"recordingRef": descriptor.RecordingRef,
		"caseRef":      descriptor.CaseRef,
		"sourceUrl":    descriptor.SourceURL,
		"filename":     descriptor.Filename,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("descriptor field %s is required", field)
		}
	}
	if descriptor.SegmentIndex < 0 {
		return fmt.Errorf("descriptor segment index must not be negative")
	}
	if descriptor.SizeBytes < 0 {
		return fmt.Errorf("descriptor size must not be negative")
	}
	return nil
}
