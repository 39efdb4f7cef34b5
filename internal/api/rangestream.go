package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"hearingvault/internal/blob"
	"hearingvault/internal/models"
)

// streamBufferSize is the fixed copy buffer used for every response body.
const streamBufferSize = 32 * 1024

var errInvalidRange = errors.New("invalid range header")

// byteRange is an inclusive byte span requested by the client.
type byteRange struct {
	start int64
	end   int64
}

// parseRangeHeader parses "bytes=start-end". Both bounds must be present,
// numeric, and ordered; anything else is rejected before any byte is read.
// A missing header returns nil.
func parseRangeHeader(header string) (*byteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, errInvalidRange
	}
	startText, endText, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, errInvalidRange
	}
	start, err := strconv.ParseInt(strings.TrimSpace(startText), 10, 64)
	if err != nil || start < 0 {
		return nil, errInvalidRange
	}
	end, err := strconv.ParseInt(strings.TrimSpace(endText), 10, 64)
	if err != nil || end < start {
		return nil, errInvalidRange
	}
	return &byteRange{start: start, end: end}, nil
}

// streamSegment writes the segment body honoring the Range header and records
// an audit entry for the attempt. A client disconnect mid-stream truncates
// the write without an explicit cancellation signal to the storage read.
func (h *Handler) streamSegment(w http.ResponseWriter, r *http.Request, recording models.Recording, segment models.Segment, who caller) {
	ctx := r.Context()
	key := blob.ObjectKey(recording.Folder, segment.Filename)

	requested, err := parseRangeHeader(r.Header.Get("Range"))
	if err != nil {
		h.audit(ctx, recording, segment, who, "failure", "malformed range header")
		h.Metrics.RangeRequest("rejected")
		writeError(w, http.StatusRequestedRangeNotSatisfiable, errInvalidRange)
		return
	}

	info, exists, err := h.Blobs.Head(ctx, key)
	if err != nil {
		h.audit(ctx, recording, segment, who, "failure", "blob metadata unavailable")
		writeError(w, http.StatusBadGateway, fmt.Errorf("segment storage unavailable"))
		return
	}
	if !exists || info.SizeBytes <= 0 {
		h.audit(ctx, recording, segment, who, "failure", "blob missing")
		writeError(w, http.StatusNotFound, ErrSegmentNotFound)
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentTypeFor(info, segment))
	w.Header().Set("Content-Disposition", "attachment; filename=\""+segment.Filename+"\"")

	start, end := int64(0), info.SizeBytes-1
	status := http.StatusOK
	kind := "full"
	if requested != nil {
		if requested.start >= info.SizeBytes {
			h.audit(ctx, recording, segment, who, "failure", "range start beyond object size")
			h.Metrics.RangeRequest("rejected")
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", info.SizeBytes))
			writeError(w, http.StatusRequestedRangeNotSatisfiable, errInvalidRange)
			return
		}
		start = requested.start
		if requested.end < end {
			end = requested.end
		}
		status = http.StatusPartialContent
		kind = "partial"
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, info.SizeBytes))
	}
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))

	body, err := h.Blobs.GetRange(ctx, key, start, end)
	if err != nil {
		h.audit(ctx, recording, segment, who, "failure", "blob read failed")
		writeError(w, http.StatusBadGateway, fmt.Errorf("segment storage unavailable"))
		return
	}
	defer func() {
		_ = body.Close()
	}()

	h.Metrics.RangeRequest(kind)
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		h.audit(ctx, recording, segment, who, "success", fmt.Sprintf("head %d-%d", start, end))
		return
	}
	if _, err := io.CopyBuffer(w, body, make([]byte, streamBufferSize)); err != nil {
		h.logger().Warn("segment stream truncated",
			"segment_id", segment.ID, "key", key, "error", err)
		h.audit(ctx, recording, segment, who, "failure", "stream truncated")
		return
	}
	h.audit(ctx, recording, segment, who, "success", fmt.Sprintf("bytes %d-%d", start, end))
}

func contentTypeFor(info blob.ObjectInfo, segment models.Segment) string {
	if segment.MimeType != "" {
		return segment.MimeType
	}
	if info.ContentType != "" {
		return info.ContentType
	}
	return "application/octet-stream"
}

// audit records an access attempt. Audit failures are logged, never surfaced
// to the client.
func (h *Handler) audit(ctx context.Context, recording models.Recording, segment models.Segment, who caller, outcome, detail string) {
	entry := models.AuditEntry{
		RecordingID: recording.ID,
		SegmentID:   segment.ID,
		Actor:       who.actor,
		Action:      "segment.stream",
		Outcome:     outcome,
		Detail:      detail,
		CreatedAt:   h.now().UTC(),
	}
	if err := h.Store.CreateAuditEntry(ctx, entry); err != nil {
		h.logger().Warn("audit entry write failed",
			"recording_id", recording.ID, "segment_id", segment.ID, "error", err)
	}
}
