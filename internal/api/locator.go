package api

import (
	"context"
	"errors"
	"fmt"

	"hearingvault/internal/models"
)

var (
	// ErrLinkExpired means the sharee's governing grant is older than the
	// freshness window.
	ErrLinkExpired = errors.New("share link has expired")
	// ErrNoSharedFile means the sharee holds no grant for the requested
	// recording.
	ErrNoSharedFile = errors.New("no shared file for this user")
	// ErrSegmentNotFound covers a missing recording or segment.
	ErrSegmentNotFound = errors.New("segment not found")
)

// locateBySegmentNumber resolves a segment by recording id and index. On the
// sharee path a caller with no grants at all is allowed through; this
// mirrors locateByFilename, which rejects the same condition. The two paths
// are deliberately kept separate until the intended behavior is clarified
// with the product owner.
func (h *Handler) locateBySegmentNumber(ctx context.Context, recordingID string, segmentIndex int, who caller) (models.Recording, models.Segment, error) {
	recording, err := h.fetchRecording(ctx, recordingID)
	if err != nil {
		return models.Recording{}, models.Segment{}, err
	}
	if who.sharee {
		if err := h.checkShareAccess(ctx, recording.ID, who.email, false); err != nil {
			return models.Recording{}, models.Segment{}, err
		}
	}
	segment, found, err := h.Store.GetSegmentByIndex(ctx, recording.ID, segmentIndex)
	if err != nil {
		return models.Recording{}, models.Segment{}, fmt.Errorf("load segment %d: %w", segmentIndex, err)
	}
	if !found {
		return models.Recording{}, models.Segment{}, ErrSegmentNotFound
	}
	return recording, segment, nil
}

// locateByFilename resolves a segment by recording id and filename. Unlike
// the by-number path, a sharee with no grants at all is rejected here.
func (h *Handler) locateByFilename(ctx context.Context, recordingID, filename string, who caller) (models.Recording, models.Segment, error) {
	recording, err := h.fetchRecording(ctx, recordingID)
	if err != nil {
		return models.Recording{}, models.Segment{}, err
	}
	if who.sharee {
		if err := h.checkShareAccess(ctx, recording.ID, who.email, true); err != nil {
			return models.Recording{}, models.Segment{}, err
		}
	}
	segment, found, err := h.Store.GetSegmentByFilename(ctx, recording.ID, filename)
	if err != nil {
		return models.Recording{}, models.Segment{}, fmt.Errorf("load segment %s: %w", filename, err)
	}
	if !found {
		return models.Recording{}, models.Segment{}, ErrSegmentNotFound
	}
	return recording, segment, nil
}

func (h *Handler) fetchRecording(ctx context.Context, recordingID string) (models.Recording, error) {
	recording, found, err := h.Store.GetRecording(ctx, recordingID)
	if err != nil {
		return models.Recording{}, fmt.Errorf("load recording %s: %w", recordingID, err)
	}
	if !found || recording.Deleted {
		return models.Recording{}, ErrSegmentNotFound
	}
	return recording, nil
}

// checkShareAccess validates the sharee's grants for one recording. The most
// recently granted matching grant governs freshness. strictNoGrants controls
// whether a caller with no grants anywhere is rejected or passed through.
func (h *Handler) checkShareAccess(ctx context.Context, recordingID, email string, strictNoGrants bool) error {
	grants, err := h.Store.ListShareGrantsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("load share grants for %s: %w", email, err)
	}
	if len(grants) == 0 {
		if strictNoGrants {
			return ErrNoSharedFile
		}
		return nil
	}
	var governing *models.ShareGrant
	for i := range grants {
		if grants[i].RecordingID != recordingID {
			continue
		}
		if governing == nil || grants[i].GrantedAt.After(governing.GrantedAt) {
			governing = &grants[i]
		}
	}
	if governing == nil {
		return ErrNoSharedFile
	}
	if h.now().Sub(governing.GrantedAt) > h.freshnessWindow() {
		return ErrLinkExpired
	}
	return nil
}
