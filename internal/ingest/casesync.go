package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hearingvault/internal/blob"
	"hearingvault/internal/casemgmt"
	"hearingvault/internal/models"
	"hearingvault/internal/storage"
)

// Classifier resolves the mime type of a stored blob. A failed classification
// yields the empty string, never an error.
type Classifier interface {
	Classify(ctx context.Context, key string) string
}

// UploaderConfig configures the case synchronization stage.
type UploaderConfig struct {
	Repository storage.Repository
	Cases      casemgmt.Client
	Classifier Classifier
	Retention  RetentionPolicy
	Logger     *slog.Logger
	Now        func() time.Time
}

// Uploader registers a replicated segment with the case-management service
// and persists the segment row. It is the second pipeline stage, decoupled
// from replication so a slow upstream call never stalls copying.
type Uploader struct {
	repo       storage.Repository
	cases      casemgmt.Client
	classifier Classifier
	retention  RetentionPolicy
	logger     *slog.Logger
	now        func() time.Time
}

// NewUploader builds an Uploader.
func NewUploader(cfg UploaderConfig) *Uploader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	retention := cfg.Retention
	if retention.DefaultYears <= 0 && retention.ServiceYears == nil && retention.JurisdictionYears == nil {
		retention = DefaultRetentionPolicy()
	}
	return &Uploader{
		repo:       cfg.Repository,
		cases:      cfg.Cases,
		classifier: cfg.Classifier,
		retention:  retention,
		logger:     logger,
		now:        now,
	}
}

// Sync upserts the case record for the descriptor and persists its segment
// row. The in-progress marker is removed on every exit path so folder
// listings never show a permanently stuck upload.
func (u *Uploader) Sync(ctx context.Context, descriptor models.SegmentDescriptor) error {
	defer func() {
		if err := u.repo.DeleteJobInProgress(ctx, descriptor.Folder, descriptor.Filename); err != nil {
			u.logger.Warn("in-progress marker removal failed",
				"folder", descriptor.Folder, "filename", descriptor.Filename, "error", err)
		}
	}()

	recording, err := u.upsertRecording(ctx, descriptor)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaseSyncFailed, err)
	}

	mimeType := ""
	if u.classifier != nil {
		mimeType = u.classifier.Classify(ctx, blob.ObjectKey(descriptor.Folder, descriptor.Filename))
	}

	_, err = u.repo.CreateSegment(ctx, storage.CreateSegmentParams{
		RecordingID:  recording.ID,
		Filename:     descriptor.Filename,
		SegmentIndex: descriptor.SegmentIndex,
		SizeBytes:    descriptor.SizeBytes,
		Checksum:     descriptor.Checksum,
		SourceURI:    descriptor.SourceURL,
		MimeType:     mimeType,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// Another ingestion attempt won the insert race. The blob and the
			// row both exist, so this attempt succeeded too.
			u.logger.Info("segment already persisted",
				"recording_id", recording.ID, "filename", descriptor.Filename)
			return nil
		}
		return fmt.Errorf("%w: persist segment %s: %v", ErrCaseSyncFailed, descriptor.Filename, err)
	}
	u.logger.Info("segment persisted",
		"recording_id", recording.ID, "filename", descriptor.Filename, "mime_type", mimeType)
	return nil
}

func (u *Uploader) upsertRecording(ctx context.Context, descriptor models.SegmentDescriptor) (models.Recording, error) {
	recording, found, err := u.repo.FindRecordingByRef(ctx, descriptor.RecordingRef, descriptor.Folder)
	if err != nil {
		return models.Recording{}, fmt.Errorf("find recording %s/%s: %v", descriptor.Folder, descriptor.RecordingRef, err)
	}
	if found {
		if err := u.updateCase(ctx, recording, descriptor); err != nil {
			return models.Recording{}, err
		}
		return recording, nil
	}
	return u.createRecording(ctx, descriptor)
}

func (u *Uploader) createRecording(ctx context.Context, descriptor models.SegmentDescriptor) (models.Recording, error) {
	retainUntil := u.retention.RetainUntil(descriptor.ServiceCode, descriptor.JurisdictionCode, u.now())
	externalID, err := u.cases.CreateCase(ctx, casemgmt.CasePayload{
		CaseRef:          descriptor.CaseRef,
		RecordingRef:     descriptor.RecordingRef,
		JurisdictionCode: descriptor.JurisdictionCode,
		ServiceCode:      descriptor.ServiceCode,
		SegmentRefs:      []string{descriptor.Filename},
	}, retainUntil)
	if err != nil {
		return models.Recording{}, err
	}

	recording, err := u.repo.CreateRecording(ctx, storage.CreateRecordingParams{
		RecordingRef:     descriptor.RecordingRef,
		Folder:           descriptor.Folder,
		CaseRef:          descriptor.CaseRef,
		Source:           descriptor.Source,
		JurisdictionCode: descriptor.JurisdictionCode,
		ServiceCode:      descriptor.ServiceCode,
		ExternalCaseID:   externalID,
		RetainUntil:      retainUntil,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// Lost the recording-creation race to a sibling segment. Reuse
			// the winner's row.
			existing, found, findErr := u.repo.FindRecordingByRef(ctx, descriptor.RecordingRef, descriptor.Folder)
			if findErr != nil || !found {
				return models.Recording{}, fmt.Errorf("refetch recording %s/%s after race: %v", descriptor.Folder, descriptor.RecordingRef, findErr)
			}
			return existing, nil
		}
		return models.Recording{}, fmt.Errorf("persist recording %s/%s: %v", descriptor.Folder, descriptor.RecordingRef, err)
	}
	return recording, nil
}

// updateCase refreshes the upstream case payload with this segment's
// reference, skipping the call entirely when the reference is already there.
func (u *Uploader) updateCase(ctx context.Context, recording models.Recording, descriptor models.SegmentDescriptor) error {
	if recording.ExternalCaseID == nil || *recording.ExternalCaseID == "" {
		u.logger.Warn("recording has no external case id, skipping case update",
			"recording_id", recording.ID)
		return nil
	}
	externalID := *recording.ExternalCaseID
	record, err := u.cases.GetCase(ctx, externalID)
	if err != nil {
		return err
	}
	if record.Payload.HasSegmentRef(descriptor.Filename) {
		return nil
	}
	payload := record.Payload
	payload.SegmentRefs = append(payload.SegmentRefs, descriptor.Filename)
	return u.cases.UpdateCase(ctx, externalID, payload)
}
