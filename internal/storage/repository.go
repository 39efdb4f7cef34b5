package storage

import (
	"context"
	"errors"
	"time"

	"hearingvault/internal/models"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadyExists is returned when an insert loses a uniqueness race.
	// Callers on the ingestion path check for it with errors.Is and treat it
	// as success; any other failure propagates.
	ErrAlreadyExists = errors.New("storage: already exists")
)

// CreateRecordingParams carries the fields required to persist a new
// recording row together with the external case id returned by the
// case-management service.
type CreateRecordingParams struct {
	RecordingRef     string
	Folder           string
	CaseRef          string
	Source           string
	JurisdictionCode string
	ServiceCode      string
	ExternalCaseID   string
	RetainUntil      time.Time
}

// CreateSegmentParams carries the fields required to persist a segment row.
type CreateSegmentParams struct {
	RecordingID  string
	Filename     string
	SegmentIndex int
	SizeBytes    int64
	Checksum     string
	SourceURI    string
	MimeType     string
}

// Repository exposes the datastore operations required by the ingestion
// pipeline, the retrieval handlers, and the maintenance workers.
type Repository interface {
	Ping(ctx context.Context) error

	CreateRecording(ctx context.Context, params CreateRecordingParams) (models.Recording, error)
	GetRecording(ctx context.Context, id string) (models.Recording, bool, error)
	FindRecordingByRef(ctx context.Context, recordingRef, folder string) (models.Recording, bool, error)
	ListRecordings(ctx context.Context, offset, limit int) ([]models.Recording, error)
	UpdateRecordingRetention(ctx context.Context, id string, retainUntil time.Time) error

	CreateSegment(ctx context.Context, params CreateSegmentParams) (models.Segment, error)
	GetSegmentByIndex(ctx context.Context, recordingID string, segmentIndex int) (models.Segment, bool, error)
	GetSegmentByFilename(ctx context.Context, recordingID, filename string) (models.Segment, bool, error)
	ListSegmentFilenames(ctx context.Context, folder string) ([]string, error)

	CreateShareGrant(ctx context.Context, recordingID, email string) (models.ShareGrant, error)
	ListShareGrantsByEmail(ctx context.Context, email string) ([]models.ShareGrant, error)

	CreateAuditEntry(ctx context.Context, entry models.AuditEntry) error

	EnsureFolder(ctx context.Context, name string) (models.Folder, error)

	CreateJobInProgress(ctx context.Context, folder, filename string) error
	DeleteJobInProgress(ctx context.Context, folder, filename string) error
	ListJobsInProgress(ctx context.Context, folder string) ([]models.JobInProgress, error)
	PurgeStaleJobsInProgress(ctx context.Context, olderThan time.Time) (int, error)
}
