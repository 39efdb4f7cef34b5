package models

import "time"

// SegmentDescriptor identifies one recording segment on the source platform.
// It is immutable and travels through both pipeline stages unchanged.
type SegmentDescriptor struct {
	Folder           string    `json:"folder"`
	RecordingRef     string    `json:"recordingRef"`
	CaseRef          string    `json:"caseRef"`
	Source           string    `json:"source"`
	JurisdictionCode string    `json:"jurisdictionCode"`
	ServiceCode      string    `json:"serviceCode"`
	LocationCode     string    `json:"locationCode,omitempty"`
	SourceURL        string    `json:"sourceUrl"`
	Filename         string    `json:"filename"`
	Extension        string    `json:"extension,omitempty"`
	SizeBytes        int64     `json:"sizeBytes"`
	SegmentIndex     int       `json:"segmentIndex"`
	Checksum         string    `json:"checksum,omitempty"`
	RecordedAt       time.Time `json:"recordedAt"`
}

// Recording is the aggregate root for an archived hearing. A recording is
// created when the first segment for a (recordingRef, folder) pair is synced
// and owns its segments, share grants, and audit entries.
type Recording struct {
	ID               string     `json:"id"`
	RecordingRef     string     `json:"recordingRef"`
	Folder           string     `json:"folder"`
	CaseRef          string     `json:"caseRef"`
	ExternalCaseID   *string    `json:"externalCaseId,omitempty"`
	Source           string     `json:"source"`
	JurisdictionCode string     `json:"jurisdictionCode"`
	ServiceCode      string     `json:"serviceCode"`
	RetainUntil      *time.Time `json:"retainUntil,omitempty"`
	Deleted          bool       `json:"deleted"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Segment is one persisted media file belonging to a recording. Filename is
// unique per recording; that constraint is what makes duplicate ingestion
// attempts safe.
type Segment struct {
	ID           string    `json:"id"`
	RecordingID  string    `json:"recordingId"`
	Filename     string    `json:"filename"`
	SegmentIndex int       `json:"segmentIndex"`
	SizeBytes    int64     `json:"sizeBytes"`
	Checksum     string    `json:"checksum,omitempty"`
	SourceURI    string    `json:"sourceUri,omitempty"`
	MimeType     string    `json:"mimeType,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ShareGrant is a time-boxed authorization for one email address to access
// one recording, distinct from role-based access.
type ShareGrant struct {
	ID          string    `json:"id"`
	RecordingID string    `json:"recordingId"`
	Email       string    `json:"email"`
	GrantedAt   time.Time `json:"grantedAt"`
}

// AuditEntry records an access attempt against a segment and its outcome.
type AuditEntry struct {
	ID          string    `json:"id"`
	RecordingID string    `json:"recordingId"`
	SegmentID   string    `json:"segmentId,omitempty"`
	Actor       string    `json:"actor"`
	Action      string    `json:"action"`
	Outcome     string    `json:"outcome"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// JobInProgress marks a segment whose upload has been accepted but not yet
// committed, so folder listings can include it. It exists exactly while the
// descriptor occupies a queue slot or is being processed.
type JobInProgress struct {
	Folder    string    `json:"folder"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"createdAt"`
}

// Folder groups recordings as they were organised on the source platform.
// A folder record is created the first time the folder is listed or written.
type Folder struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
