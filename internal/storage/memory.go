package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hearingvault/internal/models"
)

// MemoryRepository keeps all rows in process memory. It backs tests and
// single-node development deployments and enforces the same uniqueness rules
// as the Postgres repository.
type MemoryRepository struct {
	mu          sync.RWMutex
	recordings  map[string]models.Recording
	segments    map[string]models.Segment
	shareGrants map[string]models.ShareGrant
	audit       []models.AuditEntry
	folders     map[string]models.Folder
	jobs        map[string]models.JobInProgress
}

// NewMemoryRepository initialises an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		recordings:  make(map[string]models.Recording),
		segments:    make(map[string]models.Segment),
		shareGrants: make(map[string]models.ShareGrant),
		folders:     make(map[string]models.Folder),
		jobs:        make(map[string]models.JobInProgress),
	}
}

var _ Repository = (*MemoryRepository)(nil)

func (m *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func refKey(recordingRef, folder string) string {
	return strings.ToLower(recordingRef) + "\x00" + strings.ToLower(folder)
}

func segmentKey(recordingID, filename string) string {
	return recordingID + "\x00" + strings.ToLower(filename)
}

func jobKey(folder, filename string) string {
	return strings.ToLower(folder) + "\x00" + strings.ToLower(filename)
}

func (m *MemoryRepository) CreateRecording(ctx context.Context, params CreateRecordingParams) (models.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.recordings {
		if refKey(existing.RecordingRef, existing.Folder) == refKey(params.RecordingRef, params.Folder) {
			return models.Recording{}, ErrAlreadyExists
		}
	}
	now := time.Now().UTC()
	recording := models.Recording{
		ID:               uuid.NewString(),
		RecordingRef:     params.RecordingRef,
		Folder:           params.Folder,
		CaseRef:          params.CaseRef,
		Source:           params.Source,
		JurisdictionCode: params.JurisdictionCode,
		ServiceCode:      params.ServiceCode,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if params.ExternalCaseID != "" {
		external := params.ExternalCaseID
		recording.ExternalCaseID = &external
	}
	if !params.RetainUntil.IsZero() {
		retain := params.RetainUntil.UTC()
		recording.RetainUntil = &retain
	}
	m.recordings[recording.ID] = recording
	return recording, nil
}

func (m *MemoryRepository) GetRecording(ctx context.Context, id string) (models.Recording, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recording, ok := m.recordings[id]
	if !ok || recording.Deleted {
		return models.Recording{}, false, nil
	}
	return recording, true, nil
}

func (m *MemoryRepository) FindRecordingByRef(ctx context.Context, recordingRef, folder string) (models.Recording, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := refKey(recordingRef, folder)
	for _, recording := range m.recordings {
		if !recording.Deleted && refKey(recording.RecordingRef, recording.Folder) == key {
			return recording, true, nil
		}
	}
	return models.Recording{}, false, nil
}

func (m *MemoryRepository) ListRecordings(ctx context.Context, offset, limit int) ([]models.Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]models.Recording, 0, len(m.recordings))
	for _, recording := range m.recordings {
		if !recording.Deleted {
			all = append(all, recording)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryRepository) UpdateRecordingRetention(ctx context.Context, id string, retainUntil time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	recording, ok := m.recordings[id]
	if !ok {
		return fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	retain := retainUntil.UTC()
	recording.RetainUntil = &retain
	recording.UpdatedAt = time.Now().UTC()
	m.recordings[id] = recording
	return nil
}

func (m *MemoryRepository) CreateSegment(ctx context.Context, params CreateSegmentParams) (models.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.recordings[params.RecordingID]; !ok {
		return models.Segment{}, fmt.Errorf("recording %s: %w", params.RecordingID, ErrNotFound)
	}
	key := segmentKey(params.RecordingID, params.Filename)
	for _, existing := range m.segments {
		if segmentKey(existing.RecordingID, existing.Filename) == key {
			return models.Segment{}, ErrAlreadyExists
		}
	}
	segment := models.Segment{
		ID:           uuid.NewString(),
		RecordingID:  params.RecordingID,
		Filename:     params.Filename,
		SegmentIndex: params.SegmentIndex,
		SizeBytes:    params.SizeBytes,
		Checksum:     params.Checksum,
		SourceURI:    params.SourceURI,
		MimeType:     params.MimeType,
		CreatedAt:    time.Now().UTC(),
	}
	m.segments[segment.ID] = segment
	return segment, nil
}

func (m *MemoryRepository) GetSegmentByIndex(ctx context.Context, recordingID string, segmentIndex int) (models.Segment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, segment := range m.segments {
		if segment.RecordingID == recordingID && segment.SegmentIndex == segmentIndex {
			return segment, true, nil
		}
	}
	return models.Segment{}, false, nil
}

func (m *MemoryRepository) GetSegmentByFilename(ctx context.Context, recordingID, filename string) (models.Segment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := segmentKey(recordingID, filename)
	for _, segment := range m.segments {
		if segmentKey(segment.RecordingID, segment.Filename) == key {
			return segment, true, nil
		}
	}
	return models.Segment{}, false, nil
}

func (m *MemoryRepository) ListSegmentFilenames(ctx context.Context, folder string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for _, segment := range m.segments {
		recording, ok := m.recordings[segment.RecordingID]
		if !ok || recording.Deleted {
			continue
		}
		if strings.EqualFold(recording.Folder, folder) {
			names = append(names, segment.Filename)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryRepository) CreateShareGrant(ctx context.Context, recordingID, email string) (models.ShareGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.recordings[recordingID]; !ok {
		return models.ShareGrant{}, fmt.Errorf("recording %s: %w", recordingID, ErrNotFound)
	}
	grant := models.ShareGrant{
		ID:          uuid.NewString(),
		RecordingID: recordingID,
		Email:       strings.ToLower(strings.TrimSpace(email)),
		GrantedAt:   time.Now().UTC(),
	}
	m.shareGrants[grant.ID] = grant
	return grant, nil
}

// CreateShareGrantAt backdates a grant's timestamp. Test helper.
func (m *MemoryRepository) CreateShareGrantAt(ctx context.Context, recordingID, email string, grantedAt time.Time) (models.ShareGrant, error) {
	grant, err := m.CreateShareGrant(ctx, recordingID, email)
	if err != nil {
		return models.ShareGrant{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	grant.GrantedAt = grantedAt.UTC()
	m.shareGrants[grant.ID] = grant
	return grant, nil
}

func (m *MemoryRepository) ListShareGrantsByEmail(ctx context.Context, email string) ([]models.ShareGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	normalized := strings.ToLower(strings.TrimSpace(email))
	var grants []models.ShareGrant
	for _, grant := range m.shareGrants {
		if grant.Email == normalized {
			grants = append(grants, grant)
		}
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].GrantedAt.Before(grants[j].GrantedAt) })
	return grants, nil
}

func (m *MemoryRepository) CreateAuditEntry(ctx context.Context, entry models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.audit = append(m.audit, entry)
	return nil
}

// AuditEntries returns a copy of the recorded audit trail. Test helper.
func (m *MemoryRepository) AuditEntries() []models.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.AuditEntry(nil), m.audit...)
}

func (m *MemoryRepository) EnsureFolder(ctx context.Context, name string) (models.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return models.Folder{}, fmt.Errorf("folder name is required")
	}
	if folder, ok := m.folders[key]; ok {
		return folder, nil
	}
	folder := models.Folder{Name: strings.TrimSpace(name), CreatedAt: time.Now().UTC()}
	m.folders[key] = folder
	return folder, nil
}

func (m *MemoryRepository) CreateJobInProgress(ctx context.Context, folder, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobKey(folder, filename)
	if _, ok := m.jobs[key]; ok {
		return ErrAlreadyExists
	}
	m.jobs[key] = models.JobInProgress{
		Folder:    folder,
		Filename:  filename,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (m *MemoryRepository) DeleteJobInProgress(ctx context.Context, folder, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.jobs, jobKey(folder, filename))
	return nil
}

func (m *MemoryRepository) ListJobsInProgress(ctx context.Context, folder string) ([]models.JobInProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var jobs []models.JobInProgress
	for _, job := range m.jobs {
		if strings.EqualFold(job.Folder, folder) {
			jobs = append(jobs, job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Filename < jobs[j].Filename })
	return jobs, nil
}

func (m *MemoryRepository) PurgeStaleJobsInProgress(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, job := range m.jobs {
		if job.CreatedAt.Before(olderThan) {
			delete(m.jobs, key)
			removed++
		}
	}
	return removed, nil
}
