package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hearingvault/internal/models"
)

// PostgresConfig tunes the pgx connection pool behind the Postgres repository.
type PostgresConfig struct {
	DSN             string
	MaxConnections  int32
	MinConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	AcquireTimeout  time.Duration
	ApplicationName string
}

// PostgresRepository persists all rows to Postgres. Uniqueness of
// (recording_ref, folder) and (recording_id, filename) is enforced by the
// database so concurrent ingestion attempts race safely.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository opens a Postgres-backed repository and ensures the
// schema exists.
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.AcquireTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	repo := &PostgresRepository{pool: pool}
	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// Close releases the connection pool, bounded by the provided context.
func (r *PostgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id UUID PRIMARY KEY,
	recording_ref TEXT NOT NULL,
	folder TEXT NOT NULL,
	case_ref TEXT NOT NULL,
	external_case_id TEXT,
	source TEXT NOT NULL DEFAULT '',
	jurisdiction_code TEXT NOT NULL DEFAULT '',
	service_code TEXT NOT NULL DEFAULT '',
	retain_until TIMESTAMPTZ,
	deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (recording_ref, folder)
);
CREATE TABLE IF NOT EXISTS segments (
	id UUID PRIMARY KEY,
	recording_id UUID NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
	filename TEXT NOT NULL,
	segment_index INTEGER NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	checksum TEXT NOT NULL DEFAULT '',
	source_uri TEXT NOT NULL DEFAULT '',
	mime_type TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (recording_id, filename)
);
CREATE TABLE IF NOT EXISTS share_grants (
	id UUID PRIMARY KEY,
	recording_id UUID NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
	email TEXT NOT NULL,
	granted_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS share_grants_email_idx ON share_grants (email);
CREATE TABLE IF NOT EXISTS audit_entries (
	id UUID PRIMARY KEY,
	recording_id UUID NOT NULL,
	segment_id TEXT NOT NULL DEFAULT '',
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	outcome TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS folders (
	name TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS jobs_in_progress (
	folder TEXT NOT NULL,
	filename TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (folder, filename)
);
`

func (r *PostgresRepository) ensureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PostgresRepository) CreateRecording(ctx context.Context, params CreateRecordingParams) (models.Recording, error) {
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
	var externalCaseID *string
	if params.ExternalCaseID != "" {
		external := params.ExternalCaseID
		externalCaseID = &external
		recording.ExternalCaseID = &external
	}
	var retainUntil *time.Time
	if !params.RetainUntil.IsZero() {
		retain := params.RetainUntil.UTC()
		retainUntil = &retain
		recording.RetainUntil = &retain
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO recordings (id, recording_ref, folder, case_ref, external_case_id, source, jurisdiction_code, service_code, retain_until, deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $10)
`, recording.ID, recording.RecordingRef, recording.Folder, recording.CaseRef, externalCaseID,
		recording.Source, recording.JurisdictionCode, recording.ServiceCode, retainUntil, now)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Recording{}, ErrAlreadyExists
		}
		return models.Recording{}, fmt.Errorf("insert recording: %w", err)
	}
	return recording, nil
}

const recordingColumns = `id, recording_ref, folder, case_ref, external_case_id, source, jurisdiction_code, service_code, retain_until, deleted, created_at, updated_at`

func scanRecording(row pgx.Row) (models.Recording, error) {
	var recording models.Recording
	err := row.Scan(
		&recording.ID,
		&recording.RecordingRef,
		&recording.Folder,
		&recording.CaseRef,
		&recording.ExternalCaseID,
		&recording.Source,
		&recording.JurisdictionCode,
		&recording.ServiceCode,
		&recording.RetainUntil,
		&recording.Deleted,
		&recording.CreatedAt,
		&recording.UpdatedAt,
	)
	return recording, err
}

func (r *PostgresRepository) GetRecording(ctx context.Context, id string) (models.Recording, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = $1 AND NOT deleted`, id)
	recording, err := scanRecording(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Recording{}, false, nil
		}
		return models.Recording{}, false, fmt.Errorf("get recording: %w", err)
	}
	return recording, true, nil
}

func (r *PostgresRepository) FindRecordingByRef(ctx context.Context, recordingRef, folder string) (models.Recording, bool, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+recordingColumns+`
FROM recordings
WHERE lower(recording_ref) = lower($1) AND lower(folder) = lower($2) AND NOT deleted
`, recordingRef, folder)
	recording, err := scanRecording(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Recording{}, false, nil
		}
		return models.Recording{}, false, fmt.Errorf("find recording by ref: %w", err)
	}
	return recording, true, nil
}

func (r *PostgresRepository) ListRecordings(ctx context.Context, offset, limit int) ([]models.Recording, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+recordingColumns+`
FROM recordings
WHERE NOT deleted
ORDER BY id
OFFSET $1 LIMIT $2
`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()
	var recordings []models.Recording
	for rows.Next() {
		recording, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		recordings = append(recordings, recording)
	}
	return recordings, rows.Err()
}

func (r *PostgresRepository) UpdateRecordingRetention(ctx context.Context, id string, retainUntil time.Time) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE recordings SET retain_until = $2, updated_at = $3 WHERE id = $1
`, id, retainUntil.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update retention: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) CreateSegment(ctx context.Context, params CreateSegmentParams) (models.Segment, error) {
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
	_, err := r.pool.Exec(ctx, `
INSERT INTO segments (id, recording_id, filename, segment_index, size_bytes, checksum, source_uri, mime_type, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, segment.ID, segment.RecordingID, segment.Filename, segment.SegmentIndex, segment.SizeBytes,
		segment.Checksum, segment.SourceURI, segment.MimeType, segment.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Segment{}, ErrAlreadyExists
		}
		return models.Segment{}, fmt.Errorf("insert segment: %w", err)
	}
	return segment, nil
}

const segmentColumns = `id, recording_id, filename, segment_index, size_bytes, checksum, source_uri, mime_type, created_at`

func scanSegment(row pgx.Row) (models.Segment, error) {
	var segment models.Segment
	err := row.Scan(
		&segment.ID,
		&segment.RecordingID,
		&segment.Filename,
		&segment.SegmentIndex,
		&segment.SizeBytes,
		&segment.Checksum,
		&segment.SourceURI,
		&segment.MimeType,
		&segment.CreatedAt,
	)
	return segment, err
}

func (r *PostgresRepository) GetSegmentByIndex(ctx context.Context, recordingID string, segmentIndex int) (models.Segment, bool, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+segmentColumns+` FROM segments WHERE recording_id = $1 AND segment_index = $2
`, recordingID, segmentIndex)
	segment, err := scanSegment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Segment{}, false, nil
		}
		return models.Segment{}, false, fmt.Errorf("get segment by index: %w", err)
	}
	return segment, true, nil
}

func (r *PostgresRepository) GetSegmentByFilename(ctx context.Context, recordingID, filename string) (models.Segment, bool, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+segmentColumns+` FROM segments WHERE recording_id = $1 AND lower(filename) = lower($2)
`, recordingID, filename)
	segment, err := scanSegment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Segment{}, false, nil
		}
		return models.Segment{}, false, fmt.Errorf("get segment by filename: %w", err)
	}
	return segment, true, nil
}

func (r *PostgresRepository) ListSegmentFilenames(ctx context.Context, folder string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT s.filename
FROM segments s
JOIN recordings r ON r.id = s.recording_id
WHERE lower(r.folder) = lower($1) AND NOT r.deleted
ORDER BY s.filename
`, folder)
	if err != nil {
		return nil, fmt.Errorf("list segment filenames: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan filename: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *PostgresRepository) CreateShareGrant(ctx context.Context, recordingID, email string) (models.ShareGrant, error) {
	grant := models.ShareGrant{
		ID:          uuid.NewString(),
		RecordingID: recordingID,
		Email:       strings.ToLower(strings.TrimSpace(email)),
		GrantedAt:   time.Now().UTC(),
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO share_grants (id, recording_id, email, granted_at) VALUES ($1, $2, $3, $4)
`, grant.ID, grant.RecordingID, grant.Email, grant.GrantedAt)
	if err != nil {
		return models.ShareGrant{}, fmt.Errorf("insert share grant: %w", err)
	}
	return grant, nil
}

func (r *PostgresRepository) ListShareGrantsByEmail(ctx context.Context, email string) ([]models.ShareGrant, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, recording_id, email, granted_at FROM share_grants WHERE email = $1 ORDER BY granted_at
`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("list share grants: %w", err)
	}
	defer rows.Close()
	var grants []models.ShareGrant
	for rows.Next() {
		var grant models.ShareGrant
		if err := rows.Scan(&grant.ID, &grant.RecordingID, &grant.Email, &grant.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan share grant: %w", err)
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

func (r *PostgresRepository) CreateAuditEntry(ctx context.Context, entry models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO audit_entries (id, recording_id, segment_id, actor, action, outcome, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, entry.ID, entry.RecordingID, entry.SegmentID, entry.Actor, entry.Action, entry.Outcome, entry.Detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *PostgresRepository) EnsureFolder(ctx context.Context, name string) (models.Folder, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return models.Folder{}, fmt.Errorf("folder name is required")
	}
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
INSERT INTO folders (name, created_at) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING
`, trimmed, now)
	if err != nil {
		return models.Folder{}, fmt.Errorf("ensure folder: %w", err)
	}
	row := r.pool.QueryRow(ctx, `SELECT name, created_at FROM folders WHERE name = $1`, trimmed)
	var folder models.Folder
	if err := row.Scan(&folder.Name, &folder.CreatedAt); err != nil {
		return models.Folder{}, fmt.Errorf("get folder: %w", err)
	}
	return folder, nil
}

func (r *PostgresRepository) CreateJobInProgress(ctx context.Context, folder, filename string) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO jobs_in_progress (folder, filename, created_at) VALUES ($1, $2, $3)
`, folder, filename, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert job in progress: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteJobInProgress(ctx context.Context, folder, filename string) error {
	_, err := r.pool.Exec(ctx, `
DELETE FROM jobs_in_progress WHERE folder = $1 AND filename = $2
`, folder, filename)
	if err != nil {
		return fmt.Errorf("delete job in progress: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListJobsInProgress(ctx context.Context, folder string) ([]models.JobInProgress, error) {
	rows, err := r.pool.Query(ctx, `
SELECT folder, filename, created_at FROM jobs_in_progress WHERE lower(folder) = lower($1) ORDER BY filename
`, folder)
	if err != nil {
		return nil, fmt.Errorf("list jobs in progress: %w", err)
	}
	defer rows.Close()
	var jobs []models.JobInProgress
	for rows.Next() {
		var job models.JobInProgress
		if err := rows.Scan(&job.Folder, &job.Filename, &job.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job in progress: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepository) PurgeStaleJobsInProgress(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
DELETE FROM jobs_in_progress WHERE created_at < $1
`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
