package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedRecording(t *testing.T, repo *MemoryRepository) string {
	t.Helper()
	recording, err := repo.CreateRecording(context.Background(), CreateRecordingParams{
		RecordingRef:   "hearing-2041",
		Folder:         "courtroom-7",
		CaseRef:        "CASE-88",
		ExternalCaseID: "ext-1",
		RetainUntil:    time.Date(2033, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}
	return recording.ID
}

func TestCreateRecordingRejectsDuplicateRef(t *testing.T) {
	repo := NewMemoryRepository()
	seedRecording(t, repo)

	_, err := repo.CreateRecording(context.Background(), CreateRecordingParams{
		RecordingRef: "HEARING-2041",
		Folder:       "Courtroom-7",
		CaseRef:      "CASE-99",
	})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate ref error = %v, want ErrAlreadyExists", err)
	}
}

func TestFindRecordingByRefIsCaseInsensitive(t *testing.T) {
	repo := NewMemoryRepository()
	id := seedRecording(t, repo)

	recording, ok, err := repo.FindRecordingByRef(context.Background(), "HEARING-2041", "COURTROOM-7")
	if err != nil || !ok {
		t.Fatalf("FindRecordingByRef: ok=%v err=%v", ok, err)
	}
	if recording.ID != id {
		t.Fatalf("recording id = %s, want %s", recording.ID, id)
	}
}

func TestCreateSegmentEnforcesUniqueness(t *testing.T) {
	repo := NewMemoryRepository()
	id := seedRecording(t, repo)

	if _, err := repo.CreateSegment(context.Background(), CreateSegmentParams{
		RecordingID:  id,
		Filename:     "seg0.mp4",
		SegmentIndex: 0,
		SizeBytes:    2048,
	}); err != nil {
		t.Fatalf("CreateSegment: %v", err)
	}
	_, err := repo.CreateSegment(context.Background(), CreateSegmentParams{
		RecordingID:  id,
		Filename:     "SEG0.MP4",
		SegmentIndex: 1,
	})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate filename error = %v, want ErrAlreadyExists", err)
	}

	_, err = repo.CreateSegment(context.Background(), CreateSegmentParams{
		RecordingID: "missing",
		Filename:    "seg1.mp4",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("orphan segment error = %v, want ErrNotFound", err)
	}
}

func TestSegmentLookups(t *testing.T) {
	repo := NewMemoryRepository()
	id := seedRecording(t, repo)
	if _, err := repo.CreateSegment(context.Background(), CreateSegmentParams{
		RecordingID:  id,
		Filename:     "seg3.mp4",
		SegmentIndex: 3,
	}); err != nil {
		t.Fatalf("CreateSegment: %v", err)
	}

	segment, ok, err := repo.GetSegmentByIndex(context.Background(), id, 3)
	if err != nil || !ok {
		t.Fatalf("GetSegmentByIndex: ok=%v err=%v", ok, err)
	}
	if segment.Filename != "seg3.mp4" {
		t.Fatalf("filename = %q", segment.Filename)
	}

	if _, ok, _ := repo.GetSegmentByIndex(context.Background(), id, 4); ok {
		t.Fatal("index 4 must not resolve")
	}

	segment, ok, err = repo.GetSegmentByFilename(context.Background(), id, "SEG3.MP4")
	if err != nil || !ok {
		t.Fatalf("GetSegmentByFilename: ok=%v err=%v", ok, err)
	}
	if segment.SegmentIndex != 3 {
		t.Fatalf("segment index = %d", segment.SegmentIndex)
	}
}

func TestListRecordingsPaginates(t *testing.T) {
	repo := NewMemoryRepository()
	for i := 0; i < 5; i++ {
		if _, err := repo.CreateRecording(context.Background(), CreateRecordingParams{
			RecordingRef: "hearing-" + string(rune('a'+i)),
			Folder:       "courtroom-7",
			CaseRef:      "CASE-88",
		}); err != nil {
			t.Fatalf("CreateRecording %d: %v", i, err)
		}
	}

	first, err := repo.ListRecordings(context.Background(), 0, 3)
	if err != nil {
		t.Fatalf("ListRecordings: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("first page = %d rows, want 3", len(first))
	}
	rest, err := repo.ListRecordings(context.Background(), 3, 3)
	if err != nil {
		t.Fatalf("ListRecordings: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("second page = %d rows, want 2", len(rest))
	}
	if tail, _ := repo.ListRecordings(context.Background(), 10, 3); tail != nil {
		t.Fatalf("offset past end = %v, want nil", tail)
	}
}

func TestShareGrantsSortedByGrantTime(t *testing.T) {
	repo := NewMemoryRepository()
	id := seedRecording(t, repo)

	older := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if _, err := repo.CreateShareGrantAt(context.Background(), id, "Clerk@Example.Org", older); err != nil {
		t.Fatalf("CreateShareGrantAt: %v", err)
	}
	if _, err := repo.CreateShareGrant(context.Background(), id, "clerk@example.org"); err != nil {
		t.Fatalf("CreateShareGrant: %v", err)
	}

	grants, err := repo.ListShareGrantsByEmail(context.Background(), "CLERK@example.org")
	if err != nil {
		t.Fatalf("ListShareGrantsByEmail: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("grants = %d, want 2", len(grants))
	}
	if !grants[0].GrantedAt.Equal(older) {
		t.Fatalf("grants not sorted oldest first: %v", grants[0].GrantedAt)
	}
	if grants[0].Email != "clerk@example.org" {
		t.Fatalf("email not normalized: %q", grants[0].Email)
	}
}

func TestJobsInProgressLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.CreateJobInProgress(ctx, "courtroom-7", "seg0.mp4"); err != nil {
		t.Fatalf("CreateJobInProgress: %v", err)
	}
	if err := repo.CreateJobInProgress(ctx, "Courtroom-7", "SEG0.MP4"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate marker error = %v, want ErrAlreadyExists", err)
	}

	jobs, err := repo.ListJobsInProgress(ctx, "COURTROOM-7")
	if err != nil {
		t.Fatalf("ListJobsInProgress: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Filename != "seg0.mp4" {
		t.Fatalf("jobs = %+v", jobs)
	}

	if err := repo.DeleteJobInProgress(ctx, "courtroom-7", "seg0.mp4"); err != nil {
		t.Fatalf("DeleteJobInProgress: %v", err)
	}
	// Deleting an absent marker is a no-op.
	if err := repo.DeleteJobInProgress(ctx, "courtroom-7", "seg0.mp4"); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if jobs, _ := repo.ListJobsInProgress(ctx, "courtroom-7"); len(jobs) != 0 {
		t.Fatalf("jobs after delete = %+v", jobs)
	}
}

func TestPurgeStaleJobsInProgress(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.CreateJobInProgress(ctx, "courtroom-7", "old.mp4"); err != nil {
		t.Fatalf("CreateJobInProgress: %v", err)
	}
	removed, err := repo.PurgeStaleJobsInProgress(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("PurgeStaleJobsInProgress: %v", err)
	}
	if removed != 0 {
		t.Fatalf("fresh marker purged, removed = %d", removed)
	}
	removed, err = repo.PurgeStaleJobsInProgress(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("PurgeStaleJobsInProgress: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
}

func TestUpdateRecordingRetention(t *testing.T) {
	repo := NewMemoryRepository()
	id := seedRecording(t, repo)

	updated := time.Date(2040, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.UpdateRecordingRetention(context.Background(), id, updated); err != nil {
		t.Fatalf("UpdateRecordingRetention: %v", err)
	}
	recording, ok, _ := repo.GetRecording(context.Background(), id)
	if !ok || recording.RetainUntil == nil || !recording.RetainUntil.Equal(updated) {
		t.Fatalf("retention not updated: %+v", recording.RetainUntil)
	}

	if err := repo.UpdateRecordingRetention(context.Background(), "missing", updated); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing recording error = %v, want ErrNotFound", err)
	}
}

func TestEnsureFolderIsIdempotent(t *testing.T) {
	repo := NewMemoryRepository()

	first, err := repo.EnsureFolder(context.Background(), "Courtroom-7")
	if err != nil {
		t.Fatalf("EnsureFolder: %v", err)
	}
	second, err := repo.EnsureFolder(context.Background(), "courtroom-7")
	if err != nil {
		t.Fatalf("EnsureFolder repeat: %v", err)
	}
	if !first.CreatedAt.Equal(second.CreatedAt) || first.Name != second.Name {
		t.Fatalf("folder changed between calls: %+v vs %+v", first, second)
	}
	if _, err := repo.EnsureFolder(context.Background(), "  "); err == nil {
		t.Fatal("blank folder name must be rejected")
	}
}
