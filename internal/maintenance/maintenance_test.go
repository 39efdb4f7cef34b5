package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"hearingvault/internal/casemgmt"
	"hearingvault/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubCaseClient struct {
	mu       sync.Mutex
	cases    map[string]casemgmt.Case
	failing  map[string]error
	getCalls map[string]int
}

func newStubCaseClient() *stubCaseClient {
	return &stubCaseClient{
		cases:    map[string]casemgmt.Case{},
		failing:  map[string]error{},
		getCalls: map[string]int{},
	}
}

func (s *stubCaseClient) CreateCase(ctx context.Context, payload casemgmt.CasePayload, retentionDate time.Time) (string, error) {
	return "", errors.New("not supported")
}

func (s *stubCaseClient) GetCase(ctx context.Context, externalID string) (casemgmt.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls[externalID]++
	if err, ok := s.failing[externalID]; ok {
		return casemgmt.Case{}, err
	}
	return s.cases[externalID], nil
}

func (s *stubCaseClient) UpdateCase(ctx context.Context, externalID string, payload casemgmt.CasePayload) error {
	return errors.New("not supported")
}

func seedRecording(t *testing.T, repo storage.Repository, ref, externalCaseID string) string {
	t.Helper()
	recording, err := repo.CreateRecording(context.Background(), storage.CreateRecordingParams{
		RecordingRef:   ref,
		Folder:         "courtroom-7",
		CaseRef:        "CASE-" + ref,
		ExternalCaseID: externalCaseID,
		RetainUntil:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateRecording %s: %v", ref, err)
	}
	return recording.ID
}

func TestMigrationSharesOneUpstreamCallPerCase(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	cases := newStubCaseClient()

	newDate := time.Date(2036, 6, 1, 0, 0, 0, 0, time.UTC)
	cases.cases["ext-1"] = casemgmt.Case{ID: "ext-1", RetentionDate: newDate}

	firstID := seedRecording(t, repo, "hearing-1", "ext-1")
	secondID := seedRecording(t, repo, "hearing-2", "ext-1")

	migration := NewRetentionMigration(MigrationConfig{
		Repository: repo,
		Cases:      cases,
		BatchSize:  1, // force the cache to span batches
		Logger:     discardLogger(),
	})
	if err := migration.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := cases.getCalls["ext-1"]; got != 1 {
		t.Fatalf("upstream calls for ext-1 = %d, want 1", got)
	}
	for _, id := range []string{firstID, secondID} {
		recording, _, err := repo.GetRecording(ctx, id)
		if err != nil {
			t.Fatalf("GetRecording: %v", err)
		}
		if recording.RetainUntil == nil || !recording.RetainUntil.Equal(newDate) {
			t.Fatalf("recording %s retain until = %v, want %v", id, recording.RetainUntil, newDate)
		}
	}
}

func TestMigrationIsolatesFailedCase(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	cases := newStubCaseClient()

	oldDate := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	newDate := time.Date(2036, 6, 1, 0, 0, 0, 0, time.UTC)
	cases.cases["ext-ok"] = casemgmt.Case{ID: "ext-ok", RetentionDate: newDate}
	cases.failing["ext-bad"] = errors.New("upstream down")

	okID := seedRecording(t, repo, "hearing-1", "ext-ok")
	badFirst := seedRecording(t, repo, "hearing-2", "ext-bad")
	badSecond := seedRecording(t, repo, "hearing-3", "ext-bad")

	migration := NewRetentionMigration(MigrationConfig{
		Repository: repo,
		Cases:      cases,
		BatchSize:  10,
		Logger:     discardLogger(),
	})
	if err := migration.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	recording, _, err := repo.GetRecording(ctx, okID)
	if err != nil {
		t.Fatalf("GetRecording: %v", err)
	}
	if recording.RetainUntil == nil || !recording.RetainUntil.Equal(newDate) {
		t.Fatalf("healthy case recording not updated: %v", recording.RetainUntil)
	}
	for _, id := range []string{badFirst, badSecond} {
		recording, _, err := repo.GetRecording(ctx, id)
		if err != nil {
			t.Fatalf("GetRecording: %v", err)
		}
		if recording.RetainUntil == nil || !recording.RetainUntil.Equal(oldDate) {
			t.Fatalf("failed case recording %s must keep %v, got %v", id, oldDate, recording.RetainUntil)
		}
	}
	if got := cases.getCalls["ext-bad"]; got != 1 {
		t.Fatalf("failed case retried within the run: %d calls", got)
	}
}

func TestStaleJobsPurgeRemovesOldMarkers(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()

	if err := repo.CreateJobInProgress(ctx, "courtroom-7", "old.mp4"); err != nil {
		t.Fatalf("CreateJobInProgress: %v", err)
	}
	if err := repo.CreateJobInProgress(ctx, "courtroom-7", "fresh.mp4"); err != nil {
		t.Fatalf("CreateJobInProgress: %v", err)
	}

	purge := NewStaleJobsPurge(repo, time.Hour, discardLogger())
	purge.now = func() time.Time { return time.Now().Add(time.Minute) }

	if err := purge.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	jobs, err := repo.ListJobsInProgress(ctx, "courtroom-7")
	if err != nil {
		t.Fatalf("ListJobsInProgress: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("fresh markers must survive, got %d", len(jobs))
	}

	purge.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	if err := purge.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	jobs, err = repo.ListJobsInProgress(ctx, "courtroom-7")
	if err != nil {
		t.Fatalf("ListJobsInProgress: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("stale markers must be purged, got %d", len(jobs))
	}
}

func TestLocalLockerMutualExclusion(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()

	release, acquired, err := locker.Acquire(ctx, "task-a", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("first acquire: acquired=%v err=%v", acquired, err)
	}
	_, acquired, err = locker.Acquire(ctx, "task-a", time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if acquired {
		t.Fatal("held lock must not be reacquired")
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	_, acquired, err = locker.Acquire(ctx, "task-a", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("acquire after release: acquired=%v err=%v", acquired, err)
	}
}

type fakeTicker struct {
	ch chan time.Time
}

func (f fakeTicker) C() <-chan time.Time { return f.ch }
func (f fakeTicker) Stop()               {}

type countingTask struct {
	mu   sync.Mutex
	runs int
}

func (c *countingTask) Name() string { return "counting" }

func (c *countingTask) Run(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	return nil
}

func (c *countingTask) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

func TestStartTaskRunsOnTicks(t *testing.T) {
	ticker := fakeTicker{ch: make(chan time.Time)}
	task := &countingTask{}
	stop := startTaskWithTicker(context.Background(), discardLogger(), NewLocalLocker(), task, time.Minute, time.Minute,
		func(time.Duration) scheduleTicker { return ticker })

	ticker.ch <- time.Now()
	ticker.ch <- time.Now()
	stop()

	if got := task.count(); got != 2 {
		t.Fatalf("task runs = %d, want 2", got)
	}
}
