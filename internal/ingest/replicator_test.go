package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"hearingvault/internal/blob"
	"hearingvault/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBlobStore struct {
	mu sync.Mutex

	objects map[string]blob.ObjectInfo
	states  []blob.CopyState

	startErr  error
	statusErr error

	startCalls  int
	statusCalls int
	aborted     []string
	deleted     []string
	sourceURL   string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string]blob.ObjectInfo{}}
}

func (f *fakeBlobStore) Head(ctx context.Context, key string) (blob.ObjectInfo, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.objects[key]
	return info, ok, nil
}

func (f *fakeBlobStore) GetRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	return nil, errors.New("not supported")
}

func (f *fakeBlobStore) StartCopy(ctx context.Context, key, sourceURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	f.sourceURL = sourceURL
	if f.startErr != nil {
		return "", f.startErr
	}
	return "copy-1", nil
}

func (f *fakeBlobStore) CopyStatus(ctx context.Context, key, copyID string) (blob.CopyState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if f.statusCalls >= len(f.states) {
		return blob.CopyPending, nil
	}
	state := f.states[f.statusCalls]
	f.statusCalls++
	if state == blob.CopySuccess {
		f.objects[key] = blob.ObjectInfo{Key: key, SizeBytes: 1024}
	}
	return state, nil
}

func (f *fakeBlobStore) AbortCopy(ctx context.Context, key, copyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, key)
	return nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

type recordingSigner struct {
	notBefore time.Time
	expiresAt time.Time
}

func (s *recordingSigner) SignSourceURL(rawURL string, notBefore, expiresAt time.Time) (string, error) {
	s.notBefore = notBefore
	s.expiresAt = expiresAt
	return rawURL + "?signed=1", nil
}

func testDescriptor() models.SegmentDescriptor {
	return models.SegmentDescriptor{
		Folder:           "courtroom-7",
		RecordingRef:     "hearing-2041",
		CaseRef:          "CASE-88",
		Source:           "sessions",
		JurisdictionCode: "CV",
		ServiceCode:      "SC",
		SourceURL:        "https://source.example.com/media/seg0.mp4",
		Filename:         "seg0.mp4",
		SizeBytes:        2048,
		SegmentIndex:     0,
		RecordedAt:       time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestReplicateSkipsExistingDestination(t *testing.T) {
	store := newFakeBlobStore()
	key := blob.ObjectKey("courtroom-7", "seg0.mp4")
	store.objects[key] = blob.ObjectInfo{Key: key, SizeBytes: 2048}

	replicator := NewReplicator(ReplicatorConfig{Store: store, Logger: discardLogger(), PollInterval: time.Millisecond})
	if err := replicator.Replicate(context.Background(), testDescriptor()); err != nil {
		t.Fatalf("Replicate returned error: %v", err)
	}
	if store.startCalls != 0 {
		t.Fatalf("expected no copy for existing destination, got %d starts", store.startCalls)
	}
}

func TestReplicatePollsUntilSuccess(t *testing.T) {
	store := newFakeBlobStore()
	store.states = []blob.CopyState{blob.CopyPending, blob.CopyPending, blob.CopySuccess}

	replicator := NewReplicator(ReplicatorConfig{Store: store, Logger: discardLogger(), PollInterval: time.Millisecond})
	if err := replicator.Replicate(context.Background(), testDescriptor()); err != nil {
		t.Fatalf("Replicate returned error: %v", err)
	}
	if store.statusCalls != 3 {
		t.Fatalf("expected 3 status polls, got %d", store.statusCalls)
	}
	if len(store.aborted) != 0 || len(store.deleted) != 0 {
		t.Fatalf("successful copy must not be cleaned up")
	}
}

func TestReplicateCleansUpFailedCopy(t *testing.T) {
	store := newFakeBlobStore()
	store.states = []blob.CopyState{blob.CopyFailed}

	replicator := NewReplicator(ReplicatorConfig{Store: store, Logger: discardLogger(), PollInterval: time.Millisecond})
	err := replicator.Replicate(context.Background(), testDescriptor())
	if !errors.Is(err, ErrCopyFailed) {
		t.Fatalf("expected ErrCopyFailed, got %v", err)
	}
	if len(store.aborted) != 1 {
		t.Fatalf("expected one abort, got %d", len(store.aborted))
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected destination deleted, got %d", len(store.deleted))
	}
}

func TestReplicateSignsSourceURLWithSkewWindow(t *testing.T) {
	store := newFakeBlobStore()
	store.states = []blob.CopyState{blob.CopySuccess}
	signer := &recordingSigner{}
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	replicator := NewReplicator(ReplicatorConfig{
		Store:        store,
		Signer:       signer,
		PollInterval: time.Millisecond,
		SkewWindow:   95 * time.Minute,
		Logger:       discardLogger(),
		Now:          func() time.Time { return now },
	})
	if err := replicator.Replicate(context.Background(), testDescriptor()); err != nil {
		t.Fatalf("Replicate returned error: %v", err)
	}
	if got, want := signer.notBefore, now.Add(-95*time.Minute); !got.Equal(want) {
		t.Fatalf("notBefore = %v, want %v", got, want)
	}
	if got, want := signer.expiresAt, now.Add(95*time.Minute); !got.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", got, want)
	}
	if store.sourceURL != "https://source.example.com/media/seg0.mp4?signed=1" {
		t.Fatalf("copy used unsigned source url %q", store.sourceURL)
	}
}
