package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hearingvault/internal/blob"
	"hearingvault/internal/models"
)

// ReplicatorConfig configures the blob replication stage.
type ReplicatorConfig struct {
	Store        blob.Client
	Signer       blob.DelegationSigner
	PollInterval time.Duration
	// SkewWindow widens the delegation validity window on both sides so a
	// clock difference between the platforms cannot invalidate the token.
	SkewWindow time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// Replicator copies a source-platform blob into the durable store. It treats
// an existing non-empty destination as already replicated and never leaves a
// partially copied destination behind.
type Replicator struct {
	store        blob.Client
	signer       blob.DelegationSigner
	pollInterval time.Duration
	skewWindow   time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

const (
	defaultPollInterval = 2 * time.Second
	defaultSkewWindow   = 95 * time.Minute
)

// NewReplicator builds a Replicator.
func NewReplicator(cfg ReplicatorConfig) *Replicator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	skewWindow := cfg.SkewWindow
	if skewWindow <= 0 {
		skewWindow = defaultSkewWindow
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Replicator{
		store:        cfg.Store,
		signer:       cfg.Signer,
		pollInterval: pollInterval,
		skewWindow:   skewWindow,
		logger:       logger,
		now:          now,
	}
}

// Replicate copies the descriptor's source blob to its destination key. A
// destination that already exists with non-zero size is a no-op.
func (r *Replicator) Replicate(ctx context.Context, descriptor models.SegmentDescriptor) error {
	key := blob.ObjectKey(descriptor.Folder, descriptor.Filename)

	info, exists, err := r.store.Head(ctx, key)
	if err != nil {
		return fmt.Errorf("check destination %s: %w", key, err)
	}
	if exists && info.SizeBytes > 0 {
		r.logger.Info("destination blob already present", "key", key, "size_bytes", info.SizeBytes)
		return nil
	}

	sourceURL, err := r.signedSourceURL(descriptor.SourceURL)
	if err != nil {
		return fmt.Errorf("sign source url: %w", err)
	}

	copyID, err := r.store.StartCopy(ctx, key, sourceURL)
	if err != nil {
		r.cleanup(ctx, key, "")
		return fmt.Errorf("%w: start copy for %s: %v", ErrCopyFailed, key, err)
	}

	if err := r.awaitCopy(ctx, key, copyID); err != nil {
		r.cleanup(ctx, key, copyID)
		return err
	}
	return nil
}

func (r *Replicator) signedSourceURL(rawURL string) (string, error) {
	if r.signer == nil {
		return rawURL, nil
	}
	now := r.now().UTC()
	return r.signer.SignSourceURL(rawURL, now.Add(-r.skewWindow), now.Add(r.skewWindow))
}

func (r *Replicator) awaitCopy(ctx context.Context, key, copyID string) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		state, err := r.store.CopyStatus(ctx, key, copyID)
		if err != nil {
			return fmt.Errorf("%w: poll copy %s for %s: %v", ErrCopyFailed, copyID, key, err)
		}
		switch state {
		case blob.CopySuccess:
			return nil
		case blob.CopyPending:
		default:
			return fmt.Errorf("%w: copy %s for %s ended in state %q", ErrCopyFailed, copyID, key, state)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: copy %s for %s: %v", ErrCopyFailed, copyID, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// cleanup aborts any in-flight copy and removes the destination so a failed
// replication never leaves partial bytes behind. Best effort on both calls.
func (r *Replicator) cleanup(ctx context.Context, key, copyID string) {
	if strings.TrimSpace(copyID) != "" {
		if err := r.store.AbortCopy(ctx, key, copyID); err != nil {
			r.logger.Warn("abort copy failed", "key", key, "copy_id", copyID, "error", err)
		}
	}
	if err := r.store.Delete(ctx, key); err != nil {
		r.logger.Warn("destination cleanup failed", "key", key, "error", err)
	}
}
