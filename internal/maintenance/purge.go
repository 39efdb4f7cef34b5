package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hearingvault/internal/storage"
)

// StaleJobsPurge removes in-progress markers whose pipeline run died without
// cleaning up, typically after a process crash mid-flight.
type StaleJobsPurge struct {
	repo   storage.Repository
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time
}

const defaultStaleJobAge = 24 * time.Hour

// NewStaleJobsPurge builds the task. Markers older than maxAge are removed.
func NewStaleJobsPurge(repo storage.Repository, maxAge time.Duration, logger *slog.Logger) *StaleJobsPurge {
	if maxAge <= 0 {
		maxAge = defaultStaleJobAge
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StaleJobsPurge{repo: repo, maxAge: maxAge, logger: logger, now: time.Now}
}

// Name identifies the task for lock scoping.
func (p *StaleJobsPurge) Name() string { return "stale-jobs-purge" }

// Run deletes markers past the age threshold.
func (p *StaleJobsPurge) Run(ctx context.Context) error {
	cutoff := p.now().UTC().Add(-p.maxAge)
	purged, err := p.repo.PurgeStaleJobsInProgress(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge stale jobs: %w", err)
	}
	if purged > 0 {
		p.logger.Info("stale in-progress markers purged", "count", purged, "cutoff", cutoff)
	}
	return nil
}
