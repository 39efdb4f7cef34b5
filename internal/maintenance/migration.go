package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hearingvault/internal/casemgmt"
	"hearingvault/internal/models"
	"hearingvault/internal/storage"
)

// MigrationConfig configures the retention migration task.
type MigrationConfig struct {
	Repository storage.Repository
	Cases      casemgmt.Client
	BatchSize  int
	Workers    int
	Logger     *slog.Logger
}

// RetentionMigration refreshes every recording's retention date from the
// authoritative case record. Upstream lookups are cached per external case id
// for the full run, across batches, so sibling recordings sharing one case
// trigger a single upstream call.
type RetentionMigration struct {
	repo      storage.Repository
	cases     casemgmt.Client
	batchSize int
	workers   int
	logger    *slog.Logger
}

// MigrationStats summarizes one run.
type MigrationStats struct {
	Examined    int
	Updated     int
	FailedCases int
}

const (
	defaultMigrationBatchSize = 200
	defaultMigrationWorkers   = 4
)

// NewRetentionMigration builds the task.
func NewRetentionMigration(cfg MigrationConfig) *RetentionMigration {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultMigrationBatchSize
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultMigrationWorkers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionMigration{
		repo:      cfg.Repository,
		cases:     cfg.Cases,
		batchSize: batchSize,
		workers:   workers,
		logger:    logger,
	}
}

// Name identifies the task for lock scoping.
func (m *RetentionMigration) Name() string { return "retention-migration" }

type caseResult struct {
	retentionDate time.Time
	err           error
}

// Run walks all recordings in batches and applies the upstream retention
// date. A failed case lookup leaves every recording of that case untouched
// and does not affect other cases.
func (m *RetentionMigration) Run(ctx context.Context) error {
	cache := map[string]caseResult{}
	var cacheMu sync.Mutex
	stats := MigrationStats{}

	for offset := 0; ; offset += m.batchSize {
		recordings, err := m.repo.ListRecordings(ctx, offset, m.batchSize)
		if err != nil {
			return fmt.Errorf("list recordings at offset %d: %w", offset, err)
		}
		if len(recordings) == 0 {
			break
		}
		stats.Examined += len(recordings)

		m.resolveCases(ctx, recordings, cache, &cacheMu)

		for _, recording := range recordings {
			if recording.ExternalCaseID == nil || *recording.ExternalCaseID == "" || recording.Deleted {
				continue
			}
			result := cache[*recording.ExternalCaseID]
			if result.err != nil {
				continue
			}
			if recording.RetainUntil != nil && recording.RetainUntil.Equal(result.retentionDate) {
				continue
			}
			if err := m.repo.UpdateRecordingRetention(ctx, recording.ID, result.retentionDate); err != nil {
				m.logger.Error("retention update failed",
					"recording_id", recording.ID, "external_case_id", *recording.ExternalCaseID, "error", err)
				continue
			}
			stats.Updated++
		}
	}

	for _, result := range cache {
		if result.err != nil {
			stats.FailedCases++
		}
	}
	m.logger.Info("retention migration finished",
		"examined", stats.Examined, "updated", stats.Updated, "failed_cases", stats.FailedCases)
	return nil
}

// resolveCases fetches the case record for every external case id in the
// batch that the run has not seen yet. Distinct ids are fetched in parallel;
// a lookup failure is cached so the id is not retried within the run.
func (m *RetentionMigration) resolveCases(ctx context.Context, recordings []models.Recording, cache map[string]caseResult, cacheMu *sync.Mutex) {
	pending := make([]string, 0, len(recordings))
	seen := map[string]struct{}{}
	cacheMu.Lock()
	for _, recording := range recordings {
		if recording.ExternalCaseID == nil || *recording.ExternalCaseID == "" {
			continue
		}
		id := *recording.ExternalCaseID
		if _, cached := cache[id]; cached {
			continue
		}
		if _, queued := seen[id]; queued {
			continue
		}
		seen[id] = struct{}{}
		pending = append(pending, id)
	}
	cacheMu.Unlock()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(m.workers)
	for _, id := range pending {
		id := id
		group.Go(func() error {
			record, err := m.cases.GetCase(groupCtx, id)
			cacheMu.Lock()
			if err != nil {
				cache[id] = caseResult{err: err}
				cacheMu.Unlock()
				m.logger.Error("case lookup failed", "external_case_id", id, "error", err)
				return nil
			}
			cache[id] = caseResult{retentionDate: record.RetentionDate}
			cacheMu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
}
