package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"hearingvault/internal/models"
	"hearingvault/internal/observability/metrics"
	"hearingvault/internal/storage"
)

// PipelineConfig wires the two pipeline stages together.
type PipelineConfig struct {
	Repository storage.Repository
	Replicator *Replicator
	Uploader   *Uploader
	// IntakeCapacity bounds the admission queue. Offers beyond capacity are
	// rejected, never queued.
	IntakeCapacity int
	// SyncCapacity bounds the queue between replication and case sync.
	SyncCapacity int
	Logger       *slog.Logger
	Metrics      *metrics.Recorder
}

// Pipeline owns both queues and their single dedicated consumers. Exactly one
// replication and one case sync run at a time per process; a failing item is
// logged and dropped so the consumers stay available for the next one.
type Pipeline struct {
	repo       storage.Repository
	replicator *Replicator
	uploader   *Uploader
	logger     *slog.Logger
	metrics    *metrics.Recorder

	intake chan models.SegmentDescriptor
	sync   chan models.SegmentDescriptor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

const (
	defaultIntakeCapacity = 128
	defaultSyncCapacity   = 128
)

// NewPipeline builds a stopped pipeline. Call Start to launch the consumers.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	intakeCapacity := cfg.IntakeCapacity
	if intakeCapacity <= 0 {
		intakeCapacity = defaultIntakeCapacity
	}
	syncCapacity := cfg.SyncCapacity
	if syncCapacity <= 0 {
		syncCapacity = defaultSyncCapacity
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		repo:       cfg.Repository,
		replicator: cfg.Replicator,
		uploader:   cfg.Uploader,
		logger:     logger,
		metrics:    cfg.Metrics,
		intake:     make(chan models.SegmentDescriptor, intakeCapacity),
		sync:       make(chan models.SegmentDescriptor, syncCapacity),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the replication and case-sync consumers. Safe to call once.
func (p *Pipeline) Start() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(2)
	go p.replicationLoop()
	go p.caseSyncLoop()
}

// Shutdown stops both consumers and waits for in-flight work to finish.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.cancel()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Offer admits a descriptor to the pipeline without blocking. The in-progress
// marker is registered before the caller is told "accepted"; a full queue
// rejects the offer and leaves no marker behind. A marker that already exists
// means the same file is in flight, which is also a rejection.
func (p *Pipeline) Offer(ctx context.Context, descriptor models.SegmentDescriptor) (bool, error) {
	if strings.TrimSpace(descriptor.Folder) == "" || strings.TrimSpace(descriptor.Filename) == "" {
		return false, errors.New("descriptor folder and filename are required")
	}

	if err := p.repo.CreateJobInProgress(ctx, descriptor.Folder, descriptor.Filename); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			p.logger.Info("segment already in flight",
				"folder", descriptor.Folder, "filename", descriptor.Filename)
			p.metrics.IntakeRejected()
			return false, nil
		}
		return false, err
	}

	select {
	case p.intake <- descriptor:
		p.metrics.IntakeAccepted()
		return true, nil
	default:
		if err := p.repo.DeleteJobInProgress(ctx, descriptor.Folder, descriptor.Filename); err != nil {
			p.logger.Warn("marker rollback failed after full queue",
				"folder", descriptor.Folder, "filename", descriptor.Filename, "error", err)
		}
		p.metrics.IntakeRejected()
		return false, nil
	}
}

func (p *Pipeline) replicationLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case descriptor := <-p.intake:
			if err := p.replicator.Replicate(p.ctx, descriptor); err != nil {
				p.logger.Error("segment replication failed",
					"folder", descriptor.Folder, "filename", descriptor.Filename, "error", err)
				p.metrics.CopyOutcome("failed")
				p.clearMarker(descriptor)
				continue
			}
			p.metrics.CopyOutcome("success")
			select {
			case p.sync <- descriptor:
			case <-p.ctx.Done():
				p.clearMarker(descriptor)
				return
			}
		}
	}
}

func (p *Pipeline) caseSyncLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case descriptor := <-p.sync:
			if err := p.uploader.Sync(p.ctx, descriptor); err != nil {
				p.logger.Error("case sync failed",
					"folder", descriptor.Folder, "filename", descriptor.Filename, "error", err)
				p.metrics.CaseSyncOutcome("failed")
				continue
			}
			p.metrics.CaseSyncOutcome("success")
		}
	}
}

// clearMarker removes the in-progress marker for a descriptor that left the
// pipeline without reaching the uploader, which otherwise owns removal.
func (p *Pipeline) clearMarker(descriptor models.SegmentDescriptor) {
	if err := p.repo.DeleteJobInProgress(context.Background(), descriptor.Folder, descriptor.Filename); err != nil {
		p.logger.Warn("in-progress marker removal failed",
			"folder", descriptor.Folder, "filename", descriptor.Filename, "error", err)
	}
}
