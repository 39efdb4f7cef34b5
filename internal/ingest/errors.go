// Package ingest runs the two-stage archival pipeline: a bounded intake
// queue feeding a single blob replication consumer, and a second queue
// feeding the case synchronization consumer.
package ingest

import "errors"

var (
	// ErrCopyFailed signals that blob replication did not complete and the
	// destination was cleaned up. The submission must be retried by the
	// producer; the pipeline never retries on its own.
	ErrCopyFailed = errors.New("ingest: blob copy failed")
	// ErrCaseSyncFailed signals that the case upsert or segment persistence
	// failed after a successful copy.
	ErrCaseSyncFailed = errors.New("ingest: case sync failed")
)
