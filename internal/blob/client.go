// Package blob talks to the durable object store holding replicated
// recording segments, and mints delegated read access against the source
// platform.
package blob

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ObjectInfo describes a stored object as reported by a metadata call.
type ObjectInfo struct {
	Key         string
	SizeBytes   int64
	ContentType string
}

// CopyState reports the progress of a server-side copy operation.
type CopyState string

const (
	CopyPending CopyState = "pending"
	CopySuccess CopyState = "success"
	CopyFailed  CopyState = "failed"
)

// Client is the durable-store surface required by the replication pipeline
// and the retrieval handlers.
type Client interface {
	// Head fetches object metadata. The second return is false when the
	// object does not exist.
	Head(ctx context.Context, key string) (ObjectInfo, bool, error)
	// GetRange streams the inclusive [start, end] byte span of an object.
	GetRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)
	// StartCopy begins a server-side copy of sourceURL into key and returns
	// a copy id usable with CopyStatus and AbortCopy.
	StartCopy(ctx context.Context, key, sourceURL string) (string, error)
	// CopyStatus polls the state of a copy previously started on key.
	CopyStatus(ctx context.Context, key, copyID string) (CopyState, error)
	// AbortCopy attempts to stop an in-flight copy.
	AbortCopy(ctx context.Context, key, copyID string) error
	// Delete removes an object. Deleting an absent object is not an error.
	Delete(ctx context.Context, key string) error
}

// DelegationSigner mints time-boxed read access for source-platform URLs
// whose endpoints refuse anonymous reads.
type DelegationSigner interface {
	// SignSourceURL appends delegated read+list credentials valid between
	// notBefore and expiresAt to the provided URL.
	SignSourceURL(rawURL string, notBefore, expiresAt time.Time) (string, error)
}

// ObjectKey builds the canonical storage key for a segment. Filenames arrive
// from several upstream systems with inconsistent Unicode forms, so both
// components are NFC-normalized before joining.
func ObjectKey(folder, filename string) string {
	folder = norm.NFC.String(strings.TrimSpace(folder))
	filename = norm.NFC.String(strings.TrimSpace(filename))
	return path.Join(strings.Trim(folder, "/"), strings.TrimLeft(filename, "/"))
}
