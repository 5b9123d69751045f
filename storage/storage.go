// Package storage holds the physical byte store behind file records. Blobs
// are opaque encrypted objects addressed by a system-generated path name; the
// metadata layer is the only place that knows which record owns which blob.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound is returned when a named blob does not exist. Callers treat
// it as an integrity anomaly for records that claim to be complete.
var ErrBlobNotFound = errors.New("storage: blob not found")

// BlobStore is the byte store. Writers replace the named blob on Close;
// partial writes from a crashed session leave whatever was flushed, which the
// upload pipeline reconciles through the metadata layer.
type BlobStore interface {
	// Create opens a writer that replaces the blob's content.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	// Open opens the blob for sequential reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Copy duplicates src's bytes under dst.
	Copy(ctx context.Context, src, dst string) error
	// Rename atomically (where the backend allows) replaces dst with src.
	Rename(ctx context.Context, src, dst string) error
	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// Exists reports whether the blob is present.
	Exists(ctx context.Context, name string) (bool, error)
}
