package storage

import (
	"context"
	"errors"
)

var (
	// ErrObjectNotFound is returned by Get when the key has never been written.
	ErrObjectNotFound = errors.New("object not found")
	// ErrVersionConflict is returned by Put when the stored version differs from
	// the expected one (or the object exists on a create-only write).
	ErrVersionConflict = errors.New("object version conflict")
)

// VersionedStore holds whole blobs addressed by key. Every successful write
// produces a new opaque version token; writes are compare-and-swap on it.
type VersionedStore interface {
	// Get returns the content and its current version.
	Get(ctx context.Context, key string) (content []byte, version string, err error)

	// Put replaces the content only if the stored version equals
	// expectedVersion. An empty expectedVersion means the key must not exist yet.
	Put(ctx context.Context, key string, content []byte, expectedVersion string) (newVersion string, err error)

	Close() error
}
