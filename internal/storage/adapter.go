// Package storage defines the uniform persistence contract shared by
// the filesystem, key-value, and document-store backends, plus a
// registry (Manager) for picking one by name.
package storage

import (
	"context"

	"github.com/figma-chunkstore/chunkstore/models"
)

// Adapter is the storage contract every backend implements. All
// operations may fail with a transient (chunkerr.StorageTransient) or
// permanent (chunkerr.StoragePermanent) error.
type Adapter interface {
	// Save upserts chunk. Must be atomic with respect to concurrent
	// readers: no torn reads.
	Save(ctx context.Context, chunk models.Chunk) error

	// Get returns the chunk for id, or (Chunk{}, false, nil) on a miss
	// or silent expiry eviction. LastAccessed is refreshed as a
	// best-effort side effect; failures to do so are logged, not
	// surfaced.
	Get(ctx context.Context, id string) (models.Chunk, bool, error)

	// Has reports existence without fetching the payload when the
	// backend can do that cheaply.
	Has(ctx context.Context, id string) (bool, error)

	// Delete removes id, returning true iff a chunk existed and is now
	// gone.
	Delete(ctx context.Context, id string) (bool, error)

	// List returns summaries matching filter, ordered and truncated
	// per filter's sort/limit.
	List(ctx context.Context, filter models.ChunkFilter) ([]models.ChunkSummary, error)

	// Cleanup deletes every chunk whose Expires is in the past.
	Cleanup(ctx context.Context) error

	// Close releases any resources the adapter holds (connections,
	// background tickers). Adapters with nothing to release may treat
	// this as a no-op.
	Close() error
}

// Name identifies a registered adapter instance within a Manager.
type Name string
