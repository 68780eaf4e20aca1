package storage

import (
	"context"

	"github.com/derrickSh43/ingestion/core"
)

// CaptureRepository stores captures and their raw content.
// Implementations must be thread-safe and support concurrent access.
type CaptureRepository interface {
	// Put stores a capture and its raw bytes atomically, overwriting any
	// previous capture for the same (domain, source_id).
	Put(ctx context.Context, capture *core.Capture, raw []byte) error

	// Get retrieves capture metadata.
	// Returns ErrNotFound if the capture doesn't exist.
	Get(ctx context.Context, domain, sourceID string) (*core.Capture, error)

	// GetRaw retrieves capture metadata together with the raw bytes.
	// Returns ErrNotFound if the capture doesn't exist.
	GetRaw(ctx context.Context, domain, sourceID string) (*core.Capture, []byte, error)

	// Update rewrites capture metadata in place, leaving the raw bytes
	// untouched. Returns ErrNotFound if the capture doesn't exist.
	Update(ctx context.Context, capture *core.Capture) error

	// List returns all captures for a domain, ordered by source_id.
	List(ctx context.Context, domain string) ([]*core.Capture, error)

	// Close closes the storage backend and releases resources.
	Close() error
}

// ArtifactStore persists release-scoped pipeline artifacts: canonical
// objects, chunks, and embeddings. All writes are upserts keyed by the
// artifact's deterministic id, so re-running a pipeline stage is idempotent.
type ArtifactStore interface {
	PutCanonical(ctx context.Context, obj *core.CanonicalObject) error
	ListCanonical(ctx context.Context, domain, releaseID string) ([]*core.CanonicalObject, error)

	PutChunk(ctx context.Context, chunk *core.Chunk) error
	ListChunks(ctx context.Context, domain, releaseID string) ([]*core.Chunk, error)

	// PutEmbedding stores the embedding under its chunk id, replacing any
	// earlier vector for the same chunk.
	PutEmbedding(ctx context.Context, emb *core.Embedding) error
	ListEmbeddings(ctx context.Context, domain, releaseID string) ([]*core.Embedding, error)
}
