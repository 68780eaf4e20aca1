package reindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/derrickSh43/ingestion/ai"
	"github.com/derrickSh43/ingestion/core"
	"github.com/derrickSh43/ingestion/storage"
)

const (
	// DefaultBatchSize is the default number of chunks embedded per call.
	DefaultBatchSize = 16
	// DefaultMaxRetries is the default attempt count for embedding calls.
	DefaultMaxRetries = 3
	// DefaultRetryBaseDelay is the default backoff base for embedding calls.
	DefaultRetryBaseDelay = 500 * time.Millisecond
)

// ReleaseStore is the release bookkeeping a re-embed needs.
type ReleaseStore interface {
	Get(ctx context.Context, domain, releaseID string) (*core.Release, error)
	Create(ctx context.Context, domain, releaseID, createdBy string) (*core.Release, error)
	RecordSource(ctx context.Context, domain, releaseID, sourceID string, counts core.Counts) (*core.Release, error)
}

// Index reads a release's folded entries and writes rebuilt ones.
type Index interface {
	Load(ctx context.Context, domain, releaseID string) ([]*core.IndexEntry, error)
	Upsert(ctx context.Context, entries []*core.IndexEntry) error
}

// Reembedder rebuilds a release's embeddings and index with a different
// embedding model. The source release is left untouched; the rebuild lands
// in a fresh candidate release that can be promoted once verified.
type Reembedder struct {
	artifacts      storage.ArtifactStore
	releases       ReleaseStore
	index          Index
	embedder       ai.Embedder
	batchSize      int
	maxRetries     int
	retryBaseDelay time.Duration
	progressWriter io.Writer
	logger         *slog.Logger
}

// Option configures a Reembedder.
type Option func(*Reembedder)

// WithBatchSize sets how many chunks are embedded per call.
// Default is DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(r *Reembedder) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithRetry sets the attempt count and backoff base for embedding calls.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(r *Reembedder) {
		if maxRetries > 0 {
			r.maxRetries = maxRetries
		}
		if baseDelay > 0 {
			r.retryBaseDelay = baseDelay
		}
	}
}

// WithProgressWriter enables progress reporting to the given writer.
func WithProgressWriter(w io.Writer) Option {
	return func(r *Reembedder) {
		r.progressWriter = w
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReembedder creates a re-embedder.
func NewReembedder(artifacts storage.ArtifactStore, releases ReleaseStore, index Index, embedder ai.Embedder, opts ...Option) (*Reembedder, error) {
	if artifacts == nil {
		return nil, ErrArtifactStoreRequired
	}
	if releases == nil {
		return nil, ErrReleaseStoreRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	r := &Reembedder{
		artifacts:      artifacts,
		releases:       releases,
		index:          index,
		embedder:       embedder,
		batchSize:      DefaultBatchSize,
		maxRetries:     DefaultMaxRetries,
		retryBaseDelay: DefaultRetryBaseDelay,
		progressWriter: io.Discard,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reembedder")
	return r, nil
}

// Result reports a completed re-embed.
type Result struct {
	Release *core.Release `json:"release"`
	Chunks  int           `json:"chunks"`
	Batches int           `json:"batches"`
	Elapsed time.Duration `json:"elapsed"`
}

// Run rebuilds sourceReleaseID into targetReleaseID with the configured
// embedder. Canonical objects and chunks are copied unchanged; embeddings
// and index entries are regenerated batch by batch with retry.
func (r *Reembedder) Run(ctx context.Context, domain, sourceReleaseID, targetReleaseID, createdBy string) (*Result, error) {
	if err := core.ValidateScope(domain, sourceReleaseID); err != nil {
		return nil, err
	}
	if err := core.ValidateReleaseID(targetReleaseID); err != nil {
		return nil, err
	}
	if targetReleaseID == sourceReleaseID {
		return nil, fmt.Errorf("target release must differ from source: %w", core.ErrValidation)
	}
	if _, err := r.releases.Get(ctx, domain, sourceReleaseID); err != nil {
		return nil, err
	}
	target, err := r.releases.Create(ctx, domain, targetReleaseID, createdBy)
	if err != nil {
		return nil, err
	}

	perSource := make(map[string]core.Counts)

	clos, err := r.artifacts.ListCanonical(ctx, domain, sourceReleaseID)
	if err != nil {
		return nil, err
	}
	for _, clo := range clos {
		cp := *clo
		cp.Provenance.ReleaseID = targetReleaseID
		if err := r.artifacts.PutCanonical(ctx, &cp); err != nil {
			return nil, err
		}
		c := perSource[clo.Provenance.SourceID]
		c.CanonicalObjects++
		perSource[clo.Provenance.SourceID] = c
	}

	chunks, err := r.artifacts.ListChunks(ctx, domain, sourceReleaseID)
	if err != nil {
		return nil, err
	}
	for _, ch := range chunks {
		cp := *ch
		cp.ReleaseID = targetReleaseID
		if err := r.artifacts.PutChunk(ctx, &cp); err != nil {
			return nil, err
		}
	}

	entries, err := r.index.Load(ctx, domain, sourceReleaseID)
	if err != nil {
		return nil, err
	}

	tracker := NewProgressTracker(r.progressWriter, len(entries), r.batchSize)
	tracker.Start()

	info := r.embedder.Info()
	now := time.Now().UTC()
	batches := 0

	for start := 0; start < len(entries); start += r.batchSize {
		end := start + r.batchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = e.Text
		}

		var vectors [][]float32
		err := RetryWithBackoff(ctx, func() error {
			var err error
			vectors, err = r.embedder.EmbedTexts(ctx, texts)
			return err
		}, r.maxRetries, r.retryBaseDelay)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings after %d attempts: %w", r.maxRetries, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(vectors))
		}

		rebuilt := make([]*core.IndexEntry, 0, len(batch))
		for i, e := range batch {
			vec := NormalizeVector(vectors[i])
			if err := r.artifacts.PutEmbedding(ctx, &core.Embedding{
				ChunkID:   e.ChunkID,
				Domain:    domain,
				ReleaseID: targetReleaseID,
				Provider:  info.Provider,
				Model:     info.Model,
				Dimension: len(vec),
				Vector:    vec,
				CreatedAt: now,
			}); err != nil {
				return nil, err
			}
			cp := *e
			cp.ReleaseID = targetReleaseID
			cp.Vector = vec
			cp.Provider = info.Provider
			cp.Model = info.Model
			cp.Dimension = len(vec)
			cp.IndexedAt = now
			rebuilt = append(rebuilt, &cp)

			sourceID := e.Metadata["source_id"]
			c := perSource[sourceID]
			c.Chunks++
			c.Embeddings++
			perSource[sourceID] = c
		}
		if err := r.index.Upsert(ctx, rebuilt); err != nil {
			return nil, err
		}
		batches++
		tracker.Increment(len(batch))
	}
	tracker.Finish()

	for sourceID, counts := range perSource {
		if sourceID == "" {
			continue
		}
		if target, err = r.releases.RecordSource(ctx, domain, targetReleaseID, sourceID, counts); err != nil {
			return nil, err
		}
	}

	r.logger.Info("release re-embedded",
		"domain", domain, "source_release", sourceReleaseID,
		"target_release", targetReleaseID, "chunks", len(entries),
		"provider", info.Provider, "model", info.Model)
	return &Result{
		Release: target,
		Chunks:  len(entries),
		Batches: batches,
		Elapsed: tracker.Elapsed(),
	}, nil
}
