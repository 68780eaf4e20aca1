package ingest

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/derrickSh43/ingestion/ai"
	"github.com/derrickSh43/ingestion/core"
	"github.com/derrickSh43/ingestion/storage"
)

// CaptureSource hands the pipeline verified raw content. The capture layer
// enforces quarantine and integrity gates before any bytes reach a release;
// FromFile lets inline and path references enter through the same envelope.
type CaptureSource interface {
	VerifiedRaw(ctx context.Context, domain, sourceID string, force bool) (*core.Capture, []byte, error)
	FromFile(ctx context.Context, domain, sourceID, filename string, data []byte) (*core.Capture, error)
}

// ReleaseStore is the release bookkeeping the pipeline needs: making sure a
// candidate release exists and recording per-source counts on it.
type ReleaseStore interface {
	Ensure(ctx context.Context, domain, releaseID, createdBy string) (*core.Release, error)
	RecordSource(ctx context.Context, domain, releaseID, sourceID string, counts core.Counts) (*core.Release, error)
}

// Indexer receives finished index entries for a release.
type Indexer interface {
	Upsert(ctx context.Context, entries []*core.IndexEntry) error
}

// Pipeline runs a source through the staged transformation: distill,
// classify, canonicalize, chunk, embed, index. Stages are deterministic apart
// from embedding, so re-running a source against the same release converges
// on the same artifacts.
type Pipeline struct {
	captures  CaptureSource
	artifacts storage.ArtifactStore
	releases  ReleaseStore
	indexer   Indexer
	embedder  ai.Embedder

	pool      *ants.Pool
	locks     keyedMutex
	maxChunk  int
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for the embedding stage.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithMaxChunkChars overrides the chunk size budget.
// Default is DefaultChunkMaxChars.
func WithMaxChunkChars(n int) Option {
	return func(p *Pipeline) error {
		if n > 0 {
			p.maxChunk = n
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	captures CaptureSource,
	artifacts storage.ArtifactStore,
	releases ReleaseStore,
	indexer Indexer,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if captures == nil {
		return nil, ErrCaptureSourceRequired
	}
	if artifacts == nil {
		return nil, ErrArtifactStoreRequired
	}
	if releases == nil {
		return nil, ErrReleaseStoreRequired
	}
	if indexer == nil {
		return nil, ErrIndexerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		captures:  captures,
		artifacts: artifacts,
		releases:  releases,
		indexer:   indexer,
		embedder:  embedder,
		pool:      pool,
		maxChunk:  DefaultChunkMaxChars,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.pool.Release()
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "pipeline")
	return p, nil
}

// Release frees the pipeline's worker pool.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// RunOptions controls a single-source run.
type RunOptions struct {
	// CreatedBy is recorded on the release if this run creates it.
	CreatedBy string

	// Force admits quarantined and not-ok captures. Integrity failures
	// are always refused.
	Force bool
}

// RunRef resolves a source reference and runs it. Inline raw HTML and path
// references are first stored as captures so the quarantine and integrity
// gates apply to them too. If releaseID is empty a fresh release id is
// minted.
func (p *Pipeline) RunRef(ctx context.Context, domain, releaseID string, ref SourceRef, opts RunOptions) (*core.Release, core.Counts, error) {
	var counts core.Counts
	if err := core.ValidateDomain(domain); err != nil {
		return nil, counts, err
	}
	if err := ref.Validate(); err != nil {
		return nil, counts, err
	}
	if releaseID == "" {
		releaseID = core.NewReleaseID(domain)
	}

	sourceID := ref.ID()
	switch {
	case ref.RawHTML != "":
		if _, err := p.captures.FromFile(ctx, domain, sourceID, "inline.html", []byte(ref.RawHTML)); err != nil {
			return nil, counts, &StageError{Stage: "capture", SourceID: sourceID, Err: err}
		}
	case ref.Path != "":
		filename, data, err := readSourceFile(ref.Path)
		if err != nil {
			return nil, counts, &StageError{Stage: "capture", SourceID: sourceID, Err: err}
		}
		if _, err := p.captures.FromFile(ctx, domain, sourceID, filename, data); err != nil {
			return nil, counts, &StageError{Stage: "capture", SourceID: sourceID, Err: err}
		}
	}
	return p.Run(ctx, domain, releaseID, sourceID, opts)
}

// Run ingests one captured source into a release and returns the updated
// release and the counts this source contributed. Runs against the same
// (domain, release) pair are serialized.
func (p *Pipeline) Run(ctx context.Context, domain, releaseID, sourceID string, opts RunOptions) (*core.Release, core.Counts, error) {
	var counts core.Counts
	if err := core.ValidateScope(domain, releaseID); err != nil {
		return nil, counts, err
	}
	if err := core.ValidateSourceID(sourceID); err != nil {
		return nil, counts, err
	}

	unlock := p.locks.lock(domain + "/" + releaseID)
	defer unlock()

	capture, raw, err := p.captures.VerifiedRaw(ctx, domain, sourceID, opts.Force)
	if err != nil {
		return nil, counts, &StageError{Stage: "capture", SourceID: sourceID, Err: err}
	}

	if _, err := p.releases.Ensure(ctx, domain, releaseID, opts.CreatedBy); err != nil {
		return nil, counts, &StageError{Stage: "release", SourceID: sourceID, Err: err}
	}

	sections := DistillSections(string(raw), domain, capture.ContentHash)
	counts.SectionsTotal = len(sections)

	kept, dropped := FilterInstructional(sections)
	counts.SectionsKept = len(kept)
	p.logger.Info("classified sections",
		"domain", domain, "source_id", sourceID,
		"total", len(sections), "kept", len(kept), "dropped", len(dropped))

	clos := CanonicalizeSections(kept, domain, sourceID, releaseID)
	for _, clo := range clos {
		if err := p.artifacts.PutCanonical(ctx, clo); err != nil {
			return nil, counts, &StageError{Stage: "canonicalize", SourceID: sourceID, Err: err}
		}
	}
	counts.CanonicalObjects = len(clos)

	chunks := ChunkCanonicalObjects(clos, p.maxChunk)
	for _, ch := range chunks {
		if err := p.artifacts.PutChunk(ctx, ch); err != nil {
			return nil, counts, &StageError{Stage: "chunk", SourceID: sourceID, Err: err}
		}
	}
	counts.Chunks = len(chunks)

	vectors, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return nil, counts, &StageError{Stage: "embed", SourceID: sourceID, Err: err}
	}

	info := p.embedder.Info()
	now := time.Now().UTC()
	entries := make([]*core.IndexEntry, 0, len(chunks))
	for i, ch := range chunks {
		emb := &core.Embedding{
			ChunkID:   ch.ChunkID,
			Domain:    domain,
			ReleaseID: releaseID,
			Provider:  info.Provider,
			Model:     info.Model,
			Dimension: len(vectors[i]),
			Vector:    vectors[i],
			CreatedAt: now,
		}
		if err := p.artifacts.PutEmbedding(ctx, emb); err != nil {
			return nil, counts, &StageError{Stage: "embed", SourceID: sourceID, Err: err}
		}
		entries = append(entries, &core.IndexEntry{
			ChunkID:           ch.ChunkID,
			CanonicalObjectID: ch.CanonicalObjectID,
			Domain:            domain,
			ReleaseID:         releaseID,
			Sequence:          ch.Sequence,
			Title:             ch.Title,
			Text:              ch.Text,
			Metadata:          map[string]string{"source_id": sourceID},
			Vector:            vectors[i],
			Provider:          info.Provider,
			Model:             info.Model,
			Dimension:         len(vectors[i]),
			IndexedAt:         now,
		})
	}
	counts.Embeddings = len(entries)

	if err := p.indexer.Upsert(ctx, entries); err != nil {
		return nil, counts, &StageError{Stage: "index", SourceID: sourceID, Err: err}
	}

	release, err := p.releases.RecordSource(ctx, domain, releaseID, sourceID, counts)
	if err != nil {
		return nil, counts, &StageError{Stage: "release", SourceID: sourceID, Err: err}
	}
	p.logger.Info("source ingested",
		"domain", domain, "release_id", releaseID, "source_id", sourceID,
		"chunks", counts.Chunks)
	return release, counts, nil
}

// embedChunks runs the embedding stage on the worker pool, preserving chunk
// order in the returned vectors.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*core.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	if len(chunks) == 0 {
		return vectors, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i, ch := range chunks {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed || ctx.Err() != nil {
				return
			}
			vec, err := p.embedder.EmbedText(ctx, ch.Text)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			vectors[i] = vec
		}
		if err := p.pool.Submit(task); err != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// BatchOptions controls a multi-source run.
type BatchOptions struct {
	CreatedBy string
	Force     bool

	// ContinueOnError keeps processing remaining sources after a failure
	// instead of stopping at the first one.
	ContinueOnError bool
}

// BatchItemResult is the outcome for one source within a batch.
type BatchItemResult struct {
	SourceID string      `json:"source_id"`
	Counts   core.Counts `json:"counts"`
	Err      error       `json:"-"`
	Error    string      `json:"error,omitempty"`
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Counts    core.Counts `json:"counts"`
}

// BatchResult reports a batch run: the release it targeted, per-source
// outcomes in input order, and the aggregate summary.
type BatchResult struct {
	ReleaseID string            `json:"release_id"`
	Release   *core.Release     `json:"release,omitempty"`
	Items     []BatchItemResult `json:"items"`
	Summary   BatchSummary      `json:"summary"`
}

// RunBatch ingests several sources into one release. If releaseID is empty a
// fresh release id is minted for the batch. By default the batch stops at the
// first failing source; the partial result is still returned alongside the
// error so completed sources are not lost.
func (p *Pipeline) RunBatch(ctx context.Context, domain, releaseID string, sourceIDs []string, opts BatchOptions) (*BatchResult, error) {
	if err := core.ValidateDomain(domain); err != nil {
		return nil, err
	}
	if releaseID == "" {
		releaseID = core.NewReleaseID(domain)
	}
	if err := core.ValidateReleaseID(releaseID); err != nil {
		return nil, err
	}

	result := &BatchResult{ReleaseID: releaseID}
	result.Summary.Total = len(sourceIDs)

	var firstErr error
	for _, sourceID := range sourceIDs {
		release, counts, err := p.Run(ctx, domain, releaseID, sourceID, RunOptions{
			CreatedBy: opts.CreatedBy,
			Force:     opts.Force,
		})
		item := BatchItemResult{SourceID: sourceID, Counts: counts}
		if err != nil {
			item.Err = err
			item.Error = err.Error()
			result.Items = append(result.Items, item)
			result.Summary.Failed++
			if firstErr == nil {
				firstErr = err
			}
			if !opts.ContinueOnError {
				break
			}
			continue
		}
		result.Items = append(result.Items, item)
		result.Summary.Succeeded++
		result.Summary.Counts = result.Summary.Counts.Add(counts)
		result.Release = release
	}
	return result, firstErr
}

// keyedMutex serializes work per string key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}
