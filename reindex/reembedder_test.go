package reindex

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derrickSh43/ingestion/ai"
	"github.com/derrickSh43/ingestion/ai/hash"
	"github.com/derrickSh43/ingestion/ai/mock"
	"github.com/derrickSh43/ingestion/core"
	"github.com/derrickSh43/ingestion/release"
	"github.com/derrickSh43/ingestion/storage"
	"github.com/derrickSh43/ingestion/storage/file"
	"github.com/derrickSh43/ingestion/vector"
)

func newFixture(t *testing.T) (storage.ArtifactStore, *release.Manager, *vector.Store) {
	t.Helper()
	layout := storage.NewLayout(t.TempDir())
	artifacts := file.NewStore(layout)
	index := vector.NewStore(layout)
	releases, err := release.NewManager(layout, artifacts, index)
	require.NoError(t, err)
	return artifacts, releases, index
}

func seedSourceRelease(t *testing.T, artifacts storage.ArtifactStore, releases *release.Manager, index *vector.Store, chunkCount int) {
	t.Helper()
	ctx := context.Background()
	_, err := releases.Create(ctx, "docs", "rel-src", "seeder")
	require.NoError(t, err)

	embedder := hash.NewEmbedder(8)
	info := embedder.Info()
	for i := 0; i < chunkCount; i++ {
		chunkID := core.ChunkID("docs", "rel-src", "clo_1", i, "text")
		text := "Chunk body " + chunkID
		vec, err := embedder.EmbedText(ctx, text)
		require.NoError(t, err)

		require.NoError(t, artifacts.PutCanonical(ctx, &core.CanonicalObject{
			ID:     "clo_1",
			Domain: "docs",
			Title:  "Seeded",
			Body:   []string{"Body."},
			Provenance: core.Provenance{
				SourceID:  "src-1",
				ReleaseID: "rel-src",
			},
		}))
		require.NoError(t, artifacts.PutChunk(ctx, &core.Chunk{
			ChunkID:           chunkID,
			Domain:            "docs",
			ReleaseID:         "rel-src",
			CanonicalObjectID: "clo_1",
			Sequence:          i,
			Text:              text,
		}))
		require.NoError(t, index.Upsert(ctx, []*core.IndexEntry{{
			ChunkID:           chunkID,
			CanonicalObjectID: "clo_1",
			Domain:            "docs",
			ReleaseID:         "rel-src",
			Sequence:          i,
			Text:              text,
			Metadata:          map[string]string{"source_id": "src-1"},
			Vector:            vec,
			Provider:          info.Provider,
			Model:             info.Model,
			Dimension:         len(vec),
			IndexedAt:         time.Now().UTC(),
		}}))
	}
}

func TestNewReembedderRequiresDependencies(t *testing.T) {
	artifacts, releases, index := newFixture(t)
	embedder := hash.NewEmbedder(8)

	_, err := NewReembedder(nil, releases, index, embedder)
	assert.ErrorIs(t, err, ErrArtifactStoreRequired)
	_, err = NewReembedder(artifacts, nil, index, embedder)
	assert.ErrorIs(t, err, ErrReleaseStoreRequired)
	_, err = NewReembedder(artifacts, releases, nil, embedder)
	assert.ErrorIs(t, err, ErrIndexRequired)
	_, err = NewReembedder(artifacts, releases, index, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestRunRebuildsWithNewModel(t *testing.T) {
	ctx := context.Background()
	artifacts, releases, index := newFixture(t)
	seedSourceRelease(t, artifacts, releases, index, 5)

	newEmbedder := hash.NewEmbedder(16)
	r, err := NewReembedder(artifacts, releases, index, newEmbedder, WithBatchSize(2))
	require.NoError(t, err)

	result, err := r.Run(ctx, "docs", "rel-src", "rel-new", "admin")
	require.NoError(t, err)
	assert.Equal(t, 5, result.Chunks)
	assert.Equal(t, 3, result.Batches)

	rebuilt, err := index.Load(ctx, "docs", "rel-new")
	require.NoError(t, err)
	require.Len(t, rebuilt, 5)
	for _, e := range rebuilt {
		assert.Equal(t, "rel-new", e.ReleaseID)
		assert.Equal(t, 16, e.Dimension)
		assert.Equal(t, "sha256-16", e.Model)
	}

	// Source release index is untouched.
	src, err := index.Load(ctx, "docs", "rel-src")
	require.NoError(t, err)
	require.Len(t, src, 5)
	assert.Equal(t, 8, src[0].Dimension)

	chunks, err := artifacts.ListChunks(ctx, "docs", "rel-new")
	require.NoError(t, err)
	assert.Len(t, chunks, 5)

	embs, err := artifacts.ListEmbeddings(ctx, "docs", "rel-new")
	require.NoError(t, err)
	assert.Len(t, embs, 5)

	target, err := releases.Get(ctx, "docs", "rel-new")
	require.NoError(t, err)
	assert.Equal(t, core.ReleaseStatusCandidate, target.Status)
	assert.Equal(t, 5, target.Sources["src-1"].Chunks)
}

func TestRunNormalizesVectors(t *testing.T) {
	ctx := context.Background()
	artifacts, releases, index := newFixture(t)
	seedSourceRelease(t, artifacts, releases, index, 1)

	r, err := NewReembedder(artifacts, releases, index, hash.NewEmbedder(8))
	require.NoError(t, err)
	_, err = r.Run(ctx, "docs", "rel-src", "rel-new", "")
	require.NoError(t, err)

	rebuilt, err := index.Load(ctx, "docs", "rel-new")
	require.NoError(t, err)
	require.Len(t, rebuilt, 1)

	var norm float64
	for _, x := range rebuilt[0].Vector {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestRunValidation(t *testing.T) {
	ctx := context.Background()
	artifacts, releases, index := newFixture(t)
	seedSourceRelease(t, artifacts, releases, index, 1)

	r, err := NewReembedder(artifacts, releases, index, hash.NewEmbedder(8))
	require.NoError(t, err)

	_, err = r.Run(ctx, "docs", "rel-src", "rel-src", "")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = r.Run(ctx, "docs", "rel-missing", "rel-new", "")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRunRetriesEmbeddingFailures(t *testing.T) {
	ctx := context.Background()
	artifacts, releases, index := newFixture(t)
	seedSourceRelease(t, artifacts, releases, index, 2)

	calls := 0
	inner := hash.NewEmbedder(8)
	flaky := &mock.MockEmbedder{
		EmbedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("transient embedding failure")
			}
			return inner.EmbedTexts(ctx, texts)
		},
		InfoFunc: func() ai.ModelInfo {
			return inner.Info()
		},
	}

	r, err := NewReembedder(artifacts, releases, index, flaky, WithRetry(3, time.Millisecond))
	require.NoError(t, err)

	result, err := r.Run(ctx, "docs", "rel-src", "rel-new", "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Chunks)
	assert.GreaterOrEqual(t, calls, 2)
}

func TestRunReportsProgress(t *testing.T) {
	ctx := context.Background()
	artifacts, releases, index := newFixture(t)
	seedSourceRelease(t, artifacts, releases, index, 4)

	var buf bytes.Buffer
	r, err := NewReembedder(artifacts, releases, index, hash.NewEmbedder(8),
		WithBatchSize(2), WithProgressWriter(&buf))
	require.NoError(t, err)

	_, err = r.Run(ctx, "docs", "rel-src", "rel-new", "")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "4/4")
}

func TestRunValidationTargetExists(t *testing.T) {
	ctx := context.Background()
	artifacts, releases, index := newFixture(t)
	seedSourceRelease(t, artifacts, releases, index, 1)

	_, err := releases.Create(ctx, "docs", "rel-existing", "")
	require.NoError(t, err)

	r, err := NewReembedder(artifacts, releases, index, hash.NewEmbedder(8))
	require.NoError(t, err)

	_, err = r.Run(ctx, "docs", "rel-src", "rel-existing", "")
	assert.ErrorIs(t, err, core.ErrConflict)
}
