package release

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derrickSh43/ingestion/core"
	"github.com/derrickSh43/ingestion/storage"
)

func seedRelease(t *testing.T, m *Manager, artifacts storage.ArtifactStore, index *memIndex, releaseID string, chunkIDs ...string) {
	t.Helper()
	ctx := context.Background()
	_, err := m.Create(ctx, "docs", releaseID, "seeder")
	require.NoError(t, err)

	cloID := "clo_" + releaseID
	require.NoError(t, artifacts.PutCanonical(ctx, &core.CanonicalObject{
		ID:     cloID,
		Domain: "docs",
		Title:  "Seeded",
		Body:   []string{"Body paragraph."},
		Provenance: core.Provenance{
			SourceID:  "src-1",
			ReleaseID: releaseID,
		},
	}))

	var entries []*core.IndexEntry
	for seq, chunkID := range chunkIDs {
		// Text differs per source release so dedup precedence is observable.
		text := "Text for " + chunkID + " from " + releaseID
		require.NoError(t, artifacts.PutChunk(ctx, &core.Chunk{
			ChunkID:           chunkID,
			Domain:            "docs",
			ReleaseID:         releaseID,
			CanonicalObjectID: cloID,
			Sequence:          seq,
			Text:              text,
		}))
		require.NoError(t, artifacts.PutEmbedding(ctx, &core.Embedding{
			ChunkID:   chunkID,
			Domain:    "docs",
			ReleaseID: releaseID,
			Provider:  "hash",
			Model:     "sha256-4",
			Dimension: 4,
			Vector:    []float32{1, 0, 0, 0},
			CreatedAt: time.Now().UTC(),
		}))
		entries = append(entries, &core.IndexEntry{
			ChunkID:           chunkID,
			CanonicalObjectID: cloID,
			Domain:            "docs",
			ReleaseID:         releaseID,
			Sequence:          seq,
			Text:              text,
			Vector:            []float32{1, 0, 0, 0},
			Provider:          "hash",
			Model:             "sha256-4",
			Dimension:         4,
		})
	}
	require.NoError(t, index.Upsert(ctx, entries))
}

func TestMergeDeduplicatesChunks(t *testing.T) {
	ctx := context.Background()
	m, artifacts, index := newTestManager(t)

	seedRelease(t, m, artifacts, index, "rel-a", "chk_1", "chk_2", "chk_shared")
	seedRelease(t, m, artifacts, index, "rel-b", "chk_3", "chk_shared")

	result, err := m.Merge(ctx, "docs", "rel-merged", []string{"rel-a", "rel-b"}, "admin")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 3, result.PerRelease["rel-a"].Chunks)
	assert.Equal(t, 1, result.PerRelease["rel-b"].Chunks)
	assert.Equal(t, "merge", result.Release.Mode)
	assert.Equal(t, []string{"rel-a", "rel-b"}, result.Release.SourceReleaseIDs)
	assert.Equal(t, core.ReleaseStatusCandidate, result.Release.Status)

	chunks, err := artifacts.ListChunks(ctx, "docs", "rel-merged")
	require.NoError(t, err)
	assert.Len(t, chunks, 4)
	for _, ch := range chunks {
		assert.Equal(t, "rel-merged", ch.ReleaseID)
	}

	// The colliding chunk keeps the copy from the earliest listed source.
	var shared *core.Chunk
	for _, ch := range chunks {
		if ch.ChunkID == "chk_shared" {
			shared = ch
		}
	}
	require.NotNil(t, shared)
	assert.Equal(t, "Text for chk_shared from rel-a", shared.Text)
	assert.Equal(t, 2, shared.Sequence)

	embs, err := artifacts.ListEmbeddings(ctx, "docs", "rel-merged")
	require.NoError(t, err)
	assert.Len(t, embs, 4)

	merged, err := index.Load(ctx, "docs", "rel-merged")
	require.NoError(t, err)
	assert.Len(t, merged, 4)
	for _, e := range merged {
		assert.Equal(t, "rel-merged", e.ReleaseID)
		if e.ChunkID == "chk_shared" {
			assert.Equal(t, "Text for chk_shared from rel-a", e.Text)
		}
	}

	stored, err := m.Get(ctx, "docs", "rel-merged")
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Totals().Chunks)
}

func TestMergeValidation(t *testing.T) {
	ctx := context.Background()
	m, artifacts, index := newTestManager(t)

	seedRelease(t, m, artifacts, index, "rel-a", "chk_1")
	seedRelease(t, m, artifacts, index, "rel-b", "chk_2")

	_, err := m.Merge(ctx, "docs", "rel-merged", []string{"rel-a"}, "")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = m.Merge(ctx, "docs", "rel-merged", []string{"rel-a", "rel-a"}, "")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = m.Merge(ctx, "docs", "rel-a", []string{"rel-a", "rel-b"}, "")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = m.Merge(ctx, "docs", "rel-merged", []string{"rel-a", "rel-missing"}, "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = m.Merge(ctx, "docs", "rel-b", []string{"rel-a", "rel-c"}, "")
	assert.Error(t, err)
}

func TestMergeTargetMustNotExist(t *testing.T) {
	ctx := context.Background()
	m, artifacts, index := newTestManager(t)

	seedRelease(t, m, artifacts, index, "rel-a", "chk_1")
	seedRelease(t, m, artifacts, index, "rel-b", "chk_2")
	seedRelease(t, m, artifacts, index, "rel-c", "chk_3")

	_, err := m.Merge(ctx, "docs", "rel-c", []string{"rel-a", "rel-b"}, "")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestMergeManySources(t *testing.T) {
	ctx := context.Background()
	m, artifacts, index := newTestManager(t)

	var sources []string
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("rel-%d", i)
		seedRelease(t, m, artifacts, index, id, fmt.Sprintf("chk_%d", i))
		sources = append(sources, id)
	}

	result, err := m.Merge(ctx, "docs", "rel-merged", sources, "")
	require.NoError(t, err)
	assert.Zero(t, result.Duplicates)

	chunks, err := artifacts.ListChunks(ctx, "docs", "rel-merged")
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
}
