package vector

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derrickSh43/ingestion/core"
	"github.com/derrickSh43/ingestion/storage"
)

func entry(chunkID string, vec []float32) *core.IndexEntry {
	return &core.IndexEntry{
		ChunkID:           chunkID,
		CanonicalObjectID: "clo_1",
		Domain:            "docs",
		ReleaseID:         "rel-1",
		Text:              "text for " + chunkID,
		Metadata:          map[string]string{"source_id": "src-1"},
		Vector:            vec,
		Provider:          "hash",
		Model:             "sha256-3",
		Dimension:         len(vec),
		IndexedAt:         time.Now().UTC(),
	}
}

func newTestStore(t *testing.T) (*Store, storage.Layout) {
	t.Helper()
	layout := storage.NewLayout(t.TempDir())
	return NewStore(layout), layout
}

func TestUpsertAndLoad(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, []*core.IndexEntry{
		entry("chk_b", []float32{0, 1, 0}),
		entry("chk_a", []float32{1, 0, 0}),
	}))

	snapshot, err := s.Load(ctx, "docs", "rel-1")
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	assert.Equal(t, "chk_a", snapshot[0].ChunkID)
	assert.Equal(t, "chk_b", snapshot[1].ChunkID)
}

func TestLoadFoldsLatestWins(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	old := entry("chk_a", []float32{1, 0, 0})
	old.Text = "old text"
	require.NoError(t, s.Upsert(ctx, []*core.IndexEntry{old}))

	updated := entry("chk_a", []float32{0, 0, 1})
	updated.Text = "new text"
	require.NoError(t, s.Upsert(ctx, []*core.IndexEntry{updated}))

	snapshot, err := s.Load(ctx, "docs", "rel-1")
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "new text", snapshot[0].Text)
	assert.Equal(t, []float32{0, 0, 1}, snapshot[0].Vector)
}

func TestLoadMissingIndex(t *testing.T) {
	s, _ := newTestStore(t)
	snapshot, err := s.Load(context.Background(), "docs", "rel-none")
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestUpsertValidatesEntries(t *testing.T) {
	s, _ := newTestStore(t)
	bad := entry("chk_a", []float32{1, 0, 0})
	bad.Text = ""
	err := s.Upsert(context.Background(), []*core.IndexEntry{bad})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestCompactRewritesLog(t *testing.T) {
	ctx := context.Background()
	s, layout := newTestStore(t)

	for i := 0; i < 3; i++ {
		e := entry("chk_a", []float32{1, 0, 0})
		e.Text = fmt.Sprintf("version %d", i)
		require.NoError(t, s.Upsert(ctx, []*core.IndexEntry{e}))
	}
	require.NoError(t, s.Upsert(ctx, []*core.IndexEntry{entry("chk_b", []float32{0, 1, 0})}))

	kept, err := s.Compact(ctx, "docs", "rel-1")
	require.NoError(t, err)
	assert.Equal(t, 2, kept)

	lines, err := storage.ReadLines(layout.VectorIndexFile("docs", "rel-1"))
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	snapshot, err := s.Load(ctx, "docs", "rel-1")
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	assert.Equal(t, "version 2", snapshot[0].Text)
}

func TestQueryRanksByCosine(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, []*core.IndexEntry{
		entry("chk_far", []float32{0, 1, 0}),
		entry("chk_near", []float32{1, 0.1, 0}),
		entry("chk_exact", []float32{1, 0, 0}),
	}))

	results, err := s.Query(ctx, "docs", "rel-1", []float32{1, 0, 0}, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "chk_exact", results[0].Entry.ChunkID)
	assert.Equal(t, "chk_near", results[1].Entry.ChunkID)
	assert.Equal(t, "chk_far", results[2].Entry.ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.0, results[2].Score, 1e-6)
}

func TestQueryTiebreaksOnChunkID(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, []*core.IndexEntry{
		entry("chk_z", []float32{1, 0, 0}),
		entry("chk_a", []float32{1, 0, 0}),
	}))

	results, err := s.Query(ctx, "docs", "rel-1", []float32{1, 0, 0}, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "chk_a", results[0].Entry.ChunkID)
	assert.Equal(t, "chk_z", results[1].Entry.ChunkID)
}

func TestQueryTopKClamped(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	var entries []*core.IndexEntry
	for i := 0; i < 60; i++ {
		entries = append(entries, entry(fmt.Sprintf("chk_%03d", i), []float32{1, 0, 0}))
	}
	require.NoError(t, s.Upsert(ctx, entries))

	results, err := s.Query(ctx, "docs", "rel-1", []float32{1, 0, 0}, nil, 1000)
	require.NoError(t, err)
	assert.Len(t, results, MaxTopK)

	results, err = s.Query(ctx, "docs", "rel-1", []float32{1, 0, 0}, nil, 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultTopK)
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	a := entry("chk_a", []float32{1, 0, 0})
	b := entry("chk_b", []float32{1, 0, 0})
	b.Metadata = map[string]string{"source_id": "src-2"}
	require.NoError(t, s.Upsert(ctx, []*core.IndexEntry{a, b}))

	results, err := s.Query(ctx, "docs", "rel-1", []float32{1, 0, 0}, map[string]string{"source_id": "src-2"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chk_b", results[0].Entry.ChunkID)

	results, err = s.Query(ctx, "docs", "rel-1", []float32{1, 0, 0}, map[string]string{"canonical_object_id": "clo_1"}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = s.Query(ctx, "docs", "rel-1", []float32{1, 0, 0}, map[string]string{"source_id": "nope"}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Blank filter values are ignored.
	results, err = s.Query(ctx, "docs", "rel-1", []float32{1, 0, 0}, map[string]string{"source_id": "  "}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestQueryDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, []*core.IndexEntry{entry("chk_a", []float32{1, 0, 0})}))

	_, err := s.Query(ctx, "docs", "rel-1", []float32{1, 0}, nil, 10)
	require.Error(t, err)
	var dimErr *core.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Got)
	assert.Equal(t, 3, dimErr.Want)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestQueryEmptyIndex(t *testing.T) {
	s, _ := newTestStore(t)
	results, err := s.Query(context.Background(), "docs", "rel-1", []float32{1, 0}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{1, 2}), 1e-6)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, cosine([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Zero(t, cosine([]float32{1, 0}, []float32{1}))
	assert.Zero(t, cosine(nil, []float32{1}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestUpsertAppendsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	layout := storage.NewLayout(t.TempDir())

	s1 := NewStore(layout)
	require.NoError(t, s1.Upsert(ctx, []*core.IndexEntry{entry("chk_a", []float32{1, 0, 0})}))

	s2 := NewStore(layout)
	require.NoError(t, s2.Upsert(ctx, []*core.IndexEntry{entry("chk_b", []float32{0, 1, 0})}))

	snapshot, err := s2.Load(ctx, "docs", "rel-1")
	require.NoError(t, err)
	assert.Len(t, snapshot, 2)

	info, err := os.Stat(layout.VectorIndexFile("docs", "rel-1"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
