package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derrickSh43/ingestion/core"
	"github.com/derrickSh43/ingestion/storage"
)

func setupStore(t *testing.T) (*Store, storage.Layout) {
	t.Helper()
	layout := storage.NewLayout(t.TempDir())
	return NewStore(layout), layout
}

func TestStore_CanonicalRoundTrip(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	obj := &core.CanonicalObject{
		ID:     "clo_abc",
		Domain: "golang",
		Title:  "Install",
		Body:   []string{"Run the installer.", "Verify the version."},
		Provenance: core.Provenance{
			SourceID:  "src-1",
			ReleaseID: "rel_1",
		},
	}
	require.NoError(t, store.PutCanonical(ctx, obj))

	got, err := store.ListCanonical(ctx, "golang", "rel_1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, obj, got[0])
}

func TestStore_ListOrderedByID(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	for _, id := range []string{"chk_c", "chk_a", "chk_b"} {
		require.NoError(t, store.PutChunk(ctx, &core.Chunk{
			ChunkID:           id,
			Domain:            "golang",
			ReleaseID:         "rel_1",
			CanonicalObjectID: "clo_x",
			Text:              "text for " + id,
		}))
	}

	chunks, err := store.ListChunks(ctx, "golang", "rel_1")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "chk_a", chunks[0].ChunkID)
	assert.Equal(t, "chk_b", chunks[1].ChunkID)
	assert.Equal(t, "chk_c", chunks[2].ChunkID)
}

func TestStore_PutIsUpsert(t *testing.T) {
	store, layout := setupStore(t)
	ctx := context.Background()

	emb := &core.Embedding{
		ChunkID:   "chk_a",
		Domain:    "golang",
		ReleaseID: "rel_1",
		Provider:  "hash",
		Model:     "sha256-16",
		Dimension: 2,
		Vector:    []float32{0.1, 0.2},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.PutEmbedding(ctx, emb))

	emb2 := *emb
	emb2.Vector = []float32{0.9, 0.8}
	require.NoError(t, store.PutEmbedding(ctx, &emb2))

	got, err := store.ListEmbeddings(ctx, "golang", "rel_1")
	require.NoError(t, err)
	require.Len(t, got, 1, "second put should replace, not accumulate")
	assert.Equal(t, []float32{0.9, 0.8}, got[0].Vector)

	entries, err := os.ReadDir(layout.EmbeddingsDir("golang", "rel_1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_ListMissingRelease(t *testing.T) {
	store, _ := setupStore(t)

	got, err := store.ListCanonical(context.Background(), "golang", "never_ran")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_ScopeValidation(t *testing.T) {
	store, _ := setupStore(t)

	err := store.PutChunk(context.Background(), &core.Chunk{
		ChunkID:   "chk_a",
		Domain:    "../escape",
		ReleaseID: "rel_1",
		Text:      "x",
	})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestStore_CorruptFile(t *testing.T) {
	store, layout := setupStore(t)
	ctx := context.Background()

	dir := layout.ChunksDir("golang", "rel_1")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chk_bad.json"), []byte("{nope"), 0644))

	_, err := store.ListChunks(ctx, "golang", "rel_1")
	assert.ErrorIs(t, err, storage.ErrCorruptRecord)
}
