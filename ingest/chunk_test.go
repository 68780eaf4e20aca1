package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derrickSh43/ingestion/core"
)

func testCLO(id string, body ...string) *core.CanonicalObject {
	return &core.CanonicalObject{
		ID:     id,
		Domain: "docs",
		Title:  "Guide",
		Body:   body,
		Provenance: core.Provenance{
			SourceID:  "src-1",
			ReleaseID: "rel-1",
		},
	}
}

func TestChunkCanonicalObjectSingleChunk(t *testing.T) {
	clo := testCLO("clo_1", "First paragraph.", "Second paragraph.")
	chunks := ChunkCanonicalObject(clo, 800)
	require.Len(t, chunks, 1)

	ch := chunks[0]
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", ch.Text)
	assert.Equal(t, 0, ch.Sequence)
	assert.Equal(t, "clo_1", ch.CanonicalObjectID)
	assert.Equal(t, "docs", ch.Domain)
	assert.Equal(t, "rel-1", ch.ReleaseID)
	assert.Equal(t, "Guide", ch.Title)
	assert.True(t, strings.HasPrefix(ch.ChunkID, "chk_"))
}

func TestChunkCanonicalObjectRespectsBudget(t *testing.T) {
	clo := testCLO("clo_1",
		strings.Repeat("alpha ", 10),
		strings.Repeat("beta ", 10),
		strings.Repeat("gamma ", 10),
	)
	chunks := ChunkCanonicalObject(clo, 80)
	require.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 80)
		assert.Equal(t, i, ch.Sequence)
	}
}

func TestChunkSplitsOversizedSentences(t *testing.T) {
	long := strings.Repeat("x", 250)
	chunks := ChunkCanonicalObject(testCLO("clo_1", long), 100)
	require.Len(t, chunks, 3)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 100)
	}
	assert.Equal(t, long, strings.ReplaceAll(strings.Join(chunkTexts(chunks), ""), "\n\n", ""))
}

func TestChunkSplitsOnSentenceBoundaries(t *testing.T) {
	para := "First sentence is here. Second sentence follows on. Third one closes it out."
	chunks := ChunkCanonicalObject(testCLO("clo_1", para), 55)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		for _, part := range strings.Split(ch.Text, "\n\n") {
			assert.True(t, strings.HasSuffix(part, "."), "part %q should end at a sentence boundary", part)
		}
	}
}

func TestChunkIDsAreDeterministic(t *testing.T) {
	clo := testCLO("clo_1", "Some body paragraph for identity checks.")
	a := ChunkCanonicalObject(clo, 800)
	b := ChunkCanonicalObject(clo, 800)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].ChunkID, b[0].ChunkID)
}

func TestChunkCanonicalObjectsOrdersByID(t *testing.T) {
	chunks := ChunkCanonicalObjects([]*core.CanonicalObject{
		testCLO("clo_b", "Paragraph from the second object."),
		testCLO("clo_a", "Paragraph from the first object."),
	}, 800)
	require.Len(t, chunks, 2)
	assert.Equal(t, "clo_a", chunks[0].CanonicalObjectID)
	assert.Equal(t, "clo_b", chunks[1].CanonicalObjectID)
}

func TestChunkEmptyBody(t *testing.T) {
	assert.Empty(t, ChunkCanonicalObject(testCLO("clo_1"), 800))
	assert.Empty(t, ChunkCanonicalObject(testCLO("clo_1", "   "), 800))
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("One. Two! Three? Four")
	assert.Equal(t, []string{"One.", "Two!", "Three?", "Four"}, got)

	got = splitSentences("No terminal punctuation at all")
	assert.Equal(t, []string{"No terminal punctuation at all"}, got)
}

func chunkTexts(chunks []*core.Chunk) []string {
	out := make([]string, len(chunks))
	for i, ch := range chunks {
		out[i] = ch.Text
	}
	return out
}
