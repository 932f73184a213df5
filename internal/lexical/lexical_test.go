package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"standards-rag/internal/models"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func seedChunks() []models.Chunk {
	return []models.Chunk{
		{
			ID:          "doc-a:0000",
			DocumentID:  "doc-a",
			Content:     "ASPICE process assessment determines the capability level of software engineering processes.",
			ContentType: models.ContentTechnicalText,
		},
		{
			ID:          "doc-a:0001",
			DocumentID:  "doc-a",
			Content:     "The traceability matrix links requirements to test cases.",
			ContentType: models.ContentTechnicalText,
		},
		{
			ID:          "doc-b:0000",
			DocumentID:  "doc-b",
			Content:     "AUTOSAR CAN driver initialization sequence and controller states.",
			ContentType: models.ContentCodeAPI,
		},
	}
}

func TestSearchFindsKeywordMatch(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.IndexChunks(seedChunks()))

	hits, err := idx.Search("process assessment capability", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "doc-a:0000", hits[0].ChunkID)
	assert.Equal(t, "doc-a", hits[0].DocumentID)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestSearchHonorsTopK(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.IndexChunks(seedChunks()))

	hits, err := idx.Search("the", 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(hits), 1)
}

func TestSearchNoMatch(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.IndexChunks(seedChunks()))

	hits, err := idx.Search("zymurgy", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDeleteChunksRemovesFromIndex(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.IndexChunks(seedChunks()))

	require.NoError(t, idx.DeleteChunks([]string{"doc-b:0000"}))

	hits, err := idx.Search("AUTOSAR driver initialization", 10)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "doc-b:0000", h.ChunkID)
	}
}

func TestReindexReplacesChunk(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.IndexChunks(seedChunks()))

	updated := []models.Chunk{{
		ID:         "doc-a:0001",
		DocumentID: "doc-a",
		Content:    "Hazard analysis and risk assessment per functional safety lifecycle.",
	}}
	require.NoError(t, idx.IndexChunks(updated))

	hits, err := idx.Search("traceability matrix", 10)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "doc-a:0001", h.ChunkID, "old content no longer matches")
	}

	hits, err = idx.Search("hazard analysis", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "doc-a:0001", hits[0].ChunkID)
}
