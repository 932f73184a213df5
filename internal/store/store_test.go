package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"standards-rag/internal/config"
	"standards-rag/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Connect(config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	s := New(db)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleDocument(id, hash string) models.Document {
	return models.Document{
		ID:            id,
		ContentHash:   hash,
		ParserVersion: "1.2",
		SourceType:    models.SourceFile,
		SourcePath:    "/docs/aspice.pdf",
		SourceName:    "aspice.pdf",
		IngestedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func sampleChunks(docID string, n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	pos := 0
	for i := range chunks {
		content := "chunk content number " + string(rune('a'+i))
		chunks[i] = models.Chunk{
			ID:          models.ChunkID(docID, i),
			DocumentID:  docID,
			Seq:         i,
			Content:     content,
			Start:       pos,
			End:         pos + len(content),
			ContentType: models.ContentTechnicalText,
			ParentKind:  models.UnitParagraph,
			Strategy:    "structure",
		}
		pos += len(content)
	}
	return chunks
}

func TestInsertAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDocument("doc-a", "hash-1")
	chunks := sampleChunks("doc-a", 3)
	require.NoError(t, s.InsertDocument(ctx, doc, chunks, nil))

	got, err := s.GetDocument(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, doc.ContentHash, got.ContentHash)
	assert.Equal(t, doc.ParserVersion, got.ParserVersion)
	assert.Equal(t, models.SourceFile, got.SourceType)
}

func TestGetDocumentNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetChunkRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := sampleChunks("doc-a", 2)
	chunks[1].Overlap = 4
	require.NoError(t, s.InsertDocument(ctx, sampleDocument("doc-a", "hash-1"), chunks, nil))

	got, err := s.GetChunk(ctx, chunks[1].ID)
	require.NoError(t, err)
	assert.Equal(t, chunks[1].Content, got.Content)
	assert.Equal(t, chunks[1].Start, got.Start)
	assert.Equal(t, chunks[1].End, got.End)
	assert.Equal(t, 4, got.Overlap)
	assert.Equal(t, models.UnitParagraph, got.ParentKind)
}

func TestGetChunkNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetChunk(context.Background(), "doc-a:9999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDocument("doc-a", "hash-1")
	require.NoError(t, s.InsertDocument(ctx, doc, nil, nil))

	got, err := s.FindByHash(ctx, "hash-1", "1.2")
	require.NoError(t, err)
	assert.Equal(t, "doc-a", got.ID)

	// Same bytes under a different parser version are a new document.
	_, err = s.FindByHash(ctx, "hash-1", "1.3")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindByHash(ctx, "other-hash", "1.2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertCarriesEmbeddingMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := sampleChunks("doc-a", 2)
	records := []models.EmbeddingRecord{
		{ChunkID: chunks[0].ID, Model: "code-model", Degraded: false},
		{ChunkID: chunks[1].ID, Model: "general-model", Degraded: true},
	}
	require.NoError(t, s.InsertDocument(ctx, sampleDocument("doc-a", "hash-1"), chunks, records))

	degraded, err := s.DegradedChunks(ctx, "doc-a")
	require.NoError(t, err)
	require.Len(t, degraded, 1)
	assert.Equal(t, chunks[1].ID, degraded[0].ID)
}

func TestDegradedChunksAcrossDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunksA := sampleChunks("doc-a", 1)
	chunksB := sampleChunks("doc-b", 1)
	require.NoError(t, s.InsertDocument(ctx, sampleDocument("doc-a", "hash-a"), chunksA,
		[]models.EmbeddingRecord{{ChunkID: chunksA[0].ID, Model: "general-model", Degraded: true}}))
	require.NoError(t, s.InsertDocument(ctx, sampleDocument("doc-b", "hash-b"), chunksB,
		[]models.EmbeddingRecord{{ChunkID: chunksB[0].ID, Model: "general-model", Degraded: true}}))

	all, err := s.DegradedChunks(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyB, err := s.DegradedChunks(ctx, "doc-b")
	require.NoError(t, err)
	require.Len(t, onlyB, 1)
	assert.Equal(t, "doc-b", onlyB[0].DocumentID)
}

func TestDeleteDocumentReturnsChunkIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := sampleChunks("doc-a", 3)
	require.NoError(t, s.InsertDocument(ctx, sampleDocument("doc-a", "hash-1"), chunks, nil))

	ids, err := s.DeleteDocument(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-a:0000", "doc-a:0001", "doc-a:0002"}, ids)

	_, err = s.GetDocument(ctx, "doc-a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetChunk(ctx, "doc-a:0000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteDocumentMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.DeleteDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteLeavesOtherDocumentsAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDocument(ctx, sampleDocument("doc-a", "hash-a"), sampleChunks("doc-a", 1), nil))
	require.NoError(t, s.InsertDocument(ctx, sampleDocument("doc-b", "hash-b"), sampleChunks("doc-b", 1), nil))

	_, err := s.DeleteDocument(ctx, "doc-a")
	require.NoError(t, err)

	got, err := s.GetDocument(ctx, "doc-b")
	require.NoError(t, err)
	assert.Equal(t, "doc-b", got.ID)
}
