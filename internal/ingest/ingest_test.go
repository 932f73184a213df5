package ingest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"standards-rag/internal/chunker"
	"standards-rag/internal/config"
	"standards-rag/internal/embedding"
	"standards-rag/internal/lexical"
	"standards-rag/internal/models"
	"standards-rag/internal/retrieval"
	"standards-rag/internal/store"
	"standards-rag/internal/trace"
	"standards-rag/internal/vectorstore"
)

// wordBackend embeds text as a normalized bag of words hashed into 32
// dimensions, enough for topical ranking without a live model.
type wordBackend struct{}

func (wordBackend) Embed(_ context.Context, _ string, text string) ([]float32, error) {
	vec := make([]float32, 32)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?()[]\"'")
		if len(tok) < 3 {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%32]++
	}
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		vec[0] = 1
		return vec, nil
	}
	n := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Chunking.ChunkSize = 200
	cfg.Chunking.ChunkOverlap = 40
	cfg.Embedding.RetryBackoff = time.Millisecond
	return cfg
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := testConfig()

	db, err := store.Connect(config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	meta := store.New(db)
	require.NoError(t, meta.Init(context.Background()))
	t.Cleanup(func() { _ = meta.Close() })

	vectors, err := vectorstore.New("", true)
	require.NoError(t, err)

	lex, err := lexical.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lex.Close() })

	router := embedding.NewRouter(cfg.Embedding, wordBackend{})
	resolver := trace.NewResolver(meta)
	orch := retrieval.NewOrchestrator(vectors, lex, router, meta, resolver,
		&retrieval.TermOverlapReranker{Weight: 0.5}, cfg.Search)

	return NewService(cfg, meta, vectors, lex, router, orch, resolver)
}

func aspiceSource() Source {
	text := "2. Process Assessment\n" +
		"ASPICE process assessment determines the capability level of software engineering processes. " +
		"Assessors rate each process attribute against the measurement framework.\n\n" +
		"2.1 Capability Levels\n" +
		"Capability levels range from level zero, incomplete, up to level five, innovating. " +
		"Most automotive suppliers target capability level two or three for the VDA scope.\n"
	return Source{
		Raw:        []byte(text),
		SourceType: models.SourceFile,
		SourcePath: "/docs/aspice-guide.md",
		SourceName: "aspice-guide.md",
		Parsed:     text,
	}
}

func autosarSource() Source {
	text := "1. Layered Architecture\n" +
		"AUTOSAR separates application software from basic software through the runtime environment. " +
		"Software components communicate exclusively over ports typed by interfaces.\n"
	return Source{
		Raw:        []byte(text),
		SourceType: models.SourceFile,
		SourcePath: "/docs/autosar-overview.md",
		SourceName: "autosar-overview.md",
		Parsed:     text,
	}
}

func TestIngestEndToEnd(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, aspiceSource(), Options{})
	require.NoError(t, err)
	require.NotEmpty(t, res.DocumentID)
	require.NotEmpty(t, res.Chunks)
	assert.False(t, res.Reingested)
	assert.False(t, res.ParseDegraded)

	text := aspiceSource().Parsed
	for i, c := range res.Chunks {
		assert.Equal(t, models.ChunkID(res.DocumentID, i), c.ID)
		assert.Equal(t, i, c.Seq)
		assert.Equal(t, text[c.Start:c.End], c.Content, "offsets point into the parsed text")
		assert.NotEmpty(t, c.ContentType, "every stored chunk is classified")
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, aspiceSource(), Options{})
	require.NoError(t, err)

	second, err := svc.Ingest(ctx, aspiceSource(), Options{})
	require.NoError(t, err)
	assert.True(t, second.Reingested)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Empty(t, second.Chunks, "no work repeated for identical bytes")
}

func TestIngestDegradedFallsBackToFastStrategy(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// No headings, tables or fences anywhere: structure detection must
	// degrade and the sliding window take over.
	prose := strings.Repeat("plain prose sentences with no recognizable layout at all. ", 10)
	res, err := svc.Ingest(ctx, Source{
		Raw:        []byte(prose),
		SourceType: models.SourceFile,
		SourcePath: "/docs/notes.txt",
		SourceName: "notes.txt",
		Parsed:     prose,
	}, Options{Strategy: chunker.StrategyStructure})
	require.NoError(t, err)

	assert.True(t, res.ParseDegraded)
	require.NotEmpty(t, res.Chunks)
	for _, c := range res.Chunks {
		assert.Equal(t, chunker.StrategyFast, c.Strategy)
	}
}

func TestIngestSurfacesMetadataStoreFailure(t *testing.T) {
	cfg := testConfig()

	db, err := store.Connect(config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	meta := store.New(db)
	require.NoError(t, meta.Init(context.Background()))

	vectors, err := vectorstore.New("", true)
	require.NoError(t, err)
	lex, err := lexical.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lex.Close() })

	router := embedding.NewRouter(cfg.Embedding, wordBackend{})
	resolver := trace.NewResolver(meta)
	orch := retrieval.NewOrchestrator(vectors, lex, router, meta, resolver, nil, cfg.Search)
	svc := NewService(cfg, meta, vectors, lex, router, orch, resolver)

	// A broken store must abort the ingest at the idempotency lookup, not
	// fall through into a fresh ingest as if the document were unseen.
	require.NoError(t, meta.Close())

	_, err = svc.Ingest(context.Background(), aspiceSource(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find by hash")
}

func TestIngestEmptyDocument(t *testing.T) {
	svc := newTestService(t)
	res, err := svc.Ingest(context.Background(), Source{
		Raw:        []byte("   \n\t\n"),
		SourceType: models.SourceFile,
		SourcePath: "/docs/empty.txt",
	}, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.DocumentID)
	assert.Empty(t, res.Chunks)
}

func TestIngestRejectsInvalidParams(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Ingest(context.Background(), aspiceSource(), Options{
		ChunkSize:    100,
		ChunkOverlap: 150,
	})
	assert.ErrorIs(t, err, chunker.ErrInvalidParams)
}

func TestIngestFile(t *testing.T) {
	svc := newTestService(t)

	path := filepath.Join(t.TempDir(), "guide.md")
	require.NoError(t, os.WriteFile(path, []byte(aspiceSource().Parsed), 0o644))

	res, err := svc.IngestFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.DocumentID)
	assert.NotEmpty(t, res.Chunks)
}

func TestQueryReturnsCitedAnswers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	aspice, err := svc.Ingest(ctx, aspiceSource(), Options{})
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, autosarSource(), Options{})
	require.NoError(t, err)

	res, err := svc.Query(ctx, "ASPICE capability level assessment", retrieval.Options{TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)

	top := res.Results[0]
	assert.Equal(t, aspice.DocumentID, top.DocumentID)
	require.NotNil(t, top.Trace)
	assert.Equal(t, "/docs/aspice-guide.md", top.Trace.SourcePath)
	assert.Equal(t, top.Content, aspiceSource().Parsed[top.Trace.Start:top.Trace.End])
}

func TestTraceRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, aspiceSource(), Options{})
	require.NoError(t, err)

	chunk := res.Chunks[0]
	path, err := svc.Trace(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, res.DocumentID, path.DocumentID)
	assert.Equal(t, chunk.Start, path.Start)
	assert.Equal(t, chunk.End, path.End)
}

func TestDeleteDocumentPurgesEverything(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	aspice, err := svc.Ingest(ctx, aspiceSource(), Options{})
	require.NoError(t, err)
	autosar, err := svc.Ingest(ctx, autosarSource(), Options{})
	require.NoError(t, err)

	n, err := svc.DeleteDocument(ctx, aspice.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, len(aspice.Chunks), n)

	_, err = svc.Trace(ctx, aspice.Chunks[0].ID)
	assert.ErrorIs(t, err, trace.ErrNotFound)

	res, err := svc.Query(ctx, "ASPICE capability level assessment", retrieval.Options{})
	require.NoError(t, err)
	for _, r := range res.Results {
		assert.NotEqual(t, aspice.DocumentID, r.DocumentID)
	}

	// The other document is untouched.
	_, err = svc.Trace(ctx, autosar.Chunks[0].ID)
	require.NoError(t, err)
}

func TestDeleteDocumentMissing(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.DeleteDocument(context.Background(), "missing-id")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
