package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"standards-rag/internal/chunker"
	"standards-rag/internal/config"
	"standards-rag/internal/embedding"
	"standards-rag/internal/helper"
	"standards-rag/internal/lexical"
	"standards-rag/internal/models"
	"standards-rag/internal/parser"
	"standards-rag/internal/retrieval"
	"standards-rag/internal/store"
	"standards-rag/internal/structure"
	"standards-rag/internal/trace"
	"standards-rag/internal/vectorstore"
)

// Source is one document handed over by a collaborator: raw bytes plus
// where they came from. Connector fetchers normalize their payloads into
// this shape before calling Ingest.
type Source struct {
	Raw        []byte
	SourceType models.SourceType
	SourcePath string
	SourceName string
	// Parsed is the extracted text when the collaborator already parsed
	// the payload (URL fetch, GitHub/Jira/Confluence). Empty for files,
	// which are parsed here.
	Parsed string
}

// Options tunes one ingestion run. Zero values fall back to configuration.
type Options struct {
	Strategy     string
	ChunkSize    int
	ChunkOverlap int
}

// Result reports one completed ingestion.
type Result struct {
	DocumentID    string
	Chunks        []models.Chunk
	Reingested    bool // document was already indexed, nothing changed
	ParseDegraded bool // structure detection failed, fixed-size fallback applied
}

// Service wires the ingestion and query pipelines: parse → structure →
// chunk → classify/embed → store. It is the surface consumed by the
// external API layer; all operations are stateless and keyed by explicit
// ids.
type Service struct {
	cfg          *config.Config
	meta         *store.Store
	vectors      *vectorstore.Store
	lex          *lexical.Index
	router       *embedding.Router
	engine       *chunker.Engine
	structParser *structure.Parser
	resolver     *trace.Resolver
	orchestrator *retrieval.Orchestrator
}

func NewService(
	cfg *config.Config,
	meta *store.Store,
	vectors *vectorstore.Store,
	lex *lexical.Index,
	router *embedding.Router,
	orchestrator *retrieval.Orchestrator,
	resolver *trace.Resolver,
) *Service {
	return &Service{
		cfg:          cfg,
		meta:         meta,
		vectors:      vectors,
		lex:          lex,
		router:       router,
		engine:       chunker.NewEngine(),
		structParser: structure.NewParser(),
		resolver:     resolver,
		orchestrator: orchestrator,
	}
}

// IngestFile parses and ingests a local file.
func (s *Service) IngestFile(ctx context.Context, filePath string, opts Options) (*Result, error) {
	raw, err := readRaw(filePath)
	if err != nil {
		return nil, err
	}
	parsed, err := parser.ExtractFile(filePath)
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, Source{
		Raw:        raw,
		SourceType: models.SourceFile,
		SourcePath: filePath,
		SourceName: parsed.SourceName,
		Parsed:     parsed.Text,
	}, opts)
}

// Ingest runs the full pipeline for one source document. Re-ingesting
// identical raw bytes under the same parser version is a no-op.
func (s *Service) Ingest(ctx context.Context, src Source, opts Options) (*Result, error) {
	params := s.params(opts)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(src.Raw)
	hash := hex.EncodeToString(sum[:])
	existing, err := s.meta.FindByHash(ctx, hash, parser.Version)
	switch {
	case err == nil:
		log.Info().
			Str("document_id", existing.ID).
			Str("source", src.SourcePath).
			Msg("document already ingested, skipping")
		return &Result{DocumentID: existing.ID, Reingested: true}, nil
	case !errors.Is(err, store.ErrNotFound):
		// A storage failure is not "never seen": re-ingesting here would
		// duplicate the document as soon as the store recovers.
		return nil, err
	}

	text := src.Parsed
	if text == "" {
		text = string(src.Raw)
	}

	root, degraded := s.structParser.Parse(text)
	if degraded && params.Strategy == chunker.StrategyStructure {
		// No structural boundaries to respect; the fixed window is both
		// correct and faster here.
		params.Strategy = chunker.StrategyFast
	}

	docID, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	chunks, err := s.engine.Chunk(docID, text, root, params)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		log.Info().Str("source", src.SourcePath).Msg("empty document, nothing to index")
		return &Result{DocumentID: "", ParseDegraded: degraded}, nil
	}

	chunks, records, err := s.router.EmbedAll(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("ingest: embed %s: %w", src.SourcePath, err)
	}

	doc := models.Document{
		ID:            docID,
		ContentHash:   hash,
		ParserVersion: parser.Version,
		SourceType:    src.SourceType,
		SourcePath:    src.SourcePath,
		SourceName:    src.SourceName,
		IngestedAt:    time.Now().UTC(),
	}
	if err := s.meta.InsertDocument(ctx, doc, chunks, records); err != nil {
		return nil, err
	}
	if err := s.vectors.Upsert(ctx, chunks, records); err != nil {
		return nil, err
	}
	if err := s.lex.IndexChunks(chunks); err != nil {
		return nil, err
	}

	log.Info().
		Str("document_id", docID).
		Str("source", src.SourcePath).
		Str("strategy", params.Strategy).
		Int("chunks", len(chunks)).
		Msg("ingested document")
	return &Result{DocumentID: docID, Chunks: chunks, ParseDegraded: degraded}, nil
}

// Query answers a question with a ranked, cited chunk list.
func (s *Service) Query(ctx context.Context, question string, opts retrieval.Options) (*models.RetrievalResult, error) {
	return s.orchestrator.Query(ctx, question, opts)
}

// Trace resolves a chunk id to its provenance record.
func (s *Service) Trace(ctx context.Context, chunkID string) (models.TracePath, error) {
	return s.resolver.Resolve(ctx, chunkID)
}

// DeleteDocument removes a document and everything derived from it:
// metadata rows, vectors in every partition and lexical entries. Returns
// the number of removed chunks.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	chunkIDs, err := s.meta.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if err := s.vectors.DeleteDocument(ctx, documentID); err != nil {
		return 0, err
	}
	if err := s.lex.DeleteChunks(chunkIDs); err != nil {
		return 0, err
	}
	log.Info().Str("document_id", documentID).Int("chunks", len(chunkIDs)).Msg("deleted document")
	return len(chunkIDs), nil
}

func (s *Service) params(opts Options) chunker.Params {
	p := chunker.Params{
		Strategy:     opts.Strategy,
		ChunkSize:    opts.ChunkSize,
		ChunkOverlap: opts.ChunkOverlap,
	}
	if p.Strategy == "" {
		p.Strategy = s.cfg.Chunking.Strategy
	}
	if p.ChunkSize == 0 {
		p.ChunkSize = s.cfg.Chunking.ChunkSize
	}
	if p.ChunkOverlap == 0 && opts.ChunkSize == 0 {
		p.ChunkOverlap = s.cfg.Chunking.ChunkOverlap
	}
	return p
}

func readRaw(filePath string) ([]byte, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", filePath, err)
	}
	return raw, nil
}
