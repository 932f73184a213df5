package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"standards-rag/internal/models"
)

// ErrNotFound is returned for lookups of documents or chunks that do not
// exist, including those deleted by a concurrent request.
var ErrNotFound = errors.New("store: not found")

// DocumentRow is the persisted metadata for one ingested document.
type DocumentRow struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID            string    `bun:"id,pk"`
	ContentHash   string    `bun:"content_hash,notnull"`
	ParserVersion string    `bun:"parser_version,notnull"`
	SourceType    string    `bun:"source_type,notnull"`
	SourcePath    string    `bun:"source_path,notnull"`
	SourceName    string    `bun:"source_name"`
	IngestedAt    time.Time `bun:"ingested_at,notnull"`
}

// ChunkRow is the persisted metadata for one chunk. Rows are immutable:
// re-chunking deletes and recreates, never updates in place.
type ChunkRow struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ID          string `bun:"id,pk"`
	DocumentID  string `bun:"document_id,notnull"`
	Seq         int    `bun:"seq,notnull"`
	Content     string `bun:"content,notnull"`
	StartOffset int    `bun:"start_offset,notnull"`
	EndOffset   int    `bun:"end_offset,notnull"`
	ContentType string `bun:"content_type,notnull"`
	ParentKind  string `bun:"parent_kind"`
	Strategy    string `bun:"strategy,notnull"`
	Overlap     int    `bun:"overlap,notnull"`
	Model       string `bun:"model"`
	Degraded    bool   `bun:"degraded"`
}

// Store persists document and chunk metadata. It is the source of truth for
// trace-back: the vector and lexical indexes are caches keyed by chunk id.
type Store struct {
	db *bun.DB
}

func New(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*DocumentRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("store: create documents table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*ChunkRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("store: create chunks table: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// FindByHash looks up a document by raw content hash and parser version,
// the key for idempotent re-ingestion.
func (s *Store) FindByHash(ctx context.Context, hash, parserVersion string) (*models.Document, error) {
	var row DocumentRow
	err := s.db.NewSelect().Model(&row).
		Where("content_hash = ?", hash).
		Where("parser_version = ?", parserVersion).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find by hash: %w", err)
	}
	doc := row.toModel()
	return &doc, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var row DocumentRow
	err := s.db.NewSelect().Model(&row).Where("d.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document: %w", err)
	}
	doc := row.toModel()
	return &doc, nil
}

func (s *Store) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	var row ChunkRow
	err := s.db.NewSelect().Model(&row).Where("c.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get chunk: %w", err)
	}
	chunk := row.toModel()
	return &chunk, nil
}

// InsertDocument stores a document and its chunk metadata in one
// transaction.
func (s *Store) InsertDocument(ctx context.Context, doc models.Document, chunks []models.Chunk, records []models.EmbeddingRecord) error {
	byChunk := make(map[string]models.EmbeddingRecord, len(records))
	for _, rec := range records {
		byChunk[rec.ChunkID] = rec
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		docRow := documentRow(doc)
		if _, err := tx.NewInsert().Model(&docRow).Exec(ctx); err != nil {
			return fmt.Errorf("store: insert document: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}
		rows := make([]ChunkRow, len(chunks))
		for i, c := range chunks {
			rows[i] = chunkRow(c)
			if rec, ok := byChunk[c.ID]; ok {
				rows[i].Model = rec.Model
				rows[i].Degraded = rec.Degraded
			}
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("store: insert chunks: %w", err)
		}
		return nil
	})
}

// DeleteDocument removes a document and all its chunk rows, returning the
// ids of the removed chunks so the caller can invalidate the indexes.
func (s *Store) DeleteDocument(ctx context.Context, id string) ([]string, error) {
	var chunkIDs []string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model((*ChunkRow)(nil)).
			Column("id").
			Where("document_id = ?", id).
			Order("seq ASC").
			Scan(ctx, &chunkIDs); err != nil {
			return fmt.Errorf("store: list chunk ids: %w", err)
		}
		res, err := tx.NewDelete().Model((*DocumentRow)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return fmt.Errorf("store: delete document: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if _, err := tx.NewDelete().Model((*ChunkRow)(nil)).Where("document_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("store: delete chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunkIDs, nil
}

// DegradedChunks lists chunks embedded with the fallback model, the queue
// for recompute once the routed backend recovers.
func (s *Store) DegradedChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	var rows []ChunkRow
	q := s.db.NewSelect().Model(&rows).Where("degraded = ?", true).Order("document_id ASC", "seq ASC")
	if documentID != "" {
		q = q.Where("document_id = ?", documentID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("store: list degraded chunks: %w", err)
	}
	chunks := make([]models.Chunk, len(rows))
	for i, row := range rows {
		chunks[i] = row.toModel()
	}
	return chunks, nil
}

func documentRow(d models.Document) DocumentRow {
	return DocumentRow{
		ID:            d.ID,
		ContentHash:   d.ContentHash,
		ParserVersion: d.ParserVersion,
		SourceType:    string(d.SourceType),
		SourcePath:    d.SourcePath,
		SourceName:    d.SourceName,
		IngestedAt:    d.IngestedAt,
	}
}

func (r DocumentRow) toModel() models.Document {
	return models.Document{
		ID:            r.ID,
		ContentHash:   r.ContentHash,
		ParserVersion: r.ParserVersion,
		SourceType:    models.SourceType(r.SourceType),
		SourcePath:    r.SourcePath,
		SourceName:    r.SourceName,
		IngestedAt:    r.IngestedAt,
	}
}

func chunkRow(c models.Chunk) ChunkRow {
	return ChunkRow{
		ID:          c.ID,
		DocumentID:  c.DocumentID,
		Seq:         c.Seq,
		Content:     c.Content,
		StartOffset: c.Start,
		EndOffset:   c.End,
		ContentType: string(c.ContentType),
		ParentKind:  string(c.ParentKind),
		Strategy:    c.Strategy,
		Overlap:     c.Overlap,
	}
}

func (r ChunkRow) toModel() models.Chunk {
	return models.Chunk{
		ID:          r.ID,
		DocumentID:  r.DocumentID,
		Seq:         r.Seq,
		Content:     r.Content,
		Start:       r.StartOffset,
		End:         r.EndOffset,
		ContentType: models.ContentType(r.ContentType),
		ParentKind:  models.UnitKind(r.ParentKind),
		Strategy:    r.Strategy,
		Overlap:     r.Overlap,
	}
}
