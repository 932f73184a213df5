package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"standards-rag/internal/models"
)

// Store maintains one chromem collection per content-type partition.
// Different content types cluster differently in embedding space; keeping
// them apart stops dense technical-text vectors from drowning out sparse
// tabular and code vectors in a single ranking, and lets each partition be
// searched with its own top_k.
type Store struct {
	db         *chromem.DB
	partitions map[models.ContentType]*chromem.Collection
}

// Candidate is one nearest-neighbor hit from a partition search.
type Candidate struct {
	ChunkID     string
	DocumentID  string
	Content     string
	ContentType models.ContentType
	Score       float64 // cosine similarity in [0,1] for normalized vectors
}

// New opens the partitioned store, persistent under path or fully
// in-memory.
func New(path string, inMemory bool) (*Store, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: open persistent db: %w", err)
		}
	}

	s := &Store{db: db, partitions: map[models.ContentType]*chromem.Collection{}}
	for _, ct := range models.AllContentTypes() {
		c, err := db.GetOrCreateCollection("partition-"+string(ct), nil, nil)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: create partition %s: %w", ct, err)
		}
		s.partitions[ct] = c
	}
	return s, nil
}

// Upsert stores embedding records in their partitions. Chunk text rides
// along as document content so search hits are self-contained. One record
// per (chunk, partition): re-adding a chunk id replaces the previous entry.
func (s *Store) Upsert(ctx context.Context, chunks []models.Chunk, records []models.EmbeddingRecord) error {
	byPartition := map[models.ContentType][]chromem.Document{}
	content := make(map[string]models.Chunk, len(chunks))
	for _, c := range chunks {
		content[c.ID] = c
	}
	for _, rec := range records {
		chunk, ok := content[rec.ChunkID]
		if !ok {
			return fmt.Errorf("vectorstore: embedding record %s has no chunk", rec.ChunkID)
		}
		byPartition[rec.ContentType] = append(byPartition[rec.ContentType], chromem.Document{
			ID:        rec.ChunkID,
			Content:   chunk.Content,
			Embedding: rec.Vector,
			Metadata: map[string]string{
				"document_id":  rec.DocumentID,
				"content_type": string(rec.ContentType),
				"model":        rec.Model,
				"degraded":     strconv.FormatBool(rec.Degraded),
				"start":        strconv.Itoa(chunk.Start),
				"end":          strconv.Itoa(chunk.End),
			},
		})
	}

	for ct, docs := range byPartition {
		c, ok := s.partitions[ct]
		if !ok {
			return fmt.Errorf("vectorstore: no partition for content type %s", ct)
		}
		if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("vectorstore: upsert partition %s: %w", ct, err)
		}
	}
	return nil
}

// Search runs nearest-neighbor search on one partition. topK is clamped to
// the partition size; an empty partition yields no candidates.
func (s *Store) Search(ctx context.Context, ct models.ContentType, vector []float32, topK int) ([]Candidate, error) {
	c, ok := s.partitions[ct]
	if !ok {
		return nil, fmt.Errorf("vectorstore: no partition for content type %s", ct)
	}
	if n := c.Count(); n < topK {
		topK = n
	}
	if topK <= 0 {
		return nil, nil
	}

	results, err := c.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       topK,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search partition %s: %w", ct, err)
	}

	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, Candidate{
			ChunkID:     r.ID,
			DocumentID:  r.Metadata["document_id"],
			Content:     r.Content,
			ContentType: ct,
			Score:       float64(r.Similarity),
		})
	}
	return candidates, nil
}

// DeleteDocument removes every record belonging to a document across all
// partitions. The store is an index, not the owner: the document's metadata
// rows drive the actual lifecycle.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	for ct, c := range s.partitions {
		if c.Count() == 0 {
			continue
		}
		if err := c.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
			return fmt.Errorf("vectorstore: delete from partition %s: %w", ct, err)
		}
	}
	log.Debug().Str("document_id", documentID).Msg("deleted document vectors")
	return nil
}
