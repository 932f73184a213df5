package lexical

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"standards-rag/internal/models"
)

// Index is the keyword leg of hybrid search: a bleve full-text index over
// chunk content, keyed by chunk id.
type Index struct {
	idx bleve.Index
}

// chunkDoc is the indexed shape of a chunk.
type chunkDoc struct {
	Content     string `json:"content"`
	DocumentID  string `json:"document_id"`
	ContentType string `json:"content_type"`
}

// Hit is one keyword match. Score is bleve's unbounded relevance score; the
// retriever normalizes per query before merging with vector scores.
type Hit struct {
	ChunkID    string
	DocumentID string
	Score      float64
}

// New opens the index at dir, creating it when absent. An empty dir opens a
// memory-only index for tests and ephemeral runs.
func New(dir string) (*Index, error) {
	if dir == "" {
		idx, err := bleve.NewMemOnly(buildMapping())
		if err != nil {
			return nil, fmt.Errorf("lexical: create in-memory index: %w", err)
		}
		return &Index{idx: idx}, nil
	}
	if _, err := os.Stat(dir); err == nil {
		idx, err := bleve.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("lexical: open index: %w", err)
		}
		return &Index{idx: idx}, nil
	}
	idx, err := bleve.New(dir, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("lexical: create index: %w", err)
	}
	return &Index{idx: idx}, nil
}

func buildMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "content"

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	contentField.Index = true
	docMapping.AddFieldMappingsAt("content", contentField)

	docIDField := bleve.NewTextFieldMapping()
	docIDField.Store = true
	docIDField.Index = true
	docIDField.Analyzer = "keyword"
	docMapping.AddFieldMappingsAt("document_id", docIDField)

	typeField := bleve.NewTextFieldMapping()
	typeField.Store = true
	typeField.Index = true
	typeField.Analyzer = "keyword"
	docMapping.AddFieldMappingsAt("content_type", typeField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// IndexChunks adds a chunk run in one batch.
func (i *Index) IndexChunks(chunks []models.Chunk) error {
	batch := i.idx.NewBatch()
	for _, c := range chunks {
		doc := chunkDoc{
			Content:     c.Content,
			DocumentID:  c.DocumentID,
			ContentType: string(c.ContentType),
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("lexical: batch chunk %s: %w", c.ID, err)
		}
	}
	if err := i.idx.Batch(batch); err != nil {
		return fmt.Errorf("lexical: index batch: %w", err)
	}
	return nil
}

// Search runs a keyword match query over chunk content.
func (i *Index) Search(query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}
	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequestOptions(matchQuery, topK, 0, false)
	req.Fields = []string{"document_id"}

	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical: search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		docID, _ := h.Fields["document_id"].(string)
		hits = append(hits, Hit{ChunkID: h.ID, DocumentID: docID, Score: h.Score})
	}
	return hits, nil
}

// DeleteChunks removes chunk entries by id, used when a document is
// deleted.
func (i *Index) DeleteChunks(chunkIDs []string) error {
	batch := i.idx.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}
	if err := i.idx.Batch(batch); err != nil {
		return fmt.Errorf("lexical: delete batch: %w", err)
	}
	return nil
}

func (i *Index) Close() error {
	return i.idx.Close()
}
