package models

import (
	"fmt"
	"time"
)

// SourceType identifies where a document was collected from.
type SourceType string

const (
	SourceFile       SourceType = "file"
	SourceURL        SourceType = "url"
	SourceGitHub     SourceType = "github"
	SourceJira       SourceType = "jira"
	SourceConfluence SourceType = "confluence"
)

// ContentType tags a chunk with the kind of content it holds. Each tag maps
// to its own embedding model and vector store partition.
type ContentType string

const (
	ContentTechnicalText     ContentType = "technical-text"
	ContentCodeAPI           ContentType = "code-api"
	ContentRequirementEntity ContentType = "requirement-entity"
	ContentTabularNumeric    ContentType = "tabular-numeric"
)

// AllContentTypes returns the partition tags in their canonical order. The
// order matters: query results are merged partition by partition in this
// order, which is what makes tie-breaking deterministic.
func AllContentTypes() []ContentType {
	return []ContentType{
		ContentTechnicalText,
		ContentCodeAPI,
		ContentRequirementEntity,
		ContentTabularNumeric,
	}
}

// Document is the metadata record for one ingested source document.
type Document struct {
	ID            string
	ContentHash   string // sha256 of the raw source bytes
	ParserVersion string
	SourceType    SourceType
	SourcePath    string
	SourceName    string
	IngestedAt    time.Time
}

// UnitKind classifies a node in the parsed structure tree.
type UnitKind string

const (
	UnitSection   UnitKind = "section"
	UnitHeading   UnitKind = "heading"
	UnitParagraph UnitKind = "paragraph"
	UnitTable     UnitKind = "table"
	UnitCodeBlock UnitKind = "code-block"
)

// StructuralUnit is a node in the document structure tree. Units exist only
// during chunking and are never persisted. A unit's children always tile its
// byte range exactly, so a depth-first walk covers the whole document.
type StructuralUnit struct {
	Kind     UnitKind
	Level    int
	Start    int
	End      int
	Children []*StructuralUnit
}

// Text returns the unit's slice of the source text.
func (u *StructuralUnit) Text(src string) string {
	return src[u.Start:u.End]
}

// Size returns the unit's length in bytes.
func (u *StructuralUnit) Size() int {
	return u.End - u.Start
}

// Chunk is the atomic retrievable unit of document text.
type Chunk struct {
	ID          string
	DocumentID  string
	Seq         int
	Content     string
	Start       int // byte offset into the parsed document text
	End         int
	ContentType ContentType
	ParentKind  UnitKind // kind of the structural unit the chunk came from
	Strategy    string
	Overlap     int // bytes shared with the tail of the previous chunk
}

// ChunkID builds the stable chunk identifier from document id and sequence
// index.
func ChunkID(docID string, seq int) string {
	return fmt.Sprintf("%s:%04d", docID, seq)
}

// EmbeddingRecord is one chunk vector routed to one partition.
type EmbeddingRecord struct {
	ChunkID     string
	DocumentID  string
	ContentType ContentType
	Vector      []float32
	Model       string
	// Degraded marks records embedded with the fallback model after the
	// designated backend failed. They are valid for search but should be
	// recomputed once the backend recovers.
	Degraded bool
}

// TracePath resolves a chunk back to its origin.
type TracePath struct {
	DocumentID string     `json:"document_id"`
	SourceType SourceType `json:"source_type"`
	SourcePath string     `json:"source_path"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	RawHash    string     `json:"raw_hash"`
}

// ScoredChunk is one ranked entry of a retrieval result.
type ScoredChunk struct {
	ChunkID      string      `json:"chunk_id"`
	DocumentID   string      `json:"document_id"`
	Content      string      `json:"content"`
	ContentType  ContentType `json:"content_type"`
	VectorScore  float64     `json:"vector_score"`
	LexicalScore float64     `json:"lexical_score"`
	Score        float64     `json:"score"`
	Rank         int         `json:"rank"`
	// Trace is nil when the owning document was deleted between the index
	// lookup and trace-back. Callers report this as a stale reference.
	Trace *TracePath `json:"trace,omitempty"`
}

// RetrievalResult is the final answer set for one query. It is ephemeral:
// produced per query and never persisted.
type RetrievalResult struct {
	Query            string        `json:"query"`
	Results          []ScoredChunk `json:"results"`
	Reranked         bool          `json:"reranked"`
	Partial          bool          `json:"partial"`
	FailedPartitions []ContentType `json:"failed_partitions,omitempty"`
}
