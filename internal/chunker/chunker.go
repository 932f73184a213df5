package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"standards-rag/internal/models"
)

// ErrInvalidParams signals a configuration error rejected before any
// processing begins.
var ErrInvalidParams = errors.New("chunker: invalid params")

// ErrUnknownStrategy is returned when no registered strategy matches the
// requested name.
var ErrUnknownStrategy = errors.New("chunker: unknown strategy")

const (
	StrategyStructure = "structure"
	StrategyFast      = "fast"
)

// Params selects the strategy and sizing for one chunking run.
type Params struct {
	Strategy     string
	ChunkSize    int
	ChunkOverlap int
}

func (p Params) Validate() error {
	if p.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be > 0, got %d", ErrInvalidParams, p.ChunkSize)
	}
	if p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalidParams, p.ChunkOverlap)
	}
	return nil
}

// segment is a half-open byte range scheduled to become one chunk. A carry
// segment continues a split within the same structural unit: it starts
// exactly at the previous segment's end and receives up to ChunkOverlap
// bytes of the previous chunk's tail as context.
type segment struct {
	start, end int
	carry      bool
	parent     models.UnitKind
}

// Strategy turns a document into an ordered run of segments that tile the
// text. Strategies are pure: the same input always yields the same
// boundaries, which is what makes re-chunking reproducible.
type Strategy interface {
	Name() string
	segments(text string, root *models.StructuralUnit, p Params) []segment
}

// Engine applies a selected strategy to a document and materializes the
// ordered chunk sequence with overlap and offsets.
type Engine struct {
	strategies map[string]Strategy
}

func NewEngine() *Engine {
	e := &Engine{strategies: map[string]Strategy{}}
	e.Register(&StructureStrategy{})
	e.Register(&FastStrategy{})
	return e
}

func (e *Engine) Register(s Strategy) {
	e.strategies[s.Name()] = s
}

// Chunk segments a document into ordered chunks. An empty document yields
// zero chunks; a document shorter than ChunkSize yields exactly one chunk
// with no overlap. Chunk start offsets are monotonically non-decreasing and
// adjacent chunks share at most ChunkOverlap bytes, byte-identical between
// the tail of one and the head of the next.
func (e *Engine) Chunk(docID, text string, root *models.StructuralUnit, p Params) ([]models.Chunk, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	strategy, ok := e.strategies[p.Strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, p.Strategy)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	segs := strategy.segments(text, root, p)
	chunks := make([]models.Chunk, 0, len(segs))
	for i, seg := range segs {
		start := seg.start
		overlap := 0
		if seg.carry && i > 0 {
			prev := chunks[i-1]
			overlap = p.ChunkOverlap
			if max := prev.End - prev.Start; overlap > max {
				overlap = max
			}
			start = seg.start - overlap
		}
		chunks = append(chunks, models.Chunk{
			ID:         models.ChunkID(docID, i),
			DocumentID: docID,
			Seq:        i,
			Content:    text[start:seg.end],
			Start:      start,
			End:        seg.end,
			ParentKind: seg.parent,
			Strategy:   strategy.Name(),
			Overlap:    overlap,
		})
	}
	log.Debug().
		Str("document_id", docID).
		Str("strategy", strategy.Name()).
		Int("chunks", len(chunks)).
		Msg("chunked document")
	return chunks, nil
}
