package trace

import (
	"context"
	"errors"
	"fmt"

	"standards-rag/internal/models"
	"standards-rag/internal/store"
)

// ErrNotFound signals a stale chunk reference: the owning document was
// deleted after the chunk surfaced from an index. The data is genuinely
// gone, so this is reported to the caller, never retried.
var ErrNotFound = errors.New("trace: not found")

// Resolver joins a chunk id back to its originating document, offset range
// and raw-source hash. Pure lookup against the metadata store.
type Resolver struct {
	store *store.Store
}

func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

func (r *Resolver) Resolve(ctx context.Context, chunkID string) (models.TracePath, error) {
	chunk, err := r.store.GetChunk(ctx, chunkID)
	if errors.Is(err, store.ErrNotFound) {
		return models.TracePath{}, fmt.Errorf("%w: chunk %s", ErrNotFound, chunkID)
	}
	if err != nil {
		return models.TracePath{}, err
	}
	doc, err := r.store.GetDocument(ctx, chunk.DocumentID)
	if errors.Is(err, store.ErrNotFound) {
		return models.TracePath{}, fmt.Errorf("%w: document %s for chunk %s", ErrNotFound, chunk.DocumentID, chunkID)
	}
	if err != nil {
		return models.TracePath{}, err
	}
	return models.TracePath{
		DocumentID: doc.ID,
		SourceType: doc.SourceType,
		SourcePath: doc.SourcePath,
		Start:      chunk.Start,
		End:        chunk.End,
		RawHash:    doc.ContentHash,
	}, nil
}
