package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"standards-rag/internal/config"
	"standards-rag/internal/models"
)

// ErrBackendUnavailable wraps embedding backend failures that survived the
// retry and the fallback model. A chunk is never silently dropped: this
// error aborts the ingestion so the caller can retry it whole.
var ErrBackendUnavailable = errors.New("embedding: backend unavailable")

// Router classifies chunks by content type and routes each to its
// designated embedding model. The tag-to-model mapping is configuration; a
// failing backend is retried once with backoff, then the default model
// takes over and the record is marked degraded for later recompute.
type Router struct {
	cfg     config.EmbeddingConfig
	backend Backend
}

func NewRouter(cfg config.EmbeddingConfig, backend Backend) *Router {
	return &Router{cfg: cfg, backend: backend}
}

// Embed produces the embedding record for one already-classified chunk.
func (r *Router) Embed(ctx context.Context, chunk models.Chunk) (models.EmbeddingRecord, error) {
	model := r.cfg.ModelFor(chunk.ContentType)
	vec, err := r.embedWithRetry(ctx, model, chunk.Content)
	degraded := false
	if err != nil && model != r.cfg.DefaultModel {
		log.Warn().Err(err).
			Str("chunk_id", chunk.ID).
			Str("model", model).
			Msg("routed embedding backend unavailable, falling back to default model")
		vec, err = r.embedWithRetry(ctx, r.cfg.DefaultModel, chunk.Content)
		if err == nil {
			model = r.cfg.DefaultModel
			degraded = true
		}
	}
	if err != nil {
		return models.EmbeddingRecord{}, fmt.Errorf("%w: chunk %s: %v", ErrBackendUnavailable, chunk.ID, err)
	}
	return models.EmbeddingRecord{
		ChunkID:     chunk.ID,
		DocumentID:  chunk.DocumentID,
		ContentType: chunk.ContentType,
		Vector:      vec,
		Model:       model,
		Degraded:    degraded,
	}, nil
}

// EmbedQuery embeds a query text with the model that embedded the given
// partition's corpus. There is no fallback here: a vector from another
// model's space would make the partition return near-noise, so an
// unavailable routed model fails the query for that partition instead and
// the caller proceeds with the remaining partitions.
func (r *Router) EmbedQuery(ctx context.Context, ct models.ContentType, text string) ([]float32, error) {
	model := r.cfg.ModelFor(ct)
	vec, err := r.embedWithRetry(ctx, model, text)
	if err != nil {
		return nil, fmt.Errorf("%w: query for partition %s: %v", ErrBackendUnavailable, ct, err)
	}
	return vec, nil
}

// EmbedAll classifies and embeds a chunk run. Embedding calls are issued
// from a bounded worker pool to hide backend latency; results are returned
// in chunk order regardless of completion order. The returned chunks carry
// their assigned content types.
func (r *Router) EmbedAll(ctx context.Context, chunks []models.Chunk) ([]models.Chunk, []models.EmbeddingRecord, error) {
	if len(chunks) == 0 {
		return chunks, nil, nil
	}
	tagged := make([]models.Chunk, len(chunks))
	for i, c := range chunks {
		if c.ContentType == "" {
			c.ContentType = Classify(c)
		}
		tagged[i] = c
	}

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(tagged) {
		workers = len(tagged)
	}

	records := make([]models.EmbeddingRecord, len(tagged))
	errs := make([]error, len(tagged))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				records[i], errs[i] = r.Embed(ctx, tagged[i])
			}
		}()
	}
	for i := range tagged {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}
	return tagged, records, nil
}

func (r *Router) embedWithRetry(ctx context.Context, model, text string) ([]float32, error) {
	vec, err := r.backend.Embed(ctx, model, text)
	if err == nil {
		return vec, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.backoff()):
	}
	return r.backend.Embed(ctx, model, text)
}

func (r *Router) backoff() time.Duration {
	if r.cfg.RetryBackoff > 0 {
		return r.cfg.RetryBackoff
	}
	return 500 * time.Millisecond
}
