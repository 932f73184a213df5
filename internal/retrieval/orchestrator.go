package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"standards-rag/internal/config"
	"standards-rag/internal/embedding"
	"standards-rag/internal/lexical"
	"standards-rag/internal/models"
	"standards-rag/internal/store"
	"standards-rag/internal/trace"
	"standards-rag/internal/vectorstore"
)

// State tracks a query through its lifecycle. RESOLVED and FAILED are
// terminal.
type State string

const (
	StateReceived           State = "RECEIVED"
	StateEmbedded           State = "EMBEDDED"
	StateCandidatesGathered State = "CANDIDATES_GATHERED"
	StateReranked           State = "RERANKED"
	StateResolved           State = "RESOLVED"
	StateFailed             State = "FAILED"
)

// ErrAllPartitionsFailed is returned when neither a vector partition nor
// the lexical pass produced candidates to rank.
var ErrAllPartitionsFailed = errors.New("retrieval: all search backends failed")

// candidate accumulates the per-leg scores of one chunk during merging.
type candidate struct {
	ChunkID     string
	DocumentID  string
	Content     string
	ContentType models.ContentType
	Vector      float64
	Lexical     float64
	Combined    float64
}

// Options tunes a single query. Zero values fall back to configuration.
type Options struct {
	TopK          int
	VectorWeight  float64
	LexicalWeight float64
}

// Orchestrator turns a question into a ranked, traceable chunk list: the
// question is embedded once per partition with that partition's model, the
// partitions and the lexical index are searched concurrently under a
// timeout budget, candidates are hybrid-merged and reranked, and survivors
// get provenance attached.
type Orchestrator struct {
	vectors  *vectorstore.Store
	lex      *lexical.Index
	router   *embedding.Router
	meta     *store.Store
	resolver *trace.Resolver
	reranker Reranker
	cfg      config.SearchConfig
}

func NewOrchestrator(
	vectors *vectorstore.Store,
	lex *lexical.Index,
	router *embedding.Router,
	meta *store.Store,
	resolver *trace.Resolver,
	reranker Reranker,
	cfg config.SearchConfig,
) *Orchestrator {
	return &Orchestrator{
		vectors:  vectors,
		lex:      lex,
		router:   router,
		meta:     meta,
		resolver: resolver,
		reranker: reranker,
		cfg:      cfg,
	}
}

// partitionOut is one search leg's outcome. A lexical leg carries an empty
// content type.
type partitionOut struct {
	partition models.ContentType
	vector    []vectorstore.Candidate
	lexical   []lexical.Hit
	err       error
}

// Query runs the full retrieval state machine for one question.
func (o *Orchestrator) Query(ctx context.Context, question string, opts Options) (*models.RetrievalResult, error) {
	state := StateReceived
	logState := func(next State) {
		log.Debug().Str("from", string(state)).Str("to", string(next)).Str("query", question).Msg("query state")
		state = next
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = o.cfg.TopK
	}
	wv, wl := normalizeWeights(opts.VectorWeight, opts.LexicalWeight, o.cfg)

	partitions := models.AllContentTypes()
	out := make(chan partitionOut, len(partitions)+1)

	for _, ct := range partitions {
		go func(ct models.ContentType) {
			vec, err := o.router.EmbedQuery(ctx, ct, question)
			if err != nil {
				out <- partitionOut{partition: ct, err: err}
				return
			}
			cands, err := o.vectors.Search(ctx, ct, vec, topK)
			out <- partitionOut{partition: ct, vector: cands, err: err}
		}(ct)
	}
	go func() {
		hits, err := o.lex.Search(question, topK)
		out <- partitionOut{lexical: hits, err: err}
	}()
	logState(StateEmbedded)

	// Wait for all legs up to the timeout budget. A timeout stops the
	// waiting only; in-flight backend calls are left to finish on their
	// own and their results are dropped.
	byPartition := map[models.ContentType][]vectorstore.Candidate{}
	var lexHits []lexical.Hit
	lexDone := false
	var failed []models.ContentType
	partial := false

	timeout := time.After(o.cfg.PartitionTimeout)
	pending := len(partitions) + 1
collect:
	for pending > 0 {
		select {
		case r := <-out:
			pending--
			switch {
			case r.partition == "" && r.err != nil:
				log.Warn().Err(r.err).Msg("lexical search failed, proceeding without keyword results")
				partial = true
			case r.partition == "":
				lexHits = r.lexical
				lexDone = true
			case r.err != nil:
				log.Warn().Err(r.err).Str("partition", string(r.partition)).Msg("partition search failed, proceeding without it")
				failed = append(failed, r.partition)
				partial = true
			default:
				byPartition[r.partition] = r.vector
			}
		case <-timeout:
			for _, ct := range partitions {
				if _, ok := byPartition[ct]; !ok && !contains(failed, ct) {
					failed = append(failed, ct)
				}
			}
			partial = true
			log.Warn().Int("pending", pending).Msg("partition search timeout, using partial results")
			break collect
		}
	}

	if len(byPartition) == 0 && !lexDone {
		logState(StateFailed)
		return nil, ErrAllPartitionsFailed
	}

	merged := o.merge(ctx, partitions, byPartition, lexHits, wv, wl)
	logState(StateCandidatesGathered)

	reranked := false
	if o.reranker != nil {
		merged = o.reranker.Rerank(ctx, question, merged)
		reranked = true
	}
	if len(merged) > topK {
		merged = merged[:topK]
	}
	logState(StateReranked)

	results := make([]models.ScoredChunk, 0, len(merged))
	for i, c := range merged {
		sc := models.ScoredChunk{
			ChunkID:      c.ChunkID,
			DocumentID:   c.DocumentID,
			Content:      c.Content,
			ContentType:  c.ContentType,
			VectorScore:  c.Vector,
			LexicalScore: c.Lexical,
			Score:        c.Combined,
			Rank:         i + 1,
		}
		tp, err := o.resolver.Resolve(ctx, c.ChunkID)
		switch {
		case errors.Is(err, trace.ErrNotFound):
			// Deleted between index lookup and trace-back; reported as a
			// stale reference, not retried.
			log.Warn().Str("chunk_id", c.ChunkID).Msg("trace-back hit stale chunk reference")
		case err != nil:
			logState(StateFailed)
			return nil, fmt.Errorf("retrieval: trace-back: %w", err)
		default:
			sc.Trace = &tp
		}
		results = append(results, sc)
	}
	logState(StateResolved)

	return &models.RetrievalResult{
		Query:            question,
		Results:          results,
		Reranked:         reranked,
		Partial:          partial,
		FailedPartitions: failed,
	}, nil
}

// merge combines vector candidates (partition by partition, in canonical
// order) with normalized lexical hits, deduplicating by chunk id. On a
// duplicate the better per-leg scores are kept, so the combined score never
// drops below either leg's. Insertion order is vector-first and is
// preserved by the stable sort, which makes equal-score ordering
// deterministic.
func (o *Orchestrator) merge(
	ctx context.Context,
	partitions []models.ContentType,
	byPartition map[models.ContentType][]vectorstore.Candidate,
	lexHits []lexical.Hit,
	wv, wl float64,
) []candidate {
	var merged []candidate
	index := map[string]int{}

	for _, ct := range partitions {
		for _, c := range byPartition[ct] {
			if j, ok := index[c.ChunkID]; ok {
				if c.Score > merged[j].Vector {
					merged[j].Vector = c.Score
				}
				continue
			}
			index[c.ChunkID] = len(merged)
			merged = append(merged, candidate{
				ChunkID:     c.ChunkID,
				DocumentID:  c.DocumentID,
				Content:     c.Content,
				ContentType: c.ContentType,
				Vector:      c.Score,
			})
		}
	}

	var lexMax float64
	for _, h := range lexHits {
		if h.Score > lexMax {
			lexMax = h.Score
		}
	}
	for _, h := range lexHits {
		score := 0.0
		if lexMax > 0 {
			score = h.Score / lexMax
		}
		if j, ok := index[h.ChunkID]; ok {
			if score > merged[j].Lexical {
				merged[j].Lexical = score
			}
			continue
		}
		// Keyword-only hit: the chunk text lives in the metadata store.
		chunk, err := o.meta.GetChunk(ctx, h.ChunkID)
		if err != nil {
			continue
		}
		index[h.ChunkID] = len(merged)
		merged = append(merged, candidate{
			ChunkID:     h.ChunkID,
			DocumentID:  h.DocumentID,
			Content:     chunk.Content,
			ContentType: chunk.ContentType,
			Lexical:     score,
		})
	}

	for i := range merged {
		merged[i].Combined = wv*merged[i].Vector + wl*merged[i].Lexical
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Combined > merged[j].Combined
	})
	return merged
}

func normalizeWeights(wv, wl float64, cfg config.SearchConfig) (float64, float64) {
	if wv == 0 && wl == 0 {
		wv, wl = cfg.VectorWeight, cfg.LexicalWeight
	}
	total := wv + wl
	if total == 0 {
		return 1, 0
	}
	return wv / total, wl / total
}

func contains(cts []models.ContentType, ct models.ContentType) bool {
	for _, c := range cts {
		if c == ct {
			return true
		}
	}
	return false
}
