package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"standards-rag/internal/llmservice"
)

// Reranker applies a second-pass relevance estimate over (query, chunk)
// pairs and reorders the merged candidate set. The scoring model is
// pluggable; ties keep the incoming merge order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []candidate) []candidate
}

// TermOverlapReranker is the default scorer: the fraction of distinct query
// terms present in the chunk, blended with the first-pass score. Cheap,
// deterministic and offline.
type TermOverlapReranker struct {
	// Weight of the overlap estimate against the first-pass score, in
	// [0,1].
	Weight float64
}

func (r *TermOverlapReranker) Rerank(ctx context.Context, query string, candidates []candidate) []candidate {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return candidates
	}
	w := r.Weight
	if w <= 0 || w > 1 {
		w = 0.5
	}
	for i := range candidates {
		content := strings.ToLower(candidates[i].Content)
		matched := 0
		for _, t := range terms {
			if strings.Contains(content, t) {
				matched++
			}
		}
		overlap := float64(matched) / float64(len(terms))
		candidates[i].Combined = (1-w)*candidates[i].Combined + w*overlap
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Combined > candidates[j].Combined
	})
	return candidates
}

var termSplitRe = regexp.MustCompile(`[^\pL\pN]+`)

// queryTerms lowercases and splits a query, dropping short stop-ish tokens.
func queryTerms(query string) []string {
	raw := termSplitRe.Split(strings.ToLower(query), -1)
	var terms []string
	for _, t := range raw {
		if len(t) < 3 {
			continue
		}
		switch t {
		case "the", "and", "for", "what", "how", "which", "does", "are", "with":
			continue
		}
		terms = append(terms, t)
	}
	return terms
}

// LLMReranker scores each (query, chunk) pair with a chat model prompted to
// return a 0–10 relevance grade. Unparseable or failed scores fall back to
// the first-pass score, so a flaky model degrades ordering, never results.
type LLMReranker struct {
	Client *llmservice.Client
}

const rerankPrompt = `Rate how relevant the following passage is to the question on a scale of 0 to 10. Answer with a single number and nothing else.

Question: %s

Passage:
%s
`

func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []candidate) []candidate {
	for i := range candidates {
		reply, err := r.Client.Generate(ctx, fmt.Sprintf(rerankPrompt, query, candidates[i].Content))
		if err != nil {
			log.Warn().Err(err).Str("chunk_id", candidates[i].ChunkID).Msg("llm rerank failed, keeping first-pass score")
			continue
		}
		if grade, ok := parseGrade(reply); ok {
			candidates[i].Combined = grade / 10
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Combined > candidates[j].Combined
	})
	return candidates
}

// parseGrade extracts the leading number from a model reply.
func parseGrade(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
