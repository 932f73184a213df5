package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"standards-rag/internal/config"
)

// Backend turns text into a vector with a specific embedding model. The
// router drives one backend per document corpus; tests substitute fakes.
type Backend interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// LangchainBackend embeds through langchaingo, one lazily built embedder
// per model id, against an OpenAI-compatible or Ollama endpoint.
type LangchainBackend struct {
	cfg config.EmbeddingConfig

	mu        sync.Mutex
	embedders map[string]*embeddings.EmbedderImpl
}

func NewLangchainBackend(cfg config.EmbeddingConfig) *LangchainBackend {
	return &LangchainBackend{cfg: cfg, embedders: map[string]*embeddings.EmbedderImpl{}}
}

func (b *LangchainBackend) Embed(ctx context.Context, model, text string) ([]float32, error) {
	embedder, err := b.embedderFor(model)
	if err != nil {
		return nil, err
	}
	return embedder.EmbedQuery(ctx, text)
}

func (b *LangchainBackend) embedderFor(model string) (*embeddings.EmbedderImpl, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.embedders[model]; ok {
		return e, nil
	}

	var llm embeddings.EmbedderClient
	var err error
	switch b.cfg.Provider {
	case "ollama":
		llm, err = ollama.New(
			ollama.WithServerURL(b.cfg.BaseURL),
			ollama.WithModel(model),
		)
	case "openai":
		llm, err = openai.New(
			openai.WithBaseURL(b.cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(b.cfg.APIKey, "Bearer ")),
			openai.WithModel(model),
			openai.WithEmbeddingModel(model),
		)
	default:
		return nil, fmt.Errorf("embedding: unsupported provider %q", b.cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("embedding: init %s client for %s: %w", b.cfg.Provider, model, err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("embedding: create embedder for %s: %w", model, err)
	}
	b.embedders[model] = embedder
	return embedder, nil
}
