package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"standards-rag/internal/models"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Search    SearchConfig    `yaml:"search"`
	VectorDB  VectorDBConfig  `yaml:"vector_db"`
	Lexical   LexicalConfig   `yaml:"lexical"`
	Reranker  RerankerConfig  `yaml:"reranker"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "postgres"
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "openai" or "ollama"
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	// DefaultModel is the general-purpose fallback used when a routed
	// backend stays unavailable after the retry.
	DefaultModel string `yaml:"default_model"`
	// Models maps a content-type tag to its designated embedding model.
	// New content types are added here, not in code.
	Models       map[string]string `yaml:"models"`
	Workers      int               `yaml:"workers"`
	RetryBackoff time.Duration     `yaml:"retry_backoff"`
}

type ChunkingConfig struct {
	Strategy     string `yaml:"strategy"` // "structure" or "fast"
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

type SearchConfig struct {
	TopK             int           `yaml:"top_k"`
	VectorWeight     float64       `yaml:"vector_weight"`
	LexicalWeight    float64       `yaml:"lexical_weight"`
	PartitionTimeout time.Duration `yaml:"partition_timeout"`
}

type VectorDBConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type LexicalConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type RerankerConfig struct {
	// Mode selects the second-pass scorer: "term-overlap", "llm" or "none".
	Mode       string  `yaml:"mode"`
	Weight     float64 `yaml:"weight"`
	LLMModel   string  `yaml:"llm_model"`
	LLMBaseURL string  `yaml:"llm_base_url"`
	LLMKey     string  `yaml:"llm_key"`
}

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultTopK         = 10
	defaultWorkers      = 4
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with all defaults applied, used when no config
// file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Chunking.Strategy == "" {
		c.Chunking.Strategy = "structure"
	}
	if c.Chunking.ChunkSize == 0 {
		c.Chunking.ChunkSize = defaultChunkSize
	}
	if c.Chunking.ChunkOverlap == 0 && c.Chunking.ChunkSize > defaultChunkOverlap {
		c.Chunking.ChunkOverlap = defaultChunkOverlap
	}
	if c.Search.TopK == 0 {
		c.Search.TopK = defaultTopK
	}
	if c.Search.VectorWeight == 0 && c.Search.LexicalWeight == 0 {
		c.Search.VectorWeight = 0.7
		c.Search.LexicalWeight = 0.3
	}
	if c.Search.PartitionTimeout == 0 {
		c.Search.PartitionTimeout = 5 * time.Second
	}
	if c.Embedding.Workers == 0 {
		c.Embedding.Workers = defaultWorkers
	}
	if c.Embedding.RetryBackoff == 0 {
		c.Embedding.RetryBackoff = 500 * time.Millisecond
	}
	if c.Embedding.DefaultModel == "" {
		c.Embedding.DefaultModel = "nomic-embed-text"
	}
	if c.Embedding.Models == nil {
		c.Embedding.Models = map[string]string{}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
		c.Database.DSN = "file:standards-rag.db"
	}
	if c.Reranker.Mode == "" {
		c.Reranker.Mode = "term-overlap"
	}
	if c.Reranker.Weight == 0 {
		c.Reranker.Weight = 0.5
	}
}

func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk_size must be > 0, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("config: chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// ModelFor returns the embedding model routed to a content type, falling
// back to the default model for unmapped types.
func (c *EmbeddingConfig) ModelFor(ct models.ContentType) string {
	if m, ok := c.Models[string(ct)]; ok && m != "" {
		return m
	}
	return c.DefaultModel
}
