package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"standards-rag/internal/config"
	"standards-rag/internal/embedding"
	"standards-rag/internal/helper"
	"standards-rag/internal/ingest"
	"standards-rag/internal/lexical"
	"standards-rag/internal/llmservice"
	"standards-rag/internal/retrieval"
	"standards-rag/internal/store"
	"standards-rag/internal/trace"
	"standards-rag/internal/vectorstore"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	_ = godotenv.Load()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to a document file to ingest")
	query := flag.String("query", "", "Question to answer from the index")
	traceID := flag.String("trace", "", "Chunk id to trace back to its source")
	deleteID := flag.String("delete", "", "Document id to delete with all derived chunks")
	strategy := flag.String("strategy", "", "Chunking strategy override: structure or fast")
	topK := flag.Int("top-k", 0, "Number of results to return")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatal().Err(err).Msg("Error loading config")
		}
		cfg = config.Default()
	}

	ctx := context.Background()
	svc, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error wiring services")
	}
	defer cleanup()

	switch {
	case *filePath != "":
		result, err := svc.IngestFile(ctx, *filePath, ingest.Options{Strategy: *strategy})
		if err != nil {
			log.Fatal().Err(err).Msg("Error ingesting document")
		}
		if result.Reingested {
			log.Info().Str("document_id", result.DocumentID).Msg("Document already indexed")
			return
		}
		log.Info().Str("document_id", result.DocumentID).Int("chunks", len(result.Chunks)).Msg("Document ingested")
	case *query != "":
		result, err := svc.Query(ctx, *query, retrieval.Options{TopK: *topK})
		if err != nil {
			log.Fatal().Err(err).Msg("Error answering query")
		}
		helper.PrettyPrint(result)
	case *traceID != "":
		tp, err := svc.Trace(ctx, *traceID)
		if err != nil {
			log.Fatal().Err(err).Msg("Error tracing chunk")
		}
		helper.PrettyPrint(tp)
	case *deleteID != "":
		count, err := svc.DeleteDocument(ctx, *deleteID)
		if err != nil {
			log.Fatal().Err(err).Msg("Error deleting document")
		}
		log.Info().Str("document_id", *deleteID).Int("chunks", count).Msg("Document deleted")
	default:
		log.Fatal().Msg("Provide one of -file, -query, -trace or -delete")
	}
}

func buildService(ctx context.Context, cfg *config.Config) (*ingest.Service, func(), error) {
	db, err := store.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	meta := store.New(db)
	if err := meta.Init(ctx); err != nil {
		return nil, nil, err
	}

	vectors, err := vectorstore.New(cfg.VectorDB.Path, cfg.VectorDB.InMemory)
	if err != nil {
		return nil, nil, err
	}

	lexPath := cfg.Lexical.Path
	if cfg.Lexical.InMemory {
		lexPath = ""
	}
	lex, err := lexical.New(lexPath)
	if err != nil {
		return nil, nil, err
	}

	router := embedding.NewRouter(cfg.Embedding, embedding.NewLangchainBackend(cfg.Embedding))
	resolver := trace.NewResolver(meta)

	var reranker retrieval.Reranker
	switch cfg.Reranker.Mode {
	case "none":
	case "llm":
		client, err := llmservice.NewClient(cfg.Reranker.LLMBaseURL, cfg.Reranker.LLMKey, cfg.Reranker.LLMModel)
		if err != nil {
			return nil, nil, err
		}
		reranker = &retrieval.LLMReranker{Client: client}
	default:
		reranker = &retrieval.TermOverlapReranker{Weight: cfg.Reranker.Weight}
	}

	orchestrator := retrieval.NewOrchestrator(vectors, lex, router, meta, resolver, reranker, cfg.Search)
	svc := ingest.NewService(cfg, meta, vectors, lex, router, orchestrator, resolver)

	cleanup := func() {
		if err := lex.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing lexical index")
		}
		if err := meta.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing metadata store")
		}
	}
	return svc, cleanup, nil
}
