package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sentinel-zero/sentinel/agent"
	"github.com/sentinel-zero/sentinel/config"
	"github.com/sentinel-zero/sentinel/log"
	"github.com/sentinel-zero/sentinel/rag"
	"github.com/sentinel-zero/sentinel/rag/embedding"
	"github.com/sentinel-zero/sentinel/rag/generator"
	"github.com/sentinel-zero/sentinel/rag/inference"
	"github.com/sentinel-zero/sentinel/rag/ingest"
	"github.com/sentinel-zero/sentinel/rag/retriever"
	"github.com/sentinel-zero/sentinel/rag/router"
	ragstore "github.com/sentinel-zero/sentinel/rag/store"
	"github.com/sentinel-zero/sentinel/store"
	"github.com/sentinel-zero/sentinel/store/memory"
	"github.com/sentinel-zero/sentinel/store/postgres"
	"github.com/sentinel-zero/sentinel/store/redis"
	"github.com/sentinel-zero/sentinel/store/sqlite"
)

// Runner answers one request. *agent.Agent satisfies it.
type Runner interface {
	Run(ctx context.Context, req rag.Request) (rag.Response, error)
}

// vectorBackend is what every knowledge store offers.
type vectorBackend interface {
	rag.VectorStore
	rag.SchemaManager
	rag.ChunkWriter
	rag.Resetter
}

func newLogger(cfg *config.Config, out io.Writer) (log.Logger, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, rag.NewConfigurationError("log", err)
	}
	l, err := log.New(cfg.Log.Backend, level, out)
	if err != nil {
		return nil, rag.NewConfigurationError("log", err)
	}
	return l, nil
}

func openVectorStore(ctx context.Context, cfg *config.Config) (vectorBackend, func(), error) {
	switch cfg.Store.Backend {
	case "falkordb":
		s, err := ragstore.NewFalkorDBStore(cfg.Store.FalkorDBURL())
		if err != nil {
			return nil, nil, rag.NewConfigurationError("store.falkordb", err)
		}
		return s, func() { s.Close() }, nil
	case "pgvector":
		s, err := ragstore.NewPGVectorStore(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, rag.NewConfigurationError("store.pgvector", err)
		}
		return s, s.Close, nil
	case "memory":
		return ragstore.NewInMemoryVectorStore(), func() {}, nil
	default:
		return nil, nil, rag.NewConfigurationError("store", fmt.Errorf("unknown backend %q", cfg.Store.Backend))
	}
}

func openHistory(ctx context.Context, cfg *config.Config) (store.HistoryStore, error) {
	switch cfg.History.Backend {
	case "memory":
		return memory.NewMemoryHistoryStore(), nil
	case "redis":
		return redis.NewRedisHistoryStore(redis.RedisOptions{
			Addr: cfg.History.RedisAddr,
			TTL:  cfg.History.TTL,
		}), nil
	case "sqlite":
		return sqlite.NewSqliteHistoryStore(sqlite.SqliteOptions{Path: cfg.History.SqlitePath})
	case "postgres":
		return postgres.NewPostgresHistoryStore(ctx, postgres.PostgresOptions{ConnString: cfg.Store.DatabaseURL})
	default:
		return nil, rag.NewConfigurationError("history", fmt.Errorf("unknown backend %q", cfg.History.Backend))
	}
}

func newEmbedder(cfg *config.Config) (rag.Embedder, error) {
	e, err := embedding.OpenAICompatible(cfg.Embedding.BaseURL, cfg.GeminiAPIKey, cfg.Embedding.Model,
		cfg.Embedding.Dimension, cfg.Embedding.BatchSize)
	if err != nil {
		return nil, rag.NewConfigurationError("embedding", err)
	}
	return e, nil
}

func newModel(m config.ModelConfig, token string) (rag.InferenceProvider, error) {
	p, err := inference.OpenAICompatible(m.BaseURL, token, m.Model,
		inference.WithTemperature(m.Temperature),
		inference.WithMaxTokens(m.MaxTokens))
	if err != nil {
		return nil, rag.NewConfigurationError("inference", err)
	}
	return p, nil
}

func newAgent(cfg *config.Config, embedder rag.Embedder, vs rag.VectorStore, logger log.Logger) (*agent.Agent, error) {
	routerModel, err := newModel(cfg.Router, cfg.GroqAPIKey)
	if err != nil {
		return nil, err
	}
	generatorModel, err := newModel(cfg.Generator, cfg.GroqAPIKey)
	if err != nil {
		return nil, err
	}

	return agent.New(
		router.New(routerModel, router.WithLogger(logger)),
		retriever.New(embedder, vs, retriever.WithTopK(cfg.TopK), retriever.WithLogger(logger)),
		generator.New(generatorModel, generator.WithLogger(logger)),
		agent.WithLogger(logger),
	)
}

func newIngester(cfg *config.Config, embedder rag.Embedder, w rag.ChunkWriter, logger log.Logger) *ingest.Ingester {
	return ingest.New(embedder, w,
		ingest.WithChunking(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		ingest.WithBatchSize(cfg.Embedding.BatchSize),
		ingest.WithLogger(logger))
}
