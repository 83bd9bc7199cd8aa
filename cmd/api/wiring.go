package main

import (
	"context"
	"fmt"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/customHttpClient"
	"github.com/akolanti/HybridRAG/internal/data/redisStore"
	"github.com/akolanti/HybridRAG/internal/data/store"
	"github.com/akolanti/HybridRAG/internal/domain/sessionModel"
	"github.com/akolanti/HybridRAG/internal/handlers"
	"github.com/akolanti/HybridRAG/internal/memory"
	"github.com/akolanti/HybridRAG/internal/rag"
	"github.com/akolanti/HybridRAG/internal/rag/embedding"
	"github.com/akolanti/HybridRAG/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/HybridRAG/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/HybridRAG/internal/rag/indexer"
	"github.com/akolanti/HybridRAG/internal/rag/keyword"
	"github.com/akolanti/HybridRAG/internal/rag/llm"
	"github.com/akolanti/HybridRAG/internal/rag/llm/compat"
	"github.com/akolanti/HybridRAG/internal/rag/llm/gemini"
	"github.com/akolanti/HybridRAG/internal/rag/llm/openaiLLM"
	"github.com/akolanti/HybridRAG/internal/rag/retriever"
	"github.com/akolanti/HybridRAG/internal/rag/rewriter"
	"github.com/akolanti/HybridRAG/internal/rag/vectorDB"
	"github.com/akolanti/HybridRAG/internal/rag/vectorDB/chromemDB"
	"github.com/akolanti/HybridRAG/internal/rag/vectorDB/qdrantDB"
)

// app holds every long lived component one command needs.
type app struct {
	settings  config.Settings
	vectors   vectorDB.Backend
	cache     vectorDB.AnswerCache
	keyword   keyword.Index
	embedder  embedding.Embedder
	llm       llm.Provider
	retriever *retriever.Retriever
	indexer   *indexer.Indexer
	memory    *memory.Manager // nil when sessions live in redis
	sessions  sessionModel.Store
	rag       rag.Service
	checks    map[string]handlers.HealthCheck
}

type buildOptions struct {
	// requireLLM fails the build when no completion provider can be created.
	requireLLM bool
}

func buildApp(ctx context.Context, s config.Settings, opts buildOptions) (*app, error) {
	a := &app{settings: s, checks: map[string]handlers.HealthCheck{}}

	embedder, err := newEmbedder(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	a.embedder = embedder

	if err := a.initVectors(ctx); err != nil {
		return nil, err
	}

	a.keyword = keyword.Index(keyword.Disabled{})
	if s.EnableHybridSearch {
		if a.keyword, err = keyword.New(s.KeywordBackend); err != nil {
			return nil, err
		}
	}

	a.llm, err = newLLM(ctx, s)
	if err != nil {
		if opts.requireLLM {
			return nil, fmt.Errorf("llm provider: %w", err)
		}
		logger.Warn("no llm provider, answers and llm rewriting are unavailable", "error", err)
	}

	rw, err := rewriter.New(s, a.llm)
	if err != nil {
		return nil, fmt.Errorf("query rewriter: %w", err)
	}

	a.initSessions(ctx)

	a.retriever = retriever.New(a.embedder, a.vectors, a.keyword, s)
	a.indexer = indexer.New(a.embedder, a.vectors, a.keyword, s)
	a.rag = rag.NewService(rag.Deps{
		Settings:  s,
		Retriever: a.retriever,
		Rewriter:  rw,
		Memory:    a.sessions,
		LLM:       a.llm,
		Indexer:   a.indexer,
		Cache:     a.cache,
	})
	return a, nil
}

func (a *app) initVectors(ctx context.Context) error {
	s := a.settings
	switch s.VectorBackend {
	case "memory":
		db, err := chromemDB.New(s.CollectionName, s.EmbeddingDimensions)
		if err != nil {
			return fmt.Errorf("chromem: %w", err)
		}
		a.vectors = db
	default:
		db, err := qdrantDB.NewClient(ctx, s)
		if err != nil {
			return fmt.Errorf("qdrant: %w", err)
		}
		a.vectors = db
		a.cache = db
	}
	a.checks["vector"] = func(ctx context.Context) error {
		_, err := a.vectors.Describe(ctx)
		return err
	}
	return nil
}

// initSessions falls back to in-process memory when redis is unreachable.
func (a *app) initSessions(ctx context.Context) {
	s := a.settings
	if s.SessionBackend == "redis" {
		rs, err := store.GetRedisSessionStore(ctx, s)
		if err == nil {
			a.sessions = rs
			a.addRedisCheck(ctx, config.RedisSessionStore, "sessions")
			return
		}
		logger.Error("Redis session store is offline, using in-memory sessions", "error", err)
	}
	a.memory = memory.NewManager(memory.OptionsFrom(s), nil)
	a.sessions = a.memory
}

func (a *app) addRedisCheck(ctx context.Context, db int, name string) {
	rs, err := redisStore.GetRedisStore(ctx, a.settings.Redis, db)
	if err != nil {
		return
	}
	a.checks[name] = rs.Ping
}

// warm loads stored chunks into the in-process keyword index.
func (a *app) warm(ctx context.Context) {
	n, err := a.indexer.Warm(ctx)
	if err != nil {
		logger.Warn("keyword index not warmed, keyword search starts empty", "error", err)
		return
	}
	if n > 0 {
		logger.Info("keyword index ready", "chunks", n, "backend", a.settings.KeywordBackend)
	}
}

func newEmbedder(ctx context.Context, s config.Settings) (embedding.Embedder, error) {
	httpClient := customHttpClient.New(s.RequestTimeout())
	switch s.EmbeddingProvider {
	case "openai":
		return openaiEmbedding.New(s, httpClient)
	default:
		return googleEmbedding.New(ctx, s, httpClient)
	}
}

func newLLM(ctx context.Context, s config.Settings) (llm.Provider, error) {
	httpClient := customHttpClient.New(s.RequestTimeout())
	switch s.LLMProvider {
	case "openai":
		return openaiLLM.New(s, httpClient)
	case "compat":
		return compat.New(s, httpClient)
	default:
		return gemini.New(ctx, s, httpClient)
	}
}
