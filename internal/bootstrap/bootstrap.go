package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/filings-assistant/internal/config"
	"github.com/kirillkom/filings-assistant/internal/core/ports"
	"github.com/kirillkom/filings-assistant/internal/core/usecase"
	neo4jstore "github.com/kirillkom/filings-assistant/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/filings-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/filings-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/filings-assistant/internal/infrastructure/registry"
	"github.com/kirillkom/filings-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/filings-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/filings-assistant/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Retriever ports.RetrievalService
	Answers   ports.QueryAnswerService
	Ops       *usecase.Registry
	Executor  *resilience.Executor

	closeFn func(context.Context)
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	parents := postgres.NewParentRepository(db)
	if err := parents.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init event queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	planner := ollama.NewPlanner(ollamaClient)
	judge := ollama.NewJudge(ollamaClient)
	compressor := ollama.NewCompressor(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	sparseEncoder := qdrant.NewSparseEncoder()

	var graphStore ports.GraphStore
	clients := registry.NewClients(graphFactory(cfg, logger), logger)
	if cfg.Neo4jURI != "" {
		graphStore = registry.NewLazyGraphStore(clients)
	}

	analyzer := usecase.NewQueryAnalyzer(planner, logger)
	graphLookup := usecase.NewGraphLookup(graphStore, logger)

	retriever := usecase.NewHybridRetriever(
		embedder,
		vectorDB,
		sparseEncoder,
		analyzer,
		graphLookup,
		judge,
		compressor,
		parents,
		queue,
		logger,
		usecase.RetrieverConfig{
			TopK:             cfg.Retrieval.TopK,
			RRFK:             cfg.Retrieval.RRFK,
			DedupeMargin:     cfg.Retrieval.DedupeMargin,
			DenseTimeout:     cfg.Retrieval.DenseTimeout(),
			HybridTimeout:    cfg.Retrieval.HybridTimeout(),
			OutOfCorpusScore: cfg.Retrieval.OutOfCorpusScore,
			KGBoostFactor:    cfg.Retrieval.KGBoostFactor,
		},
	)
	answers := usecase.NewAnswerUseCase(retriever, generator)
	ops := usecase.NewRegistry(retriever, answers)

	return &App{
		Config:    cfg,
		Retriever: retriever,
		Answers:   answers,
		Ops:       ops,
		Executor:  executor,

		closeFn: func(ctx context.Context) {
			queue.Close()
			clients.Close(ctx)
			_ = db.Close()
		},
	}, nil
}

func graphFactory(cfg config.Config, logger *slog.Logger) registry.GraphStoreFactory {
	if cfg.Neo4jURI == "" {
		return nil
	}
	return func(context.Context) (ports.GraphStore, error) {
		return neo4jstore.NewStore(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, logger)
	}
}

func (a *App) Close(ctx context.Context) {
	if a.closeFn != nil {
		a.closeFn(ctx)
	}
}
