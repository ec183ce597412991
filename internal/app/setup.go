package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docchat/docchat/api"
	"github.com/docchat/docchat/db"
	"github.com/docchat/docchat/internal/answer"
	"github.com/docchat/docchat/internal/chunker"
	"github.com/docchat/docchat/internal/config"
	"github.com/docchat/docchat/internal/embedding"
	"github.com/docchat/docchat/internal/index"
	"github.com/docchat/docchat/internal/ingest"
	"github.com/docchat/docchat/internal/log"
	"github.com/docchat/docchat/internal/memory"
	"github.com/docchat/docchat/internal/pdf"
	"github.com/docchat/docchat/internal/retrieval"
)

// Setup creates and initializes the application. On failure everything
// already initialized is released; on success call Close().
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	gateway := embedding.NewGateway(embedder, embedding.Config{
		BatchSize: cfg.EmbedBatchSize,
		RateLimit: cfg.EmbedRateLimit,
		RateBurst: cfg.EmbedRateBurst,
	}, logger)

	idx, err := index.New(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge base index: %w", err)
	}
	a.Index = idx

	splitter, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}

	pipeline, err := ingest.NewPipeline(splitter, pdf.NewExtractor(logger), gateway, idx,
		ingest.Config{Workers: cfg.IngestWorkers, MinChunkChars: cfg.MinChunkChars}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating ingestion pipeline: %w", err)
	}
	a.Pipeline = pipeline

	store, err := memory.NewStore(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating conversation store: %w", err)
	}
	a.Memory = store

	engine, err := retrieval.NewEngine(gateway, idx, logger)
	if err != nil {
		return nil, fmt.Errorf("creating retrieval engine: %w", err)
	}
	a.Retrieval = engine

	generator, err := answer.NewGenkitGenerator(g, cfg.FullModelName(),
		answer.DefaultRetryConfig(), nil, logger)
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	orch, err := answer.NewOrchestrator(engine, store, generator, answer.Config{
		TopK:               cfg.TopK,
		ContextBudget:      cfg.ContextBudget,
		MaxHistoryMessages: int(cfg.MaxHistoryMessages),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Orchestrator = orch

	a.Server = api.NewServer(orch, pipeline, store, pool, cfg.MaxUploadBytes, logger)

	return a, nil
}

// provideDBPool runs migrations and creates the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Debug("database pool ready",
		"host", cfg.PostgresHost,
		"database", cfg.PostgresDBName,
	)
	return pool, nil
}

// provideGenkit initializes Genkit with the Google AI plugin. Gemini is
// the only supported provider; the plugin reads GEMINI_API_KEY from the
// environment.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case "", config.ProviderGemini, config.ProviderGoogleAI:
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	logger.Info("initialized Genkit",
		"provider", config.ProviderGemini,
		"model", cfg.ModelName,
	)
	return g, nil
}

// provideEmbedder looks up the embedder registered by the plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}
