// Package app wires configuration into the services shared by the server,
// the analysis worker and the command line tool.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"condolex-backend/cache"
	"condolex-backend/config"
	"condolex-backend/handlers"
	"condolex-backend/index"
	"condolex-backend/llm"
	"condolex-backend/metrics"
	"condolex-backend/prompts"
	"condolex-backend/queue"
	"condolex-backend/repository"
	"condolex-backend/rerank"
	"condolex-backend/service"
	"condolex-backend/storage"

	"github.com/google/generative-ai-go/genai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// NewLogger returns a JSON logger in release mode and a text logger otherwise
func NewLogger(ginMode string) *slog.Logger {
	if ginMode == "release" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// NewCLILogger logs to stderr, warnings only unless verbose
func NewCLILogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// App holds every long-lived dependency
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	DB      *pgxpool.Pool
	Storage storage.Storage

	Extractor    service.TextExtractor
	Analyzer     *service.AnalysisPipeline
	Query        *service.QueryService
	Analysis     *service.AnalysisService
	InternalDocs *service.InternalDocsService
	Drafting     *service.DraftingService

	gemini  *genai.Client
	answers *cache.AnswerCache
	kafka   *queue.KafkaDispatcher
}

// New connects to Postgres, Gemini, Chroma and the optional Redis, Cohere
// and Kafka backends, then builds the services
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  metrics.New(reg),
	}

	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config
	logger := a.Logger

	db, err := initPostgres(ctx, cfg.Database.URL, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Postgres: %w", err)
	}
	a.DB = db

	a.Storage, err = storage.NewStorage(ctx, storage.StorageConfig{
		Type:         storage.StorageType(cfg.Storage.Type),
		LocalPath:    cfg.Storage.LocalPath,
		S3Bucket:     cfg.Storage.S3Bucket,
		S3Region:     cfg.Storage.S3Region,
		S3Prefix:     cfg.Storage.S3Prefix,
		AWSAccessKey: cfg.Storage.AWSAccessKey,
		AWSSecretKey: cfg.Storage.AWSSecretKey,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("storage initialized", "type", cfg.Storage.Type)

	a.gemini, err = llm.NewGeminiClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		return err
	}
	gen := llm.NewGeminiGenerator(a.gemini,
		llm.WithModel(cfg.Gemini.Model),
		llm.WithLogger(logger),
		llm.WithObserver(a.Metrics.ObserveModelCall),
	)
	embedder := llm.NewGeminiEmbedder(cfg.Gemini.APIKey,
		llm.EmbedderWithModel(cfg.Gemini.EmbeddingModel),
		llm.EmbedderWithLogger(logger),
		llm.EmbedderWithObserver(a.Metrics.ObserveModelCall),
	)
	logger.Info("Gemini client initialized", "model", cfg.Gemini.Model)

	catalogue := prompts.MustDefault()

	chroma := index.NewChroma(cfg.Chroma.URL,
		index.ChromaWithTenant(cfg.Chroma.Tenant, cfg.Chroma.Database),
		index.ChromaWithLogger(logger),
	)
	if err := chroma.Heartbeat(ctx); err != nil {
		logger.Warn("Chroma is not reachable, internal documents will be unavailable", "url", cfg.Chroma.URL, "error", err)
	}

	var reranker service.Reranker
	if cfg.Grading.Strategy == service.StrategyRerank {
		cohere, err := rerank.NewCohereReranker(cfg.Cohere.APIKey, rerank.WithModel(cfg.Cohere.Model))
		if err != nil {
			return fmt.Errorf("failed to initialize Cohere: %w", err)
		}
		reranker = cohere
	}
	scorer, err := service.NewRelevanceScorer(cfg.Grading.Strategy, gen, catalogue, reranker, cfg.Grading.Threshold)
	if err != nil {
		return err
	}

	if cfg.RedisEnabled() {
		a.answers, err = cache.New(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			logger.Warn("Redis unavailable, answer cache disabled", "addr", cfg.Redis.Addr, "error", err)
			a.answers = nil
		}
	}

	statutes := repository.NewStatuteRepository(db)
	statuteRetriever := service.NewStatuteRetriever(embedder, statutes, cfg.Retrieval.TopK)
	internalIndex := service.NewInternalIndexConfig()

	a.Extractor = service.NewFileTextExtractor(gen, catalogue)
	a.Drafting = service.NewDraftingService(gen, catalogue, logger)

	pipeline := service.NewQueryPipeline(
		service.PipelineWithExternalRetriever(statuteRetriever),
		service.PipelineWithInternalRetriever(service.NewInternalRetriever(embedder, chroma, cfg.Retrieval.TopK)),
		service.PipelineWithScorer(scorer),
		service.PipelineWithInternalScorer(scorer),
		service.PipelineWithGenerator(service.NewLLMAnswerGenerator(gen, catalogue)),
		service.PipelineWithInternalIndex(internalIndex),
		service.PipelineWithGradeConcurrency(cfg.Grading.Concurrency),
		service.PipelineWithLogger(logger),
		service.PipelineWithMetrics(a.Metrics),
	)

	queryOpts := []service.QueryServiceOption{
		service.QueryWithPipeline(pipeline),
		service.QueryWithSourceSelector(service.NewSourceIdentifier(gen, catalogue, logger)),
		service.QueryWithAdvisor(a.Drafting),
		service.QueryWithInternalIndex(internalIndex),
		service.QueryWithLogger(logger),
		service.QueryWithMetrics(a.Metrics),
	}
	if a.answers != nil {
		queryOpts = append(queryOpts, service.QueryWithCache(a.answers))
	}
	a.Query = service.NewQueryService(queryOpts...)

	a.Analyzer = service.NewAnalysisPipeline(
		service.AnalysisWithExtractor(service.NewLLMClauseExtractor(gen, catalogue)),
		service.AnalysisWithRetriever(service.NewStatuteRetriever(embedder, statutes, cfg.Analysis.TopK)),
		service.AnalysisWithClassifier(service.NewLLMIllegalityClassifier(gen, catalogue)),
		service.AnalysisWithMaxNodeExecutions(cfg.Analysis.MaxNodeExecutions),
		service.AnalysisWithLogger(logger),
		service.AnalysisWithMetrics(a.Metrics),
	)

	a.Analysis = service.NewAnalysisService(
		service.AnalysisServiceWithJobStore(repository.NewAnalysisJobRepository(db)),
		service.AnalysisServiceWithStorage(a.Storage),
		service.AnalysisServiceWithExtractor(a.Extractor),
		service.AnalysisServiceWithAnalyzer(a.Analyzer),
		service.AnalysisServiceWithLogger(logger),
	)
	if err := a.initDispatcher(); err != nil {
		return err
	}

	a.InternalDocs = service.NewInternalDocsService(
		service.InternalDocsWithStorage(a.Storage),
		service.InternalDocsWithExtractor(a.Extractor),
		service.InternalDocsWithEmbedder(embedder),
		service.InternalDocsWithIndex(chroma),
		service.InternalDocsWithRecords(repository.NewInternalDocumentRepository(db)),
		service.InternalDocsWithConfig(internalIndex),
		service.InternalDocsWithCollectionPrefix(cfg.Chroma.CollectionPrefix),
		service.InternalDocsWithLogger(logger),
	)
	if err := a.InternalDocs.Restore(ctx); err != nil {
		logger.Warn("failed to restore internal documents", "error", err)
	} else if names := a.InternalDocs.Names(); len(names) > 0 {
		logger.Info("restored internal documents", "count", len(names))
	}

	return nil
}

// initDispatcher publishes jobs to Kafka when brokers are configured and
// otherwise runs them in-process
func (a *App) initDispatcher() error {
	if !a.Config.KafkaEnabled() {
		a.Analysis.SetDispatcher(queue.NewGoroutineDispatcher(a.Analysis.ProcessAnalysis, a.Logger))
		return nil
	}

	dispatcher, err := queue.NewKafkaDispatcher(a.Config.Kafka.Brokers, a.Config.Kafka.Topic, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Kafka producer: %w", err)
	}
	a.kafka = dispatcher
	a.Analysis.SetDispatcher(dispatcher)
	a.Logger.Info("analysis jobs dispatched through Kafka", "topic", a.Config.Kafka.Topic)
	return nil
}

// NewConsumer builds the Kafka consumer that processes analysis jobs
func (a *App) NewConsumer() (*queue.Consumer, error) {
	if !a.Config.KafkaEnabled() {
		return nil, errors.New("kafka brokers are not configured")
	}
	return queue.NewConsumer(a.Config.Kafka.Brokers, a.Config.Kafka.Topic, a.Config.Kafka.GroupID, a.Analysis.ProcessAnalysis, a.Logger)
}

// Router returns the HTTP routes backed by the services
func (a *App) Router() *handlers.Router {
	return &handlers.Router{
		Questions:      handlers.NewQuestionHandler(a.Query, a.Logger),
		Analyses:       handlers.NewAnalysisHandler(a.Analysis, a.Logger),
		InternalDocs:   handlers.NewInternalDocsHandler(a.InternalDocs, a.Logger),
		Drafting:       handlers.NewDraftingHandler(a.Drafting, a.Logger),
		Metrics:        a.Metrics,
		AdminTokenHash: a.Config.Admin.TokenHash,
	}
}

// Close releases every connection that was opened
func (a *App) Close() {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.Logger.Warn("failed to close Kafka producer", "error", err)
		}
	}
	if a.answers != nil {
		if err := a.answers.Close(); err != nil {
			a.Logger.Warn("failed to close Redis client", "error", err)
		}
	}
	if a.gemini != nil {
		if err := a.gemini.Close(); err != nil {
			a.Logger.Warn("failed to close Gemini client", "error", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func initPostgres(ctx context.Context, connString string, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		logger.Warn("failed to create pgvector extension", "error", err)
	}

	logger.Info("Postgres connection established with pgvector support")
	return pool, nil
}
