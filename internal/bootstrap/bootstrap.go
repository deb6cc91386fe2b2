package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/policy-qa/internal/config"
	"github.com/kirillkom/policy-qa/internal/core/ports"
	"github.com/kirillkom/policy-qa/internal/core/usecase"
	"github.com/kirillkom/policy-qa/internal/infrastructure/chunking"
	"github.com/kirillkom/policy-qa/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/policy-qa/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/policy-qa/internal/infrastructure/extractor/xlsx"
	"github.com/kirillkom/policy-qa/internal/infrastructure/llm/anthropic"
	"github.com/kirillkom/policy-qa/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/policy-qa/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/policy-qa/internal/infrastructure/queue/nats"
	"github.com/kirillkom/policy-qa/internal/infrastructure/resilience"
	"github.com/kirillkom/policy-qa/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/policy-qa/internal/infrastructure/vector/memory"
	"github.com/kirillkom/policy-qa/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/policy-qa/internal/observability/metrics"
)

// App holds the long-lived components shared by the API, MCP, asker and evaluation commands.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	Indexer  ports.CorpusIndexer
	Answerer ports.PolicyAnswerer

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewHTTPServerMetrics(service),
	}

	executor := resilience.NewExecutor(
		resilienceConfig(cfg),
		resilience.WithLogger(logger),
		resilience.WithStateObserver(app.Metrics.ObserveBreakerState),
	)

	embedder, generator, err := buildModels(ctx, cfg, executor)
	if err != nil {
		return nil, err
	}
	index := buildVectorIndex(cfg, executor)

	storage, err := localfs.New(cfg.CorpusDir)
	if err != nil {
		return nil, fmt.Errorf("open corpus dir: %w", err)
	}
	extractors := []ports.TextExtractor{
		plaintext.NewExtractor(storage),
		pdf.NewExtractor(storage),
		xlsx.NewExtractor(storage),
	}
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	app.Indexer = usecase.NewIndexCorpusUseCase(storage, extractors, chunker, embedder, index, cfg.EmbedBatchSize, logger)

	sinks := []ports.AnswerTraceSink{app.Metrics}
	if cfg.AuditEnabled {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ClientName:         service,
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init audit queue: %w", err)
		}
		app.closeFns = append(app.closeFns, queue.Close)
		sinks = append(sinks, usecase.NewPublishingTraceSink(queue, logger))
	}

	app.Answerer = usecase.NewAnswerUseCase(
		usecase.NewRetriever(embedder, index, cfg.Retrieval.K, seconds(cfg.Retrieval.TimeoutSeconds)),
		usecase.NewConfidenceGate(cfg.Confidence.Threshold),
		usecase.NewSynthesizer(generator, seconds(cfg.GenerationTimeoutSeconds)),
		usecase.NewValidator(cfg.Validator.MinWords, cfg.Validator.Denylist),
		cfg.Retrieval.K,
		usecase.WithAnswerLogger(logger),
		usecase.WithTraceSinks(sinks...),
	)
	return app, nil
}

// BuildIndex indexes the corpus. Callers run it once before serving queries.
func (a *App) BuildIndex(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := a.Indexer.Build(ctx)
	if err != nil {
		return 0, fmt.Errorf("build index: %w", err)
	}
	a.Metrics.SetIndexedPassages(count)
	a.Logger.Info("index_ready", "passages", count, "duration_ms", time.Since(start).Milliseconds())
	return count, nil
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
}

func buildModels(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.Embedder, ports.TextGenerator, error) {
	var (
		ollamaClient *ollama.Client
		geminiClient *gemini.Client
	)
	ollamaFor := func() *ollama.Client {
		if ollamaClient == nil {
			ollamaClient = ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
		}
		return ollamaClient
	}
	geminiFor := func() (*gemini.Client, error) {
		if geminiClient != nil {
			return geminiClient, nil
		}
		client, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.GeminiGenModel, cfg.GeminiEmbedModel, executor)
		if err != nil {
			return nil, fmt.Errorf("init gemini: %w", err)
		}
		geminiClient = client
		return client, nil
	}

	var embedder ports.Embedder
	switch cfg.EmbeddingProvider {
	case "ollama":
		embedder = ollama.NewEmbedder(ollamaFor())
	case "gemini":
		client, err := geminiFor()
		if err != nil {
			return nil, nil, err
		}
		embedder = client
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}

	var generator ports.TextGenerator
	switch cfg.GenerationProvider {
	case "ollama":
		generator = ollama.NewGenerator(ollamaFor())
	case "anthropic":
		generator = anthropic.NewGenerator(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicMaxTokens, executor)
	case "gemini":
		client, err := geminiFor()
		if err != nil {
			return nil, nil, err
		}
		generator = client
	default:
		return nil, nil, fmt.Errorf("unknown generation provider %q", cfg.GenerationProvider)
	}
	return embedder, generator, nil
}

func buildVectorIndex(cfg config.Config, executor *resilience.Executor) ports.VectorIndex {
	if cfg.VectorStore == "qdrant" {
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)
	}
	return memory.New()
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.RetryMaxAttempts,
		RetryInitialBackoff:     time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:         time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,
		RetryMultiplier:         cfg.RetryMultiplier,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      seconds(cfg.BreakerOpenTimeoutSeconds),
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
