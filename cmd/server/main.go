package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/ragcore/internal/cache"
	"github.com/connexus-ai/ragcore/internal/config"
	"github.com/connexus-ai/ragcore/internal/gcpclient"
	"github.com/connexus-ai/ragcore/internal/handler"
	"github.com/connexus-ai/ragcore/internal/middleware"
	"github.com/connexus-ai/ragcore/internal/repository"
	"github.com/connexus-ai/ragcore/internal/router"
	"github.com/connexus-ai/ragcore/internal/service"
)

// Version is the server's reported build version.
const Version = "0.1.0"

func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8080"
}

// buildDeps wires the full service graph from cfg, choosing the demo
// in-memory stack or the production GCP/Postgres stack based on
// cfg.DemoMode.
func buildDeps(ctx context.Context, cfg *config.Config) (*router.Dependencies, func(), error) {
	var (
		store       repository.VectorStore
		docEmbedder service.EmbeddingClient
		queryEmbed  service.EmbeddingClient
		llmClient   service.LLMClient
		embedHealth handler.UpstreamPinger
		llmHealth   handler.UpstreamPinger
		closers     []func()
	)

	if cfg.DemoMode {
		slog.Warn("starting in demo mode: in-memory vector store, deterministic embedding/LLM stand-ins")
		store = repository.NewMemoryVectorStore()

		demoEmbed := service.NewDemoEmbeddingClient(cfg.EmbeddingDims)
		docEmbedder, queryEmbed = demoEmbed, demoEmbed
		llmClient = service.NewDemoLLMClient()
	} else {
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
		if err != nil {
			return nil, nil, fmt.Errorf("main: connect database: %w", err)
		}
		closers = append(closers, pool.Close)
		store = repository.NewPgVectorStore(pool)

		embedding, err := gcpclient.NewEmbeddingAdapter(ctx, cfg.GCPProject, cfg.VertexAILocation, cfg.EmbeddingModel)
		if err != nil {
			return nil, nil, fmt.Errorf("main: init embedding adapter: %w", err)
		}
		docEmbedder = embedding.AsDocumentEmbedder()
		queryEmbed = embedding.AsQueryEmbedder()
		embedHealth = embedding

		genai, err := gcpclient.NewGenAIAdapter(ctx, cfg.GCPProject, cfg.VertexAILocation, cfg.ChatModel)
		if err != nil {
			return nil, nil, fmt.Errorf("main: init genai adapter: %w", err)
		}
		closers = append(closers, func() { genai.Close() })
		llmClient = genai
		llmHealth = genai
	}

	registry := service.NewRegistry(store)
	if err := registry.Rebuild(ctx); err != nil {
		slog.Error("registry rebuild failed, starting with an empty index", "error", err)
	}

	ingestEmbedder := service.NewEmbedder(docEmbedder, service.DefaultEmbedBatchSize, cfg.EmbeddingDims)
	searchEmbedder := service.NewEmbedder(queryEmbed, service.DefaultEmbedBatchSize, cfg.EmbeddingDims)
	llm := service.NewLLM(llmClient, 0)

	pipeline := service.NewPipeline(store, ingestEmbedder, llm, registry, cfg.SummaryConcurrency)

	var resultCache cache.SearchCache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("main: parse REDIS_URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		closers = append(closers, func() { redisClient.Close() })
		resultCache = cache.NewRedisCache(redisClient, cfg.SearchCacheTTL)
	} else {
		resultCache = cache.NewMemoryCache(cfg.SearchCacheCapacity, cfg.SearchCacheTTL)
	}

	search := service.NewSearchEngine(searchEmbedder, store, resultCache)
	qa := service.NewQA(llm, search, resultCache, store, cfg.CitationThreshold)

	var mirror handler.ObjectMirror
	if cfg.GCSBucketName != "" {
		storageAdapter, err := gcpclient.NewStorageAdapter(ctx, cfg.GCSBucketName)
		if err != nil {
			slog.Error("gcs storage adapter unavailable, document mirroring disabled", "error", err)
		} else {
			closers = append(closers, func() { storageAdapter.Close() })
			mirror = storageAdapter
		}
	}

	if cfg.PubSubTopicID != "" {
		pubsubAdapter, err := gcpclient.NewPubSubAdapter(ctx, cfg.GCPProject, cfg.PubSubTopicID)
		if err != nil {
			slog.Error("pubsub adapter unavailable, ingestion events disabled", "error", err)
		} else {
			closers = append(closers, func() { pubsubAdapter.Close() })
			pipeline.SetEventPublisher(pubsubAdapter)
		}
	}

	reg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(reg)
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		MaxRequests: 120,
		Window:      time.Minute,
	})
	closers = append(closers, rateLimiter.Stop)

	deps := &router.Dependencies{
		Version:  Version,
		Registry: registry,
		Store:    store,
		Pipeline: pipeline,
		IngestCfg: handler.IngestConfig{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
		},
		Mirror: mirror,
		Search: search,
		QA:     qa,
		StatusDeps: handler.StatusDeps{
			Store:    store,
			Embedder: embedHealth,
			LLM:      llmHealth,
			Version:  Version,
		},
		FrontendURL: cfg.FrontendURL,
		Metrics:     metrics,
		MetricsReg:  reg,
		RateLimiter: rateLimiter,
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return deps, cleanup, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	deps, cleanup, err := buildDeps(ctx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer cleanup()

	r := router.New(deps)

	srv := &http.Server{
		Addr:         ":" + getPort(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ragcore starting", "version", Version, "port", getPort(), "demo_mode", cfg.DemoMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received signal, shutting down gracefully", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
