package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/cnpj-enricher-go/internal/config"
	"github.com/boddenberg/cnpj-enricher-go/internal/domain"
	"github.com/boddenberg/cnpj-enricher-go/internal/handler"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/cache"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/enrichment"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/memstore"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/observability"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/resilience"
	"github.com/boddenberg/cnpj-enricher-go/internal/port"
	"github.com/boddenberg/cnpj-enricher-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("enrich_delay", cfg.EnrichDelay),
		zap.Duration("request_timeout", cfg.RequestTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Int("batch_concurrency", cfg.BatchConcurrency),
		zap.Bool("seed_demo_data", cfg.SeedDemoData),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, observability.ServiceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	store := memstore.New()
	if cfg.SeedDemoData {
		n := store.Seed(context.Background(), memstore.DemoCompanies())
		logger.Info("demo companies loaded", zap.Int("count", n))
	}

	// --- Enrichment pipeline: cache -> resilience -> stub ---
	lookupCache := cache.New[domain.Company](cfg.CacheTTL)
	defer lookupCache.Close()

	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("enrichment-provider", logger)

	var enricher port.Enricher = enrichment.NewStub(cfg.EnrichDelay)
	enricher = enrichment.NewResilient(enricher, cb, resilienceCfg, metrics, logger)
	enricher = enrichment.NewCached(enricher, lookupCache, metrics)

	// --- Services ---
	registry := service.NewRegistry(store, enricher, cfg.BatchConcurrency, cfg.RequestTimeout, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(registry, metrics, logger, handler.Options{
		RequestTimeout: cfg.RequestTimeout,
		BatchMaxItems:  cfg.BatchMaxItems,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
