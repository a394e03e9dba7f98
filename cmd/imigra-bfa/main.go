package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/techmigra/imigra-bfa-go/internal/config"
	"github.com/techmigra/imigra-bfa-go/internal/domain"
	"github.com/techmigra/imigra-bfa-go/internal/handler"
	"github.com/techmigra/imigra-bfa-go/internal/infra/cache"
	"github.com/techmigra/imigra-bfa-go/internal/infra/observability"
	"github.com/techmigra/imigra-bfa-go/internal/infra/pdfops"
	"github.com/techmigra/imigra-bfa-go/internal/infra/resilience"
	"github.com/techmigra/imigra-bfa-go/internal/infra/storage"
	"github.com/techmigra/imigra-bfa-go/internal/infra/supabase"
	"github.com/techmigra/imigra-bfa-go/internal/service"

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
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int64("max_upload_bytes", cfg.MaxUploadBytes),
		zap.Int("max_upload_concurrency", cfg.MaxUploadConcurrency),
		zap.String("s3_bucket", cfg.S3Bucket),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "imigra-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache (required-document catalog) ---
	catalogCache := cache.New[[]domain.RequiredDocument](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxUploadConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")
	compressBulkhead := resilience.NewBulkhead(cfg.MaxUploadConcurrency)

	// --- Record store (Supabase PostgREST) ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)

	// --- File storage (S3) ---
	files, err := storage.NewS3Storage(cfg)
	if err != nil {
		logger.Fatal("failed to init S3 storage", zap.Error(err))
	}

	// --- PDF optimizer ---
	optimizer := pdfops.NewOptimizer()

	// --- Services ---
	docSvc := service.NewDocumentService(
		store,
		store,
		store,
		files,
		optimizer,
		catalogCache,
		compressBulkhead,
		cfg.MaxUploadBytes,
		metrics,
		logger,
	)
	reqSvc := service.NewRequerimentoService(store, files, metrics, logger)
	portalSvc := service.NewPortalService(store, store, store, store, files, optimizer, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(docSvc, reqSvc, portalSvc, cfg, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
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
