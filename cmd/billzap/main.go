package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/config"
	"github.com/billzap/billzap-go/internal/domain"
	"github.com/billzap/billzap-go/internal/handler"
	"github.com/billzap/billzap-go/internal/infra/ai"
	"github.com/billzap/billzap-go/internal/infra/cache"
	"github.com/billzap/billzap-go/internal/infra/marker"
	"github.com/billzap/billzap-go/internal/infra/observability"
	"github.com/billzap/billzap-go/internal/infra/provider"
	"github.com/billzap/billzap-go/internal/infra/resilience"
	"github.com/billzap/billzap-go/internal/infra/supabase"
	"github.com/billzap/billzap-go/internal/infra/transport"
	"github.com/billzap/billzap-go/internal/scheduler"
	"github.com/billzap/billzap-go/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = godotenv.Load()

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("provider_base_url", cfg.ProviderBaseURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("scheduler_interval", cfg.SchedulerInterval),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "billzap")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	providerClient := provider.NewClient(
		httpClient,
		cfg.ProviderBaseURL,
		cfg.ProviderAPIKey,
		resilience.NewCircuitBreaker("provider"),
		logger,
	)

	supabaseClient := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		resilience.NewCircuitBreaker("supabase"),
		resilienceCfg,
		logger,
	)

	whatsappClient := transport.NewWhatsAppClient(httpClient, cfg.WhatsAppAPIURL, cfg.WhatsAppToken, logger)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	markerStore := marker.NewRedisStore(rdb, cfg.RunMarkerTTL)

	// --- Services ---
	billingSvc := service.NewBillingService(
		providerClient,
		supabaseClient,
		supabaseClient,
		whatsappClient,
		cache.New[domain.RunResult](cfg.CacheTTL),
		metrics,
		logger,
		cfg.ProviderPageSize,
	)

	var advisor *service.TemplateAdvisor
	if cfg.OpenAIKey != "" {
		advisor = service.NewTemplateAdvisor(ai.NewCompleter(cfg.OpenAIKey, cfg.OpenAIModel, logger), logger)
		logger.Info("template advisor enabled", zap.String("model", cfg.OpenAIModel))
	} else {
		logger.Warn("template advisor: OPENAI_API_KEY not set, suggestion route unavailable")
	}

	// --- Scheduler ---
	trigger := scheduler.NewDailyTrigger(
		billingSvc,
		supabaseClient,
		markerStore,
		resilience.NewBulkhead(cfg.MaxConcurrency),
		logger,
	)
	sched, err := scheduler.New(cfg.SchedulerInterval, trigger.Sweep, logger)
	if err != nil {
		logger.Fatal("failed to create scheduler", zap.Error(err))
	}
	sched.Start()

	// --- Router ---
	router := handler.NewRouter(billingSvc, advisor, sched, metrics, logger, cfg.JWTSecret)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
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

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	if err := rdb.Close(); err != nil {
		logger.Warn("redis close failed", zap.Error(err))
	}

	logger.Info("server stopped")
}
