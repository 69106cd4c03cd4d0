package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paperpath/engine/internal"
	"github.com/paperpath/engine/internal/events"
	"github.com/paperpath/engine/internal/handler"
	"github.com/paperpath/engine/internal/metrics"
	"github.com/paperpath/engine/internal/middleware"
	"github.com/paperpath/engine/internal/repository"
	"github.com/paperpath/engine/internal/scheduler"
	"github.com/paperpath/engine/internal/service"
	"github.com/paperpath/engine/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := repository.Open(cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db.DB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repositories
	progressionRepo := repository.NewProgressionRepository(db)
	quotaRepo := repository.NewQuotaRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)

	// Initialize event emitter and notification sink
	emitter := events.NewInMemoryEmitter(logger)
	emitter.Register(events.NewLogNotifier(logger))

	// Initialize services
	progressionService := service.NewProgressionService(progressionRepo, emitter, logger)
	badgeService := service.NewBadgeService(badgeRepo, progressionRepo, statsRepo, progressionService, emitter, logger)
	quotaService := service.NewQuotaService(quotaRepo, subscriptionRepo, logger)
	entitlementService := service.NewEntitlementService(quotaService, logger)
	activityService := service.NewActivityService(progressionService, badgeService, quotaService, statsRepo, logger)

	// Initialize handlers
	activityHandler := handler.NewActivityHandler(activityService, logger)
	progressionHandler := handler.NewProgressionHandler(progressionService, badgeService, logger)
	accessHandler := handler.NewAccessHandler(entitlementService, quotaService, logger)

	// Initialize middleware
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", handler.HealthHandler())

	// Prometheus metrics (basic auth when configured)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	activityHandler.RegisterRoutes(mux)
	progressionHandler.RegisterRoutes(mux)
	accessHandler.RegisterRoutes(mux)

	// Unmatched paths get a JSON 404 instead of the mux's plain-text one.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	root := middleware.Stack(loggingMw.Handler, metrics.Middleware)(mux)

	// ==========================================================================
	// Start background reconciliation
	// ==========================================================================

	var sched *scheduler.Scheduler
	if cfg.ReconcilerEnabled {
		reconciler, err := worker.NewReconciler(progressionRepo, quotaRepo, badgeService, worker.Config{
			BatchSize:      cfg.ReconcilerBatchSize,
			LookbackWindow: cfg.ReconcilerLookback,
			SweepTimeout:   cfg.ReconcilerTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("reconciler initialization failed: %w", err)
		}
		sched = scheduler.New(reconciler, logger)
		sched.Start()
		defer sched.Stop()
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
