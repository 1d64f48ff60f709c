package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/parcelscope/api/internal/config"
	"github.com/parcelscope/api/internal/database"
	"github.com/parcelscope/api/internal/handlers"
	"github.com/parcelscope/api/internal/ingest"
	"github.com/parcelscope/api/internal/logger"
	"github.com/parcelscope/api/internal/middleware"
	"github.com/parcelscope/api/internal/observability"
	"github.com/parcelscope/api/internal/repository"
	"github.com/parcelscope/api/internal/retry"
	"github.com/parcelscope/api/internal/services"
	"github.com/parcelscope/api/internal/source"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting ParcelScope API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	// The adapter registry is static; a malformed entry is a programming
	// error and should stop the process before it serves traffic.
	if err := source.ValidateRegistry(); err != nil {
		log.Fatal("Invalid source adapter registry", err, nil)
	}

	// Create database connection pool
	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to bootstrap database schema", err, nil)
	}

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Initialize repository layer
	parcelRepo := repository.NewParcelRepository(db)
	jobRepo := repository.NewJobRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	scoreRepo := repository.NewScoreRepository(db)

	// Initialize the ingestion pipeline
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	sourceClient := source.NewHTTPClient(cfg.Ingest.SourceTimeout, retry.DefaultPolicy(), log)
	writer := ingest.NewBatchWriter(parcelRepo, historyRepo, cfg.Ingest.BatchSize, log)
	fetcher := ingest.NewFetcher(sourceClient, writer, jobRepo, parcelRepo,
		clockwork.NewRealClock(), cfg.Ingest, metrics, log)

	// Initialize service layer
	ingestService := services.NewIngestService(fetcher, jobRepo, log)
	scoringService := services.NewScoringService(parcelRepo, historyRepo, scoreRepo, cfg.Ingest, metrics, log)
	parcelService := services.NewParcelService(parcelRepo, scoreRepo, historyRepo, log)
	statusService := services.NewStatusService(parcelRepo, jobRepo, cfg.Ingest, log)

	// Initialize handlers
	ingestHandler := handlers.NewIngestHandler(ingestService)
	scoreHandler := handlers.NewScoreHandler(scoringService)
	parcelHandler := handlers.NewParcelHandler(parcelService)
	statusHandler := handlers.NewStatusHandler(statusService)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/ingest", ingestHandler.Ingest)
		v1.POST("/score", scoreHandler.Score)
		v1.GET("/counties/status", statusHandler.Status)

		parcels := v1.Group("/parcels")
		{
			parcels.GET("/top", parcelHandler.Top)
			parcels.GET("/:county/:pin", parcelHandler.Detail)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
