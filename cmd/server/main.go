// SNS-MSM - Financial Psyche Scan Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/snsmsm/psyche-scan/internal/api"
	"github.com/snsmsm/psyche-scan/internal/config"
	"github.com/snsmsm/psyche-scan/internal/jobs"
	"github.com/snsmsm/psyche-scan/internal/middleware"
	"github.com/snsmsm/psyche-scan/internal/provider"
	"github.com/snsmsm/psyche-scan/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())
	slog.Info("Azure OpenAI configuration",
		"api_base_set", cfg.Azure.APIBase != "",
		"api_key_set", cfg.Azure.APIKey != "",
		"deployment", cfg.Azure.Deployment,
		"model", cfg.Azure.Model)
	if !cfg.Azure.Configured() {
		slog.Warn("Azure credentials missing; completion calls will fail until configured")
	}

	// Interaction logging is optional: no DB path, no repository.
	var repo store.Repository
	if cfg.DBPath != "" {
		repo, err = store.NewSQLite(cfg.DBPath)
		if err != nil {
			slog.Error("Failed to initialize interaction log database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()

		if err := repo.Ping(context.Background()); err != nil {
			slog.Error("Interaction log database health check failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Interaction log database connected", "path", cfg.DBPath)
	} else {
		slog.Info("Interaction logging disabled (DB_PATH not set)")
	}

	completer := provider.NewAzureOpenAI(provider.AzureConfig{
		APIKey:     cfg.Azure.APIKey,
		APIBase:    cfg.Azure.APIBase,
		Deployment: cfg.Azure.Deployment,
		APIVersion: cfg.Azure.APIVersion,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	})

	jobStore := jobs.NewStore(completer, repo, jobs.Config{
		ProcessingTimeout: cfg.ProcessingTimeout,
	})

	quizHandler := api.NewQuizHandler(jobStore)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	corsOrigins := []string{"*"}
	if !cfg.IsDevelopment() {
		corsOrigins = []string{cfg.FrontendURL}
	}
	r.Use(middleware.CORS(corsOrigins))

	quizHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the job sweeper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobStore.StartSweeper(ctx, cfg.SweepInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
