package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"peerdrop/internal/server/api"
	"peerdrop/internal/server/config"
	"peerdrop/internal/server/database"
	"peerdrop/internal/server/identity"
	"peerdrop/internal/server/service"
	"peerdrop/internal/server/storage"

	"github.com/joho/godotenv"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config (.env first, real env wins)
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}
	cfg := config.Load()
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"storage_path", cfg.StoragePath,
		"max_file_size", cfg.MaxFileSize,
		"max_daily_bytes", cfg.MaxDailyBytes,
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations complete")

	// Initialize storage
	store := storage.NewFileSystemStore(cfg.StoragePath)
	if err := store.EnsureDir(); err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	slog.Info("file storage initialized", "path", cfg.StoragePath)

	// Initialize repository and services
	repo := database.NewRepository(db)
	provider := identity.NewSessionProvider(repo, cfg.StartingXP, nil)
	quota := service.NewQuotaTracker(repo, cfg, nil)
	uploads := service.NewUploadService(repo, store, quota, cfg, nil)
	reviews := service.NewReviewService(repo, repo, quota, cfg, nil)
	strikes := service.NewStrikeService(repo, cfg, nil)
	ranks := service.NewRankService(repo, repo)

	// Start storage janitor
	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	janitor := storage.NewJanitor(repo, store, cfg.JanitorInterval)
	janitor.Start(janitorCtx)

	// Setup HTTP router
	handler := api.NewHandler(provider, uploads, reviews, strikes, ranks, quota, repo, db, cfg)
	e := api.SetupRouter(handler, provider, cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr, "base_url", cfg.BaseURL)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop the janitor
	janitorCancel()
	janitor.Wait()

	slog.Info("server exited cleanly")
}
