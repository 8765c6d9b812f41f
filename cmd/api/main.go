package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"worklog/api/internal/app"
	"worklog/api/internal/auth"
	"worklog/api/internal/config"
	"worklog/api/internal/gateway"
	"worklog/api/internal/history"
	"worklog/api/internal/logging"
	"worklog/api/internal/search"
	"worklog/api/internal/store"
)

// feedRetry is the pause before re-establishing a dropped change feed.
const feedRetry = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		JSON:   cfg.LogJSON,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dataStore, err := store.OpenStore(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		DocumentID:  cfg.DocumentID,
		Migrate:     true,
	})
	if err != nil {
		logging.Error("store connection failed", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer dataStore.Close()

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		logging.Error("failed to create history dir", "dir", cfg.HistoryDir, "error", err)
		os.Exit(1)
	}

	var meiliClient *search.Meili
	var searchBackend search.Backend
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		searchBackend = meiliClient
	}

	assistant := gateway.NewService(cfg.LLM, nil)
	if !assistant.Configured() {
		logging.Warn("assistant not configured: LLM_API_KEY or LLM_BASE_URL missing")
	}

	service := app.New(cfg.DocumentID, dataStore, assistant, history.New(cfg.HistoryDir), searchBackend)
	if err := service.Bootstrap(ctx); err != nil {
		logging.Warn("bootstrap error (will retry on next change)", "error", err)
	}

	feed, err := service.WatchChanges(ctx)
	if err != nil {
		logging.Error("change feed failed", "error", err)
		os.Exit(1)
	}
	following := make(chan struct{})
	go func() {
		defer close(following)
		service.Follow(ctx, feed, feedRetry)
	}()
	defer func() { <-following }()

	verifier := auth.NewVerifier(cfg.AccessKey, cfg.AccessKeyHash)
	if !verifier.Enabled() {
		logging.Warn("no access key configured: API is open")
	}

	httpServer := app.NewHTTPServer(service, verifier, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.LLM.Timeout.Duration() + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logging.Info("worklog API listening", "addr", cfg.Addr, "backend", cfg.StoreBackend, "document_id", cfg.DocumentID)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("shutdown error", "error", err)
	}
}
