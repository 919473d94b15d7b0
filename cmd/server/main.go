package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"iconvault/internal/config"
	httphandlers "iconvault/internal/http"
	"iconvault/internal/iconcache"
	"iconvault/internal/logger"
	"iconvault/internal/origin_fetch"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting iconvault server",
		zap.Int("port", cfg.Port),
		zap.String("icon_cache_dir", cfg.IconCacheDir),
	)

	store, err := iconcache.NewFileStore(cfg.IconCacheDir)
	if err != nil {
		log.Fatal("Failed to initialize icon store", zap.Error(err))
	}

	fetcher := origin_fetch.New(cfg.FetchTimeout, cfg.MaxIconBytes)
	coordinator := iconcache.New(store, fetcher, log)

	handlers := httphandlers.New(cfg, log, coordinator)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/icons/", handlers.HandleIconRoutes)
	mux.HandleFunc("/api/cache", handlers.HandleCache)
	mux.HandleFunc("/api/cache/size", handlers.HandleCacheSize)
	mux.HandleFunc("/healthz", handlers.HandleHealthz)

	handler := handlers.CORSMiddleware(handlers.RequestLoggingMiddleware(mux))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
