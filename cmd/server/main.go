package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"propsearch-bknd/internal/cache"
	"propsearch-bknd/internal/config"
	"propsearch-bknd/internal/database"
	"propsearch-bknd/internal/logger"
	"propsearch-bknd/internal/routes"
)

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	db, err := database.New(cfg.DatabaseURL, cfg)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	var c cache.Cache
	if cfg.ValkeyAddr != "" {
		c, err = cache.NewValkey(cfg.ValkeyAddr)
		if err != nil {
			logr.Fatal("failed to connect to valkey", zap.Error(err))
		}
		logr.Info("using valkey cache", zap.String("addr", cfg.ValkeyAddr))
	} else {
		c = cache.NewMemory()
		logr.Info("using in-process cache")
	}
	defer c.Close()

	r := routes.NewRouter(db, c, cfg, logr)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("server started", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logr.Fatal("server forced to shutdown", zap.Error(err))
	}

	_ = db.Close()
	logr.Info("server exited gracefully")
}
