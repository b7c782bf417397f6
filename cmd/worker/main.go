package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yourorg/remediation-worker/internal/app"
	"github.com/yourorg/remediation-worker/internal/config"
	"github.com/yourorg/remediation-worker/internal/worker"
)

func main() {
	// Load environment variables from .env files if present. This helps local dev.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer deps.Close()

	// healthz checks queue connectivity with a 2s timeout, 503 if unreachable
	if addr := cfg.WorkerAddr; addr != "" {
		go serveHealth(ctx, addr, deps, logger)
	}

	runner := worker.NewRunner(deps.Queue, deps.Orchestrator, cfg.PollInterval, logger)
	logger.Info("worker starting",
		zap.String("queue_backend", cfg.QueueBackend),
		zap.String("storage_backend", cfg.StorageBackend),
	)
	if err := runner.RunForever(ctx); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
	logger.Info("worker shut down")
}

func serveHealth(ctx context.Context, addr string, deps *app.Deps, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, pingCancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer pingCancel()
		w.Header().Set("Content-Type", "application/json")
		if err := deps.Ping(pingCtx); err != nil {
			logger.Error("healthz: queue ping failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","reason":"queue unreachable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	s := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(shctx)
	}()
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("health server", zap.Error(err))
	}
}
