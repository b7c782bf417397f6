// Package app wires backend implementations selected by configuration into
// an orchestrator. Both binaries share this construction path so the API and
// the worker always agree on backends.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourorg/remediation-worker/internal/agent"
	"github.com/yourorg/remediation-worker/internal/cache"
	"github.com/yourorg/remediation-worker/internal/config"
	"github.com/yourorg/remediation-worker/internal/orchestrator"
	"github.com/yourorg/remediation-worker/internal/queue"
	"github.com/yourorg/remediation-worker/internal/source"
	"github.com/yourorg/remediation-worker/internal/storage"
	"github.com/yourorg/remediation-worker/internal/store"
)

// Deps holds the constructed backends and the orchestrator composed over
// them.
type Deps struct {
	Storage      storage.Storage
	Queue        queue.Queue
	Cache        cache.SemanticCache
	Orchestrator *orchestrator.Orchestrator

	pgQueue *queue.PostgresQueue
}

// Build constructs every backend per config and composes the orchestrator.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Deps, error) {
	d := &Deps{}

	switch cfg.StorageBackend {
	case "minio":
		st, err := storage.NewMinio(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL, cfg.ArtifactBucket)
		if err != nil {
			return nil, fmt.Errorf("minio storage: %w", err)
		}
		d.Storage = st
	case "local":
		st, err := storage.NewLocal(cfg.LocalStorageDir)
		if err != nil {
			return nil, fmt.Errorf("local storage: %w", err)
		}
		d.Storage = st
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	switch cfg.QueueBackend {
	case "postgres":
		pq, err := queue.OpenPostgres(ctx, cfg.DatabaseURL, cfg.VisibilityTimeout)
		if err != nil {
			return nil, fmt.Errorf("postgres queue: %w", err)
		}
		if err := pq.Ping(ctx); err != nil {
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		if err := pq.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure queue schema: %w", err)
		}
		d.Queue = pq
		d.pgQueue = pq
	case "memory":
		d.Queue = queue.NewMemory(cfg.VisibilityTimeout)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}

	embedder, err := cache.NewOpenAIEmbedder(cfg.EmbedBaseURL, cfg.EmbedModel, cfg.LLMAPIKey)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	sc, err := cache.NewChromem(cfg.CachePath, cfg.CacheCollection, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("semantic cache: %w", err)
	}
	d.Cache = sc

	llm, err := agent.NewClient(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMAPIKey, cfg.LLMTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}

	fetcher := source.NewFetcher(cfg.GitHubToken, d.Storage, cfg.ScratchDir, logger)
	jobs := store.New(d.Storage, logger)

	d.Orchestrator = orchestrator.New(
		orchestrator.Config{
			ScratchDir:          cfg.ScratchDir,
			ScannerTimeout:      cfg.ScannerTimeout,
			MaxRetries:          cfg.MaxRetries,
			ConfidenceThreshold: cfg.ConfidenceGate,
		},
		jobs, d.Storage, d.Queue, d.Cache, fetcher,
		agent.NewLLMGenerator(llm), agent.NewLLMEvaluator(llm),
		logger,
	)
	return d, nil
}

// Ping checks backing-service connectivity where the backend supports it.
func (d *Deps) Ping(ctx context.Context) error {
	if d.pgQueue != nil {
		return d.pgQueue.Ping(ctx)
	}
	return nil
}

// Close releases backend connections.
func (d *Deps) Close() {
	if d.pgQueue != nil {
		d.pgQueue.Close()
	}
}
