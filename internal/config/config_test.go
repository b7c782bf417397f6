package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setLocalBackends(t *testing.T) {
	t.Helper()
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("QUEUE_BACKEND", "memory")
}

func TestLoadDefaults(t *testing.T) {
	setLocalBackends(t)

	cfg := Load()
	assert.Equal(t, "local", cfg.StorageBackend)
	assert.Equal(t, "memory", cfg.QueueBackend)
	assert.Equal(t, "deepseek-chat", cfg.LLMModel)
	assert.Equal(t, 120*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 300*time.Second, cfg.ScannerTimeout)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 0.7, cfg.ConfidenceGate)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 15*time.Minute, cfg.VisibilityTimeout)
	assert.Equal(t, ":8000", cfg.HTTPAddr)
}

func TestLoadOverrides(t *testing.T) {
	setLocalBackends(t)
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("SCANNER_TIMEOUT", "90s")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")

	cfg := Load()
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 0.85, cfg.ConfidenceGate)
	assert.Equal(t, 90*time.Second, cfg.ScannerTimeout)
	assert.Equal(t, "gpt-4o-mini", cfg.LLMModel)
}

func TestLoadMalformedValuesFallBackToDefaults(t *testing.T) {
	setLocalBackends(t)
	t.Setenv("MAX_RETRIES", "many")
	t.Setenv("CONFIDENCE_THRESHOLD", "high")
	t.Setenv("SCANNER_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 0.7, cfg.ConfidenceGate)
	assert.Equal(t, 300*time.Second, cfg.ScannerTimeout)
}
