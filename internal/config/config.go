package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Backend selection: "minio" or "local" storage, "postgres" or "memory" queue.
	StorageBackend string
	QueueBackend   string

	DatabaseURL string

	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UseSSL       bool
	S3Region       string
	ArtifactBucket string

	LocalStorageDir string

	// LLM settings (OpenAI-compatible endpoint).
	LLMBaseURL   string
	LLMAPIKey    string
	LLMModel     string
	LLMTimeout   time.Duration
	EmbedBaseURL string
	EmbedModel   string

	CachePath       string
	CacheCollection string

	GitHubToken string

	ScratchDir     string
	ScannerTimeout time.Duration
	MaxRetries     int
	ConfidenceGate float64

	PollInterval      time.Duration
	VisibilityTimeout time.Duration

	HTTPAddr   string
	WorkerAddr string
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getBool(key, def string) bool {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func Load() Config {
	cfg := Config{
		StorageBackend: getEnv("STORAGE_BACKEND", "minio"),
		QueueBackend:   getEnv("QUEUE_BACKEND", "postgres"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:       getBool("S3_USE_SSL", "false"),
		S3Region:       os.Getenv("S3_REGION"),
		ArtifactBucket: os.Getenv("ARTIFACT_BUCKET"),

		LocalStorageDir: getEnv("LOCAL_STORAGE_DIR", "work_dir"),

		LLMBaseURL:   getEnv("LLM_BASE_URL", "https://api.deepseek.com/v1"),
		LLMAPIKey:    os.Getenv("LLM_API_KEY"),
		LLMModel:     getEnv("LLM_MODEL", "deepseek-chat"),
		LLMTimeout:   getDuration("LLM_TIMEOUT", 120*time.Second),
		EmbedBaseURL: getEnv("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
		EmbedModel:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		CachePath:       getEnv("CACHE_PATH", "work_dir/cache"),
		CacheCollection: getEnv("CACHE_COLLECTION", "remediations"),

		GitHubToken: os.Getenv("GITHUB_TOKEN"),

		ScratchDir:     getEnv("SCRATCH_DIR", "/scratch"),
		ScannerTimeout: getDuration("SCANNER_TIMEOUT", 300*time.Second),
		MaxRetries:     getInt("MAX_RETRIES", 2),
		ConfidenceGate: getFloat("CONFIDENCE_THRESHOLD", 0.7),

		PollInterval:      getDuration("POLL_INTERVAL", 2*time.Second),
		VisibilityTimeout: getDuration("VISIBILITY_TIMEOUT", 15*time.Minute),

		HTTPAddr:   getEnv("HTTP_ADDR", ":8000"),
		WorkerAddr: os.Getenv("WORKER_ADDR"),
	}

	// quick sanity
	if cfg.QueueBackend == "postgres" && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required with QUEUE_BACKEND=postgres")
	}
	if cfg.StorageBackend == "minio" && cfg.ArtifactBucket == "" {
		log.Fatal("ARTIFACT_BUCKET is required with STORAGE_BACKEND=minio")
	}
	return cfg
}
