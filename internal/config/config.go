package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment
// variables. It is immutable after Load() returns.
type Config struct {
	Port        int
	Environment string

	DatabaseURL      string
	DatabaseMaxConns int

	DemoMode bool

	GCPProject       string
	GCPRegion        string
	VertexAILocation string
	EmbeddingModel   string
	EmbeddingDims    int
	ChatModel        string

	ChunkSize    int
	ChunkOverlap int
	MaxChunks    int

	CitationThreshold float64

	SearchCacheCapacity int
	SearchCacheTTL      time.Duration

	SummaryConcurrency int

	EmbeddingAPIKey string
	LLMAPIKey       string

	RedisURL      string
	GCSBucketName string
	PubSubTopicID string

	FrontendURL string
}

// Load reads configuration from environment variables.
// DATABASE_URL and GOOGLE_CLOUD_PROJECT are required unless DEMO_MODE
// is set, in which case the core falls back to an in-memory vector
// store and deterministic embedding/LLM stand-ins.
func Load() (*Config, error) {
	demoMode := os.Getenv("DEMO_MODE") != ""

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" && !demoMode {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required (unless DEMO_MODE is set)")
	}

	gcpProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if gcpProject == "" && !demoMode {
		return nil, fmt.Errorf("config.Load: GOOGLE_CLOUD_PROJECT is required (unless DEMO_MODE is set)")
	}

	cfg := &Config{
		Port:        envInt("PORT", 8080),
		Environment: envStr("ENVIRONMENT", "development"),

		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),

		DemoMode: demoMode,

		GCPProject:       gcpProject,
		GCPRegion:        envStr("GCP_REGION", "us-east4"),
		VertexAILocation: envStr("VERTEX_AI_LOCATION", "global"),
		EmbeddingModel:   envStr("EMBEDDING_MODEL", "text-embedding-ada-002"),
		EmbeddingDims:    envInt("EMBEDDING_DIMENSIONS", 768),
		ChatModel:        envStr("CHAT_MODEL", "gpt-3.5-turbo"),

		ChunkSize:    envInt("CHUNK_SIZE", 1000),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 100),
		MaxChunks:    envInt("MAX_CHUNKS", 50),

		CitationThreshold: envFloat("CITATION_THRESHOLD", 0.40),

		SearchCacheCapacity: envInt("SEARCH_CACHE_CAPACITY", 1000),
		SearchCacheTTL:      time.Duration(envInt("SEARCH_CACHE_TTL_SEC", 3600)) * time.Second,

		SummaryConcurrency: envInt("SUMMARY_CONCURRENCY", 4),

		EmbeddingAPIKey: envStr("EMBEDDING_API_KEY", ""),
		LLMAPIKey:       envStr("LLM_API_KEY", ""),

		RedisURL:      envStr("REDIS_URL", ""),
		GCSBucketName: envStr("GCS_BUCKET_NAME", ""),
		PubSubTopicID: envStr("PUBSUB_TOPIC_ID", ""),

		FrontendURL: envStr("FRONTEND_URL", "http://localhost:3000"),
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
