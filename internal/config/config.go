// Package config loads process configuration from the environment. Model
// identifiers are deliberately NOT cached on a struct: spec.md §9 requires
// them to be resolved lazily per call so that .env loading order never
// changes behavior. Call the accessor functions at the point of use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads a .env file if present (grounded on the teacher's
// cmd/helixagent startup sequence) and is safe to call more than once.
// Missing .env files are not an error; the process environment wins.
func Load() {
	_ = godotenv.Load()
}

// Config holds the settings that are genuinely stable for the process
// lifetime: connection strings and tunables that are not model identifiers.
type Config struct {
	DatabaseURL                  string
	ConsolidationIntervalSeconds int
	EmbeddingConcurrency         int64
	WriteConcurrency             int64
	SearchConcurrency            int64
	EmbeddingBaseURL             string
	EmbeddingAPIKey              string
	LLMBaseURL                   string
	LLMAPIKey                    string
}

const (
	defaultConsolidationIntervalSeconds = 300
	minConsolidationIntervalSeconds     = 10

	defaultEmbeddingConcurrency = 5
	defaultWriteConcurrency     = 5
	defaultSearchConcurrency    = 32
)

// FromEnv builds a Config from the current process environment. It never
// reads DATABASE_URL lazily elsewhere — that one is required up front
// because nothing can run without it — but model ids below remain
// per-call accessors.
func FromEnv() (Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(dsn) == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}

	return Config{
		DatabaseURL:                  dsn,
		ConsolidationIntervalSeconds: intEnvWithFloor("CONSOLIDATION_INTERVAL_SECONDS", defaultConsolidationIntervalSeconds, minConsolidationIntervalSeconds),
		EmbeddingConcurrency:         int64(intEnvWithFloor("EMBEDDING_CONCURRENCY", defaultEmbeddingConcurrency, 1)),
		WriteConcurrency:             int64(intEnvWithFloor("WRITE_CONCURRENCY", defaultWriteConcurrency, 1)),
		SearchConcurrency:            int64(intEnvWithFloor("SEARCH_CONCURRENCY", defaultSearchConcurrency, 1)),
		EmbeddingBaseURL:             os.Getenv("EMBEDDING_BASE_URL"),
		EmbeddingAPIKey:              os.Getenv("EMBEDDING_API_KEY"),
		LLMBaseURL:                   os.Getenv("LLM_BASE_URL"),
		LLMAPIKey:                    os.Getenv("LLM_API_KEY"),
	}, nil
}

func intEnvWithFloor(key string, def, floor int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < floor {
		return floor
	}
	return v
}

// The following are the lazy model-identifier accessors called directly
// from the LLM/embedding provider call sites, per spec.md §6/§9.

func ExtractionModelID() string {
	return envOr("EXTRACTION_MODEL_ID", "claude-3-haiku-20240307")
}

func ConsolidationModelID() string {
	return envOr("CONSOLIDATION_MODEL_ID", "claude-3-haiku-20240307")
}

func ReflectModelID() string {
	return envOr("REFLECT_MODEL_ID", "claude-sonnet-4-20250514")
}

func RerankModelID() string {
	return envOr("RERANK_MODEL_ID", "")
}

func EmbeddingModelID() string {
	return envOr("EMBEDDING_MODEL_ID", "text-embedding-3-small")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
