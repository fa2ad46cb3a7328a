// Package config loads runtime configuration from the environment.
// Everything is collected into an explicit Config value constructed in
// main and passed down; no package keeps global state.
package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

// Model names. The extraction, translation and synthesis paths all use
// the text model; embeddings use the dedicated embedding model.
const (
	DefaultTextModel      = "gemini-2.5-flash"
	DefaultEmbeddingModel = "text-embedding-004"
)

// ErrMissingAPIKey signals that an AI-backed path was reached without a
// configured Gemini key. Callers degrade instead of crashing.
var ErrMissingAPIKey = errors.New("config: GEMINI_API_KEY is not set")

// Config holds every externally supplied setting.
type Config struct {
	// Port is the HTTP listen port for cmd/api.
	Port string

	// GeminiAPIKey gates all AI-backed paths. May be empty; AI calls
	// then fail with ErrMissingAPIKey and the callers fall back.
	GeminiAPIKey string

	// DatabaseURL is a Postgres DSN. When empty the service falls back
	// to a local SQLite file at SQLitePath.
	DatabaseURL string

	// SQLitePath is the SQLite database file used when DatabaseURL is
	// empty. Defaults to "agronota.db".
	SQLitePath string

	// GCSBucket, when set, enables archival of uploaded invoice PDFs.
	GCSBucket string

	// TextModel and EmbeddingModel select the Gemini models.
	TextModel      string
	EmbeddingModel string
}

// Load reads configuration from the environment, honouring a local
// .env file when present.
func Load() Config {
	// Missing .env is fine; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := Config{
		Port:           getenv("PORT", "3000"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     getenv("SQLITE_PATH", "agronota.db"),
		GCSBucket:      os.Getenv("GCS_BUCKET"),
		TextModel:      getenv("GEMINI_TEXT_MODEL", DefaultTextModel),
		EmbeddingModel: getenv("GEMINI_EMBEDDING_MODEL", DefaultEmbeddingModel),
	}
	return cfg
}

// HasGeminiKey reports whether AI-backed paths can be attempted.
func (c Config) HasGeminiKey() bool {
	return c.GeminiAPIKey != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
