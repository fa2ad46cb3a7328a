// Command reindex rebuilds the embedding index over every movement.
// Run it after bulk imports or when the embedding model changes.
package main

import (
	"context"

	"github.com/mcardoso/agronota/internal/config"
	"github.com/mcardoso/agronota/internal/gemini"
	"github.com/mcardoso/agronota/internal/logger"
	"github.com/mcardoso/agronota/internal/rag"
	"github.com/mcardoso/agronota/internal/store"
)

func main() {
	log := logger.New()
	cfg := config.Load()

	if !cfg.HasGeminiKey() {
		log.Fatal().Msg("GEMINI_API_KEY is required")
	}

	db, err := store.Open(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	st := store.New(db, log)

	index := rag.NewIndex(st, gemini.NewClient(cfg, log), log)
	indexed, err := index.Rebuild(context.Background())
	if err != nil {
		log.Fatal().Err(err).Int("indexed", indexed).Msg("Rebuild failed")
	}
	log.Info().Int("indexed", indexed).Msg("Rebuild complete")
}
