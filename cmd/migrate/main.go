// Command migrate creates or updates the relational schema and exits.
package main

import (
	"github.com/mcardoso/agronota/internal/config"
	"github.com/mcardoso/agronota/internal/logger"
	"github.com/mcardoso/agronota/internal/store"
)

func main() {
	log := logger.New()
	cfg := config.Load()

	db, err := store.Open(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	if err := store.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	log.Info().Msg("Schema is up to date")
}
