// Package store is the find-or-create persistence gateway. Every
// entity follows the same contract: look up by natural key, create
// with an active status when absent, and report a tri-state result.
// Deletes are soft and refused while the row is referenced.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mcardoso/agronota/internal/config"
	"github.com/mcardoso/agronota/internal/domain"
)

// Result statuses shared by every gateway operation. The Portuguese
// tokens are part of the wire contract.
const (
	StatusExists    = "EXISTE"
	StatusCreated   = "CRIADO"
	StatusErrorData = "ERRO_DADOS"
	StatusError     = "ERRO"
	StatusSuccess   = "SUCESSO"
)

// UpsertResult is the outcome of a find-or-create operation.
type UpsertResult struct {
	Status  string `json:"status"`
	ID      uint   `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Record  any    `json:"data,omitempty"`
}

// OpResult is the outcome of an update or soft-delete.
type OpResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Store implements the gateway over a single gorm connection.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// New wraps an open database handle.
func New(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

// DB exposes the underlying handle for packages that run their own
// queries (the vector index).
func (s *Store) DB() *gorm.DB { return s.db }

// Open connects to Postgres when DATABASE_URL is set, otherwise to the
// local SQLite file. TranslateError lets duplicate-key failures surface
// as gorm.ErrDuplicatedKey on both drivers.
func Open(cfg config.Config, log zerolog.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	if cfg.DatabaseURL != "" {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	} else {
		log.Warn().Str("path", cfg.SQLitePath).Msg("DATABASE_URL not set, using local SQLite database")
		db, err = gorm.Open(sqlite.Open(cfg.SQLitePath), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates the relational schema.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.All()...); err != nil {
		return fmt.Errorf("store: migrate schema: %w", err)
	}
	return nil
}

// NormalizeTaxID strips every non-digit character from a CPF/CNPJ, the
// form used for all lookups and writes.
func NormalizeTaxID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PartyKindFor infers the party kind from the normalized tax id:
// more than 11 digits means a CNPJ, hence an organization.
func PartyKindFor(taxID string) string {
	if len(taxID) > 11 {
		return domain.PartyKindOrganization
	}
	return domain.PartyKindIndividual
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "duplicate key")
}
