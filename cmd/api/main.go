package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcardoso/agronota/internal/api"
	"github.com/mcardoso/agronota/internal/archive"
	"github.com/mcardoso/agronota/internal/config"
	"github.com/mcardoso/agronota/internal/extract"
	"github.com/mcardoso/agronota/internal/gemini"
	"github.com/mcardoso/agronota/internal/jobs"
	"github.com/mcardoso/agronota/internal/jobs/inmemory"
	"github.com/mcardoso/agronota/internal/logger"
	"github.com/mcardoso/agronota/internal/query"
	"github.com/mcardoso/agronota/internal/rag"
	"github.com/mcardoso/agronota/internal/store"
)

func main() {
	// Parse command-line flags
	var (
		port   = flag.String("port", "", "HTTP server port (overrides PORT env)")
		bucket = flag.String("bucket", "", "GCS bucket name for invoice archival (overrides GCS_BUCKET env)")
	)
	flag.Parse()

	log := logger.New()
	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}
	if *bucket != "" {
		cfg.GCSBucket = *bucket
	}

	if !cfg.HasGeminiKey() {
		log.Warn().Msg("GEMINI_API_KEY not set - extraction and queries will run in degraded mode")
	}

	db, err := store.Open(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	if err := store.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate schema")
	}
	st := store.New(db, log)

	client := gemini.NewClient(cfg, log)
	invoker := gemini.NewInvoker(log)
	extractor := extract.New(client, invoker, log)
	translator := query.NewTranslator(client, log)
	index := rag.NewIndex(st, client, log)
	archiver := archive.New(cfg.GCSBucket, log)
	if !archiver.Enabled() {
		log.Warn().Msg("No GCS bucket configured - invoice archival disabled")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		reindexJob, ok := job.(*jobs.ReindexJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		if reindexJob.Full {
			indexed, err := index.Rebuild(ctx)
			if err != nil {
				return err
			}
			reindexJob.Indexed = indexed
			return nil
		}
		return index.UpsertMovement(ctx, reindexJob.MovementID)
	}

	go func() {
		log.Info().Msg("Starting index worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Index worker stopped with error")
		}
	}()

	// Warm the embedding index so retrieval queries work right after a
	// restart. The in-memory queue forgets jobs across restarts.
	if cfg.HasGeminiKey() {
		if err := jobQueue.PublishReindex(workerCtx, &jobs.ReindexJob{Full: true}); err != nil {
			log.Warn().Err(err).Msg("Startup reindex enqueue failed")
		}
	}

	server := api.New(cfg, log, st, extractor, translator, index, archiver, jobQueue, jobStore)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Queue shutdown failed")
	}
}
