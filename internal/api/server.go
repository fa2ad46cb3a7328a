// Package api exposes the HTTP surface: invoice upload and extraction,
// the two query modes, and CRUD over parties, classifications and
// movements.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mcardoso/agronota/internal/archive"
	"github.com/mcardoso/agronota/internal/config"
	"github.com/mcardoso/agronota/internal/extract"
	"github.com/mcardoso/agronota/internal/jobs"
	"github.com/mcardoso/agronota/internal/query"
	"github.com/mcardoso/agronota/internal/rag"
	"github.com/mcardoso/agronota/internal/store"
)

// MaxUploadBytes caps invoice uploads at 15MB.
const MaxUploadBytes = 15 << 20

// Server wires the handlers to their collaborators.
type Server struct {
	cfg        config.Config
	log        zerolog.Logger
	store      *store.Store
	extractor  *extract.Extractor
	translator *query.Translator
	index      *rag.Index
	archiver   *archive.Archiver
	publisher  jobs.Publisher
	jobStore   jobs.JobStore
}

// New creates a Server.
func New(
	cfg config.Config,
	log zerolog.Logger,
	st *store.Store,
	extractor *extract.Extractor,
	translator *query.Translator,
	index *rag.Index,
	archiver *archive.Archiver,
	publisher jobs.Publisher,
	jobStore jobs.JobStore,
) *Server {
	return &Server{
		cfg:        cfg,
		log:        log,
		store:      st,
		extractor:  extractor,
		translator: translator,
		index:      index,
		archiver:   archiver,
		publisher:  publisher,
		jobStore:   jobStore,
	}
}

// Router builds the gin engine with logging and recovery middleware
// and every route registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(s.requestLogger(), gin.Recovery())
	r.MaxMultipartMemory = MaxUploadBytes

	r.GET("/test", s.handleHealth)
	r.POST("/extract-data", s.handleExtract)
	r.POST("/consultar", s.handleQuery)
	r.POST("/consultar-embedding", s.handleEmbeddingQuery)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/pessoas", s.handleListParties)
		apiGroup.POST("/pessoas", s.handleCreateParty)
		apiGroup.PUT("/pessoas/:id", s.handleUpdateParty)
		apiGroup.DELETE("/pessoas/:id", s.handleDeleteParty)

		apiGroup.GET("/classificacoes", s.handleListClassifications)
		apiGroup.POST("/classificacoes", s.handleCreateClassification)
		apiGroup.PUT("/classificacoes/:id", s.handleUpdateClassification)
		apiGroup.DELETE("/classificacoes/:id", s.handleDeleteClassification)

		apiGroup.GET("/contas", s.handleListMovements)
		apiGroup.GET("/contas/:id", s.handleGetMovement)
		apiGroup.DELETE("/contas/:id", s.handleDeleteMovement)

		apiGroup.PUT("/parcelas/:id/pagamento", s.handleInstallmentPayment)

		apiGroup.POST("/reindex", s.handleReindex)
		apiGroup.GET("/jobs", s.handleListJobs)
		apiGroup.GET("/jobs/:id", s.handleGetJob)
	}

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"gemini":  s.cfg.HasGeminiKey(),
		"horario": time.Now().Format(time.RFC3339),
	})
}
