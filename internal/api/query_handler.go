package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mcardoso/agronota/internal/query"
)

type questionRequest struct {
	Question string `json:"pergunta"`
}

// handleQuery answers via the structured path: translate the question
// into filters, search, aggregate, then phrase the result.
func (s *Server) handleQuery(c *gin.Context) {
	ctx := c.Request.Context()

	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"sucesso": false,
			"erro":    "campo 'pergunta' é obrigatório",
		})
		return
	}

	criteria := s.translator.Translate(ctx, req.Question)

	movements, err := s.store.SearchMovements(ctx, criteria.MovementFilter())
	if err != nil {
		s.log.Error().Err(err).Msg("movement search failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"sucesso": false,
			"erro":    "falha ao consultar o banco de dados",
		})
		return
	}

	results := query.Aggregate(movements, criteria.Aggregation)
	answer := s.translator.NaturalAnswer(ctx, req.Question, results)

	c.JSON(http.StatusOK, gin.H{
		"sucesso":    true,
		"pergunta":   req.Question,
		"criterios":  criteria,
		"resultados": results,
		"resposta":   answer,
	})
}

// handleEmbeddingQuery answers via retrieval: nearest invoice contexts
// by cosine distance, then synthesis grounded on them only.
func (s *Server) handleEmbeddingQuery(c *gin.Context) {
	ctx := c.Request.Context()

	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"sucesso": false,
			"erro":    "campo 'pergunta' é obrigatório",
		})
		return
	}

	answer, matches := s.index.Answer(ctx, req.Question)

	c.JSON(http.StatusOK, gin.H{
		"sucesso":   true,
		"pergunta":  req.Question,
		"resposta":  answer,
		"contextos": matches,
	})
}
