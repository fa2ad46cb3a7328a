package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mcardoso/agronota/internal/jobs"
)

// handleReindex enqueues a full embedding rebuild and returns the job
// id for polling.
func (s *Server) handleReindex(c *gin.Context) {
	if s.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"sucesso": false, "erro": "fila de trabalhos indisponível"})
		return
	}

	job := &jobs.ReindexJob{Full: true}
	if err := s.publisher.PublishReindex(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"sucesso": false, "erro": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"sucesso": true,
		"job_id":  job.JobID,
		"status":  job.Status,
	})
}

func (s *Server) handleListJobs(c *gin.Context) {
	if s.jobStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"sucesso": false, "erro": "fila de trabalhos indisponível"})
		return
	}

	filter := jobs.JobFilter{
		Status: jobs.JobStatus(c.Query("status")),
	}
	if raw := c.Query("movimento_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			filter.MovementID = uint(id)
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			filter.Offset = offset
		}
	}

	list, err := s.jobStore.ListJobs(c.Request.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("job listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"sucesso": false, "erro": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "total": len(list), "dados": list})
}

func (s *Server) handleGetJob(c *gin.Context) {
	if s.jobStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"sucesso": false, "erro": "fila de trabalhos indisponível"})
		return
	}

	job, err := s.jobStore.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"sucesso": false, "erro": "trabalho não encontrado"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "dados": job})
}
