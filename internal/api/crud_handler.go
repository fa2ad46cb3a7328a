package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mcardoso/agronota/internal/store"
)

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"sucesso": false, "erro": "id inválido"})
		return 0, false
	}
	return uint(id), true
}

func listFilterFromQuery(c *gin.Context) store.ListFilter {
	return store.ListFilter{
		Term:            c.Query("termo"),
		Kind:            c.Query("tipo"),
		IncludeInactive: c.Query("todos") == "true",
	}
}

func (s *Server) writeUpsert(c *gin.Context, res store.UpsertResult, err error) {
	if err != nil {
		s.log.Error().Err(err).Msg("gateway operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"sucesso": false, "erro": err.Error()})
		return
	}
	code := http.StatusOK
	switch res.Status {
	case store.StatusCreated:
		code = http.StatusCreated
	case store.StatusErrorData:
		code = http.StatusBadRequest
	}
	c.JSON(code, res)
}

func (s *Server) writeOp(c *gin.Context, res store.OpResult, err error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"sucesso": false, "erro": "registro não encontrado"})
			return
		}
		s.log.Error().Err(err).Msg("gateway operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"sucesso": false, "erro": err.Error()})
		return
	}
	code := http.StatusOK
	if res.Status == store.StatusError {
		code = http.StatusConflict
	}
	c.JSON(code, res)
}

// Parties.

func (s *Server) handleListParties(c *gin.Context) {
	parties, err := s.store.ListParties(c.Request.Context(), listFilterFromQuery(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"sucesso": false, "erro": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "total": len(parties), "dados": parties})
}

func (s *Server) handleCreateParty(c *gin.Context) {
	var req struct {
		TaxID     string `json:"documento"`
		LegalName string `json:"razaosocial"`
		TradeName string `json:"fantasia"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"sucesso": false, "erro": "corpo JSON inválido"})
		return
	}
	res, err := s.store.FindOrCreateParty(c.Request.Context(), req.TaxID, req.LegalName, req.TradeName)
	s.writeUpsert(c, res, err)
}

func (s *Server) handleUpdateParty(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"sucesso": false, "erro": "corpo JSON inválido"})
		return
	}
	party, err := s.store.UpdateParty(c.Request.Context(), id, patch)
	if err != nil {
		s.writeOp(c, store.OpResult{}, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "dados": party})
}

func (s *Server) handleDeleteParty(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := s.store.SoftDeleteParty(c.Request.Context(), id)
	s.writeOp(c, res, err)
}

// Classifications.

func (s *Server) handleListClassifications(c *gin.Context) {
	classes, err := s.store.ListClassifications(c.Request.Context(), listFilterFromQuery(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"sucesso": false, "erro": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "total": len(classes), "dados": classes})
}

func (s *Server) handleCreateClassification(c *gin.Context) {
	var req struct {
		Description string `json:"descricao"`
		Kind        string `json:"tipo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"sucesso": false, "erro": "corpo JSON inválido"})
		return
	}
	res, err := s.store.FindOrCreateClassification(c.Request.Context(), req.Description, req.Kind)
	s.writeUpsert(c, res, err)
}

func (s *Server) handleUpdateClassification(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"sucesso": false, "erro": "corpo JSON inválido"})
		return
	}
	class, err := s.store.UpdateClassification(c.Request.Context(), id, patch)
	if err != nil {
		s.writeOp(c, store.OpResult{}, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "dados": class})
}

func (s *Server) handleDeleteClassification(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := s.store.SoftDeleteClassification(c.Request.Context(), id)
	s.writeOp(c, res, err)
}

// Movements.

func (s *Server) handleListMovements(c *gin.Context) {
	f := store.MovementFilter{
		SupplierName:  c.Query("fornecedor"),
		SupplierTaxID: c.Query("cnpj"),
		Category:      c.Query("classificacao"),
		InvoiceNumber: c.Query("numero_nota"),
		Status:        c.Query("status"),
		Term:          c.Query("termo"),
		IncludeAll:    c.Query("todos") == "true",
	}
	if raw := c.Query("data_inicio"); raw != "" {
		if d, err := time.Parse("2006-01-02", raw); err == nil {
			f.DateFrom = &d
		}
	}
	if raw := c.Query("data_fim"); raw != "" {
		if d, err := time.Parse("2006-01-02", raw); err == nil {
			end := d.Add(24*time.Hour - time.Nanosecond)
			f.DateTo = &end
		}
	}
	if raw := c.Query("valor_min"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			f.ValueMin = &v
		}
	}
	if raw := c.Query("valor_max"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			f.ValueMax = &v
		}
	}

	movements, err := s.store.SearchMovements(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"sucesso": false, "erro": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "total": len(movements), "dados": movements})
}

func (s *Server) handleGetMovement(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	movement, err := s.store.GetMovement(c.Request.Context(), id)
	if err != nil {
		s.writeOp(c, store.OpResult{}, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "dados": movement})
}

func (s *Server) handleDeleteMovement(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := s.store.SoftDeleteMovement(c.Request.Context(), id)
	s.writeOp(c, res, err)
}

// Installments.

func (s *Server) handleInstallmentPayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Paid float64 `json:"valorpago"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Paid < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"sucesso": false, "erro": "campo 'valorpago' inválido"})
		return
	}

	installment, err := s.store.RegisterInstallmentPayment(c.Request.Context(), id, decimal.NewFromFloat(req.Paid))
	if err != nil {
		s.writeOp(c, store.OpResult{}, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "dados": installment})
}
