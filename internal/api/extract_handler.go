package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mcardoso/agronota/internal/domain"
	"github.com/mcardoso/agronota/internal/extract"
	"github.com/mcardoso/agronota/internal/jobs"
	"github.com/mcardoso/agronota/internal/store"
)

// dbAnalysis reports the persistence outcome for each entity touched
// while recording one invoice.
type dbAnalysis struct {
	Supplier       store.UpsertResult `json:"fornecedor"`
	BilledTo       store.UpsertResult `json:"faturado"`
	Classification store.UpsertResult `json:"classificacao"`
	Movement       *domain.Movement   `json:"movimento,omitempty"`
	MovementError  string             `json:"movimento_erro,omitempty"`
	Duplicate      bool               `json:"possivel_duplicata"`
}

// handleExtract receives a PDF, extracts its fields, and records the
// movement. Model failure never fails the request: the response then
// carries clearly-labeled placeholder data with fallback set.
func (s *Server) handleExtract(c *gin.Context) {
	ctx := c.Request.Context()

	file, header, err := c.Request.FormFile("invoice")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"erro":    "arquivo não enviado: use o campo multipart 'invoice'",
		})
		return
	}
	defer file.Close()

	if header.Size > MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"erro":    fmt.Sprintf("arquivo excede o limite de %dMB", MaxUploadBytes>>20),
		})
		return
	}
	if !isPDF(header.Filename, header.Header.Get("Content-Type")) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"erro":    "apenas arquivos PDF são aceitos",
		})
		return
	}

	pdf, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "erro": "falha ao ler o arquivo"})
		return
	}
	if int64(len(pdf)) > MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"erro":    fmt.Sprintf("arquivo excede o limite de %dMB", MaxUploadBytes>>20),
		})
		return
	}

	fallback := false
	fallbackMessage := ""
	invoice, err := s.extractor.ExtractPDF(ctx, pdf)
	if err != nil {
		s.log.Warn().Err(err).Str("file", header.Filename).Msg("extraction unavailable, using placeholder data")
		invoice = extract.FallbackInvoice()
		fallback = true
		fallbackMessage = "Gemini indisponível no momento. Dados temporários foram registrados e devem ser revisados."
	}

	analysis := s.persistInvoice(c, invoice)
	risk := s.extractor.AnalyzeRisk(ctx, invoice)

	var archiveURI string
	if s.archiver != nil && s.archiver.Enabled() {
		uri, err := s.archiver.StorePDF(ctx, header.Filename, pdf)
		if err != nil {
			s.log.Warn().Err(err).Msg("archival failed, continuing")
		} else {
			archiveURI = uri
		}
	}

	resp := gin.H{
		"success":      true,
		"method":       "gemini-pdf",
		"data":         invoice,
		"dbAnalysis":   analysis,
		"analiseRisco": risk,
		"fallback":     fallback,
		"metadata": gin.H{
			"arquivo":      header.Filename,
			"tamanho":      header.Size,
			"processadoEm": time.Now().Format(time.RFC3339),
			"arquivoUri":   archiveURI,
		},
	}
	if fallback {
		resp["fallbackMessage"] = fallbackMessage
	}
	c.JSON(http.StatusOK, resp)
}

// persistInvoice runs the find-or-create chain and movement insert.
// Gateway-level ERRO_DADOS results are reported, not fatal.
func (s *Server) persistInvoice(c *gin.Context, invoice *extract.Invoice) dbAnalysis {
	ctx := c.Request.Context()
	analysis := dbAnalysis{}

	supplier, err := s.store.FindOrCreateParty(ctx, invoice.Supplier.TaxID, invoice.Supplier.LegalName, invoice.Supplier.TradeName)
	if err != nil {
		supplier = store.UpsertResult{Status: store.StatusError, Message: err.Error()}
	}
	analysis.Supplier = supplier

	billedTo, err := s.store.FindOrCreateParty(ctx, invoice.BilledTo.TaxID, invoice.BilledTo.Name, "")
	if err != nil {
		billedTo = store.UpsertResult{Status: store.StatusError, Message: err.Error()}
	}
	analysis.BilledTo = billedTo

	category := invoice.ExpenseCategory
	if category == "" {
		category = extract.DefaultCategory
	}
	class, err := s.store.FindOrCreateClassification(ctx, category, domain.ClassificationKindExpense)
	if err != nil {
		class = store.UpsertResult{Status: store.StatusError, Message: err.Error()}
	}
	analysis.Classification = class

	if supplier.ID == 0 || billedTo.ID == 0 || class.ID == 0 {
		analysis.MovementError = "movimento não registrado: dados de pessoa ou classificação incompletos"
		return analysis
	}

	if invoice.InvoiceNumber != "" {
		existing, err := s.store.SearchMovements(ctx, store.MovementFilter{InvoiceNumber: invoice.InvoiceNumber})
		if err == nil {
			for _, m := range existing {
				if m.SupplierID == supplier.ID {
					analysis.Duplicate = true
					break
				}
			}
		}
	}

	cents, err := invoice.Cents()
	if err != nil {
		analysis.MovementError = fmt.Sprintf("movimento não registrado: %v", err)
		return analysis
	}

	movement, err := s.store.CreateMovement(ctx, store.MovementInput{
		InvoiceNumber:    invoice.InvoiceNumber,
		IssueDate:        parseInvoiceDate(invoice.IssueDate),
		Description:      invoice.Description,
		TotalCents:       cents,
		InstallmentCount: invoice.InstallmentCount,
		DueDate:          parseInvoiceDate(invoice.DueDate),
		SupplierID:       supplier.ID,
		BilledToID:       billedTo.ID,
		ClassificationID: class.ID,
	})
	if err != nil {
		analysis.MovementError = err.Error()
		return analysis
	}
	analysis.Movement = movement

	if s.publisher != nil {
		job := &jobs.ReindexJob{MovementID: movement.ID}
		if err := s.publisher.PublishReindex(ctx, job); err != nil {
			s.log.Warn().Err(err).Uint("movement_id", movement.ID).Msg("reindex enqueue failed")
		}
	}
	return analysis
}

// parseInvoiceDate accepts the prompt's YYYY-MM-DD plus the Brazilian
// DD/MM/YYYY the model sometimes emits anyway. Unparseable or missing
// dates fall back to today.
func parseInvoiceDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if d, err := time.Parse(layout, raw); err == nil {
			return d
		}
	}
	return time.Now().Truncate(24 * time.Hour)
}

func isPDF(filename, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}
