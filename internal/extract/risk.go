package extract

import (
	"context"
	"fmt"

	"github.com/mcardoso/agronota/internal/gemini"
)

// RiskReport is the model's assessment of one extracted invoice. The
// content is untrusted model output, surfaced to the client verbatim.
type RiskReport struct {
	Score          float64  `json:"pontuacao_risco"`
	Alerts         []string `json:"alertas"`
	Recommendation string   `json:"recomendacao"`
}

// NeutralRiskReport is returned when the analysis itself fails.
func NeutralRiskReport() *RiskReport {
	return &RiskReport{
		Score:          0,
		Alerts:         []string{},
		Recommendation: "Análise de risco indisponível no momento. Revise a nota manualmente.",
	}
}

// AnalyzeRisk asks the model to flag inconsistencies in the extracted
// data. It never fails: any error degrades to the neutral report.
func (e *Extractor) AnalyzeRisk(ctx context.Context, invoice *Invoice) *RiskReport {
	if invoice.IsFallback() {
		return NeutralRiskReport()
	}

	prompt := buildRiskPrompt(invoice)
	raw, err := e.inv.Do(ctx, "risk-analysis", func(ctx context.Context) (string, error) {
		return e.gen.GenerateText(ctx, prompt)
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("risk analysis unavailable, returning neutral report")
		return NeutralRiskReport()
	}

	var report RiskReport
	if err := gemini.DecodeObject(raw, &report); err != nil {
		e.log.Warn().Err(err).Msg("risk analysis unparsable, returning neutral report")
		return NeutralRiskReport()
	}
	if report.Alerts == nil {
		report.Alerts = []string{}
	}
	return &report
}

func buildRiskPrompt(invoice *Invoice) string {
	return fmt.Sprintf(`Você é um auditor de notas fiscais. Analise os dados extraídos abaixo e avalie o risco de inconsistência ou fraude.

DADOS DA NOTA:
- Fornecedor: %s (CNPJ: %s)
- Faturado: %s (CPF/CNPJ: %s)
- Número da nota: %s
- Data de emissão: %s
- Valor total (centavos): %s
- Parcelas: %d
- Classificação: %s
- Produtos: %s

Verifique: CNPJ/CPF com formato plausível, valores coerentes com a descrição, datas consistentes, classificação adequada aos produtos.

Retorne APENAS um JSON:
{
  "pontuacao_risco": number de 0 a 10 (0 = sem risco, 10 = risco máximo),
  "alertas": ["lista de problemas encontrados, vazia se nenhum"],
  "recomendacao": "string com orientação curta"
}`,
		invoice.Supplier.LegalName, invoice.Supplier.TaxID,
		invoice.BilledTo.Name, invoice.BilledTo.TaxID,
		invoice.InvoiceNumber, invoice.IssueDate,
		invoice.TotalCents, invoice.InstallmentCount,
		invoice.ExpenseCategory, invoice.Description)
}
