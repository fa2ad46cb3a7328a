// Package query turns free-text questions into structured movement
// filters, aggregates the matches, and synthesizes a natural-language
// answer.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcardoso/agronota/internal/gemini"
	"github.com/mcardoso/agronota/internal/store"
)

// Aggregation modes. Portuguese tokens are part of the wire contract.
const (
	AggList    = "lista"
	AggSum     = "soma"
	AggAverage = "media"
	AggCount   = "contagem"
)

// Filters is the structured filter object the model fills in. Nil
// means "not applicable".
type Filters struct {
	SupplierName  *string  `json:"fornecedor_nome"`
	SupplierTaxID *string  `json:"fornecedor_cnpj"`
	DateFrom      *string  `json:"data_inicio"`
	DateTo        *string  `json:"data_fim"`
	ValueMin      *float64 `json:"valor_min"`
	ValueMax      *float64 `json:"valor_max"`
	Category      *string  `json:"classificacao"`
	InvoiceNumber *string  `json:"numero_nota"`
}

// Criteria is the translated form of one question.
type Criteria struct {
	QueryType      string  `json:"tipo_consulta"`
	Filters        Filters `json:"filtros"`
	Aggregation    string  `json:"agregacao"`
	FriendlyAnswer string  `json:"resposta_amigavel"`
}

// Generator is the slice of the model client this package needs.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Translator converts questions into Criteria via one model call.
type Translator struct {
	gen Generator
	log zerolog.Logger
}

// NewTranslator creates a Translator.
func NewTranslator(gen Generator, log zerolog.Logger) *Translator {
	return &Translator{gen: gen, log: log}
}

// Translate interprets the question. It never fails: when the model is
// unreachable or its output is unusable, the whole question degrades to
// a supplier-name substring filter with a plain listing.
func (t *Translator) Translate(ctx context.Context, question string) Criteria {
	raw, err := t.gen.GenerateText(ctx, buildTranslationPrompt(question))
	if err != nil {
		t.log.Warn().Err(err).Msg("query translation unavailable, degrading to name filter")
		return FallbackCriteria(question)
	}

	var criteria Criteria
	if err := gemini.DecodeObject(raw, &criteria); err != nil {
		t.log.Warn().Err(err).Msg("query translation unparsable, degrading to name filter")
		return FallbackCriteria(question)
	}

	if criteria.Aggregation == "" {
		criteria.Aggregation = AggList
	}
	return criteria
}

// FallbackCriteria is the best-effort degradation: the raw question as
// a counterparty-name substring filter, listing mode.
func FallbackCriteria(question string) Criteria {
	return Criteria{
		QueryType:      "geral",
		Filters:        Filters{SupplierName: &question},
		Aggregation:    AggList,
		FriendlyAnswer: question,
	}
}

// MovementFilter maps translated criteria onto the store's filter.
func (c Criteria) MovementFilter() store.MovementFilter {
	f := store.MovementFilter{}
	if c.Filters.SupplierName != nil {
		f.SupplierName = *c.Filters.SupplierName
	}
	if c.Filters.SupplierTaxID != nil {
		f.SupplierTaxID = *c.Filters.SupplierTaxID
	}
	if c.Filters.DateFrom != nil {
		if d, err := time.Parse("2006-01-02", *c.Filters.DateFrom); err == nil {
			f.DateFrom = &d
		}
	}
	if c.Filters.DateTo != nil {
		if d, err := time.Parse("2006-01-02", *c.Filters.DateTo); err == nil {
			end := d.Add(24*time.Hour - time.Nanosecond)
			f.DateTo = &end
		}
	}
	f.ValueMin = c.Filters.ValueMin
	f.ValueMax = c.Filters.ValueMax
	if c.Filters.Category != nil {
		f.Category = *c.Filters.Category
	}
	if c.Filters.InvoiceNumber != nil {
		f.InvoiceNumber = *c.Filters.InvoiceNumber
	}
	return f
}

// NaturalAnswer asks the model to phrase the aggregated results as a
// direct answer; failure degrades to a static apology.
func (t *Translator) NaturalAnswer(ctx context.Context, question string, results any) string {
	prompt := fmt.Sprintf(`Você é um assistente financeiro que responde perguntas sobre notas fiscais de forma clara e objetiva.

PERGUNTA DO USUÁRIO: %q

DADOS ENCONTRADOS:
%s

Gere uma resposta em português do Brasil que:
1. Seja direta e objetiva
2. Apresente os números de forma clara (use formatação brasileira para valores)
3. Se houver muitos resultados, resuma os principais pontos
4. Se não houver resultados, explique de forma amigável

RESPOSTA:`, question, mustJSON(results))

	answer, err := t.gen.GenerateText(ctx, prompt)
	if err != nil {
		t.log.Warn().Err(err).Msg("natural answer synthesis failed")
		return "Desculpe, não consegui formular uma resposta adequada."
	}
	return answer
}

func buildTranslationPrompt(question string) string {
	today := time.Now().Format("2006-01-02")
	return fmt.Sprintf(`Você é um assistente que converte perguntas sobre notas fiscais em critérios de busca estruturados.

PERGUNTA DO USUÁRIO: %q
DATA ATUAL: %s

Analise a pergunta e retorne UM JSON com os seguintes campos (use null se não aplicável):

{
  "tipo_consulta": "fornecedor" | "periodo" | "valor" | "categoria" | "geral",
  "filtros": {
    "fornecedor_nome": "string ou null (nome ou parte do nome)",
    "fornecedor_cnpj": "string ou null (apenas números)",
    "data_inicio": "YYYY-MM-DD ou null",
    "data_fim": "YYYY-MM-DD ou null",
    "valor_min": number ou null,
    "valor_max": number ou null,
    "classificacao": "string ou null (categoria de despesa)",
    "numero_nota": "string ou null"
  },
  "agregacao": "soma" | "media" | "contagem" | "lista" | null,
  "resposta_amigavel": "string (reformule a pergunta de forma clara)"
}

EXEMPLOS:

Pergunta: "Quanto gastei com a empresa XYZ em outubro?"
Resposta: {"tipo_consulta":"fornecedor","filtros":{"fornecedor_nome":"XYZ","data_inicio":"2024-10-01","data_fim":"2024-10-31"},"agregacao":"soma","resposta_amigavel":"Total gasto com fornecedor XYZ em outubro"}

Pergunta: "Mostre todas as notas acima de R$ 5000"
Resposta: {"tipo_consulta":"valor","filtros":{"valor_min":5000},"agregacao":"lista","resposta_amigavel":"Notas fiscais com valor superior a R$ 5.000,00"}

IMPORTANTE:
- Para datas, use o formato YYYY-MM-DD
- Para valores monetários, converta para número (ex: "R$ 5.000" = 5000)
- Se o usuário mencionar "este mês" ou "hoje", use a data atual como referência
- Retorne APENAS o JSON, sem texto adicional`, question, today)
}
