package extract

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcardoso/agronota/internal/gemini"
	"github.com/mcardoso/agronota/internal/logger"
)

const sampleResponse = "```json\n" + `{
  "fornecedor": {"razao_social": "AGRO INSUMOS LTDA", "fantasia": "AgroMax", "cnpj": "18944113000291"},
  "faturado": {"nome_completo": "JOSE DA SILVA", "cpf": "70904601188"},
  "numero_nota_fiscal": "000207590",
  "data_emissao": "2024-10-02",
  "descricao_produtos": "Fertilizante NPK 20kg",
  "quantidade_parcelas": 2,
  "data_vencimento": "2024-11-02",
  "valor_total": 344900,
  "classificacao_despesa": "INSUMOS AGRÍCOLAS"
}` + "\n```"

func TestParseInvoice(t *testing.T) {
	invoice, err := ParseInvoice(sampleResponse)
	require.NoError(t, err)

	assert.Equal(t, "AGRO INSUMOS LTDA", invoice.Supplier.LegalName)
	assert.Equal(t, "18944113000291", invoice.Supplier.TaxID)
	assert.Equal(t, "JOSE DA SILVA", invoice.BilledTo.Name)
	assert.Equal(t, "000207590", invoice.InvoiceNumber)
	assert.Equal(t, 2, invoice.InstallmentCount)
	assert.Equal(t, "INSUMOS AGRÍCOLAS", invoice.ExpenseCategory)

	cents, err := invoice.Cents()
	require.NoError(t, err)
	assert.Equal(t, int64(344900), cents)
}

func TestParseInvoiceDefaultsInstallmentCount(t *testing.T) {
	invoice, err := ParseInvoice(`{"fornecedor":{},"faturado":{},"valor_total":1000}`)
	require.NoError(t, err)
	assert.Equal(t, 1, invoice.InstallmentCount)
}

func TestParseInvoiceRejectsWrongShape(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no json at all", "could not read the document, sorry"},
		{"wrong object", `{"operacao": "CONSULTAR"}`},
		{"malformed", "{fornecedor: oops}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInvoice(tt.raw)
			assert.Error(t, err)
		})
	}
}

type fakeGenerator struct {
	responses []string
	errs      []error
	calls     int

	textReply string
	textErr   error
}

func (f *fakeGenerator) GenerateFromPDF(_ context.Context, _ string, _ []byte) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	return f.responses[i], nil
}

func (f *fakeGenerator) GenerateText(_ context.Context, _ string) (string, error) {
	return f.textReply, f.textErr
}

func TestExtractPDFRetriesOverload(t *testing.T) {
	gen := &fakeGenerator{
		errs:      []error{errors.New("503 overloaded"), nil},
		responses: []string{"", sampleResponse},
	}
	log := logger.NewWithWriter(io.Discard)
	inv := gemini.NewInvoker(log)
	inv.Sleep = func(time.Duration) {}

	extractor := New(gen, inv, log)
	invoice, err := extractor.ExtractPDF(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, "000207590", invoice.InvoiceNumber)
}

func TestExtractPDFPropagatesHardFailure(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("invalid argument")}, responses: []string{""}}
	log := logger.NewWithWriter(io.Discard)
	inv := gemini.NewInvoker(log)
	inv.Sleep = func(time.Duration) {}

	extractor := New(gen, inv, log)
	_, err := extractor.ExtractPDF(context.Background(), []byte("%PDF-1.4"))
	assert.Error(t, err)
	assert.Equal(t, 1, gen.calls)
}

func TestFallbackInvoiceIsLabeled(t *testing.T) {
	invoice := FallbackInvoice()
	assert.True(t, invoice.IsFallback())
	assert.Equal(t, DefaultCategory, invoice.ExpenseCategory)
	assert.Equal(t, 1, invoice.InstallmentCount)
}

func TestBuildPromptListsAllCategories(t *testing.T) {
	prompt := BuildPrompt()
	for _, cat := range ExpenseCategories {
		assert.Contains(t, prompt, cat)
	}
	assert.Contains(t, prompt, "valor_total")
}

func TestAnalyzeRisk(t *testing.T) {
	log := logger.NewWithWriter(io.Discard)
	inv := gemini.NewInvoker(log)
	inv.Sleep = func(time.Duration) {}

	invoice, err := ParseInvoice(sampleResponse)
	require.NoError(t, err)

	t.Run("parses the model report", func(t *testing.T) {
		gen := &fakeGenerator{textReply: `{"pontuacao_risco": 2, "alertas": ["valor alto"], "recomendacao": "conferir"}`}
		report := New(gen, inv, log).AnalyzeRisk(context.Background(), invoice)

		assert.InDelta(t, 2, report.Score, 0.001)
		assert.Equal(t, []string{"valor alto"}, report.Alerts)
		assert.Equal(t, "conferir", report.Recommendation)
	})

	t.Run("degrades to neutral on model failure", func(t *testing.T) {
		gen := &fakeGenerator{textErr: errors.New("overloaded")}
		report := New(gen, inv, log).AnalyzeRisk(context.Background(), invoice)

		assert.Equal(t, NeutralRiskReport(), report)
	})

	t.Run("skips the model for fallback invoices", func(t *testing.T) {
		gen := &fakeGenerator{textErr: errors.New("should not be called")}
		report := New(gen, inv, log).AnalyzeRisk(context.Background(), FallbackInvoice())

		assert.Equal(t, NeutralRiskReport(), report)
	})
}
