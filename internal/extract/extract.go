// Package extract implements the invoice extraction contract: the NFe
// prompt sent to the model alongside the PDF, the tolerant decode of
// the JSON it returns, and the labeled fallback record used when the
// model is unavailable.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcardoso/agronota/internal/gemini"
)

// ExpenseCategories is the closed set of expense classifications the
// prompt offers. The model's choice is NOT validated against it;
// downstream consumers treat the category as untrusted input.
var ExpenseCategories = []string{
	"INSUMOS AGRÍCOLAS",
	"MANUTENÇÃO E OPERAÇÃO",
	"RECURSOS HUMANOS",
	"SERVIÇOS OPERACIONAIS",
	"INFRAESTRUTURA E UTILIDADES",
	"ADMINISTRATIVAS",
	"SEGUROS E PROTEÇÃO",
	"IMPOSTOS E TAXAS",
	"INVESTIMENTOS",
}

// DefaultCategory is the documented fallback expense category.
const DefaultCategory = "ADMINISTRATIVAS"

// FallbackSupplierName labels extraction results produced without the
// model. The HTTP layer uses it to flag fallback payloads.
const FallbackSupplierName = "DADOS TEMPORÁRIOS - GEMINI INDISPONÍVEL"

// SupplierInfo identifies the issuing party of the invoice.
type SupplierInfo struct {
	LegalName string `json:"razao_social"`
	TradeName string `json:"fantasia"`
	TaxID     string `json:"cnpj"`
}

// BilledToInfo identifies the party the invoice was issued to.
type BilledToInfo struct {
	Name  string `json:"nome_completo"`
	TaxID string `json:"cpf"`
}

// Invoice is the fixed JSON shape expected back from the model.
// TotalCents follows the minor-currency-unit convention (344900 means
// R$ 3.449,00).
type Invoice struct {
	Supplier         SupplierInfo `json:"fornecedor"`
	BilledTo         BilledToInfo `json:"faturado"`
	InvoiceNumber    string       `json:"numero_nota_fiscal"`
	IssueDate        string       `json:"data_emissao"`
	Description      string       `json:"descricao_produtos"`
	InstallmentCount int          `json:"quantidade_parcelas"`
	DueDate          string       `json:"data_vencimento"`
	TotalCents       json.Number  `json:"valor_total"`
	ExpenseCategory  string       `json:"classificacao_despesa"`
}

// Cents returns the total amount in minor currency units.
func (inv *Invoice) Cents() (int64, error) {
	if inv.TotalCents == "" {
		return 0, fmt.Errorf("invoice has no valor_total")
	}
	// The model occasionally emits the total as a float.
	f, err := inv.TotalCents.Float64()
	if err != nil {
		return 0, fmt.Errorf("valor_total %q is not numeric: %w", inv.TotalCents, err)
	}
	return int64(f), nil
}

// Generator is the slice of the model client this package needs.
type Generator interface {
	GenerateFromPDF(ctx context.Context, prompt string, pdf []byte) (string, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Extractor runs the extraction contract through the retry wrapper.
type Extractor struct {
	gen Generator
	inv *gemini.Invoker
	log zerolog.Logger
}

// New creates an Extractor.
func New(gen Generator, inv *gemini.Invoker, log zerolog.Logger) *Extractor {
	return &Extractor{gen: gen, inv: inv, log: log}
}

// ExtractPDF asks the model for the structured invoice fields of the
// given PDF. Transient overload is retried; a malformed response is a
// hard error.
func (e *Extractor) ExtractPDF(ctx context.Context, pdf []byte) (*Invoice, error) {
	prompt := BuildPrompt()

	raw, err := e.inv.Do(ctx, "extract-invoice", func(ctx context.Context) (string, error) {
		return e.gen.GenerateFromPDF(ctx, prompt, pdf)
	})
	if err != nil {
		return nil, err
	}

	invoice, err := ParseInvoice(raw)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	e.log.Info().
		Str("invoice_number", invoice.InvoiceNumber).
		Str("supplier", invoice.Supplier.LegalName).
		Str("category", invoice.ExpenseCategory).
		Msg("invoice extracted")

	return invoice, nil
}

// ParseInvoice decodes raw model output into an Invoice, tolerating
// code fences and surrounding prose. Missing required top-level keys
// are rejected rather than trusted as a partial match.
func ParseInvoice(raw string) (*Invoice, error) {
	obj, err := gemini.ExtractObject(gemini.StripFences(raw))
	if err != nil {
		return nil, err
	}

	// Shape check before the typed decode: a brace-matched substring
	// can be any object, so require the contract's top-level keys.
	var shape map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &shape); err != nil {
		return nil, fmt.Errorf("decode invoice JSON: %w", err)
	}
	for _, key := range []string{"fornecedor", "faturado", "valor_total"} {
		if _, ok := shape[key]; !ok {
			return nil, fmt.Errorf("invoice JSON missing required key %q", key)
		}
	}

	var invoice Invoice
	if err := json.Unmarshal([]byte(obj), &invoice); err != nil {
		return nil, fmt.Errorf("decode invoice JSON: %w", err)
	}

	if invoice.InstallmentCount <= 0 {
		invoice.InstallmentCount = 1
	}
	return &invoice, nil
}

// FallbackInvoice builds the clearly-labeled record returned when the
// model is unreachable or no API key is configured. Extraction must
// degrade, never crash the request.
func FallbackInvoice() *Invoice {
	today := time.Now().Format("2006-01-02")
	return &Invoice{
		Supplier: SupplierInfo{
			LegalName: FallbackSupplierName,
			TradeName: "FALLBACK",
			TaxID:     "00000000000000",
		},
		BilledTo: BilledToInfo{
			Name:  "USUÁRIO TEMPORÁRIO",
			TaxID: "00000000000",
		},
		InvoiceNumber:    "TEMPORÁRIO",
		IssueDate:        today,
		Description:      "Dados temporários devido à indisponibilidade do serviço Gemini",
		InstallmentCount: 1,
		DueDate:          today,
		TotalCents:       "0",
		ExpenseCategory:  DefaultCategory,
	}
}

// IsFallback reports whether the invoice is the labeled fallback record.
func (inv *Invoice) IsFallback() bool {
	return inv.Supplier.LegalName == FallbackSupplierName
}

// BuildPrompt assembles the NFe extraction prompt with the category
// list and the response schema.
func BuildPrompt() string {
	var b strings.Builder

	b.WriteString("Você é um especialista em análise de notas fiscais brasileiras (NFe). ")
	b.WriteString("Analise este documento PDF de uma nota fiscal e extraia EXATAMENTE os seguintes dados em formato JSON válido.\n\n")

	b.WriteString("INSTRUÇÕES CRÍTICAS:\n")
	b.WriteString("- Use 'null' se a informação não for encontrada\n")
	b.WriteString("- Para datas, use formato YYYY-MM-DD\n")
	b.WriteString("- Para valores monetários, use apenas números (sem R$ e vírgulas, use somente ponto para separador decimal)\n")
	b.WriteString("- Para CNPJ/CPF, mantenha apenas números\n")
	b.WriteString("- Para classificação de despesa, analise os produtos/serviços e escolha UMA categoria mais adequada\n\n")

	b.WriteString("ATENÇÃO ESPECIAL - NÃO CONFUNDA ESTES CAMPOS:\n")
	b.WriteString("- NÚMERO DA NOTA FISCAL: aparece como \"NF-e N°:\" ou \"N°:\" seguido de números (exemplo: \"000.207.590\")\n")
	b.WriteString("- CNPJ DO FORNECEDOR: formato XX.XXX.XXX/XXXX-XX, geralmente na seção do emitente\n")
	b.WriteString("- CNPJ/CPF DO DESTINATÁRIO: na seção \"DESTINATÁRIO/REMETENTE\"\n\n")

	b.WriteString("CATEGORIAS DE DESPESAS DISPONÍVEIS:\n")
	for i, cat := range ExpenseCategories {
		fmt.Fprintf(&b, "%d. %s\n", i+1, cat)
	}

	b.WriteString("\nFORMATO DE RESPOSTA (JSON):\n")
	b.WriteString(`{
    "fornecedor": {
        "razao_social": "string ou null (nome da empresa emitente)",
        "fantasia": "string ou null (nome fantasia se houver)",
        "cnpj": "apenas números ou null (CNPJ da empresa EMITENTE/FORNECEDORA)"
    },
    "faturado": {
        "nome_completo": "string ou null (nome do DESTINATÁRIO)",
        "cpf": "apenas números ou null (CPF/CNPJ do DESTINATÁRIO)"
    },
    "numero_nota_fiscal": "string ou null",
    "data_emissao": "YYYY-MM-DD ou null",
    "descricao_produtos": "descrição detalhada dos produtos/serviços ou null",
    "quantidade_parcelas": 1,
    "data_vencimento": "YYYY-MM-DD ou null",
    "valor_total": "número ou null (valor em centavos, ex: 344900 para R$ 3.449,00)",
    "classificacao_despesa": "uma das categorias acima ou null"
}`)

	b.WriteString("\n\nEXEMPLOS PARA EVITAR CONFUSÃO:\n")
	b.WriteString("- Se vir \"N°: 000.207.590\", então numero_nota_fiscal = \"000207590\"\n")
	b.WriteString("- Se vir CNPJ \"18.944.113/0002-91\" na seção do emitente, então fornecedor.cnpj = \"18944113000291\"\n")
	b.WriteString("- Se vir CPF \"709.046.011-88\" na seção destinatário, então faturado.cpf = \"70904601188\"\n\n")

	b.WriteString("RESPOSTA: Retorne APENAS o JSON válido, sem comentários, explicações ou formatação markdown.")

	return b.String()
}
