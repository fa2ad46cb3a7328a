package query

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mcardoso/agronota/internal/domain"
)

// Item is one movement flattened for the query response.
type Item struct {
	ID             uint    `json:"id"`
	InvoiceNumber  string  `json:"numero_nf"`
	Supplier       string  `json:"fornecedor"`
	Amount         float64 `json:"valor"`
	IssueDate      string  `json:"data"`
	Description    string  `json:"descricao"`
	Classification string  `json:"classificacao"`
}

// Result carries one aggregation over a set of movements. Data holds
// flattened items for listings and the raw rows for unknown modes.
// The numeric fields are pointers so a sum or average of zero still
// serializes its key while the other modes omit it.
type Result struct {
	Type             string   `json:"tipo"`
	Count            int      `json:"total"`
	Data             any      `json:"dados,omitempty"`
	TotalValue       *float64 `json:"valor_total,omitempty"`
	FormattedTotal   string   `json:"valor_total_formatado,omitempty"`
	AverageValue     *float64 `json:"valor_medio,omitempty"`
	FormattedAverage string   `json:"valor_medio_formatado,omitempty"`
}

var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders a value as Brazilian currency.
func FormatBRL(v float64) string {
	return brl.Sprintf("R$ %.2f", v)
}

// Aggregate reduces movements under the requested mode. An unknown
// mode is passed through as-is so the caller can still show the rows.
func Aggregate(movements []domain.Movement, mode string) Result {
	switch mode {
	case AggSum:
		total := sum(movements)
		return Result{
			Type:           AggSum,
			Count:          len(movements),
			TotalValue:     &total,
			FormattedTotal: FormatBRL(total),
		}
	case AggAverage:
		// No matches means an average of zero, not a division error.
		avg := 0.0
		if len(movements) > 0 {
			avg = sum(movements) / float64(len(movements))
		}
		return Result{
			Type:             AggAverage,
			Count:            len(movements),
			AverageValue:     &avg,
			FormattedAverage: FormatBRL(avg),
		}
	case AggCount:
		return Result{Type: AggCount, Count: len(movements)}
	case AggList, "":
		return Result{Type: AggList, Count: len(movements), Data: flatten(movements)}
	default:
		return Result{Type: "desconhecido", Count: len(movements), Data: movements}
	}
}

func sum(movements []domain.Movement) float64 {
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.TotalAmount)
	}
	f, _ := total.Float64()
	return f
}

func flatten(movements []domain.Movement) []Item {
	items := make([]Item, 0, len(movements))
	for _, m := range movements {
		it := Item{
			ID:            m.ID,
			InvoiceNumber: m.InvoiceNumber,
			Description:   m.Description,
		}
		it.Amount, _ = m.TotalAmount.Float64()
		if !m.IssueDate.IsZero() {
			it.IssueDate = m.IssueDate.Format("2006-01-02")
		}
		it.Supplier = m.Supplier.LegalName
		if len(m.Classifications) > 0 {
			it.Classification = m.Classifications[0].Classification.Description
		}
		items = append(items, it)
	}
	return items
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
