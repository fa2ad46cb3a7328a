// Package rag maintains an embedding index over persisted movements
// and answers questions from the retrieved context only.
package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mcardoso/agronota/internal/domain"
	"github.com/mcardoso/agronota/internal/query"
	"github.com/mcardoso/agronota/internal/store"
)

const (
	// TopK is how many contexts back one answer.
	TopK = 5
	// rebuildBatchSize bounds concurrent embedding calls during a full
	// rebuild, matching the upstream API's comfort zone.
	rebuildBatchSize = 10
)

// Apology is returned whenever retrieval or synthesis cannot proceed.
const Apology = "Desculpe, não consegui processar sua pergunta no momento. Tente novamente em alguns instantes."

// Embedder is the slice of the model client this package needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Index loads, refreshes, and searches the documento_contexto table.
type Index struct {
	st  *store.Store
	emb Embedder
	log zerolog.Logger
}

// NewIndex creates an Index.
func NewIndex(st *store.Store, emb Embedder, log zerolog.Logger) *Index {
	return &Index{st: st, emb: emb, log: log}
}

// ChunkText renders one movement as the prose passage that gets
// embedded. Everything a question could ask about goes in.
func ChunkText(m domain.Movement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nota fiscal %s emitida em %s pelo fornecedor %s (documento %s) para %s.",
		m.InvoiceNumber, m.IssueDate.Format("02/01/2006"),
		m.Supplier.LegalName, m.Supplier.TaxID, m.BilledTo.LegalName)
	amount, _ := m.TotalAmount.Float64()
	fmt.Fprintf(&b, " Valor total de %s", query.FormatBRL(amount))
	if n := len(m.Installments); n > 1 {
		per, _ := m.TotalAmount.Div(decimal.NewFromInt(int64(n))).Round(2).Float64()
		fmt.Fprintf(&b, " em %d parcelas de %s", n, query.FormatBRL(per))
	}
	b.WriteString(".")
	if len(m.Classifications) > 0 {
		fmt.Fprintf(&b, " Classificação: %s.", m.Classifications[0].Classification.Description)
	}
	if m.Description != "" {
		fmt.Fprintf(&b, " Produtos: %s.", m.Description)
	}
	return b.String()
}

// UpsertMovement embeds one movement and writes its context row,
// replacing any previous row for the same movement. This keeps the
// index current without re-embedding the whole table on every write.
func (ix *Index) UpsertMovement(ctx context.Context, movementID uint) error {
	m, err := ix.st.GetMovement(ctx, movementID)
	if err != nil {
		return fmt.Errorf("UpsertMovement: load movement %d: %w", movementID, err)
	}

	text := ChunkText(*m)
	vec, err := ix.emb.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("UpsertMovement: embed movement %d: %w", movementID, err)
	}

	doc, err := buildDocument(*m, text, vec)
	if err != nil {
		return fmt.Errorf("UpsertMovement: %w", err)
	}

	db := ix.st.DB().WithContext(ctx)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("movement_id = ?", movementID).Delete(&domain.DocumentContext{}).Error; err != nil {
			return err
		}
		return tx.Create(&doc).Error
	})
	if err != nil {
		return fmt.Errorf("UpsertMovement: store context for movement %d: %w", movementID, err)
	}

	ix.log.Debug().Uint("movement_id", movementID).Int("dims", len(vec)).Msg("context indexed")
	return nil
}

// Rebuild re-embeds every active movement, batching embedding calls.
// Returns how many contexts were written.
func (ix *Index) Rebuild(ctx context.Context) (int, error) {
	all, err := ix.st.ListAllMovements(ctx)
	if err != nil {
		return 0, fmt.Errorf("Rebuild: list movements: %w", err)
	}

	db := ix.st.DB().WithContext(ctx)
	if err := db.Where("1 = 1").Delete(&domain.DocumentContext{}).Error; err != nil {
		return 0, fmt.Errorf("Rebuild: clear index: %w", err)
	}

	indexed := 0
	for start := 0; start < len(all); start += rebuildBatchSize {
		end := start + rebuildBatchSize
		if end > len(all) {
			end = len(all)
		}
		batch := all[start:end]

		docs := make([]*domain.DocumentContext, len(batch))
		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				text := ChunkText(batch[i])
				vec, err := ix.emb.Embed(ctx, text)
				if err != nil {
					ix.log.Warn().Err(err).Uint("movement_id", batch[i].ID).Msg("skipping movement, embedding failed")
					return
				}
				doc, err := buildDocument(batch[i], text, vec)
				if err != nil {
					ix.log.Warn().Err(err).Uint("movement_id", batch[i].ID).Msg("skipping movement")
					return
				}
				docs[i] = &doc
			}(i)
		}
		wg.Wait()

		for _, doc := range docs {
			if doc == nil {
				continue
			}
			if err := db.Create(doc).Error; err != nil {
				return indexed, fmt.Errorf("Rebuild: store context for movement %d: %w", doc.MovementID, err)
			}
			indexed++
		}
	}

	ix.log.Info().Int("indexed", indexed).Int("movements", len(all)).Msg("index rebuilt")
	return indexed, nil
}

// Match is one retrieved context with its distance to the question.
type Match struct {
	MovementID uint    `json:"movimento_id"`
	Text       string  `json:"texto"`
	Distance   float64 `json:"distancia"`
	Metadata   string  `json:"metadata,omitempty"`
}

// Search embeds the question and returns the TopK nearest contexts by
// cosine distance, closest first.
func (ix *Index) Search(ctx context.Context, question string) ([]Match, error) {
	qvec, err := ix.emb.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("Search: embed question: %w", err)
	}

	var docs []domain.DocumentContext
	if err := ix.st.DB().WithContext(ctx).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("Search: load contexts: %w", err)
	}

	matches := make([]Match, 0, len(docs))
	for _, doc := range docs {
		var vec []float32
		if err := json.Unmarshal([]byte(doc.Embedding), &vec); err != nil {
			continue
		}
		matches = append(matches, Match{
			MovementID: doc.MovementID,
			Text:       doc.Text,
			Distance:   CosineDistance(qvec, vec),
			Metadata:   doc.Metadata,
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > TopK {
		matches = matches[:TopK]
	}
	return matches, nil
}

// Answer retrieves context for the question and asks the model to
// answer strictly from it. Any failure degrades to the apology.
func (ix *Index) Answer(ctx context.Context, question string) (string, []Match) {
	matches, err := ix.Search(ctx, question)
	if err != nil {
		ix.log.Warn().Err(err).Msg("retrieval failed")
		return Apology, nil
	}
	if len(matches) == 0 {
		return "Não encontrei notas fiscais relacionadas à sua pergunta.", nil
	}

	var b strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, m.Text)
	}
	prompt := fmt.Sprintf(`Você é um assistente financeiro. Responda a pergunta usando APENAS o contexto abaixo. Se o contexto não for suficiente, diga que não encontrou a informação.

CONTEXTO:
%s
PERGUNTA: %s

Responda em português do Brasil, de forma direta e com valores em formato brasileiro.`, b.String(), question)

	answer, err := ix.emb.GenerateText(ctx, prompt)
	if err != nil {
		ix.log.Warn().Err(err).Msg("answer synthesis failed")
		return Apology, matches
	}
	return answer, matches
}

// CosineDistance is 1 minus the cosine similarity. Mismatched or zero
// vectors get the maximal distance.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func buildDocument(m domain.Movement, text string, vec []float32) (domain.DocumentContext, error) {
	embJSON, err := json.Marshal(vec)
	if err != nil {
		return domain.DocumentContext{}, fmt.Errorf("encode embedding: %w", err)
	}
	amount, _ := m.TotalAmount.Float64()
	metaJSON, _ := json.Marshal(map[string]any{
		"numero_nf":  m.InvoiceNumber,
		"fornecedor": m.Supplier.LegalName,
		"valor":      amount,
		"emissao":    m.IssueDate.Format("2006-01-02"),
	})
	return domain.DocumentContext{
		MovementID: m.ID,
		Text:       text,
		Embedding:  string(embJSON),
		Metadata:   string(metaJSON),
	}, nil
}
