// Package domain defines the persisted entities of the invoice ledger.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Party kinds, inferred from the length of the normalized tax id.
const (
	PartyKindIndividual   = "FISICA"
	PartyKindOrganization = "JURIDICA"
)

// Lifecycle statuses. Deletion is always a flip to the inactive value.
const (
	StatusActive   = "ATIVO"
	StatusInactive = "INATIVO"
)

// Classification kinds and statuses.
const (
	ClassificationKindExpense    = "DESPESA"
	ClassificationKindRevenue    = "RECEITA"
	ClassificationStatusActive   = "ATIVA"
	ClassificationStatusInactive = "INATIVA"
)

// Movement and installment statuses.
const (
	MovementTypePayable = "APAGAR"
	MovementPending     = "PENDENTE"
	MovementPaid        = "PAGO"
	MovementInactive    = "INATIVO"

	InstallmentPending = "PENDENTE"
	InstallmentPaid    = "PAGO"
)

// Party is a counterparty (supplier or billed-to entity), identified by
// its normalized tax id. Two rows may share a legal name but never a
// tax id.
type Party struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Kind      string    `gorm:"size:16;not null" json:"tipo"`
	LegalName string    `gorm:"size:255;not null" json:"razaosocial"`
	TradeName string    `gorm:"size:255" json:"fantasia"`
	TaxID     string    `gorm:"size:14;uniqueIndex;not null" json:"documento"`
	Status    string    `gorm:"size:16;not null;default:ATIVO" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps the original schema's table naming.
func (Party) TableName() string { return "pessoas" }

// Classification is an expense/revenue category label, unique by
// case-insensitive description within a kind.
type Classification struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Kind        string `gorm:"size:16;not null;uniqueIndex:idx_classificacao_natural_key" json:"tipo"`
	Description string `gorm:"size:255;not null" json:"descricao"`
	// DescriptionLower is the case-folded lookup key. SQL LOWER() is
	// ASCII-only on SQLite, so the folding happens in Go.
	DescriptionLower string    `gorm:"size:255;not null;uniqueIndex:idx_classificacao_natural_key" json:"-"`
	Status           string    `gorm:"size:16;not null;default:ATIVA" json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Classification) TableName() string { return "classificacao" }

// Movement is one payable invoice. It exclusively owns its installments
// and classification links; supplier and billed-to parties are shared.
type Movement struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Type          string          `gorm:"size:16;not null" json:"tipo"`
	InvoiceNumber string          `gorm:"size:64;index" json:"numeronotafiscal"`
	IssueDate     time.Time       `gorm:"index" json:"datemissao"`
	Description   string          `gorm:"type:text" json:"descricao"`
	Status        string          `gorm:"size:16;not null;default:PENDENTE" json:"status"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"valortotal"`

	SupplierID uint  `gorm:"not null;index" json:"fornecedor_id"`
	Supplier   Party `gorm:"foreignKey:SupplierID" json:"fornecedor"`
	BilledToID uint  `gorm:"not null;index" json:"faturado_id"`
	BilledTo   Party `gorm:"foreignKey:BilledToID" json:"faturado"`

	Classifications []MovementClassification `gorm:"foreignKey:MovementID;constraint:OnDelete:CASCADE" json:"classificacoes"`
	Installments    []Installment            `gorm:"foreignKey:MovementID;constraint:OnDelete:CASCADE" json:"parcelas"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Movement) TableName() string { return "movimento_contas" }

// MovementClassification links a movement to one classification.
type MovementClassification struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	MovementID       uint           `gorm:"not null;index" json:"movimento_id"`
	ClassificationID uint           `gorm:"not null;index" json:"classificacao_id"`
	Classification   Classification `gorm:"foreignKey:ClassificationID" json:"classificacao"`
}

func (MovementClassification) TableName() string { return "movimento_contas_classificacao" }

// Installment is one scheduled partial payment of a movement's total.
// Status becomes PAGO exactly when the outstanding balance reaches zero.
type Installment struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	MovementID uint            `gorm:"not null;index" json:"movimento_id"`
	Label      string          `gorm:"size:16;not null" json:"identificacao"`
	DueDate    time.Time       `json:"datavencimento"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"valorparcela"`
	PaidAmount decimal.Decimal `gorm:"type:decimal(20,2)" json:"valorpago"`
	Balance    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"valorsaldo"`
	Status     string          `gorm:"size:16;not null;default:PENDENTE" json:"statusparcela"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (Installment) TableName() string { return "parcela_contas" }

// DocumentContext is a derived text+vector chunk for one movement, used
// only by the similarity retrieval path. The embedding is stored as a
// JSON array so the same schema works on SQLite and Postgres.
type DocumentContext struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MovementID uint      `gorm:"uniqueIndex;not null" json:"movimento_id"`
	Text       string    `gorm:"type:text;not null" json:"texto"`
	Embedding  string    `gorm:"type:text;not null" json:"-"`
	Metadata   string    `gorm:"type:text" json:"metadata"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (DocumentContext) TableName() string { return "documento_contexto" }

// All lists every model for schema migration.
func All() []any {
	return []any{
		&Party{},
		&Classification{},
		&Movement{},
		&MovementClassification{},
		&Installment{},
		&DocumentContext{},
	}
}
