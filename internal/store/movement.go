package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mcardoso/agronota/internal/domain"
)

var oneHundred = decimal.NewFromInt(100)

// MovementInput carries everything needed to create a movement with
// its installments and classification link in one transaction.
type MovementInput struct {
	InvoiceNumber    string
	IssueDate        time.Time
	Description      string
	TotalCents       int64
	InstallmentCount int
	DueDate          time.Time

	SupplierID       uint
	BilledToID       uint
	ClassificationID uint
}

// CreateMovement persists an invoice as one movement plus all of its
// installments and its classification link, atomically. It fails
// closed: missing foreign ids or a non-positive amount abort with an
// error and nothing is written.
func (s *Store) CreateMovement(ctx context.Context, in MovementInput) (*domain.Movement, error) {
	if in.SupplierID == 0 || in.BilledToID == 0 || in.ClassificationID == 0 {
		return nil, fmt.Errorf("createMovement: missing supplier, billed-to or classification id")
	}
	if in.TotalCents <= 0 {
		return nil, fmt.Errorf("createMovement: total amount must be positive, got %d cents", in.TotalCents)
	}

	count := in.InstallmentCount
	if count <= 0 {
		count = 1
	}

	total := decimal.NewFromInt(in.TotalCents).Div(oneHundred)
	perInstallment := total.Div(decimal.NewFromInt(int64(count))).Round(2)

	dueDate := in.DueDate
	if dueDate.IsZero() {
		dueDate = time.Now()
	}
	issueDate := in.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now()
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = "NF " + in.InvoiceNumber
	}

	installments := make([]domain.Installment, 0, count)
	for k := 1; k <= count; k++ {
		installments = append(installments, domain.Installment{
			Label:      fmt.Sprintf("%d/%d", k, count),
			DueDate:    dueDate.AddDate(0, k-1, 0),
			Amount:     perInstallment,
			PaidAmount: decimal.Zero,
			Balance:    perInstallment,
			Status:     domain.InstallmentPending,
		})
	}

	movement := domain.Movement{
		Type:          domain.MovementTypePayable,
		InvoiceNumber: in.InvoiceNumber,
		IssueDate:     issueDate,
		Description:   description,
		Status:        domain.MovementPending,
		TotalAmount:   total,
		SupplierID:    in.SupplierID,
		BilledToID:    in.BilledToID,
		Classifications: []domain.MovementClassification{
			{ClassificationID: in.ClassificationID},
		},
		Installments: installments,
	}

	if err := s.db.WithContext(ctx).Create(&movement).Error; err != nil {
		return nil, fmt.Errorf("createMovement: %w", err)
	}

	s.log.Info().
		Uint("movement_id", movement.ID).
		Str("invoice_number", movement.InvoiceNumber).
		Str("total", total.String()).
		Int("installments", count).
		Msg("movement created")

	return &movement, nil
}

// GetMovement loads one movement with all relations.
func (s *Store) GetMovement(ctx context.Context, id uint) (*domain.Movement, error) {
	var movement domain.Movement
	err := s.db.WithContext(ctx).
		Preload("Supplier").
		Preload("BilledTo").
		Preload("Installments").
		Preload("Classifications.Classification").
		First(&movement, id).Error
	if err != nil {
		return nil, fmt.Errorf("getMovement %d: %w", id, err)
	}
	return &movement, nil
}

// MovementFilter narrows movement searches. Nil/empty fields are not
// applied.
type MovementFilter struct {
	SupplierName  string
	SupplierTaxID string
	DateFrom      *time.Time
	DateTo        *time.Time
	ValueMin      *float64
	ValueMax      *float64
	Category      string
	InvoiceNumber string
	Status        string
	Term          string
	IncludeAll    bool
}

// SearchMovements returns movements matching the filter with all
// relations loaded, newest issue date first.
func (s *Store) SearchMovements(ctx context.Context, f MovementFilter) ([]domain.Movement, error) {
	q := s.db.WithContext(ctx).Model(&domain.Movement{}).
		Preload("Supplier").
		Preload("BilledTo").
		Preload("Installments").
		Preload("Classifications.Classification").
		Order("issue_date DESC")

	if !f.IncludeAll {
		q = q.Where("movimento_contas.status <> ?", domain.MovementInactive)
	}
	if f.Status != "" {
		q = q.Where("movimento_contas.status = ?", f.Status)
	}
	if f.SupplierName != "" || f.SupplierTaxID != "" {
		q = q.Joins("JOIN pessoas ON pessoas.id = movimento_contas.supplier_id")
		if f.SupplierName != "" {
			q = q.Where("LOWER(pessoas.legal_name) LIKE ?", "%"+strings.ToLower(f.SupplierName)+"%")
		}
		if f.SupplierTaxID != "" {
			q = q.Where("pessoas.tax_id = ?", NormalizeTaxID(f.SupplierTaxID))
		}
	}
	if f.DateFrom != nil {
		q = q.Where("movimento_contas.issue_date >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("movimento_contas.issue_date <= ?", *f.DateTo)
	}
	if f.ValueMin != nil {
		q = q.Where("movimento_contas.total_amount >= ?", *f.ValueMin)
	}
	if f.ValueMax != nil {
		q = q.Where("movimento_contas.total_amount <= ?", *f.ValueMax)
	}
	if f.InvoiceNumber != "" {
		q = q.Where("movimento_contas.invoice_number LIKE ?", "%"+f.InvoiceNumber+"%")
	}
	if f.Category != "" {
		q = q.Where(`EXISTS (
			SELECT 1 FROM movimento_contas_classificacao mcc
			JOIN classificacao c ON c.id = mcc.classification_id
			WHERE mcc.movement_id = movimento_contas.id
			  AND c.description_lower LIKE ?)`,
			"%"+strings.ToLower(f.Category)+"%")
	}

	var movements []domain.Movement
	if err := q.Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("searchMovements: %w", err)
	}

	// Free-text term filter across NF number and supplier name, as the
	// management console sends it.
	if f.Term != "" {
		term := strings.ToLower(f.Term)
		filtered := movements[:0]
		for _, m := range movements {
			if strings.Contains(strings.ToLower(m.InvoiceNumber), term) ||
				strings.Contains(strings.ToLower(m.Supplier.LegalName), term) {
				filtered = append(filtered, m)
			}
		}
		movements = filtered
	}

	return movements, nil
}

// ListAllMovements returns every non-inactive movement with relations,
// for index rebuilds.
func (s *Store) ListAllMovements(ctx context.Context) ([]domain.Movement, error) {
	return s.SearchMovements(ctx, MovementFilter{})
}

// SoftDeleteMovement flips a movement to INATIVO. Its installments and
// classification links stay with it (the movement owns them).
func (s *Store) SoftDeleteMovement(ctx context.Context, id uint) (OpResult, error) {
	res := s.db.WithContext(ctx).Model(&domain.Movement{}).Where("id = ?", id).
		Update("status", domain.MovementInactive)
	if res.Error != nil {
		return OpResult{}, fmt.Errorf("softDeleteMovement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return OpResult{Status: StatusError, Message: "Movimento não encontrado."}, nil
	}
	return OpResult{Status: StatusSuccess, Message: "Movimento inativado com sucesso."}, nil
}
