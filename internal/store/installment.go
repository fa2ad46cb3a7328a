package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mcardoso/agronota/internal/domain"
)

// GetInstallment loads one installment.
func (s *Store) GetInstallment(ctx context.Context, id uint) (*domain.Installment, error) {
	var installment domain.Installment
	if err := s.db.WithContext(ctx).First(&installment, id).Error; err != nil {
		return nil, fmt.Errorf("getInstallment %d: %w", id, err)
	}
	return &installment, nil
}

// RegisterInstallmentPayment records a payment against an installment.
// The outstanding balance is the installment amount minus the paid
// amount; the status flips to PAGO exactly when the balance reaches
// zero or below.
func (s *Store) RegisterInstallmentPayment(ctx context.Context, id uint, paid decimal.Decimal) (*domain.Installment, error) {
	installment, err := s.GetInstallment(ctx, id)
	if err != nil {
		return nil, err
	}

	balance := installment.Amount.Sub(paid)
	status := domain.InstallmentPending
	if balance.LessThanOrEqual(decimal.Zero) {
		status = domain.InstallmentPaid
	}

	updates := map[string]any{
		"paid_amount": paid,
		"balance":     balance,
		"status":      status,
	}
	if err := s.db.WithContext(ctx).Model(installment).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("registerInstallmentPayment %d: %w", id, err)
	}

	s.log.Info().
		Uint("installment_id", id).
		Str("paid", paid.String()).
		Str("balance", balance.String()).
		Str("status", status).
		Msg("installment payment registered")

	return installment, nil
}
