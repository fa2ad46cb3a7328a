package store

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mcardoso/agronota/internal/domain"
	"github.com/mcardoso/agronota/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return New(db, logger.NewWithWriter(io.Discard))
}

func seedMovement(t *testing.T, s *Store, taxID string) (*domain.Movement, UpsertResult, UpsertResult, UpsertResult) {
	t.Helper()
	ctx := context.Background()

	supplier, err := s.FindOrCreateParty(ctx, taxID, "AGRO INSUMOS LTDA", "AgroMax")
	require.NoError(t, err)
	billedTo, err := s.FindOrCreateParty(ctx, "709.046.011-88", "JOSE DA SILVA", "")
	require.NoError(t, err)
	classification, err := s.FindOrCreateClassification(ctx, "INSUMOS AGRÍCOLAS", "")
	require.NoError(t, err)

	movement, err := s.CreateMovement(ctx, MovementInput{
		InvoiceNumber:    "000207590",
		IssueDate:        time.Date(2024, 10, 2, 0, 0, 0, 0, time.UTC),
		Description:      "Fertilizante NPK 20kg",
		TotalCents:       344900,
		InstallmentCount: 2,
		DueDate:          time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC),
		SupplierID:       supplier.ID,
		BilledToID:       billedTo.ID,
		ClassificationID: classification.ID,
	})
	require.NoError(t, err)
	return movement, supplier, billedTo, classification
}

func TestNormalizeTaxID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"18.944.113/0002-91", "18944113000291"},
		{"709.046.011-88", "70904601188"},
		{"18944113000291", "18944113000291"},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTaxID(tt.in))
	}
}

func TestFindOrCreatePartyIsIdempotentByTaxID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.FindOrCreateParty(ctx, "18.944.113/0002-91", "AGRO INSUMOS LTDA", "")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, first.Status)

	// Same tax id without punctuation and a different name casing must
	// resolve to the existing row.
	second, err := s.FindOrCreateParty(ctx, "18944113000291", "agro insumos ltda", "")
	require.NoError(t, err)
	assert.Equal(t, StatusExists, second.Status)
	assert.Equal(t, first.ID, second.ID)

	party := second.Record.(domain.Party)
	assert.Equal(t, domain.PartyKindOrganization, party.Kind)
	assert.Equal(t, "18944113000291", party.TaxID)
}

func TestFindOrCreatePartyKindFromTaxIDLength(t *testing.T) {
	s := newTestStore(t)
	res, err := s.FindOrCreateParty(context.Background(), "709.046.011-88", "JOSE DA SILVA", "")
	require.NoError(t, err)
	assert.Equal(t, domain.PartyKindIndividual, res.Record.(domain.Party).Kind)
}

func TestFindOrCreatePartyRequiresNaturalKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.FindOrCreateParty(ctx, "", "ACME", "")
	require.NoError(t, err)
	assert.Equal(t, StatusErrorData, res.Status)

	res, err = s.FindOrCreateParty(ctx, "123", "  ", "")
	require.NoError(t, err)
	assert.Equal(t, StatusErrorData, res.Status)

	var count int64
	require.NoError(t, s.DB().Model(&domain.Party{}).Count(&count).Error)
	assert.Zero(t, count, "ERRO_DADOS must not write any row")
}

func TestFindOrCreateClassificationCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.FindOrCreateClassification(ctx, "INSUMOS AGRÍCOLAS", "")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, first.Status)

	second, err := s.FindOrCreateClassification(ctx, "insumos agrícolas", domain.ClassificationKindExpense)
	require.NoError(t, err)
	assert.Equal(t, StatusExists, second.Status)
	assert.Equal(t, first.ID, second.ID)

	// Same description under another kind is a distinct row.
	other, err := s.FindOrCreateClassification(ctx, "INSUMOS AGRÍCOLAS", domain.ClassificationKindRevenue)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, other.Status)
}

func TestFindOrCreateClassificationRequiresDescription(t *testing.T) {
	s := newTestStore(t)

	res, err := s.FindOrCreateClassification(context.Background(), "", domain.ClassificationKindExpense)
	require.NoError(t, err)
	assert.Equal(t, StatusErrorData, res.Status)

	var count int64
	require.NoError(t, s.DB().Model(&domain.Classification{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateMovementSplitsInstallmentsExactly(t *testing.T) {
	s := newTestStore(t)
	movement, _, _, _ := seedMovement(t, s, "18.944.113/0002-91")

	assert.True(t, movement.TotalAmount.Equal(decimal.RequireFromString("3449.00")),
		"total %s", movement.TotalAmount)

	require.Len(t, movement.Installments, 2)
	want := decimal.RequireFromString("1724.50")
	for i, inst := range movement.Installments {
		assert.True(t, inst.Amount.Equal(want), "installment %d amount %s", i, inst.Amount)
		assert.True(t, inst.Balance.Equal(want), "balance starts equal to the amount")
		assert.Equal(t, domain.InstallmentPending, inst.Status)
	}
	assert.Equal(t, "1/2", movement.Installments[0].Label)
	assert.Equal(t, "2/2", movement.Installments[1].Label)
	assert.Equal(t, time.Date(2024, 12, 2, 0, 0, 0, 0, time.UTC), movement.Installments[1].DueDate,
		"second installment due one month after the first")
}

func TestCreateMovementFailsClosed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateMovement(ctx, MovementInput{TotalCents: 1000})
	assert.Error(t, err, "missing foreign ids")

	_, err = s.CreateMovement(ctx, MovementInput{
		SupplierID: 1, BilledToID: 1, ClassificationID: 1, TotalCents: 0,
	})
	assert.Error(t, err, "non-positive amount")

	var count int64
	require.NoError(t, s.DB().Model(&domain.Movement{}).Count(&count).Error)
	assert.Zero(t, count, "no partial insert")
}

func TestMovementRoundTrip(t *testing.T) {
	s := newTestStore(t)
	created, _, _, classification := seedMovement(t, s, "18.944.113/0002-91")

	loaded, err := s.GetMovement(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, "000207590", loaded.InvoiceNumber)
	assert.True(t, loaded.TotalAmount.Equal(decimal.RequireFromString("3449.00")))
	require.Len(t, loaded.Classifications, 1)
	assert.Equal(t, classification.ID, loaded.Classifications[0].ClassificationID)
	assert.Equal(t, "AGRO INSUMOS LTDA", loaded.Supplier.LegalName)
	assert.Len(t, loaded.Installments, 2)
}

func TestSoftDeletePartyBlockedWhileReferenced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, supplier, _, _ := seedMovement(t, s, "18.944.113/0002-91")

	res, err := s.SoftDeleteParty(ctx, supplier.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)

	var party domain.Party
	require.NoError(t, s.DB().First(&party, supplier.ID).Error)
	assert.Equal(t, domain.StatusActive, party.Status, "status must be unchanged")
}

func TestSoftDeletePartyWithoutReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.FindOrCreateParty(ctx, "11.222.333/0001-44", "SEM MOVIMENTO SA", "")
	require.NoError(t, err)

	res, err := s.SoftDeleteParty(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)

	var party domain.Party
	require.NoError(t, s.DB().First(&party, created.ID).Error)
	assert.Equal(t, domain.StatusInactive, party.Status, "soft delete is a status flip, not a removal")
}

func TestSoftDeleteClassificationBlockedWhileReferenced(t *testing.T) {
	s := newTestStore(t)
	_, _, _, classification := seedMovement(t, s, "18.944.113/0002-91")

	res, err := s.SoftDeleteClassification(context.Background(), classification.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)
}

func TestRegisterInstallmentPayment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	movement, _, _, _ := seedMovement(t, s, "18.944.113/0002-91")
	installmentID := movement.Installments[0].ID

	// Partial payment keeps the installment pending.
	_, err := s.RegisterInstallmentPayment(ctx, installmentID, decimal.RequireFromString("1000.00"))
	require.NoError(t, err)
	partial, err := s.GetInstallment(ctx, installmentID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentPending, partial.Status)
	assert.True(t, partial.Balance.Equal(decimal.RequireFromString("724.50")), "balance %s", partial.Balance)

	// Paying the full amount flips it to PAGO.
	_, err = s.RegisterInstallmentPayment(ctx, installmentID, decimal.RequireFromString("1724.50"))
	require.NoError(t, err)
	paid, err := s.GetInstallment(ctx, installmentID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentPaid, paid.Status)
	assert.True(t, paid.Balance.LessThanOrEqual(decimal.Zero))
}

func TestSearchMovementsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedMovement(t, s, "18.944.113/0002-91")

	bySupplier, err := s.SearchMovements(ctx, MovementFilter{SupplierName: "agro"})
	require.NoError(t, err)
	assert.Len(t, bySupplier, 1)

	min := 5000.0
	byValue, err := s.SearchMovements(ctx, MovementFilter{ValueMin: &min})
	require.NoError(t, err)
	assert.Empty(t, byValue)

	byCategory, err := s.SearchMovements(ctx, MovementFilter{Category: "insumos"})
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)

	byTerm, err := s.SearchMovements(ctx, MovementFilter{Term: "000207590"})
	require.NoError(t, err)
	assert.Len(t, byTerm, 1)
}
