package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mcardoso/agronota/internal/domain"
)

// FindOrCreateParty looks a party up by normalized tax id, creating it
// with status ATIVO when absent. An empty tax id or legal name yields
// ERRO_DADOS without touching the database.
func (s *Store) FindOrCreateParty(ctx context.Context, taxID, legalName, tradeName string) (UpsertResult, error) {
	doc := NormalizeTaxID(taxID)
	if doc == "" || strings.TrimSpace(legalName) == "" {
		return UpsertResult{
			Status:  StatusErrorData,
			Message: "dados insuficientes para criar/consultar pessoa",
		}, nil
	}

	var existing domain.Party
	err := s.db.WithContext(ctx).Where("tax_id = ?", doc).First(&existing).Error
	switch {
	case err == nil:
		return UpsertResult{Status: StatusExists, ID: existing.ID, Message: StatusExists, Record: existing}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return UpsertResult{}, fmt.Errorf("findOrCreateParty: lookup %s: %w", doc, err)
	}

	if tradeName == "" {
		tradeName = legalName
	}
	party := domain.Party{
		Kind:      PartyKindFor(doc),
		LegalName: legalName,
		TradeName: tradeName,
		TaxID:     doc,
		Status:    domain.StatusActive,
	}
	if err := s.db.WithContext(ctx).Create(&party).Error; err != nil {
		// Two requests can race to create the same tax id; the unique
		// index decides the winner and the loser returns the row.
		if isDuplicateKey(err) {
			if lerr := s.db.WithContext(ctx).Where("tax_id = ?", doc).First(&existing).Error; lerr == nil {
				return UpsertResult{Status: StatusExists, ID: existing.ID, Message: StatusExists, Record: existing}, nil
			}
		}
		return UpsertResult{}, fmt.Errorf("findOrCreateParty: create %s: %w", doc, err)
	}

	s.log.Info().Uint("party_id", party.ID).Str("documento", doc).Msg("party created")
	return UpsertResult{Status: StatusCreated, ID: party.ID, Message: "NÃO EXISTE (CRIADO AGORA)", Record: party}, nil
}

// GetPartyByTaxID returns the party with the given tax id, or nil.
func (s *Store) GetPartyByTaxID(ctx context.Context, taxID string) (*domain.Party, error) {
	doc := NormalizeTaxID(taxID)
	if doc == "" {
		return nil, nil
	}
	var party domain.Party
	err := s.db.WithContext(ctx).Where("tax_id = ?", doc).First(&party).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getPartyByTaxID: %w", err)
	}
	return &party, nil
}

// ListFilter narrows entity listings.
type ListFilter struct {
	// Term matches name/description or tax id, case-insensitively.
	Term string
	// Kind filters by entity kind (FISICA/JURIDICA, DESPESA/RECEITA).
	Kind string
	// IncludeInactive also returns soft-deleted rows.
	IncludeInactive bool
}

// ListParties returns parties matching the filter, active only unless
// IncludeInactive is set.
func (s *Store) ListParties(ctx context.Context, f ListFilter) ([]domain.Party, error) {
	q := s.db.WithContext(ctx).Model(&domain.Party{}).Order("legal_name")
	if !f.IncludeInactive {
		q = q.Where("status = ?", domain.StatusActive)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Term != "" {
		like := "%" + strings.ToLower(f.Term) + "%"
		q = q.Where("LOWER(legal_name) LIKE ? OR LOWER(trade_name) LIKE ? OR tax_id LIKE ?", like, like, "%"+NormalizeTaxID(f.Term)+"%")
	}

	var parties []domain.Party
	if err := q.Find(&parties).Error; err != nil {
		return nil, fmt.Errorf("listParties: %w", err)
	}
	return parties, nil
}

// UpdateParty applies a field-level patch. The lifecycle status is
// never patched through this path.
func (s *Store) UpdateParty(ctx context.Context, id uint, patch map[string]any) (*domain.Party, error) {
	delete(patch, "status")
	if doc, ok := patch["documento"]; ok {
		patch["tax_id"] = NormalizeTaxID(fmt.Sprint(doc))
		delete(patch, "documento")
	}
	if v, ok := patch["razaosocial"]; ok {
		patch["legal_name"] = v
		delete(patch, "razaosocial")
	}
	if v, ok := patch["fantasia"]; ok {
		patch["trade_name"] = v
		delete(patch, "fantasia")
	}

	var party domain.Party
	if err := s.db.WithContext(ctx).First(&party, id).Error; err != nil {
		return nil, fmt.Errorf("updateParty: find %d: %w", id, err)
	}
	if len(patch) > 0 {
		if err := s.db.WithContext(ctx).Model(&party).Updates(patch).Error; err != nil {
			return nil, fmt.Errorf("updateParty: update %d: %w", id, err)
		}
	}
	return &party, nil
}

// SoftDeleteParty flips the party to INATIVO. The flip is refused with
// a structured ERRO result while any movement references the party as
// supplier or billed-to.
func (s *Store) SoftDeleteParty(ctx context.Context, id uint) (OpResult, error) {
	var refs int64
	err := s.db.WithContext(ctx).Model(&domain.Movement{}).
		Where("supplier_id = ? OR billed_to_id = ?", id, id).
		Count(&refs).Error
	if err != nil {
		return OpResult{}, fmt.Errorf("softDeleteParty: count references: %w", err)
	}
	if refs > 0 {
		return OpResult{
			Status:  StatusError,
			Message: "Não é possível excluir esta pessoa pois está vinculada a movimentos.",
		}, nil
	}

	res := s.db.WithContext(ctx).Model(&domain.Party{}).Where("id = ?", id).
		Update("status", domain.StatusInactive)
	if res.Error != nil {
		return OpResult{}, fmt.Errorf("softDeleteParty: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return OpResult{Status: StatusError, Message: "Pessoa não encontrada."}, nil
	}
	return OpResult{Status: StatusSuccess, Message: "Pessoa inativada com sucesso."}, nil
}
