package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mcardoso/agronota/internal/domain"
)

// FindOrCreateClassification looks a classification up by
// case-insensitive description within a kind (default DESPESA),
// creating it with status ATIVA when absent.
func (s *Store) FindOrCreateClassification(ctx context.Context, description, kind string) (UpsertResult, error) {
	if kind == "" {
		kind = domain.ClassificationKindExpense
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return UpsertResult{
			Status:  StatusErrorData,
			Message: fmt.Sprintf("descrição de %s não fornecida", strings.ToLower(kind)),
		}, nil
	}

	lower := strings.ToLower(description)

	var existing domain.Classification
	err := s.db.WithContext(ctx).
		Where("description_lower = ? AND kind = ?", lower, kind).
		First(&existing).Error
	switch {
	case err == nil:
		return UpsertResult{Status: StatusExists, ID: existing.ID, Message: StatusExists, Record: existing}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return UpsertResult{}, fmt.Errorf("findOrCreateClassification: lookup %q: %w", description, err)
	}

	classification := domain.Classification{
		Kind:             kind,
		Description:      description,
		DescriptionLower: lower,
		Status:           domain.ClassificationStatusActive,
	}
	if err := s.db.WithContext(ctx).Create(&classification).Error; err != nil {
		if isDuplicateKey(err) {
			if lerr := s.db.WithContext(ctx).Where("description_lower = ? AND kind = ?", lower, kind).First(&existing).Error; lerr == nil {
				return UpsertResult{Status: StatusExists, ID: existing.ID, Message: StatusExists, Record: existing}, nil
			}
		}
		return UpsertResult{}, fmt.Errorf("findOrCreateClassification: create %q: %w", description, err)
	}

	s.log.Info().Uint("classification_id", classification.ID).Str("descricao", description).Msg("classification created")
	return UpsertResult{Status: StatusCreated, ID: classification.ID, Message: "NÃO EXISTE (CRIADO AGORA)", Record: classification}, nil
}

// ListClassifications returns classifications matching the filter.
func (s *Store) ListClassifications(ctx context.Context, f ListFilter) ([]domain.Classification, error) {
	q := s.db.WithContext(ctx).Model(&domain.Classification{}).Order("description")
	if !f.IncludeInactive {
		q = q.Where("status = ?", domain.ClassificationStatusActive)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Term != "" {
		q = q.Where("description_lower LIKE ?", "%"+strings.ToLower(f.Term)+"%")
	}

	var out []domain.Classification
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listClassifications: %w", err)
	}
	return out, nil
}

// UpdateClassification applies a field-level patch, never the status.
func (s *Store) UpdateClassification(ctx context.Context, id uint, patch map[string]any) (*domain.Classification, error) {
	delete(patch, "status")
	if v, ok := patch["descricao"]; ok {
		patch["description"] = v
		patch["description_lower"] = strings.ToLower(fmt.Sprint(v))
		delete(patch, "descricao")
	}
	if v, ok := patch["tipo"]; ok {
		patch["kind"] = v
		delete(patch, "tipo")
	}

	var classification domain.Classification
	if err := s.db.WithContext(ctx).First(&classification, id).Error; err != nil {
		return nil, fmt.Errorf("updateClassification: find %d: %w", id, err)
	}
	if len(patch) > 0 {
		if err := s.db.WithContext(ctx).Model(&classification).Updates(patch).Error; err != nil {
			return nil, fmt.Errorf("updateClassification: update %d: %w", id, err)
		}
	}
	return &classification, nil
}

// SoftDeleteClassification flips the classification to INATIVO unless a
// movement-classification link still references it.
func (s *Store) SoftDeleteClassification(ctx context.Context, id uint) (OpResult, error) {
	var refs int64
	err := s.db.WithContext(ctx).Model(&domain.MovementClassification{}).
		Where("classification_id = ?", id).
		Count(&refs).Error
	if err != nil {
		return OpResult{}, fmt.Errorf("softDeleteClassification: count references: %w", err)
	}
	if refs > 0 {
		return OpResult{
			Status:  StatusError,
			Message: "Não é possível excluir esta classificação pois está vinculada a movimentos.",
		}, nil
	}

	res := s.db.WithContext(ctx).Model(&domain.Classification{}).Where("id = ?", id).
		Update("status", domain.ClassificationStatusInactive)
	if res.Error != nil {
		return OpResult{}, fmt.Errorf("softDeleteClassification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return OpResult{Status: StatusError, Message: "Classificação não encontrada."}, nil
	}
	return OpResult{Status: StatusSuccess, Message: "Classificação inativada com sucesso."}, nil
}
