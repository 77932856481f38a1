package repository

import (
	"context"
	"errors"

	"builderhub/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionTypeRepository struct {
	db *gorm.DB
}

func NewSessionTypeRepository(db *gorm.DB) *SessionTypeRepository {
	return &SessionTypeRepository{db: db}
}

func (r *SessionTypeRepository) ListByBuilder(ctx context.Context, builderID string) ([]domain.SessionType, error) {
	var out []domain.SessionType
	err := r.db.WithContext(ctx).
		Where("builder_id = ?", builderID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *SessionTypeRepository) GetByID(ctx context.Context, id string) (*domain.SessionType, error) {
	var st domain.SessionType
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

// Upsert inserts st or overwrites the row with the same id.
func (r *SessionTypeRepository) Upsert(ctx context.Context, st *domain.SessionType) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(st).Error
}
