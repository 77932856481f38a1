package catalog

import (
	"context"

	"builderhub/internal/domain"
)

type SessionTypeRepository interface {
	ListByBuilder(ctx context.Context, builderID string) ([]domain.SessionType, error)
	GetByID(ctx context.Context, id string) (*domain.SessionType, error)
	Upsert(ctx context.Context, st *domain.SessionType) error
}
