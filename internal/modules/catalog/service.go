package catalog

import (
	"context"
	"errors"
	"fmt"

	"builderhub/internal/domain"
	"builderhub/internal/identity"
	"builderhub/internal/repository"
)

type Service struct {
	sessionTypes SessionTypeRepository
}

func NewService(sessionTypes SessionTypeRepository) *Service {
	return &Service{sessionTypes: sessionTypes}
}

type Listing struct {
	BuilderID string               `json:"builder_id"`
	Sessions  []domain.SessionType `json:"sessions"`
	Groups    Groups               `json:"groups"`
}

// ListForBuilder returns what viewer may book from builderID.
func (s *Service) ListForBuilder(ctx context.Context, builderID string, viewer identity.Viewer) (*Listing, error) {
	if builderID == "" {
		return nil, ErrValidation
	}
	all, err := s.sessionTypes.ListByBuilder(ctx, builderID)
	if err != nil {
		return nil, fmt.Errorf("list session types: %w", err)
	}

	available := AvailableSessions(all, viewer.IsAuthenticated())
	return &Listing{
		BuilderID: builderID,
		Sessions:  available,
		Groups:    GroupByCategory(available),
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.SessionType, error) {
	st, err := s.sessionTypes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return st, nil
}

// Save creates or replaces a session type of builderID. Builders manage only
// their own catalog; admins manage any.
func (s *Service) Save(ctx context.Context, viewer identity.Viewer, builderID string, st *domain.SessionType) error {
	if builderID == "" || st.ID == "" || st.Title == "" || st.Price < 0 {
		return ErrValidation
	}
	if !identity.HasRole(viewer, identity.RoleAdmin) && viewer.UserID != builderID {
		return ErrForbidden
	}

	existing, err := s.sessionTypes.GetByID(ctx, st.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load session type: %w", err)
	case existing.BuilderID != builderID:
		return ErrForbidden
	}

	st.BuilderID = builderID
	if st.Category == "" {
		st.Category = domain.CategoryOther
	}
	if err := s.sessionTypes.Upsert(ctx, st); err != nil {
		return fmt.Errorf("save session type: %w", err)
	}
	return nil
}
