package booking

import (
	"context"

	"builderhub/internal/domain"
)

type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	Update(ctx context.Context, b *domain.Booking) error
	SetCheckoutSession(ctx context.Context, id, sessionID string) error
	CancelWithReason(ctx context.Context, id, reason string) error
	ListByClient(ctx context.Context, userID string, limit, offset int) ([]domain.Booking, error)
}

type SessionTypeReader interface {
	GetByID(ctx context.Context, id string) (*domain.SessionType, error)
}

// CheckoutCreator opens a hosted checkout for a priced booking.
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, b *domain.Booking, st *domain.SessionType) (*domain.Payment, error)
}
