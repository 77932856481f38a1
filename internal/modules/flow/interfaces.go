package flow

import (
	"context"

	"builderhub/internal/domain"
	"builderhub/internal/identity"
	"builderhub/internal/modules/booking"
	"builderhub/internal/modules/payment"
)

// SessionTypes is satisfied by catalog.Service.
type SessionTypes interface {
	Get(ctx context.Context, id string) (*domain.SessionType, error)
}

// Bookings is satisfied by booking.Service.
type Bookings interface {
	Create(ctx context.Context, viewer identity.Viewer, req booking.CreateBookingRequest) (*domain.Booking, error)
	Confirm(ctx context.Context, viewer identity.Viewer, id string, req booking.ConfirmBookingRequest) (*booking.ConfirmResult, error)
	Cancel(ctx context.Context, viewer identity.Viewer, id, reason string) (*domain.Booking, error)
	GetByID(ctx context.Context, viewer identity.Viewer, id string) (*domain.Booking, error)
}

// Payments is satisfied by payment.Service.
type Payments interface {
	PaymentStatus(ctx context.Context, sessionID string) (payment.Status, string, error)
}
