package payment

import (
	"context"
	"time"

	"builderhub/internal/domain"
)

type paymentRepo interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error)
	MarkPaidIdempotent(ctx context.Context, sessionID, rawEvent string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, sessionID, rawEvent, reason string) (bool, error)
	MarkPendingIfNotSettled(ctx context.Context, sessionID string) error
}

type bookingPaymentWriter interface {
	ConfirmPaid(ctx context.Context, id string) (*domain.Booking, error)
	UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (*domain.Booking, error)
}
