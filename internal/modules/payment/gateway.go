package payment

import "context"

// Checkout session states as reported by the provider.
const (
	SessionOpen     = "open"
	SessionComplete = "complete"
	SessionExpired  = "expired"

	SessionPaid              = "paid"
	SessionUnpaid            = "unpaid"
	SessionNoPaymentRequired = "no_payment_required"
)

type CheckoutParams struct {
	BookingID   string
	Description string
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
	Email       string
}

type CheckoutSession struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
	BookingID     string
	AmountCents   int64
	Currency      string
}

type WebhookEvent struct {
	ID      string
	Type    string
	Session CheckoutSession
	Raw     string
}

// Gateway is the hosted-checkout provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
