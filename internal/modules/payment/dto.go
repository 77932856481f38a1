package payment

// Status is the payment outcome the booking flow reconciles against.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusPending   Status = "pending"
)

type StatusResponse struct {
	SessionID string `json:"session_id"`
	BookingID string `json:"booking_id"`
	Status    Status `json:"status"`
}

type WebhookResponse struct {
	Received bool `json:"received"`
}
