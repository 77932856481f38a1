package booking

import (
	"time"

	"builderhub/internal/domain"
)

// CreateBookingRequest persists a booking attempt. BookingID carries the
// client-generated id of an anonymous attempt; it is minted server side when
// empty.
type CreateBookingRequest struct {
	BookingID     string                   `json:"booking_id"`
	BuilderID     string                   `json:"builder_id" binding:"required"`
	SessionTypeID string                   `json:"session_type_id" binding:"required"`
	Calendar      domain.CalendarEventRefs `json:"calendar"`
	Contact       domain.Contact           `json:"contact"`
	Pathway       string                   `json:"pathway"`
	Notes         string                   `json:"notes"`
	CustomAnswers map[string]string        `json:"custom_answers"`
}

type ConfirmBookingRequest struct {
	SessionTypeID string                   `json:"session_type_id" binding:"required"`
	StartTime     time.Time                `json:"start_time" binding:"required"`
	EndTime       time.Time                `json:"end_time" binding:"required"`
	Calendar      domain.CalendarEventRefs `json:"calendar"`
	Contact       domain.Contact           `json:"contact"`
	Pathway       string                   `json:"pathway"`
	Notes         string                   `json:"notes"`
	CustomAnswers map[string]string        `json:"custom_answers"`
}

type ConfirmResult struct {
	Booking           *domain.Booking `json:"booking"`
	PaymentRequired   bool            `json:"payment_required"`
	CheckoutURL       string          `json:"checkout_url,omitempty"`
	CheckoutSessionID string          `json:"checkout_session_id,omitempty"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"required"`
}
