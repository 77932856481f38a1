package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentNotRequired PaymentStatus = "not_required"
	PaymentUnpaid      PaymentStatus = "unpaid"
	PaymentPending     PaymentStatus = "pending"
	PaymentPaid        PaymentStatus = "paid"
	PaymentFailed      PaymentStatus = "failed"
)

// Contact is what an unauthenticated booker leaves with the calendar provider.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// CalendarEventRefs correlates a booking with the calendar provider's records.
type CalendarEventRefs struct {
	EventURI   string `json:"event_uri,omitempty"`
	InviteeURI string `json:"invitee_uri,omitempty"`
}

type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s TimeSlot) Valid() bool {
	return !s.Start.IsZero() && s.End.After(s.Start)
}

type Booking struct {
	ID                 string            `json:"id"`
	BuilderID          string            `json:"builder_id"`
	SessionTypeID      string            `json:"session_type_id"`
	ClientUserID       string            `json:"client_user_id,omitempty"`
	Contact            Contact           `json:"contact"`
	Calendar           CalendarEventRefs `json:"calendar"`
	StartTime          *time.Time        `json:"start_time,omitempty"`
	EndTime            *time.Time        `json:"end_time,omitempty"`
	Pathway            string            `json:"pathway,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	CustomAnswers      map[string]string `json:"custom_answers,omitempty"`
	Price              float64           `json:"price"`
	Status             BookingStatus     `json:"status"`
	PaymentStatus      PaymentStatus     `json:"payment_status"`
	CheckoutSessionID  string            `json:"checkout_session_id,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
}

// Scheduled reports whether the booking already carries a time slot.
func (b *Booking) Scheduled() bool {
	return b.StartTime != nil && b.EndTime != nil
}
