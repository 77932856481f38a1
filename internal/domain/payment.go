package domain

import "time"

type CheckoutStatus string

const (
	CheckoutCreated CheckoutStatus = "created"
	CheckoutPending CheckoutStatus = "pending"
	CheckoutPaid    CheckoutStatus = "paid"
	CheckoutFailed  CheckoutStatus = "failed"
)

type Payment struct {
	ID            int64          `gorm:"primaryKey" json:"id"`
	BookingID     string         `gorm:"index;type:varchar(64);not null" json:"booking_id"`
	SessionID     string         `gorm:"uniqueIndex;type:varchar(255);not null" json:"session_id"`
	AmountCents   int64          `gorm:"not null" json:"amount_cents"`
	Currency      string         `gorm:"type:varchar(8);not null" json:"currency"`
	Status        CheckoutStatus `gorm:"type:varchar(20);default:'created';index" json:"status"`
	CheckoutURL   string         `gorm:"type:text" json:"checkout_url"`
	FailureReason string         `gorm:"type:text" json:"failure_reason"`
	RawEvent      string         `gorm:"type:text" json:"-"`
	PaidAt        *time.Time     `json:"paid_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }
