package booking

import "errors"

var (
	ErrValidation              = errors.New("validation error")
	ErrNotFound                = errors.New("booking not found")
	ErrSessionTypeNotFound     = errors.New("session type not found")
	ErrForbidden               = errors.New("forbidden")
	ErrSignInRequired          = errors.New("sign in required")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrSlotConflict            = errors.New("booking already scheduled for another slot")
	ErrPaymentUnavailable      = errors.New("payment unavailable")
)
