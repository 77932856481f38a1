package payment

import "errors"

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrBookingMismatch  = errors.New("checkout session belongs to another booking")
	ErrNotPayable       = errors.New("booking is not payable")
)
