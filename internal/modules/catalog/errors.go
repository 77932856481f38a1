package catalog

import "errors"

var (
	ErrNotFound   = errors.New("session type not found")
	ErrValidation = errors.New("validation error")
	ErrForbidden  = errors.New("session type belongs to another builder")
)
