package flow

import (
	"errors"
	"net/url"
)

type ErrorKind string

const (
	// KindCollaborator is a failed call to calendar, booking or payment. Retryable.
	KindCollaborator ErrorKind = "collaborator"
	// KindConfiguration cannot be fixed by retrying, e.g. a session type
	// without a calendar reference.
	KindConfiguration   ErrorKind = "configuration"
	KindUnexpectedState ErrorKind = "unexpected_state"
)

// Error is what the flow shows when a step fails. Op names the step to re-run.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Op      string    `json:"op"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return string(e.Kind) + " " + e.Op + ": " + e.Message
}

func (e *Error) Retryable() bool {
	return e != nil && e.Kind == KindCollaborator
}

func collaboratorError(op string, err error) *Error {
	return &Error{Kind: KindCollaborator, Op: op, Message: err.Error()}
}

func configurationError(op, msg string) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: msg}
}

func unexpectedState(op, msg string) *Error {
	return &Error{Kind: KindUnexpectedState, Op: op, Message: msg}
}

// Controller misuse. None of these change the flow state.
var (
	ErrFlowNotFound        = errors.New("flow not found")
	ErrBusy                = errors.New("flow is busy")
	ErrInvalidTransition   = errors.New("action not allowed in the current step")
	ErrUnknownSessionType  = errors.New("unknown session type")
	ErrIdentityLoading     = errors.New("identity is still loading")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotRetryable        = errors.New("flow error is not retryable")
	ErrRecoveryMismatch    = errors.New("return parameters belong to another booking")
	ErrSignInRequired      = errors.New("sign in required")
	ErrPathwayNotSelecting = errors.New("no pathway selection pending")
)

// SignInRequiredError carries where the client should send the user.
type SignInRequiredError struct {
	RedirectURL string
}

func (e *SignInRequiredError) Error() string {
	return ErrSignInRequired.Error()
}

func (e *SignInRequiredError) Is(target error) bool {
	return target == ErrSignInRequired
}

func signInRedirect(signInPath, returnURL string) string {
	return signInPath + "?returnUrl=" + url.QueryEscape(returnURL)
}
