// Package flow runs the client side of a booking attempt as a server-side
// state machine: a pure reducer over State, an orchestrator that talks to the
// identity, calendar, booking and payment collaborators, and a controller that
// sequences the steps and renders a view model.
package flow

import (
	"time"

	"builderhub/internal/domain"
)

type Step string

const (
	StepIdle                  Step = "IDLE"
	StepSessionTypeSelected   Step = "SESSION_TYPE_SELECTED"
	StepSchedulingInitiated   Step = "CALENDLY_SCHEDULING_INITIATED"
	StepBookingConfirmed      Step = "BOOKING_CONFIRMED"
	StepPaymentSucceeded      Step = "PAYMENT_SUCCEEDED"
	StepPaymentFailed         Step = "PAYMENT_FAILED"
	StepCancellationRequested Step = "CANCELLATION_REQUESTED"
	StepError                 Step = "ERROR"
)

// Terminal steps are left only through a reset.
func (s Step) Terminal() bool {
	switch s {
	case StepBookingConfirmed, StepPaymentSucceeded, StepCancellationRequested:
		return true
	}
	return false
}

func (s Step) Known() bool {
	switch s {
	case StepIdle, StepSessionTypeSelected, StepSchedulingInitiated, StepBookingConfirmed,
		StepPaymentSucceeded, StepPaymentFailed, StepCancellationRequested, StepError:
		return true
	}
	return false
}

// State is one booking attempt. BookingID is assigned at most once.
type State struct {
	Step                   Step              `json:"step"`
	SessionTypeID          string            `json:"sessionTypeId,omitempty"`
	BuilderID              string            `json:"builderId,omitempty"`
	Pathway                string            `json:"pathway,omitempty"`
	BookingID              string            `json:"bookingId,omitempty"`
	StartTime              *time.Time        `json:"startTime,omitempty"`
	EndTime                *time.Time        `json:"endTime,omitempty"`
	CustomQuestionResponse map[string]string `json:"customQuestionResponse,omitempty"`
	CalendarEventURI       string            `json:"calendlyEventUri,omitempty"`
	CalendarInviteeURI     string            `json:"calendlyInviteeUri,omitempty"`
	Contact                *domain.Contact   `json:"contact,omitempty"`
	Error                  *Error            `json:"error,omitempty"`
	FailedStep             Step              `json:"failedStep,omitempty"`
	Loading                bool              `json:"loading"`
}

func Initial() State {
	return State{Step: StepIdle}
}

func (s State) Scheduled() bool {
	return s.StartTime != nil && s.EndTime != nil
}

func (s State) clone() State {
	out := s
	if s.CustomQuestionResponse != nil {
		out.CustomQuestionResponse = make(map[string]string, len(s.CustomQuestionResponse))
		for k, v := range s.CustomQuestionResponse {
			out.CustomQuestionResponse[k] = v
		}
	}
	if s.Contact != nil {
		c := *s.Contact
		out.Contact = &c
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return out
}
