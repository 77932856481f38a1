package flow

import (
	"time"

	"builderhub/internal/domain"
)

type ActionType string

const (
	ActionSelectSessionType       ActionType = "SELECT_SESSION_TYPE"
	ActionInitiateCalendly        ActionType = "INITIATE_CALENDLY"
	ActionCalendlyEventScheduled  ActionType = "CALENDLY_EVENT_SCHEDULED"
	ActionBookingConfirmed        ActionType = "BOOKING_CONFIRMED"
	ActionSetError                ActionType = "SET_ERROR"
	ActionReset                   ActionType = "RESET"
	ActionSetLoading              ActionType = "SET_LOADING"
	ActionSelectPathway           ActionType = "SELECT_PATHWAY"
	ActionSetCustomQuestionAnswer ActionType = "SET_CUSTOM_QUESTION_RESPONSE"
	ActionSetContact              ActionType = "SET_CONTACT"
	ActionPaymentSucceeded        ActionType = "PAYMENT_SUCCEEDED"
	ActionPaymentFailed           ActionType = "PAYMENT_FAILED"
	ActionRetryPayment            ActionType = "RETRY_PAYMENT"
	ActionRetry                   ActionType = "RETRY"
	ActionRequestCancellation     ActionType = "REQUEST_CANCELLATION"
)

// Action is a tagged union; only the fields of Type are read.
type Action struct {
	Type        ActionType
	SessionType *domain.SessionType
	BuilderID   string
	BookingID   string
	EventURI    string
	InviteeURI  string
	StartTime   time.Time
	EndTime     time.Time
	Err         *Error
	Loading     bool
	Pathway     string
	Answers     map[string]string
	Contact     *domain.Contact
}

func SelectSessionType(st *domain.SessionType, builderID string) Action {
	return Action{Type: ActionSelectSessionType, SessionType: st, BuilderID: builderID}
}

func InitiateCalendly(bookingID string) Action {
	return Action{Type: ActionInitiateCalendly, BookingID: bookingID}
}

func CalendlyEventScheduled(eventURI, inviteeURI string, start, end time.Time) Action {
	return Action{Type: ActionCalendlyEventScheduled, EventURI: eventURI, InviteeURI: inviteeURI, StartTime: start, EndTime: end}
}

func BookingConfirmed(start, end time.Time) Action {
	return Action{Type: ActionBookingConfirmed, StartTime: start, EndTime: end}
}

func SetError(err *Error) Action { return Action{Type: ActionSetError, Err: err} }

func Reset() Action { return Action{Type: ActionReset} }

func SetLoading(loading bool) Action { return Action{Type: ActionSetLoading, Loading: loading} }

func SelectPathway(pathway string) Action { return Action{Type: ActionSelectPathway, Pathway: pathway} }

func SetCustomQuestionResponse(answers map[string]string) Action {
	return Action{Type: ActionSetCustomQuestionAnswer, Answers: answers}
}

func SetContact(c domain.Contact) Action { return Action{Type: ActionSetContact, Contact: &c} }

func PaymentSucceeded() Action { return Action{Type: ActionPaymentSucceeded} }

func PaymentFailed(err *Error) Action { return Action{Type: ActionPaymentFailed, Err: err} }

func RetryPayment() Action { return Action{Type: ActionRetryPayment} }

func Retry() Action { return Action{Type: ActionRetry} }

func RequestCancellation() Action { return Action{Type: ActionRequestCancellation} }

// Accepts reports whether t is valid in s. Reduce returns s unchanged for
// anything Accepts rejects.
func Accepts(s State, t ActionType) bool {
	switch t {
	case ActionReset, ActionSetLoading:
		return true
	}
	if s.Step.Terminal() || !s.Step.Known() {
		return false
	}
	if s.Step == StepError {
		return t == ActionRetry && s.Error.Retryable() && s.FailedStep.Known() && s.FailedStep != StepError
	}

	switch t {
	case ActionSelectSessionType:
		return s.Step == StepIdle || s.Step == StepSessionTypeSelected
	case ActionSelectPathway:
		return s.Step == StepIdle || s.Step == StepSessionTypeSelected
	case ActionSetCustomQuestionAnswer, ActionSetContact:
		return s.Step == StepIdle || s.Step == StepSessionTypeSelected || s.Step == StepSchedulingInitiated
	case ActionInitiateCalendly:
		return s.Step == StepSessionTypeSelected || s.Step == StepSchedulingInitiated
	case ActionCalendlyEventScheduled, ActionBookingConfirmed, ActionPaymentSucceeded, ActionPaymentFailed:
		return s.Step == StepSchedulingInitiated
	case ActionRetryPayment:
		return s.Step == StepPaymentFailed
	case ActionRequestCancellation:
		return s.Step == StepSchedulingInitiated || s.Step == StepPaymentFailed
	case ActionSetError:
		return s.Step != StepIdle
	}
	return false
}

// Reduce is the only way State changes. It never mutates s.
func Reduce(s State, a Action) State {
	if !Accepts(s, a.Type) {
		return s
	}
	next := s.clone()

	switch a.Type {
	case ActionReset:
		return Initial()

	case ActionSetLoading:
		next.Loading = a.Loading

	case ActionSelectSessionType:
		if a.SessionType == nil {
			return s
		}
		if next.SessionTypeID != a.SessionType.ID {
			next.CustomQuestionResponse = nil
		}
		next.SessionTypeID = a.SessionType.ID
		next.BuilderID = a.BuilderID
		if next.BuilderID == "" {
			next.BuilderID = a.SessionType.BuilderID
		}
		next.Step = StepSessionTypeSelected

	case ActionSelectPathway:
		next.Pathway = a.Pathway

	case ActionSetCustomQuestionAnswer:
		if len(a.Answers) == 0 {
			return s
		}
		if next.CustomQuestionResponse == nil {
			next.CustomQuestionResponse = make(map[string]string, len(a.Answers))
		}
		for q, ans := range a.Answers {
			next.CustomQuestionResponse[q] = ans
		}

	case ActionSetContact:
		if a.Contact == nil {
			return s
		}
		c := *a.Contact
		next.Contact = &c

	case ActionInitiateCalendly:
		if next.BookingID == "" {
			if a.BookingID == "" {
				return s
			}
			next.BookingID = a.BookingID
		}
		next.Step = StepSchedulingInitiated

	case ActionCalendlyEventScheduled:
		next.CalendarEventURI = a.EventURI
		next.CalendarInviteeURI = a.InviteeURI
		setTimes(&next, a.StartTime, a.EndTime)

	case ActionBookingConfirmed:
		setTimes(&next, a.StartTime, a.EndTime)
		next.Step = StepBookingConfirmed

	case ActionSetError:
		if a.Err == nil {
			return s
		}
		e := *a.Err
		next.Error = &e
		next.FailedStep = s.Step
		next.Step = StepError
		next.Loading = false

	case ActionRetry:
		next.Step = s.FailedStep
		next.FailedStep = ""
		next.Error = nil

	case ActionPaymentSucceeded:
		next.Step = StepPaymentSucceeded
		next.Error = nil
		next.Loading = false

	case ActionPaymentFailed:
		next.Step = StepPaymentFailed
		next.Error = nil
		if a.Err != nil {
			e := *a.Err
			next.Error = &e
		}
		next.Loading = false

	case ActionRetryPayment:
		next.Step = StepSchedulingInitiated
		next.Error = nil

	case ActionRequestCancellation:
		next.Step = StepCancellationRequested
		next.Loading = false
	}
	return next
}

func setTimes(s *State, start, end time.Time) {
	if start.IsZero() || end.IsZero() {
		return
	}
	st, en := start.UTC(), end.UTC()
	s.StartTime, s.EndTime = &st, &en
}
