package flow

type Screen string

const (
	ScreenSessionList       Screen = "session_list"
	ScreenPathwaySelection  Screen = "pathway_selection"
	ScreenScheduler         Screen = "scheduler"
	ScreenPaymentRedirect   Screen = "payment_redirect"
	ScreenPaymentProcessing Screen = "payment_processing"
	ScreenConfirmed         Screen = "confirmed"
	ScreenPaymentSucceeded  Screen = "payment_succeeded"
	ScreenPaymentFailed     Screen = "payment_failed"
	ScreenCancelled         Screen = "cancelled"
	ScreenError             Screen = "error"
	ScreenFallback          Screen = "fallback"
)

// Actions a client may offer on a screen.
const (
	ActSelectSessionType = "select_session_type"
	ActChoosePathway     = "choose_pathway"
	ActSetAnswers        = "set_answers"
	ActListSlots         = "list_slots"
	ActSchedule          = "schedule"
	ActReportEvent       = "report_calendar_event"
	ActOpenCheckout      = "open_checkout"
	ActCheckPayment      = "check_payment"
	ActRetry             = "retry"
	ActRetryPayment      = "retry_payment"
	ActCancel            = "cancel"
	ActReset             = "reset"
)

type ViewError struct {
	Kind      ErrorKind `json:"kind"`
	Op        string    `json:"op"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

// View is the render model of a flow.
type View struct {
	FlowID                  string     `json:"flowId"`
	Screen                  Screen     `json:"screen"`
	State                   State      `json:"state"`
	PathwaySelectionPending bool       `json:"pathwaySelectionPending"`
	IsRecovering            bool       `json:"isRecovering"`
	CheckoutURL             string     `json:"checkoutUrl,omitempty"`
	Error                   *ViewError `json:"error,omitempty"`
	Actions                 []string   `json:"actions"`
}

func viewError(e *Error) *ViewError {
	if e == nil {
		return nil
	}
	return &ViewError{Kind: e.Kind, Op: e.Op, Message: e.Message, Retryable: e.Retryable()}
}

func (c *Controller) View() View {
	s := c.bc.State()
	v := View{
		FlowID:                  c.id,
		State:                   s,
		PathwaySelectionPending: c.local.PathwaySelectionPending,
		IsRecovering:            c.local.IsRecovering,
		CheckoutURL:             c.local.CheckoutURL,
		Error:                   viewError(s.Error),
	}
	if v.Error == nil && c.local.RecoveryError != "" {
		v.Error = &ViewError{Kind: KindCollaborator, Op: OpPaymentStatus, Message: c.local.RecoveryError}
	}
	v.Screen, v.Actions = c.screen(s)
	if s.Loading && v.Screen != ScreenFallback {
		v.Actions = []string{ActReset}
	}
	return v
}

func (c *Controller) screen(s State) (Screen, []string) {
	if !s.Step.Known() {
		return ScreenFallback, []string{ActReset}
	}
	if c.local.IsRecovering {
		return ScreenPaymentProcessing, []string{}
	}

	switch s.Step {
	case StepIdle:
		if c.local.RecoveryError != "" {
			return ScreenError, []string{ActReset}
		}
		if c.local.PathwaySelectionPending {
			return ScreenPathwaySelection, []string{ActChoosePathway, ActReset}
		}
		return ScreenSessionList, []string{ActSelectSessionType, ActSetAnswers}
	case StepSessionTypeSelected:
		return ScreenSessionList, []string{ActSelectSessionType, ActReset}
	case StepSchedulingInitiated:
		if c.local.AwaitingPayment {
			if c.local.CheckoutURL != "" {
				return ScreenPaymentRedirect, []string{ActOpenCheckout, ActCheckPayment, ActCancel, ActReset}
			}
			return ScreenPaymentProcessing, []string{ActCheckPayment, ActCancel, ActReset}
		}
		return ScreenScheduler, []string{ActListSlots, ActSchedule, ActReportEvent, ActSetAnswers, ActCancel, ActReset}
	case StepBookingConfirmed:
		return ScreenConfirmed, []string{ActReset}
	case StepPaymentSucceeded:
		return ScreenPaymentSucceeded, []string{ActReset}
	case StepPaymentFailed:
		return ScreenPaymentFailed, []string{ActRetryPayment, ActCancel, ActReset}
	case StepCancellationRequested:
		return ScreenCancelled, []string{ActReset}
	case StepError:
		if s.Error.Retryable() {
			return ScreenError, []string{ActRetry, ActReset}
		}
		return ScreenError, []string{ActReset}
	}
	return ScreenFallback, []string{ActReset}
}
