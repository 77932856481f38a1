package flow

import (
	"math/rand"
	"testing"
	"time"

	"builderhub/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testStart = time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)
	testEnd   = testStart.Add(30 * time.Minute)
)

func testSessionType() *domain.SessionType {
	return &domain.SessionType{ID: "st-1", BuilderID: "b-1", Title: "Intro", CalendarRef: "ref"}
}

// sampleActions covers every action type with plausible payloads.
func sampleActions() []Action {
	return []Action{
		SelectSessionType(testSessionType(), "b-1"),
		InitiateCalendly("booking-x"),
		CalendlyEventScheduled("ev", "inv", testStart, testEnd),
		BookingConfirmed(testStart, testEnd),
		SetError(&Error{Kind: KindCollaborator, Op: OpCreateBooking, Message: "boom"}),
		Reset(),
		SetLoading(true),
		SetLoading(false),
		SelectPathway("accelerate"),
		SetCustomQuestionResponse(map[string]string{"q": "a"}),
		SetContact(domain.Contact{Name: "Ada", Email: "ada@example.com"}),
		PaymentSucceeded(),
		PaymentFailed(nil),
		RetryPayment(),
		Retry(),
		RequestCancellation(),
	}
}

func TestReduce_InitiateCalendlyIsIdempotent(t *testing.T) {
	s := Reduce(Initial(), SelectSessionType(testSessionType(), "b-1"))

	s = Reduce(s, InitiateCalendly("X"))
	s = Reduce(s, InitiateCalendly("X"))
	assert.Equal(t, "X", s.BookingID)
	assert.Equal(t, StepSchedulingInitiated, s.Step)

	s = Reduce(s, InitiateCalendly("Y"))
	assert.Equal(t, "X", s.BookingID, "booking id is never reassigned")
}

func TestReduce_FromIdleOnlySessionSelectionAdvances(t *testing.T) {
	for _, a := range sampleActions() {
		next := Reduce(Initial(), a)
		if a.Type == ActionSelectSessionType {
			assert.Equal(t, StepSessionTypeSelected, next.Step)
			continue
		}
		assert.Equal(t, StepIdle, next.Step, "action %s", a.Type)
	}
}

func TestReduce_TerminalStatesOnlyLeaveViaReset(t *testing.T) {
	for _, step := range []Step{StepBookingConfirmed, StepPaymentSucceeded, StepCancellationRequested} {
		s := State{Step: step, BookingID: "B"}
		for _, a := range sampleActions() {
			next := Reduce(s, a)
			switch a.Type {
			case ActionReset:
				assert.Equal(t, Initial(), next)
			default:
				assert.Equal(t, step, next.Step, "%s on %s", a.Type, step)
				assert.Equal(t, "B", next.BookingID)
			}
		}
	}
}

func TestReduce_SetErrorKeepsFieldsAndRecordsFailedStep(t *testing.T) {
	s := Reduce(Initial(), SelectSessionType(testSessionType(), "b-1"))
	s = Reduce(s, SelectPathway("pivot"))
	s = Reduce(s, InitiateCalendly("B"))
	s = Reduce(s, SetLoading(true))

	errState := Reduce(s, SetError(&Error{Kind: KindCollaborator, Op: OpConfirmBooking, Message: "down"}))
	require.Equal(t, StepError, errState.Step)
	assert.Equal(t, StepSchedulingInitiated, errState.FailedStep)
	assert.Equal(t, "B", errState.BookingID)
	assert.Equal(t, "pivot", errState.Pathway)
	assert.Equal(t, "st-1", errState.SessionTypeID)
	assert.False(t, errState.Loading)
	assert.Equal(t, "down", errState.Error.Message)

	resumed := Reduce(errState, Retry())
	assert.Equal(t, StepSchedulingInitiated, resumed.Step)
	assert.Nil(t, resumed.Error)
	assert.Equal(t, "B", resumed.BookingID)
}

func TestReduce_ConfigurationErrorIsNotRetryable(t *testing.T) {
	s := Reduce(Initial(), SelectSessionType(testSessionType(), "b-1"))
	s = Reduce(s, SetError(&Error{Kind: KindConfiguration, Op: OpSelectSessionType, Message: "no calendar"}))

	assert.Equal(t, s, Reduce(s, Retry()))
	assert.Equal(t, Initial(), Reduce(s, Reset()))
}

func TestReduce_PathwayImmutableOnceSchedulingStarts(t *testing.T) {
	s := Reduce(Initial(), SelectPathway("accelerate"))
	s = Reduce(s, SelectSessionType(testSessionType(), "b-1"))
	s = Reduce(s, InitiateCalendly("B"))

	assert.Equal(t, "accelerate", Reduce(s, SelectPathway("play")).Pathway)
}

func TestReduce_PaymentFailureAndRetry(t *testing.T) {
	s := Reduce(Initial(), SelectSessionType(testSessionType(), "b-1"))
	s = Reduce(s, InitiateCalendly("B"))
	s = Reduce(s, CalendlyEventScheduled("ev", "inv", testStart, testEnd))

	failed := Reduce(s, PaymentFailed(&Error{Kind: KindCollaborator, Op: OpPayment, Message: "declined"}))
	require.Equal(t, StepPaymentFailed, failed.Step)
	assert.Equal(t, "declined", failed.Error.Message)

	again := Reduce(failed, RetryPayment())
	assert.Equal(t, StepSchedulingInitiated, again.Step)
	assert.Nil(t, again.Error)
	assert.True(t, again.Scheduled())
	assert.Equal(t, "B", again.BookingID)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s := Reduce(Initial(), SelectSessionType(testSessionType(), "b-1"))
	s = Reduce(s, SetCustomQuestionResponse(map[string]string{"q1": "a1"}))

	_ = Reduce(s, SetCustomQuestionResponse(map[string]string{"q1": "changed", "q2": "a2"}))

	assert.Equal(t, map[string]string{"q1": "a1"}, s.CustomQuestionResponse)
}

func TestReduce_UnknownStepIsInert(t *testing.T) {
	s := State{Step: "WAT"}
	for _, a := range sampleActions() {
		next := Reduce(s, a)
		switch a.Type {
		case ActionReset:
			assert.Equal(t, Initial(), next)
		case ActionSetLoading:
			assert.Equal(t, Step("WAT"), next.Step)
		default:
			assert.Equal(t, s, next)
		}
	}
}

// allowedEdges is the transition graph; anything else the reducer produces is a bug.
var allowedEdges = map[Step][]Step{
	StepIdle:                {StepSessionTypeSelected},
	StepSessionTypeSelected: {StepSchedulingInitiated, StepError},
	StepSchedulingInitiated: {StepBookingConfirmed, StepPaymentSucceeded, StepPaymentFailed, StepCancellationRequested, StepError},
	StepPaymentFailed:       {StepSchedulingInitiated, StepCancellationRequested, StepError},
}

func TestReduce_RandomSequencesFollowTheGraph(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	actions := sampleActions()

	for run := 0; run < 500; run++ {
		s := Initial()
		assigned := ""
		for i := 0; i < 40; i++ {
			a := actions[rng.Intn(len(actions))]
			if a.Type == ActionInitiateCalendly {
				a.BookingID = []string{"b-a", "b-b", "b-c"}[rng.Intn(3)]
			}
			next := Reduce(s, a)

			if next.Step != s.Step {
				switch {
				case a.Type == ActionReset:
					assert.Equal(t, StepIdle, next.Step)
				case s.Step == StepError:
					assert.Equal(t, ActionRetry, a.Type)
					assert.Equal(t, s.FailedStep, next.Step)
				default:
					assert.Contains(t, allowedEdges[s.Step], next.Step, "%s -[%s]-> %s", s.Step, a.Type, next.Step)
				}
			}

			if a.Type == ActionReset {
				assigned = ""
			} else if assigned != "" {
				assert.Equal(t, assigned, next.BookingID, "booking id reassigned by %s", a.Type)
			}
			if next.BookingID != "" {
				assigned = next.BookingID
			}
			s = next
		}
	}
}
