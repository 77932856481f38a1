package flow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_NotifiesListeners(t *testing.T) {
	bc := NewContext(State{})
	require.Equal(t, StepIdle, bc.State().Step)

	type call struct {
		action  ActionType
		from    Step
		to      Step
		changed bool
	}
	var calls []call
	bc.Subscribe(func(a Action, before, after State, changed bool) {
		calls = append(calls, call{a.Type, before.Step, after.Step, changed})
	})

	bc.InitiateCalendly("B")
	bc.SelectSessionType(testSessionType(), "b-1")
	bc.InitiateCalendly("B")

	assert.Equal(t, []call{
		{ActionInitiateCalendly, StepIdle, StepIdle, false},
		{ActionSelectSessionType, StepIdle, StepSessionTypeSelected, true},
		{ActionInitiateCalendly, StepSessionTypeSelected, StepSchedulingInitiated, true},
	}, calls)
}

func TestContext_StateIsACopy(t *testing.T) {
	bc := NewContext(Initial())
	bc.SetCustomQuestionResponse(map[string]string{"q": "a"})

	s := bc.State()
	s.CustomQuestionResponse["q"] = "tampered"

	assert.Equal(t, "a", bc.State().CustomQuestionResponse["q"])
}

func TestContext_ConcurrentDispatchAssignsOneBookingID(t *testing.T) {
	bc := NewContext(Initial())
	bc.SelectSessionType(testSessionType(), "b-1")

	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bc.InitiateCalendly(id)
		}()
	}
	wg.Wait()

	s := bc.State()
	assert.Equal(t, StepSchedulingInitiated, s.Step)
	assert.Contains(t, ids, s.BookingID)

	before := s.BookingID
	bc.InitiateCalendly("zzz")
	assert.Equal(t, before, bc.State().BookingID)
}
