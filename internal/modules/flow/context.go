package flow

import (
	"reflect"
	"sync"
	"time"

	"builderhub/internal/domain"
)

// Listener sees every dispatched action. changed is false when the reducer
// rejected it.
type Listener func(a Action, before, after State, changed bool)

// Context owns one State and serializes every transition through Reduce.
type Context struct {
	mu        sync.Mutex
	state     State
	listeners []Listener
}

func NewContext(initial State) *Context {
	if initial.Step == "" {
		initial = Initial()
	}
	return &Context{state: initial}
}

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Context) Subscribe(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Dispatch applies a and reports whether the state changed. Listeners run
// after the lock is released.
func (c *Context) Dispatch(a Action) (State, bool) {
	c.mu.Lock()
	before := c.state
	after := Reduce(before, a)
	changed := !reflect.DeepEqual(before, after)
	c.state = after
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l(a, before.clone(), after.clone(), changed)
	}
	return after.clone(), changed
}

func (c *Context) SelectSessionType(st *domain.SessionType, builderID string) (State, bool) {
	return c.Dispatch(SelectSessionType(st, builderID))
}

func (c *Context) InitiateCalendly(bookingID string) (State, bool) {
	return c.Dispatch(InitiateCalendly(bookingID))
}

func (c *Context) CalendlyEventScheduled(eventURI, inviteeURI string, start, end time.Time) (State, bool) {
	return c.Dispatch(CalendlyEventScheduled(eventURI, inviteeURI, start, end))
}

func (c *Context) BookingConfirmed(start, end time.Time) (State, bool) {
	return c.Dispatch(BookingConfirmed(start, end))
}

func (c *Context) SetError(err *Error) (State, bool) { return c.Dispatch(SetError(err)) }

func (c *Context) Reset() (State, bool) { return c.Dispatch(Reset()) }

func (c *Context) SetLoading(loading bool) (State, bool) { return c.Dispatch(SetLoading(loading)) }

func (c *Context) SelectPathway(pathway string) (State, bool) {
	return c.Dispatch(SelectPathway(pathway))
}

func (c *Context) SetCustomQuestionResponse(answers map[string]string) (State, bool) {
	return c.Dispatch(SetCustomQuestionResponse(answers))
}

func (c *Context) SetContact(contact domain.Contact) (State, bool) {
	return c.Dispatch(SetContact(contact))
}
