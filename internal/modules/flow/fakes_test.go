package flow

import (
	"context"
	"iter"
	"strings"
	"sync"
	"time"

	"builderhub/internal/calendar"
	"builderhub/internal/domain"
	"builderhub/internal/identity"
	"builderhub/internal/modules/booking"
	"builderhub/internal/modules/catalog"
	"builderhub/internal/modules/payment"

	"github.com/stretchr/testify/mock"
)

type fakeSessions struct {
	byID map[string]*domain.SessionType
}

func newFakeSessions(types ...domain.SessionType) *fakeSessions {
	f := &fakeSessions{byID: make(map[string]*domain.SessionType)}
	for i := range types {
		st := types[i]
		f.byID[st.ID] = &st
	}
	return f
}

func (f *fakeSessions) Get(_ context.Context, id string) (*domain.SessionType, error) {
	st, ok := f.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

type mockBookings struct {
	mock.Mock
}

func (m *mockBookings) Create(ctx context.Context, viewer identity.Viewer, req booking.CreateBookingRequest) (*domain.Booking, error) {
	args := m.Called(ctx, viewer, req)
	b, _ := args.Get(0).(*domain.Booking)
	return b, args.Error(1)
}

func (m *mockBookings) Confirm(ctx context.Context, viewer identity.Viewer, id string, req booking.ConfirmBookingRequest) (*booking.ConfirmResult, error) {
	args := m.Called(ctx, viewer, id, req)
	res, _ := args.Get(0).(*booking.ConfirmResult)
	return res, args.Error(1)
}

func (m *mockBookings) Cancel(ctx context.Context, viewer identity.Viewer, id, reason string) (*domain.Booking, error) {
	args := m.Called(ctx, viewer, id, reason)
	b, _ := args.Get(0).(*domain.Booking)
	return b, args.Error(1)
}

func (m *mockBookings) GetByID(ctx context.Context, viewer identity.Viewer, id string) (*domain.Booking, error) {
	args := m.Called(ctx, viewer, id)
	b, _ := args.Get(0).(*domain.Booking)
	return b, args.Error(1)
}

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) PaymentStatus(ctx context.Context, sessionID string) (payment.Status, string, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(payment.Status), args.String(1), args.Error(2)
}

type fakeCalendar struct {
	mu          sync.Mutex
	slots       []calendar.Slot
	slotsErr    error
	scheduleErr error
	events      map[string]*calendar.ScheduledEvent

	// entered/release let a test hold Schedule mid-call.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeCalendar) AvailableSlots(_ context.Context, _ string, from, to time.Time) iter.Seq2[calendar.Slot, error] {
	return func(yield func(calendar.Slot, error) bool) {
		for _, s := range f.slots {
			if s.Start.Before(from) || s.End.After(to) {
				continue
			}
			if !yield(s, nil) {
				return
			}
		}
		if f.slotsErr != nil {
			yield(calendar.Slot{}, f.slotsErr)
		}
	}
}

func (f *fakeCalendar) Schedule(_ context.Context, _ string, slot calendar.Slot, invitee calendar.Invitee) (*calendar.ScheduledEvent, error) {
	if f.entered != nil {
		close(f.entered)
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleErr != nil {
		return nil, f.scheduleErr
	}
	return &calendar.ScheduledEvent{
		EventURI:   testEventURI,
		InviteeURI: testInviteeURI,
		Start:      slot.Start,
		End:        slot.End,
		Contact:    domain.Contact{Name: invitee.Name, Email: invitee.Email},
		Answers:    invitee.Answers,
	}, nil
}

func (f *fakeCalendar) GetScheduledEvent(_ context.Context, eventURI, _ string) (*calendar.ScheduledEvent, error) {
	if !strings.HasPrefix(eventURI, "https://cal.test/") {
		return nil, calendar.ErrForeignURI
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[eventURI]
	if !ok {
		return nil, calendar.ErrNotFound
	}
	return ev, nil
}
