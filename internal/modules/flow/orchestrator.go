package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"builderhub/internal/calendar"
	"builderhub/internal/domain"
	"builderhub/internal/identity"
	"builderhub/internal/modules/booking"
	"builderhub/internal/modules/payment"
	"builderhub/internal/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ops name the step a flow Error came from; Retry dispatches on them.
const (
	OpSelectSessionType = "select_session_type"
	OpCreateBooking     = "create_booking"
	OpListSlots         = "list_slots"
	OpScheduleEvent     = "schedule_event"
	OpReadEvent         = "read_event"
	OpConfirmBooking    = "confirm_booking"
	OpPaymentStatus     = "payment_status"
	OpPayment           = "payment"
	OpCancelBooking     = "cancel_booking"
)

const abandonReason = "abandoned before payment"

// Recovery outcomes, also used as metric labels.
const (
	RecoverySucceeded = "succeeded"
	RecoveryFailed    = "failed"
	RecoveryPending   = "pending"
	RecoveryError     = "error"
	RecoverySkipped   = "skipped"
)

// Orchestrator performs the collaborator calls of each step and turns their
// outcomes into actions on a Context. Collaborator failures become SET_ERROR;
// only caller mistakes come back as errors.
type Orchestrator struct {
	sessions SessionTypes
	bookings Bookings
	payments Payments
	calendar calendar.Calendar
	newID    func() string
	log      *zap.Logger
}

func NewOrchestrator(sessions SessionTypes, bookings Bookings, payments Payments, cal calendar.Calendar, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		sessions: sessions,
		bookings: bookings,
		payments: payments,
		calendar: cal,
		newID:    func() string { return uuid.NewString() },
		log:      log,
	}
}

// Confirmation is what a confirm attempt left behind besides state changes.
type Confirmation struct {
	Persisted         bool
	CheckoutURL       string
	CheckoutSessionID string
}

func (o *Orchestrator) call(collaborator, op string, fn func() error) error {
	started := time.Now()
	err := fn()
	metrics.ObserveCall(collaborator, op, started, err)
	if err != nil {
		o.log.Warn("collaborator call failed",
			zap.String("collaborator", collaborator),
			zap.String("op", op),
			zap.Error(err),
		)
	}
	return err
}

func (o *Orchestrator) sessionType(ctx context.Context, id string) (*domain.SessionType, error) {
	var st *domain.SessionType
	err := o.call("catalog", "get_session_type", func() (err error) {
		st, err = o.sessions.Get(ctx, id)
		return err
	})
	return st, err
}

// InitiateScheduling creates the booking for a signed-in viewer before the
// calendar opens; anonymous attempts get a client id and are persisted later.
// It reports whether a booking now exists server side.
func (o *Orchestrator) InitiateScheduling(ctx context.Context, bc *Context, viewer identity.Viewer) bool {
	s := bc.State()
	if !viewer.IsAuthenticated() {
		bc.InitiateCalendly(o.newID())
		return false
	}

	var b *domain.Booking
	err := o.call("booking", "create", func() (err error) {
		b, err = o.bookings.Create(ctx, viewer, booking.CreateBookingRequest{
			BookingID:     s.BookingID,
			BuilderID:     s.BuilderID,
			SessionTypeID: s.SessionTypeID,
			Pathway:       s.Pathway,
			CustomAnswers: s.CustomQuestionResponse,
		})
		return err
	})
	if err != nil {
		bc.SetError(collaboratorError(OpCreateBooking, err))
		return false
	}
	bc.InitiateCalendly(b.ID)
	return true
}

// ListSlots pulls at most limit open slots for the selected session type.
func (o *Orchestrator) ListSlots(ctx context.Context, bc *Context, from, to time.Time, limit int) []calendar.Slot {
	st, ok := o.calendarSession(ctx, bc, OpListSlots)
	if !ok {
		return nil
	}
	var slots []calendar.Slot
	err := o.call("calendar", "available_slots", func() (err error) {
		slots, err = calendar.Take(o.calendar.AvailableSlots(ctx, st.CalendarRef, from, to), limit)
		return err
	})
	if err != nil {
		bc.SetError(collaboratorError(OpListSlots, err))
		return nil
	}
	return slots
}

// Schedule books slot with the calendar and records the event.
func (o *Orchestrator) Schedule(ctx context.Context, bc *Context, slot calendar.Slot, invitee calendar.Invitee) bool {
	st, ok := o.calendarSession(ctx, bc, OpScheduleEvent)
	if !ok {
		return false
	}
	var ev *calendar.ScheduledEvent
	err := o.call("calendar", "schedule", func() (err error) {
		ev, err = o.calendar.Schedule(ctx, st.CalendarRef, slot, invitee)
		return err
	})
	if err != nil {
		bc.SetError(collaboratorError(OpScheduleEvent, err))
		return false
	}
	o.record(bc, ev)
	return true
}

// ReadEvent loads an event the calendar widget reported and records it. A URI
// that does not belong to the provider is the caller's mistake.
func (o *Orchestrator) ReadEvent(ctx context.Context, bc *Context, eventURI, inviteeURI string) (bool, error) {
	var ev *calendar.ScheduledEvent
	err := o.call("calendar", "get_scheduled_event", func() (err error) {
		ev, err = o.calendar.GetScheduledEvent(ctx, eventURI, inviteeURI)
		return err
	})
	if errors.Is(err, calendar.ErrForeignURI) {
		return false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err != nil {
		bc.SetError(collaboratorError(OpReadEvent, err))
		return false, nil
	}
	o.record(bc, ev)
	return true, nil
}

func (o *Orchestrator) record(bc *Context, ev *calendar.ScheduledEvent) {
	bc.CalendlyEventScheduled(ev.EventURI, ev.InviteeURI, ev.Start, ev.End)
	if ev.Contact != (domain.Contact{}) {
		bc.SetContact(ev.Contact)
	}
	if len(ev.Answers) > 0 {
		bc.SetCustomQuestionResponse(ev.Answers)
	}
}

func (o *Orchestrator) calendarSession(ctx context.Context, bc *Context, op string) (*domain.SessionType, bool) {
	st, err := o.sessionType(ctx, bc.State().SessionTypeID)
	if err != nil {
		bc.SetError(collaboratorError(op, err))
		return nil, false
	}
	if st.CalendarRef == "" {
		bc.SetError(configurationError(op, calendar.ErrNoCalendarRef.Error()))
		return nil, false
	}
	return st, true
}

// ConfirmScheduled persists a deferred anonymous booking if needed, then
// confirms the recorded slot. A checkout URL in the result means the flow is
// suspended until payment returns; otherwise the booking is confirmed.
func (o *Orchestrator) ConfirmScheduled(ctx context.Context, bc *Context, viewer identity.Viewer, persisted bool) Confirmation {
	out := Confirmation{Persisted: persisted}
	s := bc.State()
	if !s.Scheduled() {
		bc.SetError(unexpectedState(OpConfirmBooking, "no scheduled event to confirm"))
		return out
	}

	var contact domain.Contact
	if s.Contact != nil {
		contact = *s.Contact
	}
	refs := domain.CalendarEventRefs{EventURI: s.CalendarEventURI, InviteeURI: s.CalendarInviteeURI}

	if !persisted {
		err := o.call("booking", "create", func() error {
			_, err := o.bookings.Create(ctx, viewer, booking.CreateBookingRequest{
				BookingID:     s.BookingID,
				BuilderID:     s.BuilderID,
				SessionTypeID: s.SessionTypeID,
				Calendar:      refs,
				Contact:       contact,
				Pathway:       s.Pathway,
				CustomAnswers: s.CustomQuestionResponse,
			})
			return err
		})
		if err != nil {
			bc.SetError(collaboratorError(OpConfirmBooking, err))
			return out
		}
		out.Persisted = true
	}

	var res *booking.ConfirmResult
	err := o.call("booking", "confirm", func() (err error) {
		res, err = o.bookings.Confirm(ctx, viewer, s.BookingID, booking.ConfirmBookingRequest{
			SessionTypeID: s.SessionTypeID,
			StartTime:     *s.StartTime,
			EndTime:       *s.EndTime,
			Calendar:      refs,
			Contact:       contact,
			Pathway:       s.Pathway,
			CustomAnswers: s.CustomQuestionResponse,
		})
		return err
	})
	if err != nil {
		bc.SetError(collaboratorError(OpConfirmBooking, err))
		return out
	}
	if res.PaymentRequired {
		out.CheckoutURL = res.CheckoutURL
		out.CheckoutSessionID = res.CheckoutSessionID
		return out
	}
	bc.BookingConfirmed(*s.StartTime, *s.EndTime)
	return out
}

// Recover reconciles a return from the payment provider. A flow that has
// never seen the booking is rebuilt from the stored booking first. Rebuild
// failures and mismatches are returned; status lookup failures land in state.
func (o *Orchestrator) Recover(ctx context.Context, bc *Context, viewer identity.Viewer, builderID, bookingID, sessionID string) (string, error) {
	s := bc.State()
	if s.BookingID != "" && s.BookingID != bookingID {
		return RecoveryError, ErrRecoveryMismatch
	}
	if s.Step == StepIdle {
		if err := o.rebuild(ctx, bc, viewer, builderID, bookingID); err != nil {
			return RecoveryError, err
		}
		s = bc.State()
	}
	if s.Step != StepSchedulingInitiated {
		return RecoverySkipped, nil
	}

	var (
		status    payment.Status
		paidForID string
	)
	err := o.call("payment", "status", func() (err error) {
		status, paidForID, err = o.payments.PaymentStatus(ctx, sessionID)
		return err
	})
	if err != nil {
		bc.SetError(collaboratorError(OpPaymentStatus, err))
		return RecoveryError, nil
	}
	if paidForID != "" && paidForID != bookingID {
		bc.SetError(unexpectedState(OpPaymentStatus, "payment session belongs to another booking"))
		return RecoveryError, nil
	}

	switch status {
	case payment.StatusSucceeded:
		bc.Dispatch(PaymentSucceeded())
		return RecoverySucceeded, nil
	case payment.StatusFailed:
		bc.Dispatch(PaymentFailed(&Error{Kind: KindCollaborator, Op: OpPayment, Message: "payment was not completed"}))
		return RecoveryFailed, nil
	default:
		return RecoveryPending, nil
	}
}

func (o *Orchestrator) rebuild(ctx context.Context, bc *Context, viewer identity.Viewer, builderID, bookingID string) error {
	var b *domain.Booking
	err := o.call("booking", "get", func() (err error) {
		b, err = o.bookings.GetByID(ctx, viewer, bookingID)
		return err
	})
	if err != nil {
		return fmt.Errorf("load booking %s: %w", bookingID, err)
	}
	if builderID != "" && b.BuilderID != builderID {
		return ErrRecoveryMismatch
	}
	st, err := o.sessionType(ctx, b.SessionTypeID)
	if err != nil {
		return fmt.Errorf("load session type %s: %w", b.SessionTypeID, err)
	}

	bc.SelectSessionType(st, b.BuilderID)
	if b.Pathway != "" {
		bc.SelectPathway(b.Pathway)
	}
	if b.Contact != (domain.Contact{}) {
		bc.SetContact(b.Contact)
	}
	if len(b.CustomAnswers) > 0 {
		bc.SetCustomQuestionResponse(b.CustomAnswers)
	}
	bc.InitiateCalendly(b.ID)
	if b.Scheduled() {
		bc.CalendlyEventScheduled(b.Calendar.EventURI, b.Calendar.InviteeURI, *b.StartTime, *b.EndTime)
	}
	return nil
}

// Cancel abandons the attempt, cancelling the stored booking when there is one.
func (o *Orchestrator) Cancel(ctx context.Context, bc *Context, viewer identity.Viewer, persisted bool) {
	s := bc.State()
	if persisted && s.BookingID != "" {
		err := o.call("booking", "cancel", func() error {
			_, err := o.bookings.Cancel(ctx, viewer, s.BookingID, abandonReason)
			return err
		})
		if err != nil {
			bc.SetError(collaboratorError(OpCancelBooking, err))
			return
		}
	}
	bc.Dispatch(RequestCancellation())
}
