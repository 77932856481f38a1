package flow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"builderhub/internal/calendar"
	"builderhub/internal/domain"
	"builderhub/internal/identity"
	"builderhub/internal/modules/catalog"
	"builderhub/internal/pkg/metrics"

	"go.uber.org/zap"
)

const (
	defaultSlotLimit  = 20
	maxSlotLimit      = 100
	defaultSlotWindow = 14 * 24 * time.Hour
)

// Local is controller state that is not part of the booking attempt itself
// but must survive between requests.
type Local struct {
	BuilderID               string          `json:"builderId"`
	ReturnURL               string          `json:"returnUrl"`
	PathwaySelectionPending bool            `json:"pathwaySelectionPending"`
	PendingSessionTypeID    string          `json:"pendingSessionTypeId,omitempty"`
	BookingPersisted        bool            `json:"bookingPersisted"`
	AwaitingPayment         bool            `json:"awaitingPayment"`
	CheckoutURL             string          `json:"checkoutUrl,omitempty"`
	CheckoutSessionID       string          `json:"checkoutSessionId,omitempty"`
	IsRecovering            bool            `json:"isRecovering"`
	RecoveryError           string          `json:"recoveryError,omitempty"`
	Recovered               []string        `json:"recovered,omitempty"`
	LastRecovery            *RecoveryParams `json:"lastRecovery,omitempty"`
	PendingEvent            *EventRef       `json:"pendingEvent,omitempty"`
}

type RecoveryParams struct {
	BookingID string `json:"bookingId"`
	SessionID string `json:"sessionId"`
}

func (p RecoveryParams) key() string {
	return p.BookingID + "|" + p.SessionID
}

type EventRef struct {
	EventURI   string `json:"eventUri"`
	InviteeURI string `json:"inviteeUri"`
}

// Snapshot is what the flow store keeps per flow.
type Snapshot struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	State     State     `json:"state"`
	Local     Local     `json:"local"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecoveryParamsFrom reads the payment return parameters from a booking page
// query. ok is false unless both the booking and the checkout session are named.
func RecoveryParamsFrom(q url.Values) (RecoveryParams, bool) {
	p := RecoveryParams{BookingID: q.Get("bookingId"), SessionID: q.Get("session_id")}
	if p.SessionID == "" {
		p.SessionID = q.Get("stripeSessionId")
	}
	return p, p.BookingID != "" && p.SessionID != ""
}

type Hooks struct {
	// Checkpoint persists the current snapshot in the middle of an action.
	Checkpoint func(ctx context.Context, snap *Snapshot) error
	// ClaimRecovery returns false when another caller already reconciled p.
	ClaimRecovery func(ctx context.Context, p RecoveryParams) (bool, error)
}

type Options struct {
	SignInPath string
	Hooks      Hooks
	Log        *zap.Logger
}

// Controller sequences one flow's steps for one viewer.
type Controller struct {
	id         string
	createdAt  time.Time
	version    int64
	orch       *Orchestrator
	bc         *Context
	local      Local
	viewer     identity.Viewer
	signInPath string
	hooks      Hooks
	log        *zap.Logger
	now        func() time.Time
}

func NewController(orch *Orchestrator, snap *Snapshot, viewer identity.Viewer, opts Options) *Controller {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	signIn := opts.SignInPath
	if signIn == "" {
		signIn = "/sign-in"
	}
	c := &Controller{
		id:         snap.ID,
		createdAt:  snap.CreatedAt,
		version:    snap.Version,
		orch:       orch,
		bc:         NewContext(snap.State),
		local:      snap.Local,
		viewer:     viewer,
		signInPath: signIn,
		hooks:      opts.Hooks,
		log:        log.With(zap.String("flow_id", snap.ID)),
		now:        time.Now,
	}
	c.bc.Subscribe(c.observe)
	return c
}

func (c *Controller) observe(a Action, before, after State, changed bool) {
	if !changed {
		if a.Type != ActionSetLoading {
			metrics.FlowRejectedActions.WithLabelValues(string(a.Type), string(before.Step)).Inc()
			c.log.Debug("action rejected", zap.String("action", string(a.Type)), zap.String("step", string(before.Step)))
		}
		return
	}
	metrics.FlowTransitions.WithLabelValues(string(a.Type), string(after.Step)).Inc()
	if before.Step != after.Step {
		c.log.Info("flow step changed",
			zap.String("action", string(a.Type)),
			zap.String("from", string(before.Step)),
			zap.String("to", string(after.Step)),
		)
	}
}

func (c *Controller) Snapshot() *Snapshot {
	return &Snapshot{
		ID:        c.id,
		Version:   c.version,
		State:     c.bc.State(),
		Local:     c.local,
		CreatedAt: c.createdAt,
	}
}

func (c *Controller) State() State { return c.bc.State() }

func (c *Controller) guard() error {
	if !c.viewer.Loaded {
		return ErrIdentityLoading
	}
	if c.bc.State().Loading {
		return ErrBusy
	}
	return nil
}

func (c *Controller) checkpoint(ctx context.Context) {
	if c.hooks.Checkpoint == nil {
		return
	}
	if err := c.hooks.Checkpoint(ctx, c.Snapshot()); err != nil {
		c.log.Warn("flow checkpoint failed", zap.Error(err))
	}
}

// withLoading marks the flow busy, visible to other instances, while fn runs.
func (c *Controller) withLoading(ctx context.Context, fn func()) {
	c.bc.SetLoading(true)
	c.checkpoint(ctx)
	defer c.bc.SetLoading(false)
	fn()
}

// Mount handles the booking page query. A payment return (bookingId plus
// session_id or stripeSessionId) is reconciled at most once per pair.
func (c *Controller) Mount(ctx context.Context, q url.Values) error {
	p, ok := RecoveryParamsFrom(q)
	if !ok || slices.Contains(c.local.Recovered, p.key()) {
		return nil
	}
	if err := c.guard(); err != nil {
		return err
	}
	if c.hooks.ClaimRecovery != nil {
		first, err := c.hooks.ClaimRecovery(ctx, p)
		if err != nil {
			return fmt.Errorf("claim recovery: %w", err)
		}
		if !first {
			c.local.Recovered = append(c.local.Recovered, p.key())
			return nil
		}
	}
	c.local.Recovered = append(c.local.Recovered, p.key())
	return c.recover(ctx, p)
}

func (c *Controller) recover(ctx context.Context, p RecoveryParams) error {
	c.local.IsRecovering = true
	c.local.RecoveryError = ""
	c.local.LastRecovery = &p
	c.checkpoint(ctx)
	defer func() { c.local.IsRecovering = false }()

	outcome, err := c.orch.Recover(ctx, c.bc, c.viewer, c.local.BuilderID, p.BookingID, p.SessionID)
	metrics.Recoveries.WithLabelValues(outcome).Inc()
	if errors.Is(err, ErrRecoveryMismatch) {
		return err
	}
	if err != nil {
		c.log.Warn("payment recovery failed", zap.String("booking_id", p.BookingID), zap.Error(err))
		c.local.RecoveryError = "We could not restore this booking. Please start again."
		return nil
	}

	switch outcome {
	case RecoverySucceeded, RecoveryFailed:
		c.local.BookingPersisted = true
		c.local.AwaitingPayment = false
		c.local.CheckoutURL = ""
	case RecoveryPending:
		c.local.BookingPersisted = true
		c.local.AwaitingPayment = true
		c.local.CheckoutSessionID = p.SessionID
	case RecoveryError:
		c.local.BookingPersisted = true
	}
	c.log.Info("payment recovery finished", zap.String("booking_id", p.BookingID), zap.String("outcome", outcome))
	return nil
}

// SelectSessionType starts an attempt. Pathway sessions for signed-in viewers
// stop at pathway selection until ChoosePathway.
func (c *Controller) SelectSessionType(ctx context.Context, sessionTypeID string) error {
	if err := c.guard(); err != nil {
		return err
	}
	s := c.bc.State()
	if !Accepts(s, ActionSelectSessionType) {
		return ErrInvalidTransition
	}
	st, err := c.lookupSessionType(ctx, sessionTypeID)
	if err != nil {
		return err
	}
	if st.RequiresAuth && !c.viewer.IsAuthenticated() {
		return &SignInRequiredError{RedirectURL: signInRedirect(c.signInPath, c.local.ReturnURL)}
	}

	c.local.RecoveryError = ""
	if st.Category == domain.CategoryPathway && c.viewer.IsAuthenticated() && s.Pathway == "" {
		c.local.PathwaySelectionPending = true
		c.local.PendingSessionTypeID = st.ID
		return nil
	}
	c.local.PathwaySelectionPending = false
	c.local.PendingSessionTypeID = ""
	c.proceed(ctx, st)
	return nil
}

func (c *Controller) lookupSessionType(ctx context.Context, id string) (*domain.SessionType, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	st, err := c.orch.sessionType(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, ErrUnknownSessionType
	}
	if err != nil {
		return nil, fmt.Errorf("load session type: %w", err)
	}
	if c.local.BuilderID != "" && st.BuilderID != c.local.BuilderID {
		return nil, ErrUnknownSessionType
	}
	return st, nil
}

func (c *Controller) proceed(ctx context.Context, st *domain.SessionType) {
	builderID := c.local.BuilderID
	if builderID == "" {
		builderID = st.BuilderID
	}
	c.bc.SelectSessionType(st, builderID)
	if strings.TrimSpace(st.CalendarRef) == "" {
		c.bc.SetError(configurationError(OpSelectSessionType, calendar.ErrNoCalendarRef.Error()))
		return
	}
	c.initiate(ctx)
}

func (c *Controller) initiate(ctx context.Context) {
	c.withLoading(ctx, func() {
		if c.orch.InitiateScheduling(ctx, c.bc, c.viewer) {
			c.local.BookingPersisted = true
		}
	})
}

func (c *Controller) ChoosePathway(ctx context.Context, pathway string) error {
	if err := c.guard(); err != nil {
		return err
	}
	if !c.local.PathwaySelectionPending {
		return ErrPathwayNotSelecting
	}
	pathway = strings.TrimSpace(pathway)
	if pathway == "" {
		return ErrInvalidInput
	}
	st, err := c.lookupSessionType(ctx, c.local.PendingSessionTypeID)
	if err != nil {
		return err
	}
	if !Accepts(c.bc.State(), ActionSelectPathway) {
		return ErrInvalidTransition
	}
	c.bc.SelectPathway(pathway)
	c.local.PathwaySelectionPending = false
	c.local.PendingSessionTypeID = ""
	c.proceed(ctx, st)
	return nil
}

func (c *Controller) SetAnswers(answers map[string]string) error {
	if len(answers) == 0 {
		return ErrInvalidInput
	}
	if !Accepts(c.bc.State(), ActionSetCustomQuestionAnswer) {
		return ErrInvalidTransition
	}
	c.bc.SetCustomQuestionResponse(answers)
	return nil
}

func (c *Controller) scheduling() error {
	if err := c.guard(); err != nil {
		return err
	}
	if c.bc.State().Step != StepSchedulingInitiated || c.local.AwaitingPayment {
		return ErrInvalidTransition
	}
	return nil
}

// AvailableSlots lists up to limit open slots in [from, to).
func (c *Controller) AvailableSlots(ctx context.Context, from, to time.Time, limit int) ([]calendar.Slot, error) {
	if err := c.scheduling(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSlotLimit
	}
	if limit > maxSlotLimit {
		limit = maxSlotLimit
	}
	if from.IsZero() {
		from = c.now()
	}
	if to.IsZero() {
		to = from.Add(defaultSlotWindow)
	}
	if !to.After(from) {
		return nil, ErrInvalidInput
	}
	return c.orch.ListSlots(ctx, c.bc, from, to, limit), nil
}

// ScheduleSlot books slot through the calendar and confirms the booking.
func (c *Controller) ScheduleSlot(ctx context.Context, slot calendar.Slot, invitee calendar.Invitee) error {
	if err := c.scheduling(); err != nil {
		return err
	}
	if slot.Start.IsZero() || !slot.End.After(slot.Start) || strings.TrimSpace(invitee.Email) == "" {
		return ErrInvalidInput
	}
	c.withLoading(ctx, func() {
		if c.orch.Schedule(ctx, c.bc, slot, invitee) {
			c.confirm(ctx)
		}
	})
	return nil
}

// EventScheduled continues after the calendar widget reported a booked event.
func (c *Controller) EventScheduled(ctx context.Context, eventURI, inviteeURI string) error {
	if err := c.scheduling(); err != nil {
		return err
	}
	if strings.TrimSpace(eventURI) == "" || strings.TrimSpace(inviteeURI) == "" {
		return ErrInvalidInput
	}
	c.local.PendingEvent = &EventRef{EventURI: eventURI, InviteeURI: inviteeURI}
	return c.readEvent(ctx)
}

func (c *Controller) readEvent(ctx context.Context) error {
	var err error
	c.withLoading(ctx, func() {
		var ok bool
		ok, err = c.orch.ReadEvent(ctx, c.bc, c.local.PendingEvent.EventURI, c.local.PendingEvent.InviteeURI)
		if ok {
			c.local.PendingEvent = nil
			c.confirm(ctx)
		}
	})
	if err != nil {
		c.local.PendingEvent = nil
	}
	return err
}

func (c *Controller) confirm(ctx context.Context) {
	res := c.orch.ConfirmScheduled(ctx, c.bc, c.viewer, c.local.BookingPersisted)
	if res.Persisted {
		c.local.BookingPersisted = true
	}
	if res.CheckoutURL != "" {
		c.local.AwaitingPayment = true
		c.local.CheckoutURL = res.CheckoutURL
		c.local.CheckoutSessionID = res.CheckoutSessionID
	}
}

// Retry re-runs the step that failed. Configuration errors only reset.
func (c *Controller) Retry(ctx context.Context) error {
	if err := c.guard(); err != nil {
		return err
	}
	s := c.bc.State()
	if s.Step != StepError {
		return ErrInvalidTransition
	}
	if !s.Error.Retryable() {
		return ErrNotRetryable
	}
	op := s.Error.Op
	if _, changed := c.bc.Dispatch(Retry()); !changed {
		return ErrNotRetryable
	}

	switch op {
	case OpCreateBooking:
		c.initiate(ctx)
	case OpReadEvent:
		if c.local.PendingEvent != nil {
			return c.readEvent(ctx)
		}
	case OpConfirmBooking:
		c.withLoading(ctx, func() { c.confirm(ctx) })
	case OpPaymentStatus:
		if c.local.LastRecovery != nil {
			return c.recover(ctx, *c.local.LastRecovery)
		}
	case OpCancelBooking:
		c.cancel(ctx)
	}
	return nil
}

// CheckPayment asks the provider again about the flow's open checkout. A
// pending payment return leaves the flow suspended; this is how it settles
// without another return from checkout.
func (c *Controller) CheckPayment(ctx context.Context) error {
	if err := c.guard(); err != nil {
		return err
	}
	s := c.bc.State()
	if s.Step != StepSchedulingInitiated || !c.local.AwaitingPayment || c.local.CheckoutSessionID == "" {
		return ErrInvalidTransition
	}
	return c.recover(ctx, RecoveryParams{BookingID: s.BookingID, SessionID: c.local.CheckoutSessionID})
}

// RetryPayment goes back to scheduling and asks for a fresh checkout.
func (c *Controller) RetryPayment(ctx context.Context) error {
	if err := c.guard(); err != nil {
		return err
	}
	if _, changed := c.bc.Dispatch(RetryPayment()); !changed {
		return ErrInvalidTransition
	}
	c.local.AwaitingPayment = false
	c.local.CheckoutURL = ""
	c.local.CheckoutSessionID = ""
	c.withLoading(ctx, func() { c.confirm(ctx) })
	return nil
}

func (c *Controller) RequestCancellation(ctx context.Context) error {
	if err := c.guard(); err != nil {
		return err
	}
	if !Accepts(c.bc.State(), ActionRequestCancellation) {
		return ErrInvalidTransition
	}
	c.cancel(ctx)
	return nil
}

func (c *Controller) cancel(ctx context.Context) {
	c.withLoading(ctx, func() {
		c.orch.Cancel(ctx, c.bc, c.viewer, c.local.BookingPersisted)
	})
	if c.bc.State().Step == StepCancellationRequested {
		c.local.AwaitingPayment = false
		c.local.CheckoutURL = ""
	}
}

// Reset is always allowed, including while busy, so a stuck flow can be left.
func (c *Controller) Reset() {
	c.bc.Reset()
	c.local = Local{
		BuilderID: c.local.BuilderID,
		ReturnURL: c.local.ReturnURL,
		Recovered: c.local.Recovered,
	}
}
