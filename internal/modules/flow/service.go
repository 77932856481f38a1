package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"builderhub/internal/events"
	"builderhub/internal/flowstore"
	"builderhub/internal/identity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	SignInPath string
	TTL        time.Duration
}

type flowLock struct {
	mu   sync.Mutex
	refs int
}

// Service runs controller actions against stored flows. Actions on one flow
// are serialized; a second concurrent action gets ErrBusy instead of waiting.
type Service struct {
	store flowstore.Store
	orch  *Orchestrator
	bus   events.Bus
	cfg   Config
	log   *zap.Logger

	mu    sync.Mutex
	locks map[string]*flowLock

	newID func() string
	now   func() time.Time
}

func NewService(store flowstore.Store, orch *Orchestrator, bus events.Bus, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Service{
		store: store,
		orch:  orch,
		bus:   bus,
		cfg:   cfg,
		log:   log,
		locks: make(map[string]*flowLock),
		newID: func() string { return uuid.NewString() },
		now:   time.Now,
	}
}

// Topic is the event bus topic of one flow.
func Topic(flowID string) string {
	return "flow:" + flowID
}

// Start creates a flow for a builder's booking page and mounts it with the
// page query, which may carry payment return parameters.
func (s *Service) Start(ctx context.Context, viewer identity.Viewer, builderID string, query url.Values) (*View, error) {
	builderID = strings.TrimSpace(builderID)
	if builderID == "" {
		return nil, ErrInvalidInput
	}
	now := s.now().UTC()
	snap := &Snapshot{
		ID:        s.newID(),
		State:     Initial(),
		Local:     Local{BuilderID: builderID, ReturnURL: returnURL(builderID, query)},
		CreatedAt: now,
	}
	if err := s.save(ctx, snap); err != nil {
		return nil, err
	}
	s.log.Info("flow started", zap.String("flow_id", snap.ID), zap.String("builder_id", builderID))

	return s.Do(ctx, snap.ID, viewer, func(c *Controller) error {
		return c.Mount(ctx, query)
	})
}

// returnURL is the booking page a sign-in should come back to, without the
// one-shot payment return parameters.
func returnURL(builderID string, query url.Values) string {
	q := url.Values{}
	for k, vs := range query {
		switch k {
		case "bookingId", "session_id", "stripeSessionId", "canceled":
			continue
		}
		q[k] = vs
	}
	u := "/book/" + url.PathEscape(builderID)
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (s *Service) Get(ctx context.Context, flowID string, viewer identity.Viewer) (*View, error) {
	snap, err := s.load(ctx, flowID)
	if err != nil {
		return nil, err
	}
	v := s.controller(snap, viewer).View()
	return &v, nil
}

// Do loads the flow, runs fn on its controller and saves the result. The view
// is returned even when fn fails so callers can render the current state.
// Saves are not cancelled with ctx.
func (s *Service) Do(ctx context.Context, flowID string, viewer identity.Viewer, fn func(c *Controller) error) (*View, error) {
	unlock, ok := s.tryLock(flowID)
	if !ok {
		return nil, ErrBusy
	}
	defer unlock()

	snap, err := s.load(ctx, flowID)
	if err != nil {
		return nil, err
	}
	before := *snap

	c := s.controller(snap, viewer)
	actionErr := fn(c)

	after := c.Snapshot()
	if !reflect.DeepEqual(before.State, after.State) || !reflect.DeepEqual(before.Local, after.Local) {
		if err := s.save(context.WithoutCancel(ctx), after); err != nil {
			return nil, err
		}
	}
	view := c.View()
	s.publish(flowID, before, after, view)
	return &view, actionErr
}

func (s *Service) controller(snap *Snapshot, viewer identity.Viewer) *Controller {
	return NewController(s.orch, snap, viewer, Options{
		SignInPath: s.cfg.SignInPath,
		Log:        s.log,
		Hooks: Hooks{
			Checkpoint: func(ctx context.Context, snap *Snapshot) error {
				return s.save(context.WithoutCancel(ctx), snap)
			},
			ClaimRecovery: func(ctx context.Context, p RecoveryParams) (bool, error) {
				return s.store.MarkOnce(ctx, snap.ID, "recovery:"+p.key(), s.cfg.TTL)
			},
		},
	})
}

// ReportAuthError tells the flow's subscribers that the viewer's credentials
// were rejected, so the client can refresh them.
func (s *Service) ReportAuthError(flowID string, err error) {
	if s.bus == nil || flowID == "" || err == nil {
		return
	}
	s.log.Debug("auth error on flow", zap.String("flow_id", flowID), zap.Error(err))
	s.bus.Publish(events.Event{
		Type:    events.TypeAuthError,
		Topic:   Topic(flowID),
		Payload: map[string]string{"flowId": flowID, "error": err.Error()},
	})
}

func (s *Service) publish(flowID string, before Snapshot, after *Snapshot, view View) {
	if s.bus == nil {
		return
	}
	if !reflect.DeepEqual(before.State, after.State) || !reflect.DeepEqual(before.Local, after.Local) {
		s.bus.Publish(events.Event{Type: events.TypeFlowUpdated, Topic: Topic(flowID), Payload: view})
	}
	if after.Local.CheckoutURL != "" && after.Local.CheckoutURL != before.Local.CheckoutURL {
		s.bus.Publish(events.Event{
			Type:  events.TypeCheckoutRedirect,
			Topic: Topic(flowID),
			Payload: map[string]string{
				"flowId":      flowID,
				"bookingId":   after.State.BookingID,
				"checkoutUrl": after.Local.CheckoutURL,
			},
		})
	}
}

func (s *Service) load(ctx context.Context, flowID string) (*Snapshot, error) {
	data, err := s.store.Load(ctx, flowID)
	if errors.Is(err, flowstore.ErrNotFound) {
		return nil, ErrFlowNotFound
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode flow %s: %w", flowID, err)
	}
	return &snap, nil
}

func (s *Service) save(ctx context.Context, snap *Snapshot) error {
	snap.Version++
	snap.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode flow %s: %w", snap.ID, err)
	}
	return s.store.Save(ctx, snap.ID, data, s.cfg.TTL)
}

func (s *Service) tryLock(flowID string) (func(), bool) {
	s.mu.Lock()
	l := s.locks[flowID]
	if l == nil {
		l = &flowLock{}
		s.locks[flowID] = l
	}
	l.refs++
	s.mu.Unlock()

	if !l.mu.TryLock() {
		s.release(flowID, l)
		return nil, false
	}
	return func() {
		l.mu.Unlock()
		s.release(flowID, l)
	}, true
}

func (s *Service) release(flowID string, l *flowLock) {
	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, flowID)
	}
	s.mu.Unlock()
}
