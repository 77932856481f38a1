package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"builderhub/internal/domain"
	"builderhub/internal/identity"
	"builderhub/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	bookings     BookingRepository
	sessionTypes SessionTypeReader
	checkout     CheckoutCreator
	log          *zap.Logger
	now          func() time.Time
}

func NewService(bookings BookingRepository, sessionTypes SessionTypeReader, checkout CheckoutCreator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		bookings:     bookings,
		sessionTypes: sessionTypes,
		checkout:     checkout,
		log:          log,
		now:          time.Now,
	}
}

// Create persists a booking. Repeating the call with the same BookingID
// returns the stored booking instead of creating a second one.
func (s *Service) Create(ctx context.Context, viewer identity.Viewer, req CreateBookingRequest) (*domain.Booking, error) {
	if strings.TrimSpace(req.BuilderID) == "" || strings.TrimSpace(req.SessionTypeID) == "" {
		return nil, ErrValidation
	}
	if req.BookingID != "" {
		if _, err := uuid.Parse(req.BookingID); err != nil {
			return nil, ErrValidation
		}
	}

	st, err := s.sessionType(ctx, req.SessionTypeID)
	if err != nil {
		return nil, err
	}
	if st.BuilderID != req.BuilderID {
		return nil, ErrValidation
	}
	if st.RequiresAuth && !viewer.IsAuthenticated() {
		return nil, ErrSignInRequired
	}

	if req.BookingID != "" {
		existing, err := s.bookings.GetByID(ctx, req.BookingID)
		switch {
		case err == nil:
			return s.resumeCreate(ctx, viewer, existing, req)
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}

	id := req.BookingID
	if id == "" {
		id = uuid.NewString()
	}

	b := &domain.Booking{
		ID:            id,
		BuilderID:     req.BuilderID,
		SessionTypeID: req.SessionTypeID,
		Contact:       req.Contact,
		Calendar:      req.Calendar,
		Pathway:       req.Pathway,
		Notes:         req.Notes,
		CustomAnswers: req.CustomAnswers,
		Price:         st.Price,
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentNotRequired,
	}
	if st.Priced() {
		b.PaymentStatus = domain.PaymentUnpaid
	}
	if viewer.IsAuthenticated() {
		b.ClientUserID = viewer.UserID
	}

	if err := s.bookings.Create(ctx, b); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			existing, gerr := s.bookings.GetByID(ctx, id)
			if gerr != nil {
				return nil, gerr
			}
			return s.resumeCreate(ctx, viewer, existing, req)
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.log.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("builder_id", b.BuilderID),
		zap.String("session_type_id", b.SessionTypeID),
		zap.Bool("authenticated", viewer.IsAuthenticated()),
	)
	return b, nil
}

func (s *Service) resumeCreate(ctx context.Context, viewer identity.Viewer, b *domain.Booking, req CreateBookingRequest) (*domain.Booking, error) {
	if b.BuilderID != req.BuilderID || b.SessionTypeID != req.SessionTypeID {
		return nil, ErrValidation
	}
	if err := s.authorize(viewer, b); err != nil {
		return nil, err
	}

	if b.Calendar.EventURI == "" && req.Calendar.EventURI != "" {
		b.Calendar = req.Calendar
		if b.Contact == (domain.Contact{}) {
			b.Contact = req.Contact
		}
		if err := s.bookings.Update(ctx, b); err != nil {
			return nil, fmt.Errorf("update booking: %w", err)
		}
	}
	return b, nil
}

// Confirm attaches the scheduled slot. Priced bookings get a checkout and stay
// pending until payment settles; free ones are confirmed right away.
func (s *Service) Confirm(ctx context.Context, viewer identity.Viewer, id string, req ConfirmBookingRequest) (*ConfirmResult, error) {
	slot := domain.TimeSlot{Start: req.StartTime, End: req.EndTime}
	if !slot.Valid() || slot.End.Before(s.now()) {
		return nil, ErrValidation
	}

	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(viewer, b); err != nil {
		return nil, err
	}
	if b.SessionTypeID != req.SessionTypeID {
		return nil, ErrValidation
	}
	if b.Status == domain.BookingCancelled {
		return nil, ErrInvalidStatusTransition
	}
	if b.Scheduled() && b.Status == domain.BookingConfirmed &&
		!(b.StartTime.Equal(slot.Start) && b.EndTime.Equal(slot.End)) {
		return nil, ErrSlotConflict
	}

	st, err := s.sessionType(ctx, b.SessionTypeID)
	if err != nil {
		return nil, err
	}

	start, end := slot.Start.UTC(), slot.End.UTC()
	b.StartTime, b.EndTime = &start, &end
	if req.Calendar.EventURI != "" {
		b.Calendar = req.Calendar
	}
	if req.Contact != (domain.Contact{}) {
		b.Contact = req.Contact
	}
	if b.Pathway == "" {
		b.Pathway = req.Pathway
	}
	if req.Notes != "" {
		b.Notes = req.Notes
	}
	if len(req.CustomAnswers) > 0 {
		b.CustomAnswers = req.CustomAnswers
	}
	if b.ClientUserID == "" && viewer.IsAuthenticated() {
		b.ClientUserID = viewer.UserID
	}

	if !st.Priced() || b.PaymentStatus == domain.PaymentPaid {
		b.Status = domain.BookingConfirmed
		if !st.Priced() {
			b.PaymentStatus = domain.PaymentNotRequired
		}
		if err := s.bookings.Update(ctx, b); err != nil {
			return nil, fmt.Errorf("confirm booking: %w", err)
		}
		s.log.Info("booking confirmed", zap.String("booking_id", b.ID))
		return &ConfirmResult{Booking: b}, nil
	}

	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("confirm booking: %w", err)
	}
	if s.checkout == nil {
		return nil, ErrPaymentUnavailable
	}
	p, err := s.checkout.CreateCheckout(ctx, b, st)
	if err != nil {
		s.log.Error("checkout creation failed", zap.String("booking_id", b.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}
	if err := s.bookings.SetCheckoutSession(ctx, b.ID, p.SessionID); err != nil {
		return nil, fmt.Errorf("store checkout session: %w", err)
	}
	b.CheckoutSessionID = p.SessionID
	b.PaymentStatus = domain.PaymentPending

	s.log.Info("booking awaiting payment",
		zap.String("booking_id", b.ID),
		zap.String("checkout_session_id", p.SessionID),
	)
	return &ConfirmResult{
		Booking:           b,
		PaymentRequired:   true,
		CheckoutURL:       p.CheckoutURL,
		CheckoutSessionID: p.SessionID,
	}, nil
}

// Cancel abandons a booking that has not been paid for.
func (s *Service) Cancel(ctx context.Context, viewer identity.Viewer, id, reason string) (*domain.Booking, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrValidation
	}
	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(viewer, b); err != nil {
		return nil, err
	}
	if b.Status == domain.BookingCancelled || b.PaymentStatus == domain.PaymentPaid {
		return nil, ErrInvalidStatusTransition
	}

	if err := s.bookings.CancelWithReason(ctx, id, reason); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, err
	}
	s.log.Info("booking cancelled", zap.String("booking_id", id), zap.String("reason", reason))
	return s.get(ctx, id)
}

func (s *Service) GetByID(ctx context.Context, viewer identity.Viewer, id string) (*domain.Booking, error) {
	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(viewer, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) ListMine(ctx context.Context, viewer identity.Viewer, limit, offset int) ([]domain.Booking, error) {
	if !viewer.IsAuthenticated() {
		return nil, ErrSignInRequired
	}
	return s.bookings.ListByClient(ctx, viewer.UserID, limit, offset)
}

// authorize lets anyone holding the id act on an anonymous booking; owned
// bookings are limited to their owner and admins.
func (s *Service) authorize(viewer identity.Viewer, b *domain.Booking) error {
	if b.ClientUserID == "" || identity.HasRole(viewer, identity.RoleAdmin) {
		return nil
	}
	if !viewer.IsAuthenticated() {
		return ErrSignInRequired
	}
	if viewer.UserID != b.ClientUserID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) get(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *Service) sessionType(ctx context.Context, id string) (*domain.SessionType, error) {
	st, err := s.sessionTypes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionTypeNotFound
		}
		return nil, err
	}
	return st, nil
}
