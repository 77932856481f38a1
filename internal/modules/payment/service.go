package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"builderhub/internal/domain"
	"builderhub/internal/pkg/metrics"
	"builderhub/internal/repository"

	"go.uber.org/zap"
)

type Config struct {
	// AppBaseURL is where checkout returns the browser to.
	AppBaseURL string
	Currency   string
}

type Service struct {
	payments paymentRepo
	bookings bookingPaymentWriter
	gateway  Gateway
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

func NewService(payments paymentRepo, bookings bookingPaymentWriter, gateway Gateway, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &Service{
		payments: payments,
		bookings: bookings,
		gateway:  gateway,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// CreateCheckout opens a hosted checkout for b. The success URL carries the
// booking id and session id the booking flow recovers from.
func (s *Service) CreateCheckout(ctx context.Context, b *domain.Booking, st *domain.SessionType) (*domain.Payment, error) {
	if !st.Priced() {
		return nil, ErrNotPayable
	}
	currency := st.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	amount := int64(math.Round(st.Price * 100))

	started := time.Now()
	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		BookingID:   b.ID,
		Description: st.Title,
		AmountCents: amount,
		Currency:    currency,
		SuccessURL:  s.returnURL(b, "session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:   s.returnURL(b, "canceled=1"),
		Email:       b.Contact.Email,
	})
	metrics.ObserveCall("payment", "create_checkout", started, err)
	if err != nil {
		return nil, err
	}

	p := &domain.Payment{
		BookingID:   b.ID,
		SessionID:   session.ID,
		AmountCents: amount,
		Currency:    currency,
		Status:      domain.CheckoutCreated,
		CheckoutURL: session.URL,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment failed: %w", err)
	}
	s.log.Info("checkout created",
		zap.String("booking_id", b.ID),
		zap.String("session_id", session.ID),
		zap.Int64("amount_cents", amount),
	)
	return p, nil
}

// returnURL builds {base}/book/{builder}?bookingId=...&extra. extra is
// appended raw so the provider's {CHECKOUT_SESSION_ID} placeholder survives.
func (s *Service) returnURL(b *domain.Booking, extra string) string {
	base := strings.TrimRight(s.cfg.AppBaseURL, "/")
	q := url.Values{}
	q.Set("bookingId", b.ID)
	return fmt.Sprintf("%s/book/%s?%s&%s", base, url.PathEscape(b.BuilderID), q.Encode(), extra)
}

// PaymentStatus reports the outcome for a checkout session and the booking it
// belongs to. Settled local rows answer directly; otherwise the provider is
// asked and the answer reconciled.
func (s *Service) PaymentStatus(ctx context.Context, sessionID string) (Status, string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", "", ErrSessionNotFound
	}

	local, err := s.payments.GetBySessionID(ctx, sessionID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", "", err
	}
	if local != nil {
		switch local.Status {
		case domain.CheckoutPaid:
			return StatusSucceeded, local.BookingID, nil
		case domain.CheckoutFailed:
			return StatusFailed, local.BookingID, nil
		}
	}

	started := time.Now()
	session, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	metrics.ObserveCall("payment", "get_checkout", started, err)
	if err != nil {
		return "", "", err
	}

	bookingID := session.BookingID
	if local != nil {
		if bookingID != "" && bookingID != local.BookingID {
			return "", "", ErrBookingMismatch
		}
		bookingID = local.BookingID
	}

	status := mapSession(session)
	switch status {
	case StatusSucceeded:
		s.markPaid(ctx, sessionID, bookingID, "")
	case StatusFailed:
		s.markFailed(ctx, sessionID, bookingID, "", "checkout session expired")
	default:
		if local != nil {
			if err := s.payments.MarkPendingIfNotSettled(ctx, sessionID); err != nil {
				s.log.Warn("mark payment pending failed", zap.String("session_id", sessionID), zap.Error(err))
			}
		}
	}
	return status, bookingID, nil
}

// HandleWebhook verifies and applies a provider event. Replays are harmless.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.log.Warn("webhook rejected", zap.Error(err))
		return err
	}

	l := s.log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))
	session := event.Session

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		if mapSession(&session) != StatusSucceeded {
			l.Info("checkout completed, payment still pending", zap.String("session_id", session.ID))
			return nil
		}
		s.markPaid(ctx, session.ID, session.BookingID, event.Raw)
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		s.markFailed(ctx, session.ID, session.BookingID, event.Raw, event.Type)
	default:
		l.Debug("webhook ignored")
	}
	return nil
}

func (s *Service) markPaid(ctx context.Context, sessionID, bookingID, raw string) {
	changed, err := s.payments.MarkPaidIdempotent(ctx, sessionID, raw, s.now().UTC())
	if err != nil {
		s.log.Error("mark payment paid failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	if !changed && err == nil {
		s.log.Info("payment already paid", zap.String("session_id", sessionID))
	}
	if bookingID == "" {
		return
	}
	if _, err := s.bookings.ConfirmPaid(ctx, bookingID); err != nil {
		s.log.Error("failed to confirm paid booking", zap.String("booking_id", bookingID), zap.Error(err))
	}
}

func (s *Service) markFailed(ctx context.Context, sessionID, bookingID, raw, reason string) {
	changed, err := s.payments.MarkFailed(ctx, sessionID, raw, reason)
	if err != nil {
		s.log.Error("mark payment failed failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if !changed || bookingID == "" {
		return
	}
	if _, err := s.bookings.UpdatePaymentStatus(ctx, bookingID, domain.PaymentFailed); err != nil {
		s.log.Error("failed to sync booking payment status", zap.String("booking_id", bookingID), zap.Error(err))
	}
}

func mapSession(s *CheckoutSession) Status {
	switch {
	case s.PaymentStatus == SessionPaid || s.PaymentStatus == SessionNoPaymentRequired:
		return StatusSucceeded
	case s.Status == SessionExpired:
		return StatusFailed
	default:
		return StatusPending
	}
}
