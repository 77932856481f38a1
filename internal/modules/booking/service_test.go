package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"builderhub/internal/domain"
	"builderhub/internal/identity"
	"builderhub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *MockBookingRepository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	return m.Called(ctx, id, sessionID).Error(0)
}

func (m *MockBookingRepository) CancelWithReason(ctx context.Context, id, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *MockBookingRepository) ListByClient(ctx context.Context, userID string, limit, offset int) ([]domain.Booking, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockSessionTypes struct {
	mock.Mock
}

func (m *MockSessionTypes) GetByID(ctx context.Context, id string) (*domain.SessionType, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionType), args.Error(1)
}

type MockCheckout struct {
	mock.Mock
}

func (m *MockCheckout) CreateCheckout(ctx context.Context, b *domain.Booking, st *domain.SessionType) (*domain.Payment, error) {
	args := m.Called(ctx, b, st)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

const clientBookingID = "0b9c3c5e-3f57-4c39-9d55-4a8f9a0a6f11"

var (
	freeSession   = &domain.SessionType{ID: "free", BuilderID: "builder-1", Category: domain.CategoryFree, CalendarRef: "cal/free"}
	pricedSession = &domain.SessionType{ID: "paid", BuilderID: "builder-1", Price: 150, Category: domain.CategorySpecialized, CalendarRef: "cal/paid"}
	privateSess   = &domain.SessionType{ID: "private", BuilderID: "builder-1", RequiresAuth: true}
	client        = identity.Viewer{Loaded: true, SignedIn: true, UserID: "user-1", Roles: []identity.Role{identity.RoleClient}}
)

func newTestService() (*Service, *MockBookingRepository, *MockSessionTypes, *MockCheckout) {
	bookings := new(MockBookingRepository)
	sessions := new(MockSessionTypes)
	checkout := new(MockCheckout)
	sessions.On("GetByID", mock.Anything, "free").Return(freeSession, nil).Maybe()
	sessions.On("GetByID", mock.Anything, "paid").Return(pricedSession, nil).Maybe()
	sessions.On("GetByID", mock.Anything, "private").Return(privateSess, nil).Maybe()
	svc := NewService(bookings, sessions, checkout, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	return svc, bookings, sessions, checkout
}

func slot() (time.Time, time.Time) {
	start := time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)
	return start, start.Add(30 * time.Minute)
}

func TestService_Create_AuthenticatedMintsID(t *testing.T) {
	svc, bookings, _, _ := newTestService()
	bookings.On("Create", mock.Anything, mock.AnythingOfType("*domain.Booking")).Return(nil)

	b, err := svc.Create(context.Background(), client, CreateBookingRequest{BuilderID: "builder-1", SessionTypeID: "paid"})
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "user-1", b.ClientUserID)
	assert.Equal(t, domain.PaymentUnpaid, b.PaymentStatus)
	assert.Equal(t, 150.0, b.Price)
}

func TestService_Create_IdempotentByID(t *testing.T) {
	svc, bookings, _, _ := newTestService()
	existing := &domain.Booking{ID: clientBookingID, BuilderID: "builder-1", SessionTypeID: "free"}
	bookings.On("GetByID", mock.Anything, clientBookingID).Return(existing, nil)

	b, err := svc.Create(context.Background(), identity.Anonymous(), CreateBookingRequest{
		BookingID: clientBookingID, BuilderID: "builder-1", SessionTypeID: "free",
	})
	require.NoError(t, err)
	assert.Same(t, existing, b)
	bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Create_DuplicateRaceReturnsStored(t *testing.T) {
	svc, bookings, _, _ := newTestService()
	stored := &domain.Booking{ID: clientBookingID, BuilderID: "builder-1", SessionTypeID: "free"}
	bookings.On("GetByID", mock.Anything, clientBookingID).Return(nil, repository.ErrNotFound).Once()
	bookings.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicate)
	bookings.On("GetByID", mock.Anything, clientBookingID).Return(stored, nil).Once()

	b, err := svc.Create(context.Background(), identity.Anonymous(), CreateBookingRequest{
		BookingID: clientBookingID, BuilderID: "builder-1", SessionTypeID: "free",
	})
	require.NoError(t, err)
	assert.Equal(t, clientBookingID, b.ID)
}

func TestService_Create_Validation(t *testing.T) {
	svc, _, sessions, _ := newTestService()
	sessions.On("GetByID", mock.Anything, "ghost").Return(nil, repository.ErrNotFound)
	ctx := context.Background()

	_, err := svc.Create(ctx, client, CreateBookingRequest{BuilderID: "builder-1"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, client, CreateBookingRequest{BookingID: "not-a-uuid", BuilderID: "builder-1", SessionTypeID: "free"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, client, CreateBookingRequest{BuilderID: "builder-2", SessionTypeID: "free"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, client, CreateBookingRequest{BuilderID: "builder-1", SessionTypeID: "ghost"})
	assert.ErrorIs(t, err, ErrSessionTypeNotFound)

	_, err = svc.Create(ctx, identity.Anonymous(), CreateBookingRequest{BuilderID: "builder-1", SessionTypeID: "private"})
	assert.ErrorIs(t, err, ErrSignInRequired)
}

func TestService_Confirm_FreeIsConfirmedWithoutPayment(t *testing.T) {
	svc, bookings, _, checkout := newTestService()
	b := &domain.Booking{ID: clientBookingID, BuilderID: "builder-1", SessionTypeID: "free", Status: domain.BookingPending}
	bookings.On("GetByID", mock.Anything, clientBookingID).Return(b, nil)
	bookings.On("Update", mock.Anything, b).Return(nil)

	start, end := slot()
	res, err := svc.Confirm(context.Background(), identity.Anonymous(), clientBookingID, ConfirmBookingRequest{
		SessionTypeID: "free", StartTime: start, EndTime: end,
		Contact: domain.Contact{Name: "Ada", Email: "ada@example.com"},
	})
	require.NoError(t, err)
	assert.False(t, res.PaymentRequired)
	assert.Equal(t, domain.BookingConfirmed, res.Booking.Status)
	assert.Equal(t, domain.PaymentNotRequired, res.Booking.PaymentStatus)
	assert.Equal(t, "Ada", res.Booking.Contact.Name)
	checkout.AssertNotCalled(t, "CreateCheckout", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Confirm_PricedReturnsCheckout(t *testing.T) {
	svc, bookings, _, checkout := newTestService()
	b := &domain.Booking{
		ID: "b-1", BuilderID: "builder-1", SessionTypeID: "paid", ClientUserID: "user-1",
		Status: domain.BookingPending, PaymentStatus: domain.PaymentUnpaid, Pathway: "accelerate",
	}
	bookings.On("GetByID", mock.Anything, "b-1").Return(b, nil)
	bookings.On("Update", mock.Anything, b).Return(nil)
	bookings.On("SetCheckoutSession", mock.Anything, "b-1", "cs_1").Return(nil)
	checkout.On("CreateCheckout", mock.Anything, b, pricedSession).
		Return(&domain.Payment{SessionID: "cs_1", CheckoutURL: "https://checkout/cs_1"}, nil)

	start, end := slot()
	res, err := svc.Confirm(context.Background(), client, "b-1", ConfirmBookingRequest{
		SessionTypeID: "paid", StartTime: start, EndTime: end, Pathway: "pivot",
	})
	require.NoError(t, err)
	assert.True(t, res.PaymentRequired)
	assert.Equal(t, "https://checkout/cs_1", res.CheckoutURL)
	assert.Equal(t, domain.BookingPending, res.Booking.Status)
	assert.Equal(t, domain.PaymentPending, res.Booking.PaymentStatus)
	assert.Equal(t, "accelerate", res.Booking.Pathway)
}

func TestService_Confirm_CheckoutFailure(t *testing.T) {
	svc, bookings, _, checkout := newTestService()
	b := &domain.Booking{ID: "b-1", BuilderID: "builder-1", SessionTypeID: "paid", Status: domain.BookingPending}
	bookings.On("GetByID", mock.Anything, "b-1").Return(b, nil)
	bookings.On("Update", mock.Anything, b).Return(nil)
	checkout.On("CreateCheckout", mock.Anything, b, pricedSession).Return(nil, errors.New("stripe down"))

	start, end := slot()
	_, err := svc.Confirm(context.Background(), identity.Anonymous(), "b-1", ConfirmBookingRequest{
		SessionTypeID: "paid", StartTime: start, EndTime: end,
	})
	assert.ErrorIs(t, err, ErrPaymentUnavailable)
}

func TestService_Confirm_Guards(t *testing.T) {
	svc, bookings, _, _ := newTestService()
	start, end := slot()
	other := start.Add(2 * time.Hour)
	otherEnd := other.Add(30 * time.Minute)

	bookings.On("GetByID", mock.Anything, "owned").Return(&domain.Booking{ID: "owned", SessionTypeID: "free", ClientUserID: "someone"}, nil)
	bookings.On("GetByID", mock.Anything, "cancelled").Return(&domain.Booking{ID: "cancelled", SessionTypeID: "free", Status: domain.BookingCancelled}, nil)
	bookings.On("GetByID", mock.Anything, "confirmed").Return(&domain.Booking{
		ID: "confirmed", SessionTypeID: "free", Status: domain.BookingConfirmed, StartTime: &other, EndTime: &otherEnd,
	}, nil)
	bookings.On("GetByID", mock.Anything, "missing").Return(nil, repository.ErrNotFound)

	req := ConfirmBookingRequest{SessionTypeID: "free", StartTime: start, EndTime: end}
	ctx := context.Background()

	_, err := svc.Confirm(ctx, client, "owned", req)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Confirm(ctx, identity.Anonymous(), "owned", req)
	assert.ErrorIs(t, err, ErrSignInRequired)
	_, err = svc.Confirm(ctx, client, "cancelled", req)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	_, err = svc.Confirm(ctx, client, "confirmed", req)
	assert.ErrorIs(t, err, ErrSlotConflict)
	_, err = svc.Confirm(ctx, client, "missing", req)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Confirm(ctx, client, "missing", ConfirmBookingRequest{SessionTypeID: "free", StartTime: end, EndTime: start})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestService_Cancel(t *testing.T) {
	svc, bookings, _, _ := newTestService()
	pending := &domain.Booking{ID: "b-1", ClientUserID: "user-1", Status: domain.BookingPending}
	cancelled := &domain.Booking{ID: "b-1", ClientUserID: "user-1", Status: domain.BookingCancelled}
	bookings.On("GetByID", mock.Anything, "b-1").Return(pending, nil).Once()
	bookings.On("CancelWithReason", mock.Anything, "b-1", "abandoned").Return(nil)
	bookings.On("GetByID", mock.Anything, "b-1").Return(cancelled, nil)

	b, err := svc.Cancel(context.Background(), client, "b-1", "abandoned")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, b.Status)

	_, err = svc.Cancel(context.Background(), client, "b-1", "again")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = svc.Cancel(context.Background(), client, "b-1", " ")
	assert.ErrorIs(t, err, ErrValidation)
}
