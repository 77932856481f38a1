package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"builderhub/internal/domain"

	"gorm.io/gorm"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type bookingModel struct {
	ID                 string     `gorm:"column:id;primaryKey;type:varchar(64)"`
	BuilderID          string     `gorm:"column:builder_id;index;type:varchar(64)"`
	SessionTypeID      string     `gorm:"column:session_type_id;type:varchar(64)"`
	ClientUserID       *string    `gorm:"column:client_user_id;index;type:varchar(64)"`
	ContactName        string     `gorm:"column:contact_name"`
	ContactEmail       string     `gorm:"column:contact_email"`
	CalendarEventURI   string     `gorm:"column:calendar_event_uri;type:text"`
	CalendarInviteeURI string     `gorm:"column:calendar_invitee_uri;type:text"`
	StartTime          *time.Time `gorm:"column:start_time"`
	EndTime            *time.Time `gorm:"column:end_time"`
	Pathway            string     `gorm:"column:pathway;type:varchar(64)"`
	Notes              *string    `gorm:"column:notes;type:text"`
	CustomAnswers      string     `gorm:"column:custom_answers;type:text"`
	Price              float64    `gorm:"column:price"`
	Status             string     `gorm:"column:status;type:varchar(20)"`
	PaymentStatus      string     `gorm:"column:payment_status;type:varchar(20)"`
	CheckoutSessionID  string     `gorm:"column:checkout_session_id;type:varchar(255)"`
	CancellationReason string     `gorm:"column:cancellation_reason;type:text"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
	CancelledAt        *time.Time `gorm:"column:cancelled_at"`
}

func (bookingModel) TableName() string { return "bookings" }

// BookingModel exposes the row type for migrations.
func BookingModel() any { return &bookingModel{} }

func toDomainBooking(m bookingModel) *domain.Booking {
	b := &domain.Booking{
		ID:            m.ID,
		BuilderID:     m.BuilderID,
		SessionTypeID: m.SessionTypeID,
		Contact:       domain.Contact{Name: m.ContactName, Email: m.ContactEmail},
		Calendar: domain.CalendarEventRefs{
			EventURI:   m.CalendarEventURI,
			InviteeURI: m.CalendarInviteeURI,
		},
		StartTime:          m.StartTime,
		EndTime:            m.EndTime,
		Pathway:            m.Pathway,
		Price:              m.Price,
		Status:             domain.BookingStatus(m.Status),
		PaymentStatus:      domain.PaymentStatus(m.PaymentStatus),
		CheckoutSessionID:  m.CheckoutSessionID,
		CancellationReason: m.CancellationReason,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
		CancelledAt:        m.CancelledAt,
	}
	if m.ClientUserID != nil {
		b.ClientUserID = *m.ClientUserID
	}
	if m.Notes != nil {
		b.Notes = *m.Notes
	}
	if m.CustomAnswers != "" {
		_ = json.Unmarshal([]byte(m.CustomAnswers), &b.CustomAnswers)
	}
	return b
}

func toBookingModel(b *domain.Booking) bookingModel {
	m := bookingModel{
		ID:                 b.ID,
		BuilderID:          b.BuilderID,
		SessionTypeID:      b.SessionTypeID,
		ContactName:        b.Contact.Name,
		ContactEmail:       b.Contact.Email,
		CalendarEventURI:   b.Calendar.EventURI,
		CalendarInviteeURI: b.Calendar.InviteeURI,
		StartTime:          b.StartTime,
		EndTime:            b.EndTime,
		Pathway:            b.Pathway,
		Price:              b.Price,
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		CheckoutSessionID:  b.CheckoutSessionID,
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
		CancelledAt:        b.CancelledAt,
	}
	if b.ClientUserID != "" {
		v := b.ClientUserID
		m.ClientUserID = &v
	}
	if b.Notes != "" {
		v := b.Notes
		m.Notes = &v
	}
	if len(b.CustomAnswers) > 0 {
		raw, _ := json.Marshal(b.CustomAnswers)
		m.CustomAnswers = string(raw)
	}
	return m
}

// Create inserts b. A row with the same id yields ErrDuplicate.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	m := toBookingModel(b)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	*b = *toDomainBooking(m)
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	var m bookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toDomainBooking(m), nil
}

// Update writes every column of b back.
func (r *BookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	m := toBookingModel(b)
	res := r.db.WithContext(ctx).Model(&bookingModel{}).Where("id = ?", b.ID).Select("*").Omit("created_at").Updates(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BookingRepository) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (*domain.Booking, error) {
	res := r.db.WithContext(ctx).Model(&bookingModel{}).Where("id = ?", id).Updates(map[string]any{
		"payment_status": string(status),
		"updated_at":     time.Now().UTC(),
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *BookingRepository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	res := r.db.WithContext(ctx).Model(&bookingModel{}).Where("id = ?", id).Updates(map[string]any{
		"checkout_session_id": sessionID,
		"payment_status":      string(domain.PaymentPending),
		"updated_at":          time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BookingRepository) CancelWithReason(ctx context.Context, id, reason string) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&bookingModel{}).
		Where("id = ? AND status <> ?", id, string(domain.BookingCancelled)).
		Updates(map[string]any{
			"status":              string(domain.BookingCancelled),
			"cancellation_reason": reason,
			"cancelled_at":        now,
			"updated_at":          now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BookingRepository) ListByClient(ctx context.Context, userID string, limit, offset int) ([]domain.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []bookingModel
	err := r.db.WithContext(ctx).
		Where("client_user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Booking, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainBooking(m))
	}
	return out, nil
}

// ConfirmPaid settles a priced booking once its checkout is paid.
func (r *BookingRepository) ConfirmPaid(ctx context.Context, id string) (*domain.Booking, error) {
	res := r.db.WithContext(ctx).Model(&bookingModel{}).
		Where("id = ? AND status <> ?", id, string(domain.BookingCancelled)).
		Updates(map[string]any{
			"status":         string(domain.BookingConfirmed),
			"payment_status": string(domain.PaymentPaid),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}
