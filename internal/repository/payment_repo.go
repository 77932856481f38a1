package repository

import (
	"context"
	"errors"
	"time"

	"builderhub/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *PaymentRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetLatestByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("id DESC").First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// MarkPaidIdempotent flips the payment to paid. It reports false when the row
// was already paid.
func (r *PaymentRepository) MarkPaidIdempotent(ctx context.Context, sessionID, rawEvent string, paidAt time.Time) (bool, error) {
	var changed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("session_id = ?", sessionID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if p.Status == domain.CheckoutPaid {
			changed = false
			return nil
		}
		res := tx.Model(&domain.Payment{}).Where("session_id = ?", sessionID).Updates(map[string]any{
			"status":         domain.CheckoutPaid,
			"raw_event":      rawEvent,
			"failure_reason": "",
			"paid_at":        paidAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("payment row not updated")
		}
		changed = true
		return nil
	})
	return changed, err
}

// MarkFailed records a failure unless the payment already settled as paid.
func (r *PaymentRepository) MarkFailed(ctx context.Context, sessionID, rawEvent, reason string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("session_id = ? AND status <> ?", sessionID, domain.CheckoutPaid).
		Updates(map[string]any{
			"status":         domain.CheckoutFailed,
			"raw_event":      rawEvent,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkPendingIfNotSettled moves a created payment to pending.
func (r *PaymentRepository) MarkPendingIfNotSettled(ctx context.Context, sessionID string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("session_id = ? AND status = ?", sessionID, domain.CheckoutCreated).
		Update("status", domain.CheckoutPending)
	if res.Error != nil {
		return res.Error
	}
	var existing int64
	if err := r.db.WithContext(ctx).Model(&domain.Payment{}).Where("session_id = ?", sessionID).Count(&existing).Error; err != nil {
		return err
	}
	if existing == 0 {
		return ErrNotFound
	}
	return nil
}
