package subscriptions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velvetfeed/velvetfeed-backend/pkg/db/models"
	"github.com/velvetfeed/velvetfeed-backend/pkg/enums"
)

// Repository handles subscription persistence. Callers pass normalized
// emails; the repo does not re-normalize.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to subscription operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new subscription row.
func (r *Repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

// Update saves the provided subscription.
func (r *Repository) Update(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

// FindActiveByUserID returns the newest active record bound to the user.
func (r *Repository) FindActiveByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.SubscriptionStatusActive).
		Order("last_event_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindActiveByEmail returns the newest active record for the email.
func (r *Repository) FindActiveByEmail(ctx context.Context, email string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("email = ? AND status = ?", email, enums.SubscriptionStatusActive).
		Order("last_event_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByEmailAndOrder returns the record keyed by the webhook idempotency
// pair.
func (r *Repository) FindByEmailAndOrder(ctx context.Context, email, orderID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("email = ? AND order_id = ?", email, orderID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindLatestOrderlessByEmail returns the most recently touched record with a
// null order id for the email. Retried webhooks without a stable order id
// collapse into this row instead of appending.
func (r *Repository) FindLatestOrderlessByEmail(ctx context.Context, email string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("email = ? AND order_id IS NULL", email).
		Order("last_event_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// BindUserID sets user_id on the record only when it is still null. The
// binding is one-directional; an existing binding is never overwritten.
func (r *Repository) BindUserID(ctx context.Context, recordID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND user_id IS NULL", recordID).
		UpdateColumn("user_id", userID).Error
}
