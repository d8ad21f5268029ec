package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/velvetfeed/velvetfeed-backend/pkg/enums"
)

// Subscription is one payment-provider relationship. Email is the primary
// join key and is always stored normalized; UserID is bound once, after the
// principal first authenticates. (email, order_id) is unique when order_id is
// present — that pair is the webhook idempotency key.
type Subscription struct {
	ID          uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email       string                   `gorm:"column:email;not null;index"`
	UserID      *uuid.UUID               `gorm:"column:user_id;type:uuid;index"`
	Status      enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'pending'"`
	OrderID     *string                  `gorm:"column:order_id"`
	RawEvent    json.RawMessage          `gorm:"column:raw_event;type:jsonb"`
	LastEventAt time.Time                `gorm:"column:last_event_at;not null"`
	ExpiresAt   *time.Time               `gorm:"column:expires_at"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
