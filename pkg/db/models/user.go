package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal identity row the binding step resolves against. Emails
// are stored normalized (trimmed, lower-cased).
type User struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email       string     `gorm:"column:email;not null;unique"`
	LastLoginAt *time.Time `gorm:"column:last_login_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
