package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velvetfeed/velvetfeed-backend/pkg/db/models"
)

// Repository exposes user persistence. It doubles as the lookup surface the
// webhook binding step resolves emails against.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByEmail retrieves the user matching the normalized email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", Normalize(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// LookupUserID resolves an email to a user id, returning uuid.Nil and no
// error when the user does not exist. Used by the webhook binding step,
// where absence is not a failure.
func (r *Repository) LookupUserID(ctx context.Context, email string) (uuid.UUID, error) {
	user, err := r.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	return user.ID, nil
}

// GetOrCreate returns the user for the email, creating the row on first
// sign-in.
func (r *Repository) GetOrCreate(ctx context.Context, email string) (*models.User, error) {
	normalized := Normalize(email)
	user, err := r.FindByEmail(ctx, normalized)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &models.User{Email: normalized}
	if createErr := r.db.WithContext(ctx).Create(created).Error; createErr != nil {
		// A concurrent first sign-in may have raced us; fall back to the
		// now-existing row.
		if existing, findErr := r.FindByEmail(ctx, normalized); findErr == nil {
			return existing, nil
		}
		return nil, createErr
	}
	return created, nil
}

// TouchLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}
