package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velvetfeed/velvetfeed-backend/internal/identity"
	"github.com/velvetfeed/velvetfeed-backend/pkg/db"
	"github.com/velvetfeed/velvetfeed-backend/pkg/db/models"
	"github.com/velvetfeed/velvetfeed-backend/pkg/enums"
	pkgerrors "github.com/velvetfeed/velvetfeed-backend/pkg/errors"
	"github.com/velvetfeed/velvetfeed-backend/pkg/logger"
)

// Store is the persistence surface the service depends on.
type Store interface {
	Create(ctx context.Context, sub *models.Subscription) error
	Update(ctx context.Context, sub *models.Subscription) error
	FindActiveByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	FindActiveByEmail(ctx context.Context, email string) (*models.Subscription, error)
	FindByEmailAndOrder(ctx context.Context, email, orderID string) (*models.Subscription, error)
	FindLatestOrderlessByEmail(ctx context.Context, email string) (*models.Subscription, error)
	BindUserID(ctx context.Context, recordID, userID uuid.UUID) error
}

type ServiceParams struct {
	Store         Store
	Logger        *logger.Logger
	EnforceExpiry bool
}

// Service owns the subscription ledger: activity lookups for the access
// engine and the idempotent apply the webhook machine drives.
type Service struct {
	store         Store
	logg          *logger.Logger
	enforceExpiry bool
	now           func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription store required")
	}
	return &Service{
		store:         params.Store,
		logg:          params.Logger,
		enforceExpiry: params.EnforceExpiry,
		now:           time.Now,
	}, nil
}

// HasActive reports whether the identity holds an active subscription. The
// user-id match is preferred (it survives email changes); the email match is
// the fallback, and on a first email match after authentication the user id
// is opportunistically bound. Binding failures are logged and swallowed —
// binding is an optimization, never a correctness requirement.
func (s *Service) HasActive(ctx context.Context, email string, userID *uuid.UUID) (bool, error) {
	normalized := identity.Normalize(email)

	if userID != nil && *userID != uuid.Nil {
		sub, err := s.store.FindActiveByUserID(ctx, *userID)
		if err == nil {
			return s.grants(sub), nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}
	}

	if normalized == "" {
		return false, nil
	}

	sub, err := s.store.FindActiveByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	if userID != nil && *userID != uuid.Nil && sub.UserID == nil {
		if bindErr := s.store.BindUserID(ctx, sub.ID, *userID); bindErr != nil && s.logg != nil {
			s.logg.Warn(ctx, "subscription user binding failed: "+bindErr.Error())
		}
	}

	return s.grants(sub), nil
}

func (s *Service) grants(sub *models.Subscription) bool {
	if sub == nil || !sub.Status.Grants() {
		return false
	}
	if s.enforceExpiry && sub.ExpiresAt != nil && sub.ExpiresAt.Before(s.now()) {
		return false
	}
	return true
}

// ApplyEventDTO is the normalized webhook outcome the ledger merges.
type ApplyEventDTO struct {
	Email    string
	UserID   *uuid.UUID
	OrderID  *string
	Status   enums.SubscriptionStatus
	RawEvent json.RawMessage
	EventAt  time.Time
}

// Apply performs the idempotent merge. With an order id, (email, order_id)
// is the key: update in place, or insert and — on a unique-violation race
// with a concurrent duplicate delivery — re-query and update the winner's
// row. Without an order id, repeated notifications collapse into the most
// recently touched orderless row for the email.
func (s *Service) Apply(ctx context.Context, dto ApplyEventDTO) (*models.Subscription, error) {
	if dto.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if !dto.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid canonical status")
	}
	if dto.EventAt.IsZero() {
		dto.EventAt = s.now()
	}

	if dto.OrderID != nil && *dto.OrderID != "" {
		return s.applyWithOrder(ctx, dto)
	}
	return s.applyOrderless(ctx, dto)
}

func (s *Service) applyWithOrder(ctx context.Context, dto ApplyEventDTO) (*models.Subscription, error) {
	existing, err := s.store.FindByEmailAndOrder(ctx, dto.Email, *dto.OrderID)
	if err == nil {
		return s.merge(ctx, existing, dto)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription by order")
	}

	sub := s.build(dto)
	if createErr := s.store.Create(ctx, sub); createErr != nil {
		if !db.IsUniqueViolation(createErr, "uniq_subscriptions_email_order") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "insert subscription")
		}
		// At-least-once delivery: a concurrent duplicate beat us to the
		// insert. Converge onto its row instead of erroring.
		raced, findErr := s.store.FindByEmailAndOrder(ctx, dto.Email, *dto.OrderID)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "requery after insert conflict")
		}
		return s.merge(ctx, raced, dto)
	}
	return sub, nil
}

func (s *Service) applyOrderless(ctx context.Context, dto ApplyEventDTO) (*models.Subscription, error) {
	existing, err := s.store.FindLatestOrderlessByEmail(ctx, dto.Email)
	if err == nil {
		return s.merge(ctx, existing, dto)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup orderless subscription")
	}

	sub := s.build(dto)
	if createErr := s.store.Create(ctx, sub); createErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "insert subscription")
	}
	return sub, nil
}

func (s *Service) build(dto ApplyEventDTO) *models.Subscription {
	sub := &models.Subscription{
		Email:       dto.Email,
		Status:      dto.Status,
		OrderID:     dto.OrderID,
		RawEvent:    dto.RawEvent,
		LastEventAt: dto.EventAt,
	}
	if dto.UserID != nil && *dto.UserID != uuid.Nil {
		sub.UserID = dto.UserID
	}
	return sub
}

func (s *Service) merge(ctx context.Context, target *models.Subscription, dto ApplyEventDTO) (*models.Subscription, error) {
	target.Status = dto.Status
	target.RawEvent = dto.RawEvent
	target.LastEventAt = dto.EventAt
	if target.UserID == nil && dto.UserID != nil && *dto.UserID != uuid.Nil {
		target.UserID = dto.UserID
	}
	if err := s.store.Update(ctx, target); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}
	return target, nil
}
