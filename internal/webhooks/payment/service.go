package paymentwebhook

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/google/uuid"

	"github.com/velvetfeed/velvetfeed-backend/internal/identity"
	"github.com/velvetfeed/velvetfeed-backend/internal/subscriptions"
	"github.com/velvetfeed/velvetfeed-backend/pkg/config"
	"github.com/velvetfeed/velvetfeed-backend/pkg/db/models"
	"github.com/velvetfeed/velvetfeed-backend/pkg/enums"
	pkgerrors "github.com/velvetfeed/velvetfeed-backend/pkg/errors"
	"github.com/velvetfeed/velvetfeed-backend/pkg/logger"
	"github.com/velvetfeed/velvetfeed-backend/pkg/metrics"
)

// ledger is the subscription surface the machine applies events to.
type ledger interface {
	Apply(ctx context.Context, dto subscriptions.ApplyEventDTO) (*models.Subscription, error)
}

// userDirectory resolves an email to an authenticated-user id. Absence is
// not an error; binding is best-effort.
type userDirectory interface {
	LookupUserID(ctx context.Context, email string) (uuid.UUID, error)
}

// Delivery is one raw inbound webhook request.
type Delivery struct {
	HeaderSecret string
	ContentType  string
	Body         []byte
}

// Ack is the acknowledgement returned to the provider. It confirms delivery;
// the access engine never reads it.
type Ack struct {
	Probe   bool
	Email   string
	OrderID string
	Status  enums.SubscriptionStatus
}

type ServiceParams struct {
	Ledger  ledger
	Users   userDirectory
	Webhook config.WebhookConfig
	App     config.AppConfig
	Logger  *logger.Logger
	Metrics *metrics.AccessMetrics
}

// Service runs each delivery through the ingestion pipeline:
// authenticate, probe short-circuit, parse, validate, normalize status,
// best-effort identity binding, idempotent apply.
type Service struct {
	ledger  ledger
	users   userDirectory
	webhook config.WebhookConfig
	app     config.AppConfig
	logg    *logger.Logger
	metrics *metrics.AccessMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription ledger required")
	}
	return &Service{
		ledger:  params.Ledger,
		users:   params.Users,
		webhook: params.Webhook,
		app:     params.App,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Process handles one delivery end to end. Authentication and validation
// failures return 4xx-class errors the provider must not retry; storage
// failures return 5xx-class errors so at-least-once delivery retries them.
// Authentication is decided before the parse result: a caller without the
// secret gets an unauthorized answer no matter what it sent.
func (s *Service) Process(ctx context.Context, delivery Delivery) (Ack, error) {
	// On a parse failure the event is zero-valued, so the body secret is
	// empty and authentication falls back to the header alone.
	event, parseErr := ParseBody(delivery.ContentType, delivery.Body)

	if err := s.authenticate(ctx, delivery.HeaderSecret, event.Secret); err != nil {
		s.countWebhook("unauthorized")
		return Ack{}, err
	}

	if parseErr != nil {
		s.countWebhook("malformed")
		return Ack{}, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "unparseable webhook body")
	}

	if event.IsProbe() {
		s.countWebhook("probe")
		return Ack{Probe: true}, nil
	}

	email := identity.Normalize(event.Email)
	if email == "" {
		s.countWebhook("missing_email")
		return Ack{}, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload has no email")
	}

	status := NormalizeStatus(event.RawStatus)

	var boundUser *uuid.UUID
	if s.users != nil {
		userID, lookupErr := s.users.LookupUserID(ctx, email)
		if lookupErr != nil {
			// Binding is an optimization; a directory outage never blocks
			// the ledger write.
			if s.logg != nil {
				s.logg.Warn(ctx, "webhook user lookup failed: "+lookupErr.Error())
			}
		} else if userID != uuid.Nil {
			boundUser = &userID
		}
	}

	dto := subscriptions.ApplyEventDTO{
		Email:    email,
		UserID:   boundUser,
		Status:   status,
		RawEvent: event.Raw,
	}
	if event.OrderID != "" {
		orderID := event.OrderID
		dto.OrderID = &orderID
	}

	sub, err := s.ledger.Apply(ctx, dto)
	if err != nil {
		s.countWebhook("storage_error")
		return Ack{}, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"email_hash": identity.Fingerprint(email),
			"order_id":   event.OrderID,
			"status":     sub.Status.String(),
		})
		s.logg.Info(logCtx, "webhook applied")
	}
	s.countWebhook(sub.Status.String())

	return Ack{Email: email, OrderID: event.OrderID, Status: sub.Status}, nil
}

func (s *Service) authenticate(ctx context.Context, headerSecret, bodySecret string) error {
	configured := strings.TrimSpace(s.webhook.Secret)
	if configured == "" {
		if s.app.IsProd() {
			return pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured")
		}
		if s.logg != nil {
			s.logg.Warn(ctx, "webhook secret not configured; allowing delivery outside production")
		}
		return nil
	}

	provided := strings.TrimSpace(headerSecret)
	if provided == "" {
		provided = strings.TrimSpace(bodySecret)
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) != 1 {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "unauthorized")
	}
	return nil
}

func (s *Service) countWebhook(outcome string) {
	if s.metrics != nil {
		s.metrics.IncWebhook(outcome)
	}
}
