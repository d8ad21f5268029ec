package magiclink

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/velvetfeed/velvetfeed-backend/internal/access"
	"github.com/velvetfeed/velvetfeed-backend/internal/identity"
	"github.com/velvetfeed/velvetfeed-backend/pkg/auth"
	"github.com/velvetfeed/velvetfeed-backend/pkg/auth/session"
	"github.com/velvetfeed/velvetfeed-backend/pkg/config"
	"github.com/velvetfeed/velvetfeed-backend/pkg/db/models"
	pkgerrors "github.com/velvetfeed/velvetfeed-backend/pkg/errors"
	"github.com/velvetfeed/velvetfeed-backend/pkg/logger"
	"github.com/velvetfeed/velvetfeed-backend/pkg/mailer"
)

const tokenBytes = 32

// tokenStore holds pending sign-in tokens. GetDel makes redemption one-shot.
type tokenStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
	MagicLinkKey(token string) string
}

type userProvider interface {
	GetOrCreate(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type entitlementEvaluator interface {
	Evaluate(ctx context.Context, email string, userID *uuid.UUID) access.Decision
	InvalidateIdentity(ctx context.Context, email string)
}

type sessionIssuer interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Revoke(ctx context.Context, accessID string) error
}

type ServiceParams struct {
	Store    tokenStore
	Users    userProvider
	Engine   entitlementEvaluator
	Sessions sessionIssuer
	Mail     mailer.Sender
	JWT      config.JWTConfig
	BaseURL  string
	TokenTTL time.Duration
	Logger   *logger.Logger
}

// Service implements passwordless sign-in: eligibility-gated link issuance
// over SMTP, one-shot redemption that mints the JWT and session, and the
// sign-out that tears both down.
type Service struct {
	store    tokenStore
	users    userProvider
	engine   entitlementEvaluator
	sessions sessionIssuer
	mail     mailer.Sender
	jwt      config.JWTConfig
	baseURL  string
	tokenTTL time.Duration
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "token store required")
	}
	if params.Engine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "access engine required")
	}
	ttl := params.TokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{
		store:    params.Store,
		users:    params.Users,
		engine:   params.Engine,
		sessions: params.Sessions,
		mail:     params.Mail,
		jwt:      params.JWT,
		baseURL:  strings.TrimRight(params.BaseURL, "/"),
		tokenTTL: ttl,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// SendLink issues a one-shot sign-in link to an eligible identity. The
// eligibility gate runs before any mail is sent so the mailbox of an
// unentitled address never receives a working link.
func (s *Service) SendLink(ctx context.Context, email string) error {
	normalized := identity.Normalize(email)
	if normalized == "" || !strings.Contains(normalized, "@") {
		return pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}

	decision := s.engine.Evaluate(ctx, normalized, nil)
	if decision.Reason == access.ReasonCheckFailed {
		return pkgerrors.New(pkgerrors.CodeDependency, "unable to verify access right now")
	}
	if !decision.Entitled() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "sign-in failed")
	}

	token, err := generateToken()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating sign-in token")
	}
	if err := s.store.Set(ctx, s.store.MagicLinkKey(token), normalized, s.tokenTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing sign-in token")
	}

	link := fmt.Sprintf("%s/api/v1/auth/callback?token=%s", s.baseURL, url.QueryEscape(token))
	if s.mail == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "mail delivery unavailable")
	}
	if err := s.mail.SendSignInLink(normalized, link); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delivering sign-in link")
	}

	if s.logg != nil {
		logCtx := s.logg.WithEmailHash(ctx, identity.Fingerprint(normalized))
		s.logg.Info(logCtx, "sign-in link issued")
	}
	return nil
}

// SignIn is the outcome of a successful redemption.
type SignIn struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
	AccessID     string
}

// Redeem consumes a sign-in token. The token is deleted atomically on first
// read, entitlement is re-checked at redemption time, and only then are the
// user row, JWT, and session materialized.
func (s *Service) Redeem(ctx context.Context, token string) (*SignIn, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}

	email, err := s.store.GetDel(ctx, s.store.MagicLinkKey(token))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired sign-in link")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading sign-in token")
	}

	// Entitlement can lapse between issuance and the click.
	decision := s.engine.Evaluate(ctx, email, nil)
	if !decision.Entitled() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "sign-in failed")
	}

	user, err := s.users.GetOrCreate(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolving user")
	}
	if touchErr := s.users.TouchLastLogin(ctx, user.ID, s.now()); touchErr != nil && s.logg != nil {
		s.logg.Warn(ctx, "updating last login failed: "+touchErr.Error())
	}

	accessID := session.NewAccessID()
	accessToken, err := auth.MintAccessToken(s.jwt, s.now(), auth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}

	refreshToken, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating session")
	}

	return &SignIn{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessID:     accessID,
	}, nil
}

// SignOut revokes the session and drops any cached decision so the next
// evaluation sees the sign-out immediately.
func (s *Service) SignOut(ctx context.Context, accessID, email string) error {
	s.engine.InvalidateIdentity(ctx, email)
	if s.sessions == nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoking session")
	}
	return nil
}

func generateToken() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
