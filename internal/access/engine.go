package access

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/velvetfeed/velvetfeed-backend/internal/identity"
	"github.com/velvetfeed/velvetfeed-backend/pkg/logger"
	"github.com/velvetfeed/velvetfeed-backend/pkg/metrics"
)

// Decision reasons surfaced to the presentation layer. Deliberately coarse:
// failure detail stays in the logs so responses never reveal which
// identities exist or are eligible.
const (
	ReasonAdmin       = "admin"
	ReasonActive      = "active_subscription"
	ReasonNoActive    = "no_active_subscription"
	ReasonNoIdentity  = "no_identity"
	ReasonCheckFailed = "check_failed"
)

// Decision is the engine's answer for one identity.
type Decision struct {
	IsAdmin               bool   `json:"isAdmin"`
	HasActiveSubscription bool   `json:"active"`
	Reason                string `json:"reason,omitempty"`
}

// Entitled reports whether the decision grants gated content.
func (d Decision) Entitled() bool {
	return d.IsAdmin || d.HasActiveSubscription
}

// entitlementChecker is the subscription surface the engine reads. The engine
// never mutates the ledger.
type entitlementChecker interface {
	HasActive(ctx context.Context, email string, userID *uuid.UUID) (bool, error)
}

type EngineParams struct {
	Admin         *identity.Resolver
	Subscriptions entitlementChecker
	Cache         *DecisionCache
	Logger        *logger.Logger
	Metrics       *metrics.AccessMetrics
	LookupTimeout time.Duration
}

// Engine combines the admin resolver and a live subscription lookup into a
// grant/deny decision. It never returns an error past its own boundary:
// every failure mode collapses to "not entitled".
type Engine struct {
	admin         *identity.Resolver
	subs          entitlementChecker
	cache         *DecisionCache
	logg          *logger.Logger
	metrics       *metrics.AccessMetrics
	lookupTimeout time.Duration
}

func NewEngine(params EngineParams) *Engine {
	timeout := params.LookupTimeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &Engine{
		admin:         params.Admin,
		subs:          params.Subscriptions,
		cache:         params.Cache,
		logg:          params.Logger,
		metrics:       params.Metrics,
		lookupTimeout: timeout,
	}
}

// Evaluate decides entitlement for the identity. Admin wins before any store
// read; the subscription lookup runs under a bounded deadline and a timeout
// or transport failure denies rather than erroring.
func (e *Engine) Evaluate(ctx context.Context, email string, userID *uuid.UUID) Decision {
	normalized := identity.Normalize(email)

	if e.admin != nil && e.admin.IsAdmin(normalized) {
		return e.record(ctx, normalized, Decision{
			IsAdmin:               true,
			HasActiveSubscription: true,
			Reason:                ReasonAdmin,
		})
	}

	if normalized == "" && (userID == nil || *userID == uuid.Nil) {
		return e.record(ctx, normalized, Decision{Reason: ReasonNoIdentity})
	}

	if cached, ok := e.cachedDecision(ctx, normalized); ok {
		return e.record(ctx, normalized, cached)
	}

	if e.subs == nil {
		return e.record(ctx, normalized, Decision{Reason: ReasonCheckFailed})
	}

	lookupCtx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()

	active, err := e.subs.HasActive(lookupCtx, normalized, userID)
	if err != nil {
		if e.logg != nil {
			logCtx := e.logg.WithEmailHash(ctx, identity.Fingerprint(normalized))
			e.logg.Warn(logCtx, "entitlement lookup failed, denying: "+err.Error())
		}
		return e.record(ctx, normalized, Decision{Reason: ReasonCheckFailed})
	}

	decision := Decision{HasActiveSubscription: active, Reason: ReasonNoActive}
	if active {
		decision.Reason = ReasonActive
	}
	e.cacheDecision(ctx, normalized, decision)
	return e.record(ctx, normalized, decision)
}

// InvalidateIdentity drops any cached decision for the identity. Called on
// sign-out and forced revocation so a stale grant cannot outlive the session.
func (e *Engine) InvalidateIdentity(ctx context.Context, email string) {
	if e.cache == nil {
		return
	}
	e.cache.Invalidate(ctx, identity.Normalize(email))
}

func (e *Engine) cachedDecision(ctx context.Context, normalized string) (Decision, bool) {
	if e.cache == nil || normalized == "" {
		return Decision{}, false
	}
	return e.cache.Get(ctx, normalized)
}

func (e *Engine) cacheDecision(ctx context.Context, normalized string, decision Decision) {
	if e.cache == nil || normalized == "" {
		return
	}
	e.cache.Put(ctx, normalized, decision)
}

func (e *Engine) record(ctx context.Context, normalized string, decision Decision) Decision {
	if e.metrics != nil {
		result := "deny"
		if decision.Entitled() {
			result = "grant"
		}
		e.metrics.IncDecision(result)
	}
	return decision
}
