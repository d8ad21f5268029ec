package access

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/velvetfeed/velvetfeed-backend/internal/identity"
	"github.com/velvetfeed/velvetfeed-backend/pkg/auth/session"
	"github.com/velvetfeed/velvetfeed-backend/pkg/logger"
	"github.com/velvetfeed/velvetfeed-backend/pkg/metrics"
)

// State is the guard's externally visible phase.
type State string

const (
	// StateChecking: a session change arrived and lookups are in flight.
	StateChecking State = "checking"
	// StateAllowed: the current surface matches the principal's entitlement.
	StateAllowed State = "allowed"
	// StateRedirecting: the current surface does not match; a navigation to
	// the correct surface has been issued.
	StateRedirecting State = "redirecting"
)

// Surface names the two destinations the guard arbitrates between.
type Surface string

const (
	SurfaceGated  Surface = "gated"
	SurfacePublic Surface = "public"
)

// Principal is the session identity under evaluation. An empty AccessID
// marks an anonymous visitor.
type Principal struct {
	Email    string
	UserID   *uuid.UUID
	AccessID string
}

// Outcome reports one completed transition.
type Outcome struct {
	State       State
	Destination Surface
	// Navigated is true when this transition issued the navigation. Repeat
	// evaluations of the same session reference keep redirecting without
	// issuing it again.
	Navigated bool
	// SignedOut is true when the session was destroyed because the principal
	// held a session without entitlement.
	SignedOut bool
	// Superseded is true when a newer session change started before this
	// evaluation resolved; the result was discarded.
	Superseded bool
}

type evaluator interface {
	Evaluate(ctx context.Context, email string, userID *uuid.UUID) Decision
	InvalidateIdentity(ctx context.Context, email string)
}

type GuardParams struct {
	Engine   evaluator
	Sessions session.Revoker
	Logger   *logger.Logger
	Metrics  *metrics.AccessMetrics
}

// Guard is the session-scoped state machine between the decision engine and
// navigation. Session-change events drive it; each event starts a
// sequence-numbered evaluation, and a result is applied only if no newer
// event has started since — stale lookups are dropped, never applied.
type Guard struct {
	engine   evaluator
	sessions session.Revoker
	logg     *logger.Logger
	metrics  *metrics.AccessMetrics

	mu        sync.Mutex
	seq       uint64
	state     State
	reference string
	navigated bool
}

func NewGuard(params GuardParams) *Guard {
	return &Guard{
		engine:   params.Engine,
		sessions: params.Sessions,
		logg:     params.Logger,
		metrics:  params.Metrics,
		state:    StateChecking,
	}
}

// State returns the guard's current phase.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// OnSessionChange runs one evaluation for the principal currently on the
// given surface. Safe for concurrent use; when calls overlap, only the
// newest one's result is applied.
func (g *Guard) OnSessionChange(ctx context.Context, principal Principal, current Surface) Outcome {
	reference := principal.AccessID + "|" + identity.Normalize(principal.Email)

	g.mu.Lock()
	if reference != g.reference {
		g.reference = reference
		g.navigated = false
	}
	g.seq++
	mine := g.seq
	g.state = StateChecking
	g.mu.Unlock()

	decision := g.engine.Evaluate(ctx, principal.Email, principal.UserID)

	g.mu.Lock()
	defer g.mu.Unlock()

	if mine != g.seq {
		return Outcome{State: g.state, Superseded: true}
	}

	outcome := Outcome{}
	entitled := decision.Entitled()

	if principal.AccessID != "" && !entitled {
		outcome.SignedOut = g.forceSignOut(ctx, principal)
	}

	desired := SurfacePublic
	if entitled {
		desired = SurfaceGated
	}

	if current == desired {
		g.state = StateAllowed
		outcome.State = StateAllowed
		return outcome
	}

	g.state = StateRedirecting
	outcome.State = StateRedirecting
	outcome.Destination = desired
	if !g.navigated {
		g.navigated = true
		outcome.Navigated = true
	}
	return outcome
}

// forceSignOut destroys the session of an authenticated-but-unentitled
// principal. A live session without entitlement would let stale caches
// re-grant access after the subscription lapses.
func (g *Guard) forceSignOut(ctx context.Context, principal Principal) bool {
	if g.engine != nil {
		g.engine.InvalidateIdentity(ctx, principal.Email)
	}
	if g.sessions == nil {
		return false
	}
	if err := g.sessions.Revoke(ctx, principal.AccessID); err != nil {
		if g.logg != nil {
			g.logg.Warn(ctx, "forced sign-out revocation failed: "+err.Error())
		}
		return false
	}
	if g.metrics != nil {
		g.metrics.IncForcedSignout()
	}
	if g.logg != nil {
		g.logg.Info(ctx, "session revoked for unentitled principal")
	}
	return true
}
