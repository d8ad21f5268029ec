package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/velvetfeed/velvetfeed-backend/api/middleware"
	"github.com/velvetfeed/velvetfeed-backend/api/responses"
	"github.com/velvetfeed/velvetfeed-backend/api/validators"
	"github.com/velvetfeed/velvetfeed-backend/internal/access"
	"github.com/velvetfeed/velvetfeed-backend/internal/identity"
	"github.com/velvetfeed/velvetfeed-backend/pkg/logger"
)

type accessStatusRequest struct {
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
	UserID string `json:"userId,omitempty" validate:"omitempty,uuid4"`
}

type accessStatusResponse struct {
	OK      bool   `json:"ok"`
	IsAdmin bool   `json:"isAdmin"`
	Active  bool   `json:"active"`
	Reason  string `json:"reason,omitempty"`
}

// AccessStatus evaluates entitlement for an identity. Always 200 with a
// grant/deny body: the engine collapses every failure to a denial so this
// endpoint never leaks which identities exist.
func AccessStatus(engine *access.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req accessStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var userID *uuid.UUID
		if req.UserID != "" {
			if parsed, err := uuid.Parse(req.UserID); err == nil {
				userID = &parsed
			}
		}

		decision := engine.Evaluate(ctx, req.Email, userID)
		responses.WriteJSON(w, http.StatusOK, accessStatusResponse{
			OK:      true,
			IsAdmin: decision.IsAdmin,
			Active:  decision.HasActiveSubscription,
			Reason:  decision.Reason,
		})
	}
}

type sessionGuard interface {
	OnSessionChange(ctx context.Context, principal access.Principal, current access.Surface) access.Outcome
}

type accessSessionRequest struct {
	Surface string `json:"surface" validate:"required,oneof=gated public"`
}

type accessSessionResponse struct {
	OK          bool   `json:"ok"`
	State       string `json:"state"`
	Destination string `json:"destination,omitempty"`
	Navigated   bool   `json:"navigated"`
	SignedOut   bool   `json:"signedOut"`
}

// AccessSession feeds the authenticated principal through the redirect guard.
// The client reports which surface it is on; the response tells it whether to
// stay, where to navigate, and whether its session was revoked because
// entitlement lapsed.
func AccessSession(guard sessionGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req accessSessionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		principal := access.Principal{
			Email:    middleware.EmailFromContext(ctx),
			AccessID: middleware.AccessIDFromContext(ctx),
		}
		if raw := middleware.UserIDFromContext(ctx); raw != "" {
			if parsed, err := uuid.Parse(raw); err == nil {
				principal.UserID = &parsed
			}
		}

		outcome := guard.OnSessionChange(ctx, principal, access.Surface(req.Surface))
		responses.WriteJSON(w, http.StatusOK, accessSessionResponse{
			OK:          true,
			State:       string(outcome.State),
			Destination: string(outcome.Destination),
			Navigated:   outcome.Navigated,
			SignedOut:   outcome.SignedOut,
		})
	}
}

type adminStatusRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type adminStatusResponse struct {
	OK            bool `json:"ok"`
	HasAdminEmail bool `json:"hasAdminEmail"`
	IsAdmin       bool `json:"isAdmin"`
}

// AdminStatus reports whether an identity is the configured operator. The
// configured email itself is never echoed.
func AdminStatus(resolver *identity.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req adminStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, adminStatusResponse{
			OK:            true,
			HasAdminEmail: resolver.HasAdminEmail(),
			IsAdmin:       resolver.IsAdmin(req.Email),
		})
	}
}
