package controllers

import (
	"context"
	"net/http"

	"github.com/velvetfeed/velvetfeed-backend/api/middleware"
	"github.com/velvetfeed/velvetfeed-backend/api/responses"
	"github.com/velvetfeed/velvetfeed-backend/internal/magiclink"
	pkgerrors "github.com/velvetfeed/velvetfeed-backend/pkg/errors"
	"github.com/velvetfeed/velvetfeed-backend/pkg/logger"
)

type linkRedeemer interface {
	Redeem(ctx context.Context, token string) (*magiclink.SignIn, error)
}

type signOuter interface {
	SignOut(ctx context.Context, accessID, email string) error
}

type authCallbackResponse struct {
	Token        string           `json:"token"`
	RefreshToken string           `json:"refreshToken"`
	User         authCallbackUser `json:"user"`
}

type authCallbackUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthCallback redeems the emailed sign-in token and returns the session
// token pair.
func AuthCallback(svc linkRedeemer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		signIn, err := svc.Redeem(ctx, r.URL.Query().Get("token"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, authCallbackResponse{
			Token:        signIn.AccessToken,
			RefreshToken: signIn.RefreshToken,
			User: authCallbackUser{
				ID:    signIn.User.ID.String(),
				Email: signIn.User.Email,
			},
		})
	}
}

// AuthLogout revokes the caller's session. Requires the auth middleware.
func AuthLogout(svc signOuter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		accessID := middleware.AccessIDFromContext(ctx)
		if accessID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
			return
		}

		if err := svc.SignOut(ctx, accessID, middleware.EmailFromContext(ctx)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "signed_out"})
	}
}
