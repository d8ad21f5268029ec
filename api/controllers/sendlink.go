package controllers

import (
	"context"
	"net/http"

	"github.com/velvetfeed/velvetfeed-backend/api/responses"
	"github.com/velvetfeed/velvetfeed-backend/api/validators"
	"github.com/velvetfeed/velvetfeed-backend/pkg/logger"
)

type linkSender interface {
	SendLink(ctx context.Context, email string) error
}

type sendLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SendLink issues a passwordless sign-in link to an eligible identity.
func SendLink(svc linkSender, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req sendLinkRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.SendLink(ctx, req.Email); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"message": "Check your email for a sign-in link.",
		})
	}
}
