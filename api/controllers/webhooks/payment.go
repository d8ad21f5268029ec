package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/velvetfeed/velvetfeed-backend/api/responses"
	paymentwebhook "github.com/velvetfeed/velvetfeed-backend/internal/webhooks/payment"
	pkgerrors "github.com/velvetfeed/velvetfeed-backend/pkg/errors"
	"github.com/velvetfeed/velvetfeed-backend/pkg/logger"
)

const webhookSecretHeader = "X-Webhook-Secret"

type PaymentWebhookService interface {
	Process(ctx context.Context, delivery paymentwebhook.Delivery) (paymentwebhook.Ack, error)
}

// paymentAck is the flat acknowledgement shape the provider expects.
type paymentAck struct {
	OK      bool   `json:"ok"`
	Email   string `json:"email,omitempty"`
	OrderID string `json:"orderId,omitempty"`
	Status  string `json:"status,omitempty"`
}

type paymentRejection struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// PaymentWebhook ingests provider notifications. Responses are flat rather
// than enveloped because the provider's delivery confirmation matches on
// them; probes get a bare "OK".
func PaymentWebhook(svc PaymentWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteJSON(w, http.StatusInternalServerError, paymentRejection{Error: "webhook service unavailable"})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteJSON(w, http.StatusInternalServerError, paymentRejection{Error: "unable to read request"})
			return
		}

		ack, err := svc.Process(ctx, paymentwebhook.Delivery{
			HeaderSecret: r.Header.Get(webhookSecretHeader),
			ContentType:  r.Header.Get("Content-Type"),
			Body:         body,
		})
		if err != nil {
			writeRejection(ctx, logg, w, err)
			return
		}

		if ack.Probe {
			responses.WritePlain(w, http.StatusOK, "OK")
			return
		}

		responses.WriteJSON(w, http.StatusOK, paymentAck{
			OK:      true,
			Email:   ack.Email,
			OrderID: ack.OrderID,
			Status:  ack.Status.String(),
		})
	}
}

func writeRejection(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	message := typed.Message()
	if typed.Code() == pkgerrors.CodeUnauthorized {
		message = "unauthorized"
	}

	if logg != nil {
		logg.Error(ctx, "webhook rejected", err)
	}
	responses.WriteJSON(w, meta.HTTPStatus, paymentRejection{Error: message})
}
