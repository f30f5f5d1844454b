package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/artpar/tollgate/app"
)

// maxWebhookBody caps webhook payload reads. Provider events are small;
// anything larger is not ours.
const maxWebhookBody = 1 << 20

// BillingWebhook receives billing provider lifecycle events.
//
//	@Summary		Billing provider webhook
//	@Description	Verified provider events that update subscription state
//	@Tags			Billing
//	@Accept			json
//	@Success		200	"Event applied or ignored"
//	@Failure		400	{object}	ErrorResponse	"Bad signature or payload"
//	@Failure		500	{object}	ErrorResponse
//	@Router			/webhooks/billing [post]
func (h *Handler) BillingWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unreadable payload"})
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.webhooks.Ingest(r.Context(), payload, signature); err != nil {
		if h.metrics != nil {
			h.metrics.WebhookEvents.WithLabelValues("error").Inc()
		}
		if errors.Is(err, app.ErrBadSignature) {
			h.logger.Warn().Err(err).Msg("webhook rejected")
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid signature"})
			return
		}
		// Store failures: ask the provider to redeliver.
		h.logger.Error().Err(err).Msg("webhook apply failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "event not applied"})
		return
	}

	if h.metrics != nil {
		h.metrics.WebhookEvents.WithLabelValues("ok").Inc()
	}
	w.WriteHeader(http.StatusOK)
}
