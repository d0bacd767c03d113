package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/payments"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/storage"
)

const (
	webhookUnpaid     = "unpaid"
	webhookExpired    = "expired"
	webhookIgnored    = "ignored"
	webhookOrphaned   = "appointment_missing"
	webhookNotApplied = "invalid_transition"
)

// StripeWebhook handles Stripe webhooks. There is no JWT auth; the signature is
// the auth. A delivery is acknowledged only after it has been applied, so a
// failed attempt is retried by Stripe and the confirmation stays idempotent.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.webhooks == nil {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}
	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := h.webhooks.ParseWebhook(body, sigHeader)
	if err != nil {
		if errors.Is(err, payments.ErrWebhookNotConfigured) {
			http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
			return
		}
		h.metrics.ObserveWebhook("unknown", "rejected")
		h.logger.Warn("stripe webhook rejected", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	logger := h.logger.With(
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evt.Type,
		"appointment_id", evt.CorrelationID,
	)
	logger.Info("payment provider event received", "occurred_at", evt.Created.Format(time.RFC3339))

	result := webhookIgnored
	var applyErr error
	switch evt.Type {
	case payments.EventCheckoutCompleted, payments.EventCheckoutAsyncSucceeded:
		if !evt.Paid {
			// Delayed payment methods complete the session before the money
			// lands; async_payment_succeeded follows.
			result = webhookUnpaid
			break
		}
		var outcome booking.ConfirmOutcome
		outcome, applyErr = h.bookings.ConfirmPayment(r.Context(), evt.CorrelationID, evt.PaymentReference)
		result = string(outcome)
	case payments.EventCheckoutExpired:
		_, applyErr = h.bookings.HandleSessionExpired(r.Context(), evt.CorrelationID)
		result = webhookExpired
	}

	if applyErr != nil {
		var verr *booking.ValidationError
		switch {
		case errors.Is(applyErr, booking.ErrAppointmentMissing), errors.As(applyErr, &verr):
			// A retry cannot fix a session that points nowhere.
			logger.Error("payment provider event references no appointment", "error", applyErr)
			result = webhookOrphaned
		case errors.Is(applyErr, booking.ErrInvalidTransition):
			// Payment for a completed or no-show appointment; needs an operator.
			logger.Error("payment provider event cannot be applied to appointment", "error", applyErr)
			result = webhookNotApplied
		default:
			h.metrics.ObserveWebhook(evt.Type, "error")
			logger.Error("payment provider event failed", "error", applyErr)
			http.Error(w, "failed to apply provider event", http.StatusInternalServerError)
			return
		}
	}

	h.record(r, evt, body, logger)
	h.metrics.ObserveWebhook(evt.Type, result)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "result": result})
}

func (h *Handler) record(r *http.Request, evt payments.Event, body []byte, logger *slog.Logger) {
	if h.events == nil {
		return
	}
	err := h.events.Record(r.Context(), storage.ProviderEvent{
		Provider:      "stripe",
		EventID:       evt.ID,
		EventType:     evt.Type,
		CorrelationID: evt.CorrelationID,
		Payload:       body,
	})
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrDuplicateProviderEvent):
		logger.Info("payment provider event redelivered")
	default:
		logger.Warn("failed to record provider event", "error", err)
	}
}
