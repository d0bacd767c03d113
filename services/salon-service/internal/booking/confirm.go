package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

type ConfirmOutcome string

const (
	OutcomeConfirmed        ConfirmOutcome = "confirmed"
	OutcomeAlreadyProcessed ConfirmOutcome = "already_processed"
	// OutcomePaidAfterCancel: the hold had already been cancelled when the
	// payment landed. The payment is recorded and the row stays CANCELLED.
	OutcomePaidAfterCancel ConfirmOutcome = "paid_after_cancel"
	// OutcomePending is returned by VerifySession while the gateway has not
	// seen a payment yet.
	OutcomePending ConfirmOutcome = "pending"
)

const notifyTimeout = 10 * time.Second

// ConfirmPayment finalises the appointment identified by correlationID after a
// verified payment. It is idempotent: once the deposit is recorded, further
// calls return OutcomeAlreadyProcessed without side effects. The confirmation
// notification is sent once, after commit.
func (m *Manager) ConfirmPayment(ctx context.Context, correlationID, paymentReference string) (ConfirmOutcome, error) {
	ctx, span := m.tracer.Start(ctx, "booking.ConfirmPayment")
	defer span.End()

	correlationID = strings.TrimSpace(correlationID)
	paymentReference = strings.TrimSpace(paymentReference)
	span.SetAttributes(attribute.String("appointment.id", correlationID))
	if correlationID == "" {
		return "", invalid("correlation_id", "required")
	}
	if paymentReference == "" {
		return "", invalid("payment_reference", "required")
	}
	if _, err := uuid.Parse(correlationID); err != nil {
		m.logger.Error("payment correlation id is not an appointment id",
			"correlation_id", correlationID,
			"payment_reference", paymentReference,
		)
		return "", ErrAppointmentMissing
	}

	var (
		outcome ConfirmOutcome
		before  model.Appointment
	)
	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		appt, ok, err := tx.GetForUpdate(ctx, correlationID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAppointmentMissing
		}
		before = appt
		if appt.DepositPaid {
			outcome = OutcomeAlreadyProcessed
			return nil
		}

		switch appt.Status {
		case model.StatusPending:
			if err := tx.MarkPaid(ctx, appt.ID, paymentReference, model.StatusConfirmed); err != nil {
				return err
			}
			appt.Status = model.StatusConfirmed
			outcome = OutcomeConfirmed
		case model.StatusCancelled:
			if err := tx.MarkPaid(ctx, appt.ID, paymentReference, model.StatusCancelled); err != nil {
				return err
			}
			outcome = OutcomePaidAfterCancel
		default:
			return fmt.Errorf("%w: %s appointment has no recorded deposit", ErrInvalidTransition, appt.Status)
		}

		appt.DepositPaid = true
		appt.PaymentReference = paymentReference
		eventType := outbox.EventAppointmentConfirmed
		if outcome == OutcomePaidAfterCancel {
			eventType = outbox.EventAppointmentPaymentOrphan
		}
		payload := appointmentPayload(appt)
		payload["payment_reference"] = paymentReference
		evt, err := outbox.NewAppointmentEvent(appt.ID, eventType, payload)
		if err != nil {
			return err
		}
		return tx.Emit(ctx, evt)
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentMissing) {
			m.logger.Error("payment for unknown appointment",
				"correlation_id", correlationID,
				"payment_reference", paymentReference,
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm failed")
		return "", err
	}

	m.metrics.ObserveConfirmation(string(outcome))
	switch outcome {
	case OutcomeAlreadyProcessed:
		attrs := []any{"appointment_id", correlationID, "payment_reference", paymentReference}
		if before.PaymentReference != "" && before.PaymentReference != paymentReference {
			m.logger.Warn("deposit already recorded under a different payment reference",
				append(attrs, "recorded_reference", before.PaymentReference)...)
		} else {
			m.logger.Info("payment already processed", attrs...)
		}
	case OutcomePaidAfterCancel:
		m.logger.Error("payment received for cancelled appointment; refund required",
			"appointment_id", correlationID,
			"payment_reference", paymentReference,
			"cancel_reason", before.CancelReason,
		)
	case OutcomeConfirmed:
		m.metrics.ObserveTransition(string(model.StatusConfirmed))
		m.logger.Info("appointment confirmed",
			"appointment_id", correlationID,
			"payment_reference", paymentReference,
		)
		m.notify(ctx, "confirmation", correlationID, Notifier.SendBookingConfirmation)
	}
	return outcome, nil
}

// VerifySession backs the customer's "verify my session" poll after the
// gateway redirect. It asks the gateway about the appointment's session and,
// when paid, goes through ConfirmPayment like the webhook does.
func (m *Manager) VerifySession(ctx context.Context, rc RequestContext, appointmentID, token string) (ConfirmOutcome, model.Appointment, error) {
	logger := m.requestLogger(rc)
	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		return "", model.Appointment{}, invalid("appointment_id", "required")
	}
	if strings.TrimSpace(token) == "" {
		return "", model.Appointment{}, invalid("token", "required")
	}
	if _, err := uuid.Parse(appointmentID); err != nil {
		return "", model.Appointment{}, ErrAppointmentMissing
	}

	appt, ok, err := m.store.Get(ctx, appointmentID)
	if err != nil {
		return "", model.Appointment{}, err
	}
	if !ok {
		return "", model.Appointment{}, ErrAppointmentMissing
	}
	if appt.VerifyTokenHash == "" || bcrypt.CompareHashAndPassword([]byte(appt.VerifyTokenHash), []byte(token)) != nil {
		return "", model.Appointment{}, ErrForbidden
	}
	if appt.DepositPaid {
		return OutcomeAlreadyProcessed, appt, nil
	}
	if appt.PaymentSessionID == "" {
		return OutcomePending, appt, nil
	}

	st, err := m.gateway.RetrieveSession(ctx, appt.PaymentSessionID)
	if err != nil {
		logger.Warn("payment session lookup failed", "appointment_id", appt.ID, "err", err)
		return "", appt, &GatewayError{AppointmentID: appt.ID, Err: err}
	}
	if st.CorrelationID != "" && st.CorrelationID != appt.ID {
		logger.Error("payment session correlates to a different appointment",
			"appointment_id", appt.ID,
			"session_id", appt.PaymentSessionID,
			"session_correlation_id", st.CorrelationID,
		)
		return "", appt, ErrAppointmentMissing
	}
	if !st.Paid {
		return OutcomePending, appt, nil
	}

	outcome, err := m.ConfirmPayment(ctx, appt.ID, st.PaymentReference)
	if err != nil {
		return "", appt, err
	}
	if fresh, ok, err := m.store.Get(ctx, appt.ID); err == nil && ok {
		appt = fresh
	}
	return outcome, appt, nil
}

func (m *Manager) notify(ctx context.Context, kind, appointmentID string, send func(Notifier, context.Context, string) error) {
	if m.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	err := send(m.notifier, nctx, appointmentID)
	m.metrics.ObserveNotification(kind, err)
	if err != nil {
		m.logger.Warn("notification failed", "kind", kind, "appointment_id", appointmentID, "err", err)
	}
}
