package booking

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
)

const (
	ReasonHoldExpired    = "hold_expired"
	ReasonSessionExpired = "payment_session_expired"
)

// ExpireStale cancels unpaid PENDING appointments older than the hold TTL and
// returns how many it cancelled.
func (m *Manager) ExpireStale(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.policy.HoldTTL)
	stale, err := m.store.ListPending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range stale {
		expired, err := m.expire(ctx, a.ID, ReasonHoldExpired)
		if err != nil {
			m.logger.Warn("failed to expire pending appointment", "appointment_id", a.ID, "err", err)
			continue
		}
		if !expired {
			continue
		}
		n++
		if m.policy.NotifyOnExpiry {
			m.notify(ctx, "hold_expired", a.ID, Notifier.SendHoldExpired)
		}
	}
	m.metrics.ObserveExpired(n)
	if n > 0 {
		m.logger.Info("expired stale pending appointments", "count", n)
	}
	return n, nil
}

// HandleSessionExpired cancels the hold early when the gateway reports the
// checkout session expired unpaid.
func (m *Manager) HandleSessionExpired(ctx context.Context, correlationID string) (bool, error) {
	correlationID = strings.TrimSpace(correlationID)
	if _, err := uuid.Parse(correlationID); err != nil {
		m.logger.Error("expired session correlation id is not an appointment id", "correlation_id", correlationID)
		return false, ErrAppointmentMissing
	}
	return m.expire(ctx, correlationID, ReasonSessionExpired)
}

// ReconcilePending polls the gateway for PENDING appointments whose webhook has
// not arrived within the grace period, confirming paid ones and releasing
// expired ones. It returns how many it confirmed.
func (m *Manager) ReconcilePending(ctx context.Context) (int, error) {
	pending, err := m.store.ListPending(ctx, m.now().Add(-m.reconcileGrace), sweepBatchSize)
	if err != nil {
		return 0, err
	}
	confirmed := 0
	for _, a := range pending {
		if a.PaymentSessionID == "" {
			continue
		}
		st, err := m.gateway.RetrieveSession(ctx, a.PaymentSessionID)
		if err != nil {
			m.logger.Warn("reconcile: payment session lookup failed", "appointment_id", a.ID, "err", err)
			continue
		}
		switch {
		case st.Paid:
			outcome, err := m.ConfirmPayment(ctx, a.ID, st.PaymentReference)
			if err != nil {
				m.logger.Warn("reconcile: confirm failed", "appointment_id", a.ID, "err", err)
				continue
			}
			if outcome == OutcomeConfirmed {
				confirmed++
				m.logger.Info("reconcile: confirmed appointment missed by webhook", "appointment_id", a.ID)
			}
		case st.Expired:
			if _, err := m.expire(ctx, a.ID, ReasonSessionExpired); err != nil {
				m.logger.Warn("reconcile: expire failed", "appointment_id", a.ID, "err", err)
			}
		}
	}
	return confirmed, nil
}

func (m *Manager) expire(ctx context.Context, appointmentID, reason string) (bool, error) {
	expired := false
	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		appt, ok, err := tx.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAppointmentMissing
		}
		if appt.Status != model.StatusPending || appt.DepositPaid {
			return nil
		}
		if err := tx.SetStatus(ctx, appt.ID, model.StatusCancelled, reason); err != nil {
			return err
		}
		appt.Status = model.StatusCancelled
		payload := appointmentPayload(appt)
		payload["reason"] = reason
		evt, err := outbox.NewAppointmentEvent(appt.ID, outbox.EventAppointmentCancelled, payload)
		if err != nil {
			return err
		}
		if err := tx.Emit(ctx, evt); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentMissing) {
			m.logger.Error("expiry for unknown appointment", "appointment_id", appointmentID)
		}
		return false, err
	}
	if expired {
		m.metrics.ObserveTransition(string(model.StatusCancelled))
	}
	return expired, nil
}
