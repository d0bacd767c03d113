package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
)

var transitionEvents = map[model.Status]string{
	model.StatusCancelled: outbox.EventAppointmentCancelled,
	model.StatusCompleted: outbox.EventAppointmentCompleted,
	model.StatusNoShow:    outbox.EventAppointmentNoShow,
}

// Cancel moves a PENDING or CONFIRMED appointment to CANCELLED, freeing its slot.
func (m *Manager) Cancel(ctx context.Context, rc RequestContext, appointmentID, reason string) (model.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "cancelled_by_" + roleOrUnknown(rc)
	}
	return m.transition(ctx, rc, appointmentID, model.StatusCancelled, reason, nil)
}

// Complete marks a CONFIRMED appointment whose end time has passed.
func (m *Manager) Complete(ctx context.Context, rc RequestContext, appointmentID string) (model.Appointment, error) {
	return m.transition(ctx, rc, appointmentID, model.StatusCompleted, "", func(a model.Appointment, now time.Time) error {
		if a.EndTime.After(now) {
			return fmt.Errorf("%w: appointment has not ended yet", ErrInvalidTransition)
		}
		return nil
	})
}

// MarkNoShow marks a CONFIRMED appointment whose start time has passed.
func (m *Manager) MarkNoShow(ctx context.Context, rc RequestContext, appointmentID string) (model.Appointment, error) {
	return m.transition(ctx, rc, appointmentID, model.StatusNoShow, "", func(a model.Appointment, now time.Time) error {
		if a.StartTime.After(now) {
			return fmt.Errorf("%w: appointment has not started yet", ErrInvalidTransition)
		}
		return nil
	})
}

func (m *Manager) transition(ctx context.Context, rc RequestContext, appointmentID string, to model.Status, reason string, guard func(model.Appointment, time.Time) error) (model.Appointment, error) {
	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		return model.Appointment{}, invalid("appointment_id", "required")
	}
	if _, err := uuid.Parse(appointmentID); err != nil {
		return model.Appointment{}, ErrAppointmentMissing
	}
	if rc.Role != RoleAdmin && rc.Role != RoleStaff {
		return model.Appointment{}, ErrForbidden
	}

	now := m.now()
	var updated model.Appointment
	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		appt, ok, err := tx.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAppointmentMissing
		}
		if !rc.CanManage(appt.StaffID) {
			return ErrForbidden
		}
		if !appt.Status.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, appt.Status, to)
		}
		if guard != nil {
			if err := guard(appt, now); err != nil {
				return err
			}
		}
		if err := tx.SetStatus(ctx, appt.ID, to, reason); err != nil {
			return err
		}
		appt.Status = to
		if reason != "" {
			appt.CancelReason = reason
		}
		appt.UpdatedAt = now

		payload := appointmentPayload(appt)
		payload["actor_id"] = rc.ActorID
		if reason != "" {
			payload["reason"] = reason
		}
		evt, err := outbox.NewAppointmentEvent(appt.ID, transitionEvents[to], payload)
		if err != nil {
			return err
		}
		if err := tx.Emit(ctx, evt); err != nil {
			return err
		}
		updated = appt
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	m.metrics.ObserveTransition(string(to))
	m.requestLogger(rc).Info("appointment status changed",
		"appointment_id", updated.ID,
		"status", string(to),
		"actor_id", rc.ActorID,
		"reason", reason,
	)
	return updated, nil
}

func roleOrUnknown(rc RequestContext) string {
	if rc.Role == "" {
		return "unknown"
	}
	return rc.Role
}
