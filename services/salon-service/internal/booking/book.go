package booking

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/payments"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

type BookingRequest struct {
	StaffID    string
	ServiceIDs []string
	Start      time.Time
	Customer   model.Customer
}

type BookingResult struct {
	AppointmentID string
	RedirectURL   string
	// VerifyToken authorises the "verify my session" poll for this booking.
	VerifyToken string
	Reused      bool
	Appointment model.Appointment
}

// Book holds the requested slot as a PENDING appointment and opens a deposit
// payment session for it. The availability re-check and the insert run in one
// transaction serialised per staff member. A gateway failure returns
// *GatewayError and leaves the PENDING row for a retry to reuse.
func (m *Manager) Book(ctx context.Context, rc RequestContext, req BookingRequest) (BookingResult, error) {
	started := m.now()
	ctx, span := m.tracer.Start(ctx, "booking.Book")
	defer span.End()
	logger := m.requestLogger(rc)

	res, outcome, err := m.book(ctx, rc, req)
	m.metrics.ObserveBooking(outcome, m.now().Sub(started))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return res, err
	}
	span.SetAttributes(attribute.String("appointment.id", res.AppointmentID), attribute.Bool("booking.reused", res.Reused))
	logger.Info("booking held",
		"appointment_id", res.AppointmentID,
		"staff_id", res.Appointment.StaffID,
		"start_time", res.Appointment.StartTime.Format(time.RFC3339),
		"reused", res.Reused,
	)
	return res, nil
}

func (m *Manager) book(ctx context.Context, rc RequestContext, req BookingRequest) (BookingResult, string, error) {
	logger := m.requestLogger(rc)
	req, err := normalizeRequest(rc, req)
	if err != nil {
		return BookingResult{}, "invalid", err
	}
	q, err := m.Quote(ctx, req.StaffID, req.ServiceIDs)
	if err != nil {
		if errors.Is(err, ErrServiceUnavailable) {
			return BookingResult{}, "service_unavailable", err
		}
		return BookingResult{}, "error", err
	}
	// Confirmation only happens through a paid deposit.
	if m.policy.Deposit(q.TotalCents) <= 0 {
		return BookingResult{}, "invalid", invalid("service_ids", "booking total must be positive to take a deposit")
	}

	token, tokenHash, err := m.newVerifyToken()
	if err != nil {
		return BookingResult{}, "error", err
	}

	now := m.now()
	slot := model.Interval{Start: req.Start, End: req.Start.Add(q.Duration)}
	var appt model.Appointment
	reused := false

	err = m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockStaff(ctx, req.StaffID); err != nil {
			return err
		}

		existing, ok, err := tx.FindPending(ctx, req.StaffID, slot, req.Customer)
		if err != nil {
			return err
		}
		if ok {
			if err := tx.SetVerifyTokenHash(ctx, existing.ID, tokenHash); err != nil {
				return err
			}
			existing.VerifyTokenHash = tokenHash
			appt = existing
			reused = true
			return nil
		}

		free, err := m.gen.Check(ctx, tx.Conflicts(), req.StaffID, slot.Start, q.Duration, now)
		if err != nil {
			return err
		}
		if !free {
			return ErrSlotNoLongerAvailable
		}

		appt = model.Appointment{
			ID:              uuid.NewString(),
			StaffID:         req.StaffID,
			Customer:        req.Customer,
			StartTime:       slot.Start,
			EndTime:         slot.End,
			Status:          model.StatusPending,
			TotalCents:      q.TotalCents,
			DepositCents:    m.policy.Deposit(q.TotalCents),
			VerifyTokenHash: tokenHash,
			Items:           q.Items,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Insert(ctx, &appt); err != nil {
			return err
		}
		evt, err := outbox.NewAppointmentEvent(appt.ID, outbox.EventAppointmentBooked, appointmentPayload(appt))
		if err != nil {
			return err
		}
		return tx.Emit(ctx, evt)
	})
	switch {
	case errors.Is(err, ErrOverlapViolation):
		logger.Error("overlap constraint rejected a booking that passed the availability check",
			"staff_id", req.StaffID,
			"start_time", slot.Start.Format(time.RFC3339),
			"end_time", slot.End.Format(time.RFC3339),
			"err", err,
		)
		return BookingResult{}, "conflict", ErrSlotNoLongerAvailable
	case errors.Is(err, ErrSlotNoLongerAvailable):
		return BookingResult{}, "conflict", err
	case err != nil:
		return BookingResult{}, "error", err
	}

	res := BookingResult{
		AppointmentID: appt.ID,
		VerifyToken:   token,
		Reused:        reused,
		Appointment:   appt,
	}
	if appt.PaymentSessionID != "" && appt.PaymentURL != "" {
		res.RedirectURL = appt.PaymentURL
		return res, "reused", nil
	}

	sess, err := m.gateway.CreateCheckoutSession(ctx, payments.SessionRequest{
		AmountCents:    int64(appt.DepositCents),
		Currency:       m.policy.Currency,
		CorrelationID:  appt.ID,
		IdempotencyKey: "deposit-" + appt.ID,
		SuccessURL:     redirectURL(m.successURL, appt.ID),
		CancelURL:      redirectURL(m.cancelURL, appt.ID),
		CustomerEmail:  appt.Customer.Email,
		Description:    "Appointment deposit " + appt.StartTime.In(m.policy.Location).Format("Mon Jan 2 15:04"),
		ExpiresAt:      m.sessionExpiry(appt),
	})
	if err != nil {
		logger.Warn("payment session creation failed; pending appointment kept",
			"appointment_id", appt.ID,
			"err", err,
		)
		return res, "gateway_error", &GatewayError{AppointmentID: appt.ID, Err: err}
	}
	if err := m.store.AttachPaymentSession(ctx, appt.ID, sess.ID, sess.RedirectURL); err != nil {
		// The webhook still correlates by appointment id, so the customer can pay.
		logger.Warn("failed to store payment session on appointment",
			"appointment_id", appt.ID,
			"session_id", sess.ID,
			"err", err,
		)
	}
	res.Appointment.PaymentSessionID = sess.ID
	res.Appointment.PaymentURL = sess.RedirectURL
	res.RedirectURL = sess.RedirectURL
	outcome := "created"
	if reused {
		outcome = "reused"
	}
	return res, outcome, nil
}

// sessionExpiry derives the checkout expiry from the appointment alone, so every
// retry under the same idempotency key sends identical parameters. A retry made
// while the hold is still live stays at least MinSessionLifetime ahead.
func (m *Manager) sessionExpiry(appt model.Appointment) time.Time {
	return appt.CreatedAt.Add(m.policy.HoldTTL + payments.MinSessionLifetime)
}

func normalizeRequest(rc RequestContext, req BookingRequest) (BookingRequest, error) {
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.StaffID == "" {
		return req, invalid("staff_id", "required")
	}
	if req.Start.IsZero() {
		return req, invalid("start_time", "required")
	}
	if _, err := normalizeIDs(req.ServiceIDs); err != nil {
		return req, err
	}

	c := req.Customer
	if rc.CustomerID != "" {
		c.ID = rc.CustomerID
	}
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	if c.IsGuest() {
		if c.Name == "" {
			return req, invalid("customer_name", "required for guest bookings")
		}
		if c.Email == "" {
			return req, invalid("customer_email", "required for guest bookings")
		}
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return req, invalid("customer_email", "not a valid address")
		}
	}
	req.Customer = c
	return req, nil
}

func (m *Manager) newVerifyToken() (string, string, error) {
	var b [24]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", "", err
	}
	token := base64.RawURLEncoding.EncodeToString(b[:])
	hash, err := bcrypt.GenerateFromPassword([]byte(token), m.tokenCost)
	if err != nil {
		return "", "", err
	}
	return token, string(hash), nil
}

func appointmentPayload(a model.Appointment) map[string]any {
	services := make([]string, 0, len(a.Items))
	for _, it := range a.Items {
		services = append(services, it.ServiceID)
	}
	return map[string]any{
		"appointment_id": a.ID,
		"staff_id":       a.StaffID,
		"customer_id":    a.Customer.ID,
		"customer_email": a.Customer.Email,
		"service_ids":    services,
		"start_time":     a.StartTime.UTC().Format(time.RFC3339),
		"end_time":       a.EndTime.UTC().Format(time.RFC3339),
		"status":         string(a.Status),
		"total":          a.TotalCents.String(),
		"deposit":        a.DepositCents.String(),
	}
}
