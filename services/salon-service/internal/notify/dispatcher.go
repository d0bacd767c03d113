package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

var ErrAppointmentNotFound = errors.New("notify: appointment not found")

// AppointmentSource loads the appointment a notification is about.
type AppointmentSource interface {
	Get(ctx context.Context, id string) (model.Appointment, bool, error)
}

// Dispatcher renders customer emails for booking events and hands them to a Sender.
type Dispatcher struct {
	appointments AppointmentSource
	sender       Sender
	salonName    string
	loc          *time.Location
	logger       *slog.Logger
}

func NewDispatcher(appointments AppointmentSource, sender Sender, salonName string, loc *time.Location, logger *slog.Logger) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	if salonName == "" {
		salonName = "the salon"
	}
	return &Dispatcher{appointments: appointments, sender: sender, salonName: salonName, loc: loc, logger: logger}
}

func (d *Dispatcher) SendBookingConfirmation(ctx context.Context, appointmentID string) error {
	return d.dispatch(ctx, appointmentID, func(a model.Appointment) Message {
		var b strings.Builder
		fmt.Fprintf(&b, "Hi %s,\n\n", greetingName(a.Customer))
		fmt.Fprintf(&b, "Your appointment at %s is confirmed for %s.\n\n", d.salonName, a.StartTime.In(d.loc).Format("Monday, January 2 at 15:04"))
		for _, it := range a.Items {
			fmt.Fprintf(&b, "  - %s (%d min) %s\n", it.Name, it.DurationMinutes, it.PriceCents)
		}
		fmt.Fprintf(&b, "\nTotal: %s\nDeposit paid: %s\nBooking reference: %s\n", a.TotalCents, a.DepositCents, a.ID)
		return Message{Subject: "Your appointment is confirmed", Body: b.String()}
	})
}

func (d *Dispatcher) SendHoldExpired(ctx context.Context, appointmentID string) error {
	return d.dispatch(ctx, appointmentID, func(a model.Appointment) Message {
		body := fmt.Sprintf("Hi %s,\n\nWe did not receive the deposit for your appointment on %s, so the time has been released.\nYou are welcome to book again.\n",
			greetingName(a.Customer), a.StartTime.In(d.loc).Format("Monday, January 2 at 15:04"))
		return Message{Subject: "Your appointment hold has expired", Body: body}
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, appointmentID string, render func(model.Appointment) Message) error {
	appt, ok, err := d.appointments.Get(ctx, appointmentID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAppointmentNotFound
	}
	if appt.Customer.Email == "" {
		d.logger.Info("no email on appointment; notification skipped", "appointment_id", appointmentID)
		return nil
	}
	msg := render(appt)
	msg.To = appt.Customer.Email
	msg.ToName = appt.Customer.Name
	return d.sender.Send(ctx, msg)
}

func greetingName(c model.Customer) string {
	if c.Name != "" {
		return c.Name
	}
	return "there"
}
