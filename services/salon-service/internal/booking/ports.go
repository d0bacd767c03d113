package booking

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
)

type Catalog interface {
	GetService(ctx context.Context, serviceID string) (model.Service, bool, error)
	StaffCanPerform(ctx context.Context, staffID, serviceID string) (bool, error)
}

// Store is the appointment table. Every mutation goes through InTx.
type Store interface {
	// InTx runs fn in one transaction and commits when fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, appointmentID string) (model.Appointment, bool, error)
	AttachPaymentSession(ctx context.Context, appointmentID, sessionID, redirectURL string) error
	// ListPending returns unpaid PENDING appointments created before cutoff, oldest first.
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]model.Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]model.Appointment, error)
}

type Tx interface {
	// LockStaff serialises bookings for one staff member until the transaction ends.
	LockStaff(ctx context.Context, staffID string) error
	// Conflicts reads occupied intervals through this transaction.
	Conflicts() availability.ConflictSource
	FindPending(ctx context.Context, staffID string, slot model.Interval, customer model.Customer) (model.Appointment, bool, error)
	Insert(ctx context.Context, appt *model.Appointment) error
	GetForUpdate(ctx context.Context, appointmentID string) (model.Appointment, bool, error)
	SetVerifyTokenHash(ctx context.Context, appointmentID, hash string) error
	// MarkPaid sets deposit_paid, the payment reference (first write wins) and status.
	MarkPaid(ctx context.Context, appointmentID, paymentReference string, status model.Status) error
	SetStatus(ctx context.Context, appointmentID string, status model.Status, reason string) error
	Emit(ctx context.Context, evt outbox.Event) error
}

// Notifier delivers customer messages. Failures never undo the state change
// that triggered them.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, appointmentID string) error
	SendHoldExpired(ctx context.Context, appointmentID string) error
}

type ListFilter struct {
	StaffID string
	Status  model.Status
	From    time.Time
	To      time.Time
	Limit   int
}
