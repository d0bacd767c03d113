package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/payments"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/storage"
)

// Bookings is the slice of *booking.Manager the HTTP surface drives.
type Bookings interface {
	ListAvailableSlots(ctx context.Context, rc booking.RequestContext, staffID string, serviceIDs []string, day time.Time) ([]availability.Slot, booking.Quote, error)
	Book(ctx context.Context, rc booking.RequestContext, req booking.BookingRequest) (booking.BookingResult, error)
	VerifySession(ctx context.Context, rc booking.RequestContext, appointmentID, token string) (booking.ConfirmOutcome, model.Appointment, error)
	ConfirmPayment(ctx context.Context, correlationID, paymentReference string) (booking.ConfirmOutcome, error)
	HandleSessionExpired(ctx context.Context, correlationID string) (bool, error)
	List(ctx context.Context, rc booking.RequestContext, f booking.ListFilter) ([]model.Appointment, error)
	Cancel(ctx context.Context, rc booking.RequestContext, appointmentID, reason string) (model.Appointment, error)
	Complete(ctx context.Context, rc booking.RequestContext, appointmentID string) (model.Appointment, error)
	MarkNoShow(ctx context.Context, rc booking.RequestContext, appointmentID string) (model.Appointment, error)
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

type EventRecorder interface {
	Record(ctx context.Context, evt storage.ProviderEvent) error
}

type Config struct {
	Bookings Bookings
	Webhooks payments.WebhookVerifier
	Events   EventRecorder
	Tokens   TokenVerifier
	Metrics  *metrics.BookingMetrics
	Logger   *slog.Logger
	// Location is the salon's local zone; slot query dates are read in it.
	Location *time.Location
}

type Handler struct {
	bookings Bookings
	webhooks payments.WebhookVerifier
	events   EventRecorder
	tokens   TokenVerifier
	metrics  *metrics.BookingMetrics
	logger   *slog.Logger
	loc      *time.Location
}

func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		bookings: cfg.Bookings,
		webhooks: cfg.Webhooks,
		events:   cfg.Events,
		tokens:   cfg.Tokens,
		metrics:  cfg.Metrics,
		logger:   logger,
		loc:      loc,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/slots", h.optionalAuth(h.Slots))
	mux.HandleFunc("/api/v1/public/bookings", h.optionalAuth(h.CreateBooking))
	mux.HandleFunc("/api/v1/public/bookings/verify", h.optionalAuth(h.VerifyBooking))
	mux.HandleFunc("/api/v1/payments/webhooks/stripe", h.StripeWebhook)
	mux.HandleFunc("/api/v1/appointments", h.requireAuth(h.ListAppointments))
	mux.HandleFunc("/api/v1/appointments/cancel", h.requireAuth(h.CancelAppointment))
	mux.HandleFunc("/api/v1/appointments/complete", h.requireAuth(h.CompleteAppointment))
	mux.HandleFunc("/api/v1/appointments/no-show", h.requireAuth(h.NoShowAppointment))
}
