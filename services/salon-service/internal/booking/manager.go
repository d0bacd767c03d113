package booking

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/payments"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/policy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

const (
	// Placeholders substituted in the redirect URL templates.
	PlaceholderAppointmentID = "{APPOINTMENT_ID}"
	PlaceholderSessionID     = "{CHECKOUT_SESSION_ID}"

	defaultListLimit = 50
	maxListLimit     = 500
	sweepBatchSize   = 100
)

type Deps struct {
	Store     Store
	Catalog   Catalog
	Generator *availability.Generator
	Gateway   payments.Gateway
	Notifier  Notifier
	Metrics   *metrics.BookingMetrics
	Logger    *slog.Logger

	// SuccessURL and CancelURL may contain {APPOINTMENT_ID}; SuccessURL may
	// also carry the gateway's {CHECKOUT_SESSION_ID}.
	SuccessURL string
	CancelURL  string
	// ReconcileGrace is how long a session is left to the webhook before the
	// reconciler polls the gateway.
	ReconcileGrace time.Duration
	Now            func() time.Time
}

type Manager struct {
	store          Store
	catalog        Catalog
	gen            *availability.Generator
	gateway        payments.Gateway
	notifier       Notifier
	metrics        *metrics.BookingMetrics
	logger         *slog.Logger
	policy         policy.Policy
	successURL     string
	cancelURL      string
	reconcileGrace time.Duration
	now            func() time.Time
	tracer         trace.Tracer
	tokenCost      int
}

func NewManager(d Deps) *Manager {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	grace := d.ReconcileGrace
	if grace <= 0 {
		grace = 2 * time.Minute
	}
	return &Manager{
		store:          d.Store,
		catalog:        d.Catalog,
		gen:            d.Generator,
		gateway:        d.Gateway,
		notifier:       d.Notifier,
		metrics:        d.Metrics,
		logger:         logger,
		policy:         d.Generator.Policy(),
		successURL:     d.SuccessURL,
		cancelURL:      d.CancelURL,
		reconcileGrace: grace,
		now:            now,
		tracer:         otel.Tracer("salon-service/booking"),
		tokenCost:      bcrypt.DefaultCost,
	}
}

// Quote is the combined duration and price of a set of services.
type Quote struct {
	Duration   time.Duration
	TotalCents model.Cents
	Items      []model.LineItem
}

// Quote sums the named services in any order. Each must exist, be active and
// be assignable to staffID.
func (m *Manager) Quote(ctx context.Context, staffID string, serviceIDs []string) (Quote, error) {
	ids, err := normalizeIDs(serviceIDs)
	if err != nil {
		return Quote{}, err
	}
	var q Quote
	for _, id := range ids {
		svc, ok, err := m.catalog.GetService(ctx, id)
		if err != nil {
			return Quote{}, err
		}
		if !ok || !svc.Active || svc.DurationMinutes <= 0 {
			return Quote{}, fmt.Errorf("%w: %s", ErrServiceUnavailable, id)
		}
		can, err := m.catalog.StaffCanPerform(ctx, staffID, id)
		if err != nil {
			return Quote{}, err
		}
		if !can {
			return Quote{}, fmt.Errorf("%w: %s not offered by staff %s", ErrServiceUnavailable, id, staffID)
		}
		q.Duration += svc.Duration()
		q.TotalCents += svc.PriceCents
		q.Items = append(q.Items, model.LineItem{
			ServiceID:       svc.ID,
			Name:            svc.Name,
			DurationMinutes: svc.DurationMinutes,
			PriceCents:      svc.PriceCents,
		})
	}
	return q, nil
}

// ListAvailableSlots is read-only: it quotes the services and walks the day.
func (m *Manager) ListAvailableSlots(ctx context.Context, rc RequestContext, staffID string, serviceIDs []string, day time.Time) ([]availability.Slot, Quote, error) {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return nil, Quote{}, invalid("staff_id", "required")
	}
	if day.IsZero() {
		return nil, Quote{}, invalid("date", "required")
	}
	q, err := m.Quote(ctx, staffID, serviceIDs)
	if err != nil {
		return nil, Quote{}, err
	}
	slots, err := m.gen.Generate(ctx, staffID, q.Duration, day, m.now())
	if err != nil {
		return nil, Quote{}, err
	}
	m.metrics.ObserveSlotQuery()
	return slots, q, nil
}

// List returns appointments visible to the caller. Staff see only their own.
func (m *Manager) List(ctx context.Context, rc RequestContext, f ListFilter) ([]model.Appointment, error) {
	switch {
	case rc.IsAdmin():
	case rc.Role == RoleStaff && rc.StaffID != "":
		if f.StaffID != "" && f.StaffID != rc.StaffID {
			return nil, ErrForbidden
		}
		f.StaffID = rc.StaffID
	default:
		return nil, ErrForbidden
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.To.After(f.From) {
		return nil, invalid("to", "must be after from")
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	return m.store.List(ctx, f)
}

func (m *Manager) requestLogger(rc RequestContext) *slog.Logger {
	if rc.RequestID == "" {
		return m.logger
	}
	return m.logger.With("request_id", rc.RequestID)
}

func normalizeIDs(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return nil, invalid("service_ids", "duplicate service "+id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, invalid("service_ids", "at least one service is required")
	}
	return ids, nil
}

func redirectURL(template, appointmentID string) string {
	return strings.ReplaceAll(template, PlaceholderAppointmentID, appointmentID)
}
