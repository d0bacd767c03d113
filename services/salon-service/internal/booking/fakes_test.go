package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/payments"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/policy"
	"golang.org/x/crypto/bcrypt"
)

const testStaff = "staff-1"

// memStore serialises transactions with one mutex and applies a transaction's
// writes only when fn succeeds.
type memStore struct {
	mu             sync.Mutex
	appts          map[string]model.Appointment
	events         []outbox.Event
	failInsertWith error
}

func newMemStore() *memStore {
	return &memStore{appts: map[string]model.Appointment{}}
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := make(map[string]model.Appointment, len(s.appts))
	for k, v := range s.appts {
		work[k] = v
	}
	tx := &memTx{store: s, appts: work}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.appts = work
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (model.Appointment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	return a, ok, nil
}

func (s *memStore) AttachPaymentSession(_ context.Context, id, sessionID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return errors.New("not found")
	}
	a.PaymentSessionID = sessionID
	a.PaymentURL = url
	s.appts[id] = a
	return nil
}

func (s *memStore) ListPending(_ context.Context, before time.Time, limit int) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.Status == model.StatusPending && !a.DepositPaid && a.CreatedAt.Before(before) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) List(_ context.Context, f ListFilter) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if f.StaffID != "" && a.StaffID != f.StaffID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *memStore) put(a model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appts[a.ID] = a
}

func (s *memStore) get(id string) model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appts[id]
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appts)
}

func (s *memStore) eventsOfType(t string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.EventType == t {
			n++
		}
	}
	return n
}

type memTx struct {
	store  *memStore
	appts  map[string]model.Appointment
	events []outbox.Event
}

func (t *memTx) LockStaff(context.Context, string) error { return nil }

func (t *memTx) Conflicts() availability.ConflictSource { return memConflicts{appts: t.appts} }

func (t *memTx) FindPending(_ context.Context, staffID string, slot model.Interval, c model.Customer) (model.Appointment, bool, error) {
	for _, a := range t.appts {
		if a.StaffID == staffID && a.Status == model.StatusPending && a.StartTime.Equal(slot.Start) &&
			a.EndTime.Equal(slot.End) && a.Customer.SameAs(c) {
			return a, true, nil
		}
	}
	return model.Appointment{}, false, nil
}

func (t *memTx) Insert(_ context.Context, a *model.Appointment) error {
	if t.store.failInsertWith != nil {
		return t.store.failInsertWith
	}
	for _, other := range t.appts {
		if other.StaffID == a.StaffID && other.Status.Occupies() && other.Interval().Overlaps(a.Interval()) {
			return ErrOverlapViolation
		}
	}
	t.appts[a.ID] = *a
	return nil
}

func (t *memTx) GetForUpdate(_ context.Context, id string) (model.Appointment, bool, error) {
	a, ok := t.appts[id]
	return a, ok, nil
}

func (t *memTx) SetVerifyTokenHash(_ context.Context, id, hash string) error {
	a := t.appts[id]
	a.VerifyTokenHash = hash
	t.appts[id] = a
	return nil
}

func (t *memTx) MarkPaid(_ context.Context, id, ref string, status model.Status) error {
	a := t.appts[id]
	a.DepositPaid = true
	if a.PaymentReference == "" {
		a.PaymentReference = ref
	}
	a.Status = status
	t.appts[id] = a
	return nil
}

func (t *memTx) SetStatus(_ context.Context, id string, status model.Status, reason string) error {
	a := t.appts[id]
	a.Status = status
	if reason != "" {
		a.CancelReason = reason
	}
	t.appts[id] = a
	return nil
}

func (t *memTx) Emit(_ context.Context, evt outbox.Event) error {
	t.events = append(t.events, evt)
	return nil
}

type memConflicts struct {
	appts map[string]model.Appointment
}

func (c memConflicts) ConflictsFor(_ context.Context, staffID string, day time.Time) ([]model.Interval, error) {
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)
	var out []model.Interval
	for _, a := range c.appts {
		if a.StaffID == staffID && a.Status.Occupies() && a.StartTime.Before(to) && a.EndTime.After(from) {
			out = append(out, a.Interval())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// committedConflicts reads the store outside any transaction.
type committedConflicts struct{ store *memStore }

func (c committedConflicts) ConflictsFor(ctx context.Context, staffID string, day time.Time) ([]model.Interval, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return memConflicts{appts: c.store.appts}.ConflictsFor(ctx, staffID, day)
}

type openEveryDay struct{}

func (openEveryDay) Resolve(_ context.Context, staffID string, day time.Time) (model.Interval, bool, error) {
	if staffID != testStaff {
		return model.Interval{}, false, nil
	}
	y, m, d := day.Date()
	return model.Interval{
		Start: time.Date(y, m, d, 9, 0, 0, 0, day.Location()),
		End:   time.Date(y, m, d, 17, 0, 0, 0, day.Location()),
	}, true, nil
}

type memCatalog struct {
	services map[string]model.Service
	offered  map[string]bool
}

func newCatalog() *memCatalog {
	return &memCatalog{
		services: map[string]model.Service{
			"cut":     {ID: "cut", Name: "Haircut", DurationMinutes: 60, PriceCents: 4500, Active: true},
			"wash":    {ID: "wash", Name: "Wash", DurationMinutes: 30, PriceCents: 1500, Active: true},
			"colour":  {ID: "colour", Name: "Colour", DurationMinutes: 45, PriceCents: 9000, Active: true},
			"retired": {ID: "retired", Name: "Perm", DurationMinutes: 90, PriceCents: 8000, Active: false},
			"beard":   {ID: "beard", Name: "Beard trim", DurationMinutes: 15, PriceCents: 1000, Active: true},
			"consult": {ID: "consult", Name: "Consultation", DurationMinutes: 15, Active: true},
		},
		offered: map[string]bool{"cut": true, "wash": true, "colour": true, "retired": true, "consult": true},
	}
}

func (c *memCatalog) GetService(_ context.Context, id string) (model.Service, bool, error) {
	s, ok := c.services[id]
	return s, ok, nil
}

func (c *memCatalog) StaffCanPerform(_ context.Context, staffID, serviceID string) (bool, error) {
	return staffID == testStaff && c.offered[serviceID], nil
}

type fakeGateway struct {
	mu       sync.Mutex
	err      error
	requests []payments.SessionRequest
	status   map[string]payments.SessionStatus
	retrieve error
}

func newGateway() *fakeGateway {
	return &fakeGateway{status: map[string]payments.SessionStatus{}}
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req payments.SessionRequest) (payments.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return payments.Session{}, g.err
	}
	id := "cs_" + req.CorrelationID
	g.status[id] = payments.SessionStatus{ID: id, CorrelationID: req.CorrelationID}
	return payments.Session{ID: id, RedirectURL: "https://pay.test/" + id}, nil
}

func (g *fakeGateway) RetrieveSession(_ context.Context, id string) (payments.SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.retrieve != nil {
		return payments.SessionStatus{}, g.retrieve
	}
	st, ok := g.status[id]
	if !ok {
		return payments.SessionStatus{}, errors.New("no such session")
	}
	return st, nil
}

func (g *fakeGateway) markPaid(sessionID, ref string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.status[sessionID]
	st.Paid = true
	st.PaymentReference = ref
	g.status[sessionID] = st
}

func (g *fakeGateway) markExpired(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.status[sessionID]
	st.Expired = true
	g.status[sessionID] = st
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type fakeNotifier struct {
	mu         sync.Mutex
	confirmed  []string
	expired    []string
	confirmErr error
}

func (n *fakeNotifier) SendBookingConfirmation(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, id)
	return n.confirmErr
}

func (n *fakeNotifier) SendHoldExpired(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, id)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	mgr      *Manager
	store    *memStore
	gateway  *fakeGateway
	notifier *fakeNotifier
	clock    *clock
}

// Friday 2026-03-06 12:00 UTC; bookings target Monday 2026-03-09.
func newHarness(t *testing.T, mutate ...func(*policy.Policy)) *harness {
	t.Helper()
	p := policy.Default()
	for _, fn := range mutate {
		fn(&p)
	}
	store := newMemStore()
	h := &harness{
		store:    store,
		gateway:  newGateway(),
		notifier: &fakeNotifier{},
		clock:    &clock{now: time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)},
	}
	h.mgr = NewManager(Deps{
		Store:      store,
		Catalog:    newCatalog(),
		Generator:  availability.NewGenerator(openEveryDay{}, committedConflicts{store: store}, p),
		Gateway:    h.gateway,
		Notifier:   h.notifier,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		SuccessURL: "https://salon.test/booking/{APPOINTMENT_ID}/done?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://salon.test/booking/{APPOINTMENT_ID}/cancel",
		Now:        h.clock.Now,
	})
	h.mgr.tokenCost = bcrypt.MinCost
	return h
}

func monday(h, m int) time.Time {
	return time.Date(2026, 3, 9, h, m, 0, 0, time.UTC)
}

func guestRequest(start time.Time, email string, services ...string) BookingRequest {
	return BookingRequest{
		StaffID:    testStaff,
		ServiceIDs: services,
		Start:      start,
		Customer:   model.Customer{Name: "Guest", Email: email},
	}
}

var admin = RequestContext{RequestID: "req-admin", ActorID: "u-admin", Role: RoleAdmin}
