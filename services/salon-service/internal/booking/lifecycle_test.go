package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
)

func TestCancelFreesSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := bookOne(t, h)

	appt, err := h.mgr.Cancel(ctx, admin, res.AppointmentID, "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if appt.Status != model.StatusCancelled || appt.CancelReason != "cancelled_by_admin" {
		t.Fatalf("unexpected cancelled appointment: %+v", appt)
	}
	if h.store.eventsOfType(outbox.EventAppointmentCancelled) != 1 {
		t.Fatal("expected cancelled event")
	}

	again, err := h.mgr.Book(ctx, RequestContext{}, guestRequest(monday(10, 0), "b@example.com", "cut"))
	if err != nil {
		t.Fatalf("rebook freed slot: %v", err)
	}
	if again.AppointmentID == res.AppointmentID {
		t.Fatal("expected a new appointment")
	}
}

func TestTransitionPermissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := bookOne(t, h)

	forbidden := []RequestContext{
		{},
		{Role: RoleCustomer, ActorID: "c1", CustomerID: "c1"},
		{Role: RoleStaff, ActorID: "u2", StaffID: "staff-2"},
		{Role: RoleStaff, ActorID: "u3"},
	}
	for _, rc := range forbidden {
		if _, err := h.mgr.Cancel(ctx, rc, res.AppointmentID, "nope"); !errors.Is(err, ErrForbidden) {
			t.Fatalf("%+v: expected ErrForbidden, got %v", rc, err)
		}
	}

	own := RequestContext{Role: RoleStaff, ActorID: "u1", StaffID: testStaff}
	appt, err := h.mgr.Cancel(ctx, own, res.AppointmentID, "client called")
	if err != nil {
		t.Fatalf("own staff cancel: %v", err)
	}
	if appt.CancelReason != "client called" {
		t.Fatalf("unexpected reason %q", appt.CancelReason)
	}
}

func TestTransitionErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := bookOne(t, h)

	if _, err := h.mgr.Cancel(ctx, admin, uuid.NewString(), ""); !errors.Is(err, ErrAppointmentMissing) {
		t.Fatalf("expected ErrAppointmentMissing, got %v", err)
	}
	if _, err := h.mgr.Complete(ctx, admin, "not-a-uuid"); !errors.Is(err, ErrAppointmentMissing) {
		t.Fatalf("expected ErrAppointmentMissing for malformed id, got %v", err)
	}
	// PENDING cannot complete or be a no-show.
	if _, err := h.mgr.Complete(ctx, admin, res.AppointmentID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := h.mgr.MarkNoShow(ctx, admin, res.AppointmentID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := h.mgr.Cancel(ctx, admin, res.AppointmentID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := h.mgr.Cancel(ctx, admin, res.AppointmentID, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected terminal state, got %v", err)
	}
}

func TestCompleteAndNoShowRespectTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := bookOne(t, h)
	b, err := h.mgr.Book(ctx, RequestContext{}, guestRequest(monday(14, 0), "b@example.com", "wash"))
	if err != nil {
		t.Fatalf("book b: %v", err)
	}
	for _, id := range []string{a.AppointmentID, b.AppointmentID} {
		if _, err := h.mgr.ConfirmPayment(ctx, id, "pi_"+id); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	}

	if _, err := h.mgr.Complete(ctx, admin, a.AppointmentID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected completion before end to fail, got %v", err)
	}
	if _, err := h.mgr.MarkNoShow(ctx, admin, b.AppointmentID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected no-show before start to fail, got %v", err)
	}

	h.clock.now = monday(14, 10)
	done, err := h.mgr.Complete(ctx, admin, a.AppointmentID)
	if err != nil || done.Status != model.StatusCompleted {
		t.Fatalf("complete: %+v %v", done, err)
	}
	missed, err := h.mgr.MarkNoShow(ctx, admin, b.AppointmentID)
	if err != nil || missed.Status != model.StatusNoShow {
		t.Fatalf("no-show: %+v %v", missed, err)
	}
	if h.store.eventsOfType(outbox.EventAppointmentCompleted) != 1 || h.store.eventsOfType(outbox.EventAppointmentNoShow) != 1 {
		t.Fatal("expected completed and no_show events")
	}
}

func TestListScopesStaff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bookOne(t, h)
	h.store.put(model.Appointment{
		ID:        uuid.NewString(),
		StaffID:   "staff-2",
		Status:    model.StatusConfirmed,
		StartTime: monday(12, 0),
		EndTime:   monday(13, 0),
		CreatedAt: h.clock.Now(),
	})

	all, err := h.mgr.List(ctx, admin, ListFilter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("admin list: %d %v", len(all), err)
	}
	own, err := h.mgr.List(ctx, RequestContext{Role: RoleStaff, StaffID: "staff-2"}, ListFilter{})
	if err != nil || len(own) != 1 || own[0].StaffID != "staff-2" {
		t.Fatalf("staff list: %+v %v", own, err)
	}
	if _, err := h.mgr.List(ctx, RequestContext{Role: RoleStaff, StaffID: "staff-2"}, ListFilter{StaffID: testStaff}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for other staff, got %v", err)
	}
	if _, err := h.mgr.List(ctx, RequestContext{Role: RoleCustomer}, ListFilter{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for customer, got %v", err)
	}
	from := monday(12, 0)
	if _, err := h.mgr.List(ctx, admin, ListFilter{From: from, To: from.Add(-time.Hour)}); err == nil {
		t.Fatal("expected validation error for inverted range")
	}
}
