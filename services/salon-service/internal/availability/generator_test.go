package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/policy"
)

type mondayHours struct {
	open, close int
}

func (h mondayHours) Resolve(_ context.Context, staffID string, day time.Time) (model.Interval, bool, error) {
	if staffID != "staff-s" || day.Weekday() != time.Monday {
		return model.Interval{}, false, nil
	}
	y, m, d := day.Date()
	return model.Interval{
		Start: time.Date(y, m, d, 0, h.open, 0, 0, day.Location()),
		End:   time.Date(y, m, d, 0, h.close, 0, 0, day.Location()),
	}, true, nil
}

type staticConflicts struct {
	busy  []model.Interval
	err   error
	calls int
}

func (c *staticConflicts) ConflictsFor(context.Context, string, time.Time) ([]model.Interval, error) {
	c.calls++
	return c.busy, c.err
}

func testPolicy(step time.Duration) policy.Policy {
	p := policy.Default()
	p.SlotStep = step
	return p
}

func monday(h, m int) time.Time {
	return time.Date(2026, 3, 9, h, m, 0, 0, time.UTC)
}

func TestGenerate_MondayScenario(t *testing.T) {
	busy := &staticConflicts{busy: []model.Interval{{Start: monday(10, 0), End: monday(10, 45)}}}
	g := NewGenerator(mondayHours{open: 9 * 60, close: 17 * 60}, busy, testPolicy(15*time.Minute))
	previousFriday := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

	slots, err := g.Generate(context.Background(), "staff-s", 45*time.Minute, monday(0, 0), previousFriday)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	avail := map[string]bool{}
	for _, s := range slots {
		avail[s.Start.Format("15:04")] = s.Available
	}
	if !avail["09:00"] || avail["10:00"] || !avail["10:45"] {
		t.Fatalf("unexpected availability: 09:00=%v 10:00=%v 10:45=%v", avail["09:00"], avail["10:00"], avail["10:45"])
	}
	last := slots[len(slots)-1]
	if last.Start.Format("15:04") != "16:15" {
		t.Fatalf("expected last start 16:15, got %s", last.Start.Format("15:04"))
	}
}

func TestGenerate_TodayRespectsMinAdvance(t *testing.T) {
	g := NewGenerator(mondayHours{open: 9 * 60, close: 17 * 60}, &staticConflicts{}, testPolicy(30*time.Minute))

	slots, err := g.Generate(context.Background(), "staff-s", time.Hour, monday(0, 0), monday(7, 0))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(slots) != 15 {
		t.Fatalf("expected 15 candidates 09:00..16:00, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Available {
			t.Fatalf("slot %s is inside the 24h notice window", s.Start.Format("15:04"))
		}
	}
}

func TestGenerate_EmptyResults(t *testing.T) {
	conflicts := &staticConflicts{}
	g := NewGenerator(mondayHours{open: 9 * 60, close: 17 * 60}, conflicts, testPolicy(30*time.Minute))
	ctx := context.Background()
	now := monday(12, 0)

	cases := map[string]struct {
		staff string
		day   time.Time
	}{
		"closed day":     {"staff-s", monday(0, 0).AddDate(0, 0, 1)},
		"past day":       {"staff-s", monday(0, 0).AddDate(0, 0, -7)},
		"beyond horizon": {"staff-s", monday(0, 0).AddDate(0, 0, 35)},
		"unknown staff":  {"ghost", monday(0, 0).AddDate(0, 0, 7)},
	}
	for name, tc := range cases {
		slots, err := g.Generate(ctx, tc.staff, time.Hour, tc.day, now)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if slots == nil || len(slots) != 0 {
			t.Fatalf("%s: expected empty non-nil slice, got %v", name, slots)
		}
	}
	if conflicts.calls != 0 {
		t.Fatalf("conflicts should not be read for empty days, got %d calls", conflicts.calls)
	}
}

func TestGenerate_PropagatesConflictErrors(t *testing.T) {
	g := NewGenerator(mondayHours{open: 9 * 60, close: 17 * 60}, &staticConflicts{err: errors.New("boom")}, testPolicy(30*time.Minute))
	if _, err := g.Generate(context.Background(), "staff-s", time.Hour, monday(0, 0), monday(0, 0).AddDate(0, 0, -3)); err == nil {
		t.Fatal("expected error")
	}
}

func TestCheck_UsesProvidedConflicts(t *testing.T) {
	fallback := &staticConflicts{}
	g := NewGenerator(mondayHours{open: 9 * 60, close: 17 * 60}, fallback, testPolicy(30*time.Minute))
	tx := &staticConflicts{busy: []model.Interval{{Start: monday(10, 0), End: monday(11, 0)}}}
	now := monday(0, 0).AddDate(0, 0, -3)

	ok, err := g.Check(context.Background(), tx, "staff-s", monday(10, 30), time.Hour, now)
	if err != nil || ok {
		t.Fatalf("expected conflict, ok=%v err=%v", ok, err)
	}
	ok, err = g.Check(context.Background(), tx, "staff-s", monday(11, 0), time.Hour, now)
	if err != nil || !ok {
		t.Fatalf("expected 11:00 free, ok=%v err=%v", ok, err)
	}
	if fallback.calls != 0 || tx.calls != 2 {
		t.Fatalf("expected reads through the provided source, fallback=%d tx=%d", fallback.calls, tx.calls)
	}
	ok, _ = g.Check(context.Background(), tx, "staff-s", monday(16, 30), time.Hour, now)
	if ok {
		t.Fatal("expected a booking past closing to be rejected")
	}
}

func TestGenerate_HorizonDayAgreesWithCheck(t *testing.T) {
	g := NewGenerator(mondayHours{open: 9 * 60, close: 17 * 60}, &staticConflicts{}, testPolicy(30*time.Minute))
	now := monday(12, 0).Add(-g.Policy().MaxAdvance)

	slots, err := g.Generate(context.Background(), "staff-s", time.Hour, monday(0, 0), now)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(slots) != 15 {
		t.Fatalf("expected 15 candidates, got %d", len(slots))
	}
	for _, s := range slots {
		want := !s.Start.After(monday(12, 0))
		if s.Available != want {
			t.Fatalf("%s: expected available=%v, got %v", s.Start.Format("15:04"), want, s.Available)
		}
		ok, err := g.Check(context.Background(), nil, "staff-s", s.Start, time.Hour, now)
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if ok != s.Available {
			t.Fatalf("%s: listed available=%v but Check=%v", s.Start.Format("15:04"), s.Available, ok)
		}
	}
}
