package availability

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/hours"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/policy"
)

type HoursSource interface {
	Resolve(ctx context.Context, staffID string, day time.Time) (model.Interval, bool, error)
}

type ConflictSource interface {
	ConflictsFor(ctx context.Context, staffID string, day time.Time) ([]model.Interval, error)
}

type Generator struct {
	hours     HoursSource
	conflicts ConflictSource
	policy    policy.Policy
}

func NewGenerator(h HoursSource, c ConflictSource, p policy.Policy) *Generator {
	if p.Location == nil {
		p.Location = time.UTC
	}
	return &Generator{hours: h, conflicts: c, policy: p}
}

// Generate lists candidate slots for a booking of length duration on the
// salon-local day containing day. Closed days, days already over, and days
// past the booking horizon yield no slots.
func (g *Generator) Generate(ctx context.Context, staffID string, duration time.Duration, day, now time.Time) ([]Slot, error) {
	if duration <= 0 {
		return nil, nil
	}
	dayStart, dayEnd := hours.DayBounds(day, g.policy.Location)
	if !dayEnd.After(now) || dayStart.After(g.horizon(now)) {
		return []Slot{}, nil
	}

	window, open, err := g.hours.Resolve(ctx, staffID, dayStart)
	if err != nil {
		return nil, err
	}
	if !open {
		return []Slot{}, nil
	}
	busy, err := g.conflicts.ConflictsFor(ctx, staffID, dayStart)
	if err != nil {
		return nil, err
	}

	slots := Candidates(window, duration, g.policy.SlotStep, busy, now.Add(g.policy.MinAdvance), g.horizon(now))
	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}

// Check applies the same availability test to one requested interval, reading
// conflicts through conflicts so callers can pass a transaction-bound index.
// The start need not sit on a step boundary.
func (g *Generator) Check(ctx context.Context, conflicts ConflictSource, staffID string, start time.Time, duration time.Duration, now time.Time) (bool, error) {
	if duration <= 0 {
		return false, nil
	}
	if start.After(g.horizon(now)) {
		return false, nil
	}
	local := start.In(g.policy.Location)
	window, open, err := g.hours.Resolve(ctx, staffID, local)
	if err != nil {
		return false, err
	}
	if !open {
		return false, nil
	}
	if conflicts == nil {
		conflicts = g.conflicts
	}
	busy, err := conflicts.ConflictsFor(ctx, staffID, local)
	if err != nil {
		return false, err
	}
	return Fits(window, start, duration, busy, now.Add(g.policy.MinAdvance), g.horizon(now)), nil
}

// horizon is the latest bookable start.
func (g *Generator) horizon(now time.Time) time.Time {
	return now.Add(g.policy.MaxAdvance)
}

func (g *Generator) Policy() policy.Policy {
	return g.policy
}
