package availability

import (
	"time"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

// Slot is a candidate start time. Unavailable candidates are kept so callers
// can render the full day.
type Slot struct {
	Start     time.Time
	End       time.Time
	Available bool
}

// Candidates walks window from its start in step increments while a booking of
// length duration still fits. A candidate is available when it starts within
// [earliest, latest] and does not overlap any busy interval. A zero latest
// means no upper bound.
//
// All times are expected to be in the same location (timezone).
func Candidates(window model.Interval, duration, step time.Duration, busy []model.Interval, earliest, latest time.Time) []Slot {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !window.End.After(window.Start) {
		return nil
	}

	var slots []Slot
	for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(step) {
		end := t.Add(duration)
		slots = append(slots, Slot{
			Start:     t,
			End:       end,
			Available: inBounds(t, earliest, latest) && !overlapsAny(t, end, busy),
		})
	}
	return slots
}

// Fits reports whether [start, start+duration) lies inside window, starts
// within [earliest, latest] and misses every busy interval. It is the
// single-interval form of Candidates.
func Fits(window model.Interval, start time.Time, duration time.Duration, busy []model.Interval, earliest, latest time.Time) bool {
	end := start.Add(duration)
	if duration <= 0 || start.Before(window.Start) || end.After(window.End) {
		return false
	}
	if !inBounds(start, earliest, latest) {
		return false
	}
	return !overlapsAny(start, end, busy)
}

func inBounds(t, earliest, latest time.Time) bool {
	if t.Before(earliest) {
		return false
	}
	return latest.IsZero() || !t.After(latest)
}

func overlapsAny(start, end time.Time, busy []model.Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
