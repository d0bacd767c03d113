package hours

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

// Directory is the read side of the staff directory.
type Directory interface {
	GetStaff(ctx context.Context, staffID string) (model.Staff, bool, error)
	GetWorkingHours(ctx context.Context, staffID string, weekday time.Weekday) (model.WorkingHours, bool, error)
}

type Resolver struct {
	dir Directory
	loc *time.Location
}

func NewResolver(dir Directory, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{dir: dir, loc: loc}
}

func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve returns the open interval for the staff member on the salon-local
// calendar day containing day. The bool is false when the staff member is
// closed that day, inactive, or unknown.
func (r *Resolver) Resolve(ctx context.Context, staffID string, day time.Time) (model.Interval, bool, error) {
	staff, ok, err := r.dir.GetStaff(ctx, staffID)
	if err != nil {
		return model.Interval{}, false, err
	}
	if !ok || !staff.Active {
		return model.Interval{}, false, nil
	}

	local := day.In(r.loc)
	wh, ok, err := r.dir.GetWorkingHours(ctx, staffID, local.Weekday())
	if err != nil {
		return model.Interval{}, false, err
	}
	if !ok || !wh.Active || wh.EndMinute <= wh.StartMinute {
		return model.Interval{}, false, nil
	}

	return model.Interval{
		Start: AtMinute(local, wh.StartMinute),
		End:   AtMinute(local, wh.EndMinute),
	}, true, nil
}

// AtMinute returns the wall-clock time minute minutes after midnight on day's
// calendar date, in day's location. Building from the date keeps DST days right.
func AtMinute(day time.Time, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, day.Location())
}

// DayBounds returns [midnight, next midnight) for day's calendar date in loc.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := day.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
