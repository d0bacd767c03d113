package conflicts

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/hours"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

// Index lists the intervals a staff member already has booked. PENDING rows
// count; CANCELLED rows do not.
type Index struct {
	q   db.Querier
	loc *time.Location
}

func NewIndex(q db.Querier, loc *time.Location) *Index {
	if loc == nil {
		loc = time.UTC
	}
	return &Index{q: q, loc: loc}
}

// In returns the index reading through q, typically an open transaction.
func (i *Index) In(q db.Querier) *Index {
	return &Index{q: q, loc: i.loc}
}

// ConflictsFor returns occupied intervals intersecting the salon-local
// calendar day containing day, ordered by start.
func (i *Index) ConflictsFor(ctx context.Context, staffID string, day time.Time) ([]model.Interval, error) {
	from, to := hours.DayBounds(day, i.loc)
	rows, err := i.q.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE staff_id = $1
			AND status <> 'CANCELLED'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Interval
	for rows.Next() {
		var iv model.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
