package model

import "time"

type Service struct {
	ID              string
	Name            string
	DurationMinutes int
	PriceCents      Cents
	Active          bool
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type Staff struct {
	ID     string
	Name   string
	Active bool
}

// WorkingHours is one weekday row. Start and end are minutes after local midnight.
type WorkingHours struct {
	StaffID     string
	Weekday     time.Weekday
	Active      bool
	StartMinute int
	EndMinute   int
}

// Interval is a half-open [Start, End) range.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}
