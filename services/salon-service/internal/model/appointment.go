package model

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Terminal states (COMPLETED, CANCELLED, NO_SHOW) allow nothing.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Occupies reports whether an appointment in this status holds its time range.
func (s Status) Occupies() bool {
	return s != StatusCancelled
}

func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return s, true
	}
	return "", false
}

// Customer is either a registered customer (ID set) or a guest identified by
// name and email.
type Customer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

func (c Customer) IsGuest() bool {
	return c.ID == ""
}

// SameAs matches on customer id, falling back to case-insensitive email for guests.
func (c Customer) SameAs(other Customer) bool {
	if c.ID != "" || other.ID != "" {
		return c.ID == other.ID
	}
	return c.Email != "" && strings.EqualFold(c.Email, other.Email)
}

type LineItem struct {
	ServiceID       string
	Name            string
	DurationMinutes int
	PriceCents      Cents
}

type Appointment struct {
	ID               string
	StaffID          string
	Customer         Customer
	StartTime        time.Time
	EndTime          time.Time
	Status           Status
	TotalCents       Cents
	DepositCents     Cents
	DepositPaid      bool
	PaymentReference string
	PaymentSessionID string
	PaymentURL       string
	VerifyTokenHash  string
	CancelReason     string
	Items            []LineItem
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (a Appointment) Interval() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime}
}
