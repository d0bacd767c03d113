package booking

import (
	"errors"
	"fmt"
)

var (
	ErrServiceUnavailable    = errors.New("service unavailable")
	ErrSlotNoLongerAvailable = errors.New("slot no longer available")
	ErrAppointmentMissing    = errors.New("appointment missing")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrForbidden             = errors.New("forbidden")

	// ErrOverlapViolation is returned by Tx.Insert when the database rejects an
	// overlapping row for the same staff member.
	ErrOverlapViolation = errors.New("overlapping appointment rejected by store")
)

// ValidationError names the request field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// GatewayError reports that the payment session could not be created. The
// PENDING appointment it refers to is kept so a retry reuses it.
type GatewayError struct {
	AppointmentID string
	Err           error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway unavailable for appointment %s: %v", e.AppointmentID, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
