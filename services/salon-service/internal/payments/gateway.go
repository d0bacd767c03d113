package payments

import (
	"context"
	"errors"
	"time"
)

// MetadataAppointmentID is the session metadata key carrying the correlation id.
const MetadataAppointmentID = "appointment_id"

var ErrWebhookNotConfigured = errors.New("payments: webhook verification not configured")

type SessionRequest struct {
	AmountCents    int64
	Currency       string
	CorrelationID  string
	IdempotencyKey string
	SuccessURL     string
	CancelURL      string
	CustomerEmail  string
	Description    string
	ExpiresAt      time.Time
}

type Session struct {
	ID          string
	RedirectURL string
}

type SessionStatus struct {
	ID               string
	CorrelationID    string
	Paid             bool
	Expired          bool
	PaymentReference string
}

// Gateway is the hosted checkout the booking flow charges deposits through.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (SessionStatus, error)
}

// Event is a verified webhook event reduced to what reconciliation needs.
type Event struct {
	ID               string
	Type             string
	Created          time.Time
	SessionID        string
	CorrelationID    string
	PaymentReference string
	Paid             bool
	Expired          bool
}

type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (Event, error)
}
