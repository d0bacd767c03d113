package payments

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DryRunGateway stands in for Stripe in local development. Every session it
// creates redirects straight to the success URL and reports as paid.
type DryRunGateway struct {
	mu       sync.Mutex
	sessions map[string]string
}

func NewDryRunGateway() *DryRunGateway {
	return &DryRunGateway{sessions: map[string]string{}}
}

func (g *DryRunGateway) CreateCheckoutSession(_ context.Context, req SessionRequest) (Session, error) {
	if req.AmountCents <= 0 {
		return Session{}, errors.New("dry-run: amount must be positive")
	}
	id := "cs_dryrun_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	g.mu.Lock()
	g.sessions[id] = req.CorrelationID
	g.mu.Unlock()
	return Session{
		ID:          id,
		RedirectURL: strings.ReplaceAll(req.SuccessURL, "{CHECKOUT_SESSION_ID}", id),
	}, nil
}

func (g *DryRunGateway) RetrieveSession(_ context.Context, sessionID string) (SessionStatus, error) {
	g.mu.Lock()
	correlationID, ok := g.sessions[sessionID]
	g.mu.Unlock()
	if !ok {
		return SessionStatus{}, errors.New("dry-run: unknown session")
	}
	return SessionStatus{
		ID:               sessionID,
		CorrelationID:    correlationID,
		Paid:             true,
		PaymentReference: "pi_dryrun_" + strings.TrimPrefix(sessionID, "cs_dryrun_"),
	}, nil
}

func (g *DryRunGateway) ParseWebhook([]byte, string) (Event, error) {
	return Event{}, ErrWebhookNotConfigured
}
