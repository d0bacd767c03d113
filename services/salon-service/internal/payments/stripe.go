package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutExpired        = "checkout.session.expired"
)

// MinSessionLifetime is Stripe's minimum distance between a checkout
// session's creation and its expires_at.
const MinSessionLifetime = 30 * time.Minute

type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
	// Backends overrides the API endpoint (tests, stripe-mock).
	Backends *stripe.Backends
}

type StripeGateway struct {
	api           *client.API
	webhookSecret string
	tolerance     time.Duration
}

func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = webhook.DefaultTolerance
	}
	return &StripeGateway{
		api:           client.New(cfg.SecretKey, cfg.Backends),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		tolerance:     cfg.WebhookTolerance,
	}, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error) {
	if req.AmountCents <= 0 {
		return Session{}, fmt.Errorf("stripe: amount must be positive (got %d)", req.AmountCents)
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.CorrelationID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{MetadataAppointmentID: req.CorrelationID},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	// Sent verbatim: Stripe rejects a replayed idempotency key whose
	// parameters differ from the first request.
	if !req.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
	}
	params.AddMetadata(MetadataAppointmentID, req.CorrelationID)
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	if sess.URL == "" {
		return Session{}, errors.New("stripe: checkout session has no url")
	}
	return Session{ID: sess.ID, RedirectURL: sess.URL}, nil
}

func (g *StripeGateway) RetrieveSession(ctx context.Context, sessionID string) (SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return SessionStatus{}, fmt.Errorf("stripe: retrieve checkout session: %w", err)
	}
	return statusFromSession(sess), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes checkout
// session events. Other event types come back with only ID, Type and Created set.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (Event, error) {
	if g.webhookSecret == "" {
		return Event{}, ErrWebhookNotConfigured
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                g.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, err
	}

	out := Event{
		ID:      evt.ID,
		Type:    string(evt.Type),
		Created: time.Unix(evt.Created, 0).UTC(),
	}
	switch out.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncSucceeded, EventCheckoutExpired:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return Event{}, fmt.Errorf("stripe: invalid checkout session payload: %w", err)
		}
		st := statusFromSession(&sess)
		out.SessionID = st.ID
		out.CorrelationID = st.CorrelationID
		out.PaymentReference = st.PaymentReference
		out.Paid = st.Paid
		out.Expired = out.Type == EventCheckoutExpired
	}
	return out, nil
}

func statusFromSession(sess *stripe.CheckoutSession) SessionStatus {
	st := SessionStatus{
		ID:            sess.ID,
		CorrelationID: strings.TrimSpace(sess.Metadata[MetadataAppointmentID]),
		Paid:          sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Expired:       sess.Status == stripe.CheckoutSessionStatusExpired,
	}
	if st.CorrelationID == "" {
		st.CorrelationID = strings.TrimSpace(sess.ClientReferenceID)
	}
	if sess.PaymentIntent != nil {
		st.PaymentReference = sess.PaymentIntent.ID
	}
	if st.PaymentReference == "" && st.Paid {
		// Sessions paid without an intent (100% discounts) still need a stable reference.
		st.PaymentReference = sess.ID
	}
	return st
}
