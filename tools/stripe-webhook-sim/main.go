package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Sends a signed checkout.session event for an appointment hold, so the
// payment webhook can be exercised without a Stripe account.
func main() {
	var (
		baseURL     = flag.String("base-url", getenv("BASE_URL", "http://localhost:8090"), "salon-service base url")
		evtType     = flag.String("type", getenv("STRIPE_EVENT_TYPE", "checkout.session.completed"), "checkout.session.completed | checkout.session.async_payment_succeeded | checkout.session.expired")
		appointment = flag.String("appointment-id", getenv("APPOINTMENT_ID", ""), "appointment_id metadata")
		intent      = flag.String("payment-intent", getenv("PAYMENT_INTENT", ""), "payment intent id (default: generated)")
		unpaid      = flag.Bool("unpaid", false, "mark the session unpaid (delayed payment methods)")
		secret      = flag.String("secret", getenv("STRIPE_WEBHOOK_SECRET", ""), "stripe webhook signing secret (whsec_...)")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("STRIPE_WEBHOOK_SECRET is required")
	}
	if strings.TrimSpace(*appointment) == "" {
		fatal("APPOINTMENT_ID is required")
	}

	now := time.Now().UTC()
	eventID := fmt.Sprintf("evt_test_%d", now.UnixNano())
	if *intent == "" {
		*intent = fmt.Sprintf("pi_test_%d", now.UnixNano())
	}

	payload, err := buildEventJSON(eventID, *evtType, now, *appointment, *intent, !*unpaid)
	if err != nil {
		fatal(err.Error())
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    *secret,
		Timestamp: now,
		Scheme:    "v1",
	})

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+"/api/v1/payments/webhooks/stripe", bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	fmt.Printf("event=%s status=%d body=%s\n", eventID, resp.StatusCode, strings.TrimSpace(string(body)))
}

func buildEventJSON(eventID, eventType string, t time.Time, appointmentID, paymentIntent string, paid bool) ([]byte, error) {
	session := map[string]any{
		"id":                  "cs_test_" + appointmentID,
		"object":              "checkout.session",
		"client_reference_id": appointmentID,
		"metadata":            map[string]any{"appointment_id": appointmentID},
	}
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		session["status"] = "complete"
		session["payment_status"] = "unpaid"
		if paid {
			session["payment_status"] = "paid"
			session["payment_intent"] = paymentIntent
		}
	case "checkout.session.expired":
		session["status"] = "expired"
		session["payment_status"] = "unpaid"
	default:
		return nil, fmt.Errorf("unsupported event type: %s", eventType)
	}
	return json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"created":     t.Unix(),
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": session},
	})
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
