package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/notify"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/payments"
)

type paymentGateway interface {
	payments.Gateway
	payments.WebhookVerifier
}

// newPaymentGateway uses Stripe when STRIPE_SECRET_KEY is set and the dry-run
// gateway otherwise.
func newPaymentGateway(logger *slog.Logger) (paymentGateway, payments.WebhookVerifier, error) {
	key := config.String("STRIPE_SECRET_KEY", "")
	if key == "" {
		logger.Warn("STRIPE_SECRET_KEY not set; using dry-run payment gateway")
		g := payments.NewDryRunGateway()
		return g, g, nil
	}
	tolerance, err := config.Duration("STRIPE_WEBHOOK_TOLERANCE", 0)
	if err != nil {
		return nil, nil, err
	}
	g, err := payments.NewStripeGateway(payments.StripeConfig{
		SecretKey:        key,
		WebhookSecret:    config.String("STRIPE_WEBHOOK_SECRET", ""),
		WebhookTolerance: tolerance,
	})
	if err != nil {
		return nil, nil, err
	}
	return g, g, nil
}

func gatewayName(v payments.WebhookVerifier) string {
	if _, ok := v.(*payments.StripeGateway); ok {
		return "stripe"
	}
	return "dry-run"
}

// newSender picks the email provider named by EMAIL_PROVIDER.
func newSender(ctx context.Context, logger *slog.Logger) (notify.Sender, error) {
	fromEmail := config.String("EMAIL_FROM", "no-reply@salonbook.local")
	fromName := config.String("EMAIL_FROM_NAME", "Salon Bookings")

	switch provider := strings.ToLower(config.String("EMAIL_PROVIDER", "log")); provider {
	case "sendgrid":
		s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    config.String("SENDGRID_API_KEY", ""),
			FromEmail: fromEmail,
			FromName:  fromName,
		}, logger)
		if s == nil {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for EMAIL_PROVIDER=sendgrid")
		}
		return s, nil
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: fromEmail,
			FromName:  fromName,
		}, logger), nil
	case "smtp":
		return notify.NewSMTPSender(notify.SMTPConfig{
			Host:     config.String("SMTP_HOST", "localhost"),
			Port:     config.String("SMTP_PORT", "1025"),
			From:     fromEmail,
			Username: config.String("SMTP_USERNAME", ""),
			Password: config.String("SMTP_PASSWORD", ""),
		}), nil
	case "log":
		return notify.NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", provider)
	}
}
