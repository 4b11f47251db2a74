package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/flipwise/flipwise/internal/apperr"
	"github.com/flipwise/flipwise/internal/config"
	"github.com/flipwise/flipwise/internal/model"
	"github.com/stripe/stripe-go/v81"
	checkoutsession "github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
)

type StripeGateway struct {
	secretKey     string
	webhookSecret string
	timeout       time.Duration
}

func NewStripeGateway(cfg *config.Config) *StripeGateway {
	if cfg.StripeSecretKey != "" {
		stripe.Key = cfg.StripeSecretKey
	} else {
		slog.Warn("stripe secret key not set, payment links will fail")
	}

	slog.Info("stripe gateway initialized", "app_env", cfg.AppEnv)

	return &StripeGateway{
		secretKey:     cfg.StripeSecretKey,
		webhookSecret: cfg.StripeWebhookSecret,
		timeout:       cfg.PaymentTimeout,
	}
}

func (s *StripeGateway) Name() string {
	return model.ProviderStripe
}

func (s *StripeGateway) CreateLink(ctx context.Context, req LinkRequest) (*Link, error) {
	if s.secretKey == "" {
		return nil, apperr.Configuration("Payment gateway not configured on server")
	}

	err := validateAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.Title),
	}
	if req.Description != "" {
		productData.Description = stripe.String(req.Description)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.RedirectURL),
		CancelURL:         stripe.String(req.RedirectURL),
		ClientReferenceID: stripe.String(req.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(strings.ToLower(req.Currency)),
					UnitAmount:  stripe.Int64(toMinorUnits(*req.Amount, req.Currency)),
					ProductData: productData,
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"user_id": req.UserID,
		},
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, apperr.Upstream(stripeErr.HTTPStatusCode, stripeErr.Msg, err)
		}
		return nil, upstreamError(err)
	}

	raw := json.RawMessage(nil)
	if sess.LastResponse != nil && len(sess.LastResponse.RawJSON) > 0 {
		raw = sess.LastResponse.RawJSON
	} else {
		raw, _ = json.Marshal(sess)
	}

	slog.Info("stripe checkout created", "user_id", req.UserID, "session_id", sess.ID)
	return &Link{URL: sess.URL, Raw: raw}, nil
}

// Currencies Stripe does not express in hundredths.
var (
	zeroDecimalCurrencies = map[string]bool{
		"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
		"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
		"vuv": true, "xaf": true, "xof": true, "xpf": true,
	}
	threeDecimalCurrencies = map[string]bool{
		"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true,
	}
)

// toMinorUnits converts a decimal amount to the smallest unit Stripe
// charges in for currency.
func toMinorUnits(amount float64, currency string) int64 {
	currency = strings.ToLower(currency)
	switch {
	case zeroDecimalCurrencies[currency]:
		return int64(math.Round(amount))
	case threeDecimalCurrencies[currency]:
		// Stripe requires the last digit to be zero.
		return int64(math.Round(amount*100)) * 10
	default:
		return int64(math.Round(amount * 100))
	}
}

type stripeCheckoutSession struct {
	ID                string            `json:"id"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

func (s *StripeGateway) ParseWebhook(payload []byte, headers http.Header) (*model.PaymentEvent, error) {
	var event stripe.Event

	if s.webhookSecret == "" {
		slog.Warn("stripe webhook not verified, no webhook secret configured")
		err := json.Unmarshal(payload, &event)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
		}
	} else {
		// Stripe's API versions are backwards compatible for the fields read here
		verified, err := webhook.ConstructEventWithOptions(
			payload,
			headers.Get("Stripe-Signature"),
			s.webhookSecret,
			webhook.ConstructEventOptions{
				IgnoreAPIVersionMismatch: true,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWebhookVerification, err)
		}
		event = verified
	}

	slog.Info("stripe webhook received", "event_type", event.Type, "event_id", event.ID)

	ev := &model.PaymentEvent{
		Provider:  s.Name(),
		EventID:   event.ID,
		Status:    model.PaymentStatusUnknown,
		RawStatus: string(event.Type),
		Payload:   payload,
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
	case "checkout.session.async_payment_failed":
		ev.Status = model.PaymentStatusFailed
		return ev, nil
	default:
		return ev, nil
	}

	if event.Data == nil {
		return nil, fmt.Errorf("%w: event has no data", ErrMalformedWebhook)
	}

	var session stripeCheckoutSession
	err := json.Unmarshal(event.Data.Raw, &session)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}

	ev.InvoiceID = session.ID
	ev.UserID = firstNonEmpty(session.Metadata["user_id"], session.ClientReferenceID)
	ev.RawStatus = session.PaymentStatus
	if session.PaymentStatus == "paid" {
		ev.Status = model.PaymentStatusPaid
	} else {
		ev.Status = model.PaymentStatusPending
	}

	return ev, nil
}
