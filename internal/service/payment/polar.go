package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/flipwise/flipwise/internal/apperr"
	"github.com/flipwise/flipwise/internal/config"
	"github.com/flipwise/flipwise/internal/model"
	polargo "github.com/polarsource/polar-go"
	"github.com/polarsource/polar-go/models/components"
)

type PolarGateway struct {
	apiKey        string
	productID     string
	webhookSecret string
	timeout       time.Duration
	client        *polargo.Polar
}

func NewPolarGateway(cfg *config.Config) *PolarGateway {
	var serverOption polargo.SDKOption
	if cfg.PolarSandboxMode {
		serverOption = polargo.WithServer(polargo.ServerSandbox)
		slog.Info("polar using sandbox mode", "app_env", cfg.AppEnv)
	} else {
		serverOption = polargo.WithServer(polargo.ServerProduction)
		slog.Info("polar using production mode", "app_env", cfg.AppEnv)
	}

	client := polargo.New(
		polargo.WithSecurity(cfg.PolarAPIKey),
		serverOption,
	)

	return &PolarGateway{
		apiKey:        cfg.PolarAPIKey,
		productID:     cfg.PolarProductIDPremium,
		webhookSecret: cfg.PolarWebhookSecret,
		timeout:       cfg.PaymentTimeout,
		client:        client,
	}
}

func (p *PolarGateway) Name() string {
	return model.ProviderPolar
}

// CreateLink opens a checkout for the premium product. The product's price
// is authoritative; the requested amount is only validated.
func (p *PolarGateway) CreateLink(ctx context.Context, req LinkRequest) (*Link, error) {
	if p.apiKey == "" || p.productID == "" {
		return nil, apperr.Configuration("Payment gateway not configured on server")
	}

	err := validateAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	metadata := map[string]components.CheckoutCreateMetadata{
		"user_id": components.CreateCheckoutCreateMetadataStr(req.UserID),
	}

	res, err := p.client.Checkouts.Create(ctx, components.CheckoutCreate{
		Products:   []string{p.productID},
		SuccessURL: polargo.String(req.RedirectURL),
		ReturnURL:  polargo.String(req.RedirectURL),
		Metadata:   metadata,
	})
	if err != nil {
		return nil, upstreamError(err)
	}

	if res == nil || res.Checkout == nil {
		return nil, apperr.Upstream(0, "", fmt.Errorf("checkout response is nil"))
	}

	raw, err := json.Marshal(res.Checkout)
	if err != nil {
		raw = nil
	}

	slog.Info("polar checkout created", "user_id", req.UserID, "checkout_id", res.Checkout.ID)
	return &Link{URL: res.Checkout.URL, Raw: raw}, nil
}

type polarOrder struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Metadata struct {
		UserID flexString `json:"user_id"`
	} `json:"metadata"`
}

func (p *PolarGateway) ParseWebhook(payload []byte, headers http.Header) (*model.PaymentEvent, error) {
	if p.webhookSecret == "" {
		slog.Warn("polar no webhook secret configured, skipping signature verification")
	} else {
		err := verifyStandardWebhook(p.webhookSecret, payload, headers)
		if err != nil {
			return nil, err
		}
	}

	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	err := json.Unmarshal(payload, &event)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}

	slog.Info("polar webhook received", "event_type", event.Type)

	ev := &model.PaymentEvent{
		Provider:  p.Name(),
		EventID:   headers.Get("webhook-id"),
		Status:    model.PaymentStatusUnknown,
		RawStatus: event.Type,
		Payload:   payload,
	}

	if event.Type != "order.paid" {
		return ev, nil
	}

	var order polarOrder
	err = json.Unmarshal(event.Data, &order)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}

	ev.InvoiceID = order.ID
	ev.UserID = string(order.Metadata.UserID)
	ev.Status = model.PaymentStatusPaid
	if order.Status != "" {
		ev.RawStatus = order.Status
	}
	if ev.EventID == "" {
		ev.EventID = order.ID
	}

	return ev, nil
}
