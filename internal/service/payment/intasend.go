package payment

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/flipwise/flipwise/internal/apperr"
	"github.com/flipwise/flipwise/internal/config"
	"github.com/flipwise/flipwise/internal/model"
)

const (
	intasendLinkPath     = "/api/v1/paymentlinks/"
	maxProviderBodyBytes = 1 << 20
)

type IntaSendGateway struct {
	secretKey     string
	baseURL       string
	challenge     string
	webhookSecret string
	client        *http.Client
}

func NewIntaSendGateway(cfg *config.Config) *IntaSendGateway {
	if cfg.IntaSendSecretKey == "" {
		slog.Warn("intasend secret key not set, payment links will fail")
	}

	return &IntaSendGateway{
		secretKey:     cfg.IntaSendSecretKey,
		baseURL:       strings.TrimRight(cfg.IntaSendBaseURL, "/"),
		challenge:     cfg.IntaSendWebhookChallenge,
		webhookSecret: cfg.IntaSendWebhookSecret,
		client:        &http.Client{Timeout: cfg.PaymentTimeout},
	}
}

func (g *IntaSendGateway) Name() string {
	return model.ProviderIntaSend
}

type intasendLinkRequest struct {
	Title       string           `json:"title"`
	Amount      float64          `json:"amount"`
	Currency    string           `json:"currency"`
	Description string           `json:"description"`
	RedirectURL string           `json:"redirect_url"`
	Metadata    intasendMetadata `json:"metadata"`
}

type intasendMetadata struct {
	UserID flexString `json:"user_id"`
}

type intasendLinkResponse struct {
	URL         string `json:"url"`
	PaymentLink string `json:"payment_link"`
	Link        string `json:"link"`
}

func (g *IntaSendGateway) CreateLink(ctx context.Context, req LinkRequest) (*Link, error) {
	if g.secretKey == "" {
		return nil, apperr.Configuration("Payment gateway not configured on server")
	}

	err := validateAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(intasendLinkRequest{
		Title:       req.Title,
		Amount:      *req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		RedirectURL: req.RedirectURL,
		Metadata:    intasendMetadata{UserID: flexString(req.UserID)},
	})
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to encode payment link request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+intasendLinkPath, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to build payment link request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		slog.Warn("intasend request failed", "user_id", req.UserID, "duration", time.Since(start), "error", err)
		return nil, upstreamError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBodyBytes))
	if err != nil {
		return nil, upstreamError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("intasend rejected payment link", "user_id", req.UserID, "status", resp.StatusCode)
		return nil, apperr.Upstream(resp.StatusCode, string(respBody), fmt.Errorf("intasend returned status %d", resp.StatusCode))
	}

	var parsed intasendLinkResponse
	raw := json.RawMessage(respBody)
	if json.Valid(respBody) {
		_ = json.Unmarshal(respBody, &parsed)
	} else {
		raw, _ = json.Marshal(string(respBody))
	}

	link := &Link{
		URL: firstNonEmpty(parsed.URL, parsed.PaymentLink, parsed.Link),
		Raw: raw,
	}

	slog.Info("intasend payment link created", "user_id", req.UserID, "duration", time.Since(start))
	return link, nil
}

type intasendWebhook struct {
	Challenge string               `json:"challenge"`
	Status    string               `json:"status"`
	State     string               `json:"state"`
	InvoiceID string               `json:"invoice_id"`
	Data      *intasendWebhookData `json:"data"`
}

type intasendWebhookData struct {
	ID        string           `json:"id"`
	InvoiceID string           `json:"invoice_id"`
	Status    string           `json:"status"`
	State     string           `json:"state"`
	Metadata  intasendMetadata `json:"metadata"`
}

func (g *IntaSendGateway) ParseWebhook(payload []byte, headers http.Header) (*model.PaymentEvent, error) {
	if g.webhookSecret != "" {
		err := verifyStandardWebhook(g.webhookSecret, payload, headers)
		if err != nil {
			return nil, err
		}
	}

	var w intasendWebhook
	err := json.Unmarshal(payload, &w)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}

	if g.challenge != "" {
		if subtle.ConstantTimeCompare([]byte(w.Challenge), []byte(g.challenge)) != 1 {
			return nil, fmt.Errorf("%w: challenge mismatch", ErrWebhookVerification)
		}
	} else if g.webhookSecret == "" {
		slog.Warn("intasend webhook not verified, no challenge or secret configured")
	}

	data := intasendWebhookData{}
	if w.Data != nil {
		data = *w.Data
	}

	rawStatus := firstNonEmpty(data.Status, w.Status)
	state := firstNonEmpty(data.State, w.State)
	invoiceID := firstNonEmpty(data.ID, data.InvoiceID, w.InvoiceID)

	return &model.PaymentEvent{
		Provider:  g.Name(),
		EventID:   firstNonEmpty(headers.Get("webhook-id"), invoiceID),
		InvoiceID: invoiceID,
		Status:    intasendStatus(rawStatus, state),
		RawStatus: firstNonEmpty(rawStatus, state),
		UserID:    strings.TrimSpace(string(data.Metadata.UserID)),
		Payload:   payload,
	}, nil
}

// intasendStatus maps a payment link status or a collection state.
func intasendStatus(status, state string) model.PaymentStatus {
	switch strings.ToLower(status) {
	case "paid":
		return model.PaymentStatusPaid
	case "pending", "processing":
		return model.PaymentStatusPending
	case "failed", "cancelled", "canceled":
		return model.PaymentStatusFailed
	}

	switch strings.ToUpper(state) {
	case "COMPLETE":
		return model.PaymentStatusPaid
	case "PENDING", "PROCESSING":
		return model.PaymentStatusPending
	case "FAILED":
		return model.PaymentStatusFailed
	}

	return model.PaymentStatusUnknown
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
