package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/flipwise/flipwise/internal/ctxkeys"
	"github.com/flipwise/flipwise/internal/service"
	"github.com/flipwise/flipwise/internal/service/payment"
)

const (
	defaultCurrency = "KES"
	defaultTitle    = "Flipwise Pro"
)

type BillingHandler struct {
	gateway            payment.Gateway
	entitlementService *service.EntitlementService
	appURL             string
}

func NewBillingHandler(gateway payment.Gateway, entitlementService *service.EntitlementService, appURL string) *BillingHandler {
	return &BillingHandler{
		gateway:            gateway,
		entitlementService: entitlementService,
		appURL:             strings.TrimRight(appURL, "/"),
	}
}

type paymentLinkRequest struct {
	Amount      *float64 `json:"amount"`
	Currency    string   `json:"currency"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

type paymentLinkResponse struct {
	Success          bool            `json:"success"`
	URL              string          `json:"url"`
	ProviderResponse json.RawMessage `json:"provider_response,omitempty"`
}

func (h *BillingHandler) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	userID := ctxkeys.UserID(r.Context())

	var req paymentLinkRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	linkReq := payment.LinkRequest{
		UserID:      userID,
		Amount:      req.Amount,
		Currency:    strings.TrimSpace(req.Currency),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		RedirectURL: h.appURL + "/",
	}
	if linkReq.Currency == "" {
		linkReq.Currency = defaultCurrency
	}
	if linkReq.Title == "" {
		linkReq.Title = defaultTitle
	}

	link, err := h.gateway.CreateLink(r.Context(), linkReq)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("payment link created", "user_id", userID, "provider", h.gateway.Name())
	writeJSON(w, http.StatusOK, paymentLinkResponse{
		Success:          true,
		URL:              link.URL,
		ProviderResponse: link.Raw,
	})
}

// Webhook acknowledges every delivery it has dealt with, including rejected
// and unreadable ones, so providers stop retrying. Only a persistence
// failure asks for a redelivery.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		reason := "unreadable payload"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reason = "payload too large"
		}
		slog.Warn("webhook rejected",
			"provider", h.gateway.Name(),
			"outcome", service.OutcomeRejected,
			"reason", reason,
			"request_id", ctxkeys.RequestID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	res := h.entitlementService.Process(r.Context(), payload, r.Header)

	if res.Outcome == service.OutcomeFailed {
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"received": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
