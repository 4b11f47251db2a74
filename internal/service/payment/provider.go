package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/flipwise/flipwise/internal/apperr"
	"github.com/flipwise/flipwise/internal/model"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
)

var (
	ErrWebhookVerification = errors.New("webhook verification failed")
	ErrMalformedWebhook    = errors.New("malformed webhook payload")
)

// Gateway creates hosted payment links and turns provider webhooks into
// verified payment events.
type Gateway interface {
	// Name returns the provider name (e.g., "intasend", "stripe")
	Name() string

	// CreateLink asks the provider for a payment page tagged with the user
	// id. Credentials are checked before the amount, and an invalid amount
	// never reaches the provider.
	CreateLink(ctx context.Context, req LinkRequest) (*Link, error)

	// ParseWebhook authenticates and normalizes an inbound notification.
	ParseWebhook(payload []byte, headers http.Header) (*model.PaymentEvent, error)
}

type LinkRequest struct {
	UserID      string
	Amount      *float64
	Currency    string
	Title       string
	Description string
	RedirectURL string
}

type Link struct {
	URL string
	// Raw is the provider's response body, passed through to the client.
	Raw json.RawMessage
}

func validateAmount(amount *float64) error {
	if amount == nil {
		return apperr.Validation("Amount is required")
	}
	if *amount <= 0 {
		return apperr.Validation("Amount must be greater than zero")
	}
	return nil
}

// upstreamError classifies a failed outbound call. A timeout leaves the
// link state unknown.
func upstreamError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.UpstreamTimeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.UpstreamTimeout(err)
	}
	return apperr.Upstream(0, "", err)
}

// verifyStandardWebhook checks webhook-id, webhook-timestamp and
// webhook-signature headers against the shared secret.
func verifyStandardWebhook(secret string, payload []byte, headers http.Header) error {
	wh, err := standardwebhooks.NewWebhookRaw([]byte(secret))
	if err != nil {
		return fmt.Errorf("failed to create webhook verifier: %w", err)
	}

	httpHeaders := http.Header{}
	httpHeaders.Set("webhook-id", headers.Get("webhook-id"))
	httpHeaders.Set("webhook-timestamp", headers.Get("webhook-timestamp"))
	httpHeaders.Set("webhook-signature", headers.Get("webhook-signature"))

	err = wh.Verify(payload, httpHeaders)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookVerification, err)
	}
	return nil
}

// flexString accepts a JSON string or number. Provider metadata echoes the
// user id back in whatever form the provider chose.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		err := json.Unmarshal(data, &s)
		if err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}

	var n json.Number
	err := json.Unmarshal(data, &n)
	if err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}
