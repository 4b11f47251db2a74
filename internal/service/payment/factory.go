package payment

import (
	"fmt"
	"log/slog"

	"github.com/flipwise/flipwise/internal/config"
	"github.com/flipwise/flipwise/internal/model"
)

// NewGateway creates the payment gateway named by configuration. Missing
// credentials are reported when a link is requested, not here.
func NewGateway(cfg *config.Config) (Gateway, error) {
	provider := cfg.PaymentProvider

	slog.Info("initializing payment gateway", "provider", provider)

	switch provider {
	case model.ProviderIntaSend:
		return NewIntaSendGateway(cfg), nil
	case model.ProviderStripe:
		return NewStripeGateway(cfg), nil
	case model.ProviderPolar:
		return NewPolarGateway(cfg), nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s (supported: intasend, stripe, polar)", provider)
	}
}
