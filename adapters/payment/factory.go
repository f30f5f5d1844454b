package payment

import (
	"fmt"

	"github.com/artpar/tollgate/ports"
)

// Config selects and configures a billing provider.
type Config struct {
	Mode          string // "none" or "stripe"
	StripeKey     string
	WebhookSecret string
}

// New creates a billing provider from config.
func New(cfg Config) (ports.BillingProvider, error) {
	switch cfg.Mode {
	case "", "none":
		return NewNoopProvider(), nil
	case "stripe":
		if cfg.StripeKey == "" {
			return nil, fmt.Errorf("stripe billing requires a secret key")
		}
		return NewStripeProvider(StripeConfig{
			SecretKey:     cfg.StripeKey,
			WebhookSecret: cfg.WebhookSecret,
		}), nil
	default:
		return nil, fmt.Errorf("unknown billing mode %q", cfg.Mode)
	}
}
