package payment

import (
	"context"
	"errors"

	"github.com/artpar/tollgate/ports"
)

// ErrBillingDisabled is returned by the noop provider for every session
// operation.
var ErrBillingDisabled = errors.New("billing is not configured")

// NoopProvider is used when no billing provider is configured. Reads work
// (everyone stays on the free tier); session operations fail cleanly.
type NoopProvider struct{}

// NewNoopProvider creates a noop billing provider.
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

// Name returns the provider name.
func (p *NoopProvider) Name() string { return "noop" }

// CreateCustomer fails: there is no billing system to create customers in.
func (p *NoopProvider) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	return "", ErrBillingDisabled
}

// CreatePortalSession fails with ErrBillingDisabled.
func (p *NoopProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return "", ErrBillingDisabled
}

// CreateCheckoutSession fails with ErrBillingDisabled.
func (p *NoopProvider) CreateCheckoutSession(ctx context.Context, customerID, clientReferenceID, priceID, successURL, cancelURL string) (string, error) {
	return "", ErrBillingDisabled
}

// ParseWebhook fails: without a provider there is nothing to verify
// signatures against.
func (p *NoopProvider) ParseWebhook(payload []byte, signature string) (string, map[string]any, error) {
	return "", nil, ErrBillingDisabled
}

// Ensure interface compliance.
var _ ports.BillingProvider = (*NoopProvider)(nil)
