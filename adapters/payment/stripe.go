// Package payment provides billing provider adapters.
package payment

import (
	"context"
	"encoding/json"

	"github.com/artpar/tollgate/ports"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeConfig holds Stripe configuration.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// StripeProvider implements ports.BillingProvider for Stripe.
type StripeProvider struct {
	config StripeConfig
}

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(config StripeConfig) *StripeProvider {
	stripe.Key = config.SecretKey
	return &StripeProvider{config: config}
}

// Name returns the provider name.
func (p *StripeProvider) Name() string {
	return "stripe"
}

// CreateCustomer creates a customer in Stripe. The user id travels in
// metadata so webhook events can be tied back to an account.
func (p *StripeProvider) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	c, err := customer.New(params)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

// CreatePortalSession creates a customer portal session.
func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return "", err
	}
	return s.URL, nil
}

// CreateCheckoutSession creates a Stripe Checkout session in subscription
// mode. ClientReferenceID carries the user id back on the completion
// webhook.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, customerID, clientReferenceID, priceID, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(customerID),
		ClientReferenceID: stripe.String(clientReferenceID),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx

	s, err := checkoutsession.New(params)
	if err != nil {
		return "", err
	}
	return s.URL, nil
}

// ParseWebhook parses and validates a Stripe webhook.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (string, map[string]any, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.config.WebhookSecret)
	if err != nil {
		return "", nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(event.Data.Raw, &data); err != nil {
		return "", nil, err
	}

	return string(event.Type), data, nil
}

// Ensure interface compliance.
var _ ports.BillingProvider = (*StripeProvider)(nil)
