package payment

import (
	"context"
	"errors"
	"testing"
)

func TestFactory_Noop(t *testing.T) {
	p, err := New(Config{Mode: "none"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p.Name() != "noop" {
		t.Errorf("Name = %s, want noop", p.Name())
	}

	p, err = New(Config{})
	if err != nil {
		t.Fatalf("new with empty mode: %v", err)
	}
	if p.Name() != "noop" {
		t.Errorf("empty mode should default to noop, got %s", p.Name())
	}
}

func TestFactory_StripeRequiresKey(t *testing.T) {
	if _, err := New(Config{Mode: "stripe"}); err == nil {
		t.Fatal("expected error for stripe without key")
	}

	p, err := New(Config{Mode: "stripe", StripeKey: "sk_test_123"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p.Name() != "stripe" {
		t.Errorf("Name = %s, want stripe", p.Name())
	}
}

func TestFactory_UnknownMode(t *testing.T) {
	if _, err := New(Config{Mode: "paypal"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestNoopProvider_SessionsFail(t *testing.T) {
	p := NewNoopProvider()
	ctx := context.Background()

	if _, err := p.CreatePortalSession(ctx, "cus_1", "https://example.com"); !errors.Is(err, ErrBillingDisabled) {
		t.Errorf("portal session err = %v, want ErrBillingDisabled", err)
	}
	if _, err := p.CreateCheckoutSession(ctx, "cus_1", "user-1", "price_1", "https://a", "https://b"); !errors.Is(err, ErrBillingDisabled) {
		t.Errorf("checkout session err = %v, want ErrBillingDisabled", err)
	}
	if _, _, err := p.ParseWebhook(nil, ""); !errors.Is(err, ErrBillingDisabled) {
		t.Errorf("parse webhook err = %v, want ErrBillingDisabled", err)
	}
}
