package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/artpar/tollgate/domain/subscription"
	"github.com/artpar/tollgate/domain/tier"
	"github.com/artpar/tollgate/ports"
	"github.com/rs/zerolog"
)

// WebhookService applies billing provider lifecycle events to the
// subscription store. It is the only writer of tier, status, and period
// fields; the entitlement read paths never touch them.
type WebhookService struct {
	subs     ports.SubscriptionStore
	provider ports.BillingProvider
	idGen    ports.IDGenerator
	logger   zerolog.Logger

	// tierFor maps provider price ids back to tiers; hot-reloadable
	// alongside the billing price map.
	tierFor atomic.Pointer[map[string]tier.ID]
}

// WebhookDeps contains dependencies for the webhook service.
type WebhookDeps struct {
	Subscriptions ports.SubscriptionStore
	Provider      ports.BillingProvider
	IDGen         ports.IDGenerator
	// PriceIDs maps tiers to provider price ids (same map the billing
	// service uses); the service inverts it to map events back to tiers.
	PriceIDs map[tier.ID]string
	Logger   zerolog.Logger
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(deps WebhookDeps) *WebhookService {
	s := &WebhookService{
		subs:     deps.Subscriptions,
		provider: deps.Provider,
		idGen:    deps.IDGen,
		logger:   deps.Logger,
	}
	s.Reload(deps.PriceIDs)
	return s
}

// Reload swaps the price-to-tier mapping without a restart.
func (s *WebhookService) Reload(priceIDs map[tier.ID]string) {
	inverse := make(map[string]tier.ID, len(priceIDs))
	for t, price := range priceIDs {
		if price != "" {
			inverse[price] = t
		}
	}
	s.tierFor.Store(&inverse)
}

// ErrBadSignature marks a webhook payload that failed provider
// verification. Unverified payloads never reach Apply.
var ErrBadSignature = errors.New("webhook signature verification failed")

// Ingest verifies and applies one raw webhook delivery.
func (s *WebhookService) Ingest(ctx context.Context, payload []byte, signature string) error {
	eventType, data, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return s.Apply(ctx, eventType, data)
}

// Apply routes one verified provider event to its handler. Unhandled
// event types are ignored, not errors; providers send far more than we
// subscribe to.
func (s *WebhookService) Apply(ctx context.Context, eventType string, data map[string]any) error {
	switch eventType {
	case "checkout.session.completed":
		return s.applyCheckoutCompleted(ctx, data)
	case "customer.subscription.created", "customer.subscription.updated":
		return s.applySubscriptionChanged(ctx, data, false)
	case "customer.subscription.deleted":
		return s.applySubscriptionChanged(ctx, data, true)
	default:
		s.logger.Debug().Str("event", eventType).Msg("ignoring webhook event")
		return nil
	}
}

// applyCheckoutCompleted links the provider customer to the user who
// started the checkout. The subscription details follow in a separate
// customer.subscription.created event.
func (s *WebhookService) applyCheckoutCompleted(ctx context.Context, data map[string]any) error {
	customerID, _ := data["customer"].(string)
	userID, _ := data["client_reference_id"].(string)
	if customerID == "" || userID == "" {
		return errors.New("checkout event missing customer or client_reference_id")
	}

	if err := s.subs.SetBillingCustomer(ctx, userID, customerID); err != nil {
		return fmt.Errorf("link billing customer: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Msg("checkout completed, billing customer linked")
	return nil
}

func (s *WebhookService) applySubscriptionChanged(ctx context.Context, data map[string]any, deleted bool) error {
	customerID, _ := data["customer"].(string)
	if customerID == "" {
		return errors.New("subscription event missing customer")
	}

	rec, err := s.subs.GetByBillingCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			// Customer unknown to us: either a foreign environment's
			// event or the checkout link has not landed yet. Log and
			// acknowledge; the provider retries nothing we need.
			s.logger.Warn().Str("customer_id", customerID).Msg("subscription event for unknown customer")
			return nil
		}
		return fmt.Errorf("find subscription: %w", err)
	}

	if deleted {
		rec.Status = subscription.StatusCanceled
	} else {
		status, ok := subscription.ParseStatus(stringField(data, "status"))
		if !ok {
			s.logger.Warn().
				Str("status", stringField(data, "status")).
				Msg("unrecognized subscription status, treating as none")
		}
		rec.Status = status
	}

	if t, ok := s.tierForEvent(data); ok {
		rec.TierID = t
	}
	if start := unixField(data, "current_period_start"); !start.IsZero() {
		rec.CurrentPeriodStart = start
	}
	if end := unixField(data, "current_period_end"); !end.IsZero() {
		rec.CurrentPeriodEnd = end
	}
	if rec.ID == "" {
		rec.ID = s.idGen.New()
	}

	if err := s.subs.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	s.logger.Info().
		Str("user_id", rec.UserID).
		Str("tier_id", string(rec.TierID)).
		Str("status", string(rec.Status)).
		Msg("subscription record updated from webhook")
	return nil
}

// tierForEvent extracts the price id from the event's first line item and
// maps it to a tier.
func (s *WebhookService) tierForEvent(data map[string]any) (tier.ID, bool) {
	items, _ := data["items"].(map[string]any)
	list, _ := items["data"].([]any)
	if len(list) == 0 {
		return "", false
	}
	first, _ := list[0].(map[string]any)
	price, _ := first["price"].(map[string]any)
	priceID, _ := price["id"].(string)

	t, ok := (*s.tierFor.Load())[priceID]
	return t, ok
}

func stringField(data map[string]any, key string) string {
	v, _ := data[key].(string)
	return v
}

// unixField reads a unix-seconds timestamp; provider JSON decodes numbers
// as float64.
func unixField(data map[string]any, key string) time.Time {
	v, ok := data[key].(float64)
	if !ok || v == 0 {
		return time.Time{}
	}
	return time.Unix(int64(v), 0).UTC()
}
