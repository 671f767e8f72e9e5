package billing

import (
	"context"
	"fmt"
	"log/slog"

	"skrbl/internal/cache"
	"skrbl/internal/models"
	"skrbl/internal/observability"

	"github.com/stripe/stripe-go/v74"
)

// Outcomes of WebhookService.Handle.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
)

// SubscriptionStore persists subscription state.
type SubscriptionStore interface {
	Upsert(ctx context.Context, sub *models.Subscription) error
}

// WebhookService applies normalized Stripe events exactly once per event id.
type WebhookService struct {
	subs SubscriptionStore
}

// NewWebhookService stores subscription state in subs.
func NewWebhookService(subs SubscriptionStore) *WebhookService {
	return &WebhookService{subs: subs}
}

// Handle applies ev. Stripe redelivers events, so each id is claimed in
// Redis for 24h first; when Redis is unreachable the event is applied
// anyway since the upsert is itself idempotent. A failed apply releases
// the claim so Stripe's retry is processed.
func (s *WebhookService) Handle(ctx context.Context, ev *Event) (string, error) {
	if ev == nil {
		return OutcomeIgnored, nil
	}
	if ev.APIVersion != "" && ev.APIVersion != stripe.APIVersion {
		observability.Logger.WarnContext(ctx, "stripe event api version differs from client",
			slog.String("event_id", ev.ID),
			slog.String("event_api_version", ev.APIVersion),
			slog.String("client_api_version", stripe.APIVersion))
	}

	key := cache.StripeEventKey(ev.ID)
	claimed, err := cache.Claim(ctx, key, cache.StripeEventTTL)
	if err != nil {
		observability.Logger.WarnContext(ctx, "webhook idempotency check unavailable, processing anyway",
			slog.String("event_id", ev.ID), slog.String("error", err.Error()))
		claimed = true
	}
	if !claimed {
		observability.WebhookEvents.WithLabelValues(ev.Type, OutcomeDuplicate).Inc()
		return OutcomeDuplicate, nil
	}

	sub := &models.Subscription{
		UserID:               ev.UserID,
		StripeCustomerID:     ev.CustomerID,
		StripeSubscriptionID: ev.SubscriptionID,
		CheckoutSessionID:    ev.CheckoutSessionID,
		SKU:                  ev.SKU,
		PriceID:              ev.PriceID,
		Status:               ev.Status,
		CustomerEmail:        ev.CustomerEmail,
		CurrentPeriodEnd:     ev.CurrentPeriodEnd,
		LastEventID:          ev.ID,
	}
	if sub.StripeSubscriptionID == "" && sub.CheckoutSessionID == "" {
		observability.WebhookEvents.WithLabelValues(ev.Type, OutcomeIgnored).Inc()
		return OutcomeIgnored, nil
	}

	if err := s.subs.Upsert(ctx, sub); err != nil {
		cache.Invalidate(ctx, key)
		observability.WebhookEvents.WithLabelValues(ev.Type, OutcomeFailed).Inc()
		return OutcomeFailed, fmt.Errorf("apply %s %s: %w", ev.Type, ev.ID, err)
	}

	observability.Logger.InfoContext(ctx, "stripe event applied",
		slog.String("event_id", ev.ID),
		slog.String("type", ev.Type),
		slog.String("status", sub.Status),
	)
	observability.WebhookEvents.WithLabelValues(ev.Type, OutcomeApplied).Inc()
	return OutcomeApplied, nil
}
