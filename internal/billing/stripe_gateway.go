package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"skrbl/internal/observability"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"go.opentelemetry.io/otel/attribute"
)

// ErrProviderDown reports a Stripe-side outage.
var ErrProviderDown = errors.New("payment provider unavailable")

// StripeGateway implements CheckoutGateway with the Stripe API.
type StripeGateway struct {
	client *client.API
}

// NewStripeGateway creates a gateway for apiKey. backends may be nil to use
// Stripe's default endpoints.
func NewStripeGateway(apiKey string, backends *stripe.Backends) *StripeGateway {
	sc := &client.API{}
	sc.Init(apiKey, backends)
	return &StripeGateway{client: sc}
}

// CreateSession opens a hosted checkout session with one line item.
func (g *StripeGateway) CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	ctx, span := observability.StartClientSpan(ctx, "stripe.checkout.sessions.create",
		attribute.String("stripe.mode", req.Mode),
		attribute.String("stripe.price_id", req.PriceID),
	)
	defer span.End()

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(req.Mode),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(req.Quantity),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	// Subscription events only carry the subscription's own metadata.
	if req.Mode == ModeSubscription && len(req.Metadata) > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: make(map[string]string, len(req.Metadata)),
		}
		for k, v := range req.Metadata {
			params.SubscriptionData.Metadata[k] = v
		}
	}
	params.Context = ctx

	start := time.Now()
	cs, err := g.client.CheckoutSessions.New(params)
	observability.StripeLatency.WithLabelValues("checkout_session_create").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.RecordError(span, err)
		return nil, mapStripeError(err)
	}

	span.SetAttributes(attribute.String("stripe.session_id", cs.ID))
	return &CheckoutSession{ID: cs.ID, URL: cs.URL}, nil
}

// mapStripeError converts stripe-go errors into billing errors so callers
// do not depend on the Stripe SDK.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %s", ErrProviderDown, stripeErr.Msg)
		}
		return fmt.Errorf("stripe rejected request (%s): %s", stripeErr.Code, stripeErr.Msg)
	}
	return fmt.Errorf("stripe request failed: %w", err)
}
