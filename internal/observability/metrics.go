package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skrbl_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// RoleResolutions counts effective-role resolutions by resulting role and outcome.
	RoleResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skrbl_role_resolutions_total",
		Help: "Effective role resolutions by role and outcome",
	}, []string{"role", "outcome"})

	// PriceResolutions counts SKU to price resolutions by the source that satisfied them.
	PriceResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skrbl_price_resolutions_total",
		Help: "SKU price resolutions by source",
	}, []string{"source"})

	// CheckoutSessions counts checkout session attempts by outcome.
	CheckoutSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skrbl_checkout_sessions_total",
		Help: "Checkout session attempts by outcome",
	}, []string{"outcome"})

	// WebhookEvents counts Stripe webhook deliveries by event type and outcome.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skrbl_stripe_webhook_events_total",
		Help: "Stripe webhook events by type and outcome",
	}, []string{"type", "outcome"})

	// StripeLatency records Stripe API call latency by operation.
	StripeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skrbl_stripe_request_duration_seconds",
		Help:    "Stripe API call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)
