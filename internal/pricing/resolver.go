// Package pricing resolves product SKUs to Stripe price ids from layered
// configuration and reports which layer answered.
package pricing

import (
	"context"
	"fmt"
	"strings"

	"skrbl/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Source tags the layer that resolved a SKU.
type Source string

const (
	SourceStatic    Source = "static"
	SourceEnvDirect Source = "env-direct"
	SourceEnvJSON   Source = "env-json"
	SourceNone      Source = "none"
)

const (
	// DefaultEnvPrefix prefixes per-SKU variables.
	DefaultEnvPrefix = "STRIPE_PRICE_"
	// DefaultJSONKey holds the JSON SKU to price map.
	DefaultJSONKey = "STRIPE_PRICES_JSON"

	// PrefixSettingKey and JSONKeySettingKey configure the two names above.
	// They share the per-SKU namespace, so env-direct never reads them.
	PrefixSettingKey  = "STRIPE_PRICE_PREFIX"
	JSONKeySettingKey = "STRIPE_PRICES_JSON_KEY"
)

// DefaultStaticPrices are the SKUs whose prices ship with the service.
var DefaultStaticPrices = map[string]string{
	"skrbl_pro_monthly":     "price_1PskrblProMonthly",
	"skrbl_pro_yearly":      "price_1PskrblProYearly",
	"skrbl_business_annual": "price_1PskrblBusinessAnnual",
}

// Resolution is the outcome of resolving one SKU. PriceID is non-empty
// exactly when Found is true.
type Resolution struct {
	SKU     string `json:"sku"`
	PriceID string `json:"price_id,omitempty"`
	Source  Source `json:"source"`
	Found   bool   `json:"found"`
}

// Err returns a NotFoundError for misses and nil otherwise.
func (r Resolution) Err() error {
	if r.Found {
		return nil
	}
	return &NotFoundError{SKU: r.SKU}
}

// NotFoundError reports a SKU no layer could resolve.
type NotFoundError struct {
	SKU string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no price configured for sku=%s", e.SKU)
}

// Attempt describes one layer consulted while resolving a SKU.
type Attempt struct {
	Source Source `json:"source"`
	Key    string `json:"key"`
	Hit    bool   `json:"hit"`
}

// Resolver runs its strategies in order and stops at the first hit.
type Resolver struct {
	cfg        ConfigProvider
	strategies []Strategy
}

// Option customizes a Resolver.
type Option func(*options)

type options struct {
	static  map[string]string
	prefix  string
	jsonKey string
}

// WithStaticTable replaces the compiled-in table.
func WithStaticTable(table map[string]string) Option {
	return func(o *options) { o.static = table }
}

// WithEnvPrefix sets the prefix of per-SKU variables.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithJSONKey sets the variable holding the JSON price map.
func WithJSONKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.jsonKey = key
		}
	}
}

// NewResolver builds the static, env-direct, env-json chain over cfg.
func NewResolver(cfg ConfigProvider, opts ...Option) *Resolver {
	o := options{
		static:  DefaultStaticPrices,
		prefix:  DefaultEnvPrefix,
		jsonKey: DefaultJSONKey,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return NewResolverWithStrategies(cfg,
		NewStaticStrategy(o.static),
		NewEnvDirectStrategy(o.prefix, PrefixSettingKey, JSONKeySettingKey, o.jsonKey),
		NewEnvJSONStrategy(o.jsonKey),
	)
}

// NewResolverWithStrategies builds a resolver over an explicit chain.
func NewResolverWithStrategies(cfg ConfigProvider, strategies ...Strategy) *Resolver {
	if cfg == nil {
		cfg = MapProvider{}
	}
	return &Resolver{cfg: cfg, strategies: strategies}
}

// Resolve maps sku to a price id. It never fails: a SKU no layer knows,
// an empty SKU and unreadable configuration all yield a Resolution with
// Source none.
func (r *Resolver) Resolve(ctx context.Context, sku string) Resolution {
	_, span := observability.StartSpan(ctx, "pricing.Resolve", attribute.String("sku", sku))
	defer span.End()

	res := Resolution{SKU: sku, Source: SourceNone}
	if strings.TrimSpace(sku) != "" {
		for _, s := range r.strategies {
			if priceID, ok := s.Lookup(ctx, sku, r.cfg); ok {
				res.PriceID = priceID
				res.Source = s.Source()
				res.Found = true
				break
			}
		}
	}

	span.SetAttributes(attribute.String("price.source", string(res.Source)))
	observability.PriceResolutions.WithLabelValues(string(res.Source)).Inc()
	return res
}

// Explain consults every layer for sku, without stopping at the first hit,
// and reports what each one returned.
func (r *Resolver) Explain(ctx context.Context, sku string) []Attempt {
	attempts := make([]Attempt, 0, len(r.strategies))
	if strings.TrimSpace(sku) == "" {
		return attempts
	}
	for _, s := range r.strategies {
		_, hit := s.Lookup(ctx, sku, r.cfg)
		attempts = append(attempts, Attempt{Source: s.Source(), Key: s.Key(sku), Hit: hit})
	}
	return attempts
}
