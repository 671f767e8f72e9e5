// Package billing creates Stripe checkout sessions for SKUs and applies
// Stripe webhook events to stored subscriptions.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"skrbl/internal/observability"
	"skrbl/internal/pricing"
)

const (
	ModeSubscription = "subscription"
	ModePayment      = "payment"

	maxQuantity = 100
)

var (
	// ErrPriceNotFound wraps a *pricing.NotFoundError naming the SKU.
	ErrPriceNotFound = errors.New("price not found")
	// ErrGatewayUnavailable means no payment processor is configured.
	ErrGatewayUnavailable = errors.New("payment gateway not configured")
	// ErrInvalidCheckout reports bad caller input.
	ErrInvalidCheckout = errors.New("invalid checkout request")
)

// CheckoutRequest is what the gateway needs to open a hosted checkout page.
type CheckoutRequest struct {
	PriceID           string
	Mode              string
	Quantity          int64
	SuccessURL        string
	CancelURL         string
	CustomerEmail     string
	ClientReferenceID string
	Metadata          map[string]string
}

// CheckoutSession is the gateway's answer: where to send the browser.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutGateway opens checkout sessions with a payment processor.
type CheckoutGateway interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// PriceResolver maps SKUs to price ids.
type PriceResolver interface {
	Resolve(ctx context.Context, sku string) pricing.Resolution
}

// StartCheckoutInput is a caller's checkout request.
type StartCheckoutInput struct {
	SKU        string
	Mode       string
	Quantity   int64
	SuccessURL string
	CancelURL  string
	UserID     *uint
	Email      string
}

// CheckoutResult is returned to the caller of Start.
type CheckoutResult struct {
	SessionID   string         `json:"session_id"`
	URL         string         `json:"url"`
	PriceSource pricing.Source `json:"price_source"`
}

// CheckoutService resolves a SKU and opens a checkout session for it.
type CheckoutService struct {
	prices  PriceResolver
	gateway CheckoutGateway
	baseURL string
}

// NewCheckoutService builds the service. gateway may be nil when Stripe is
// not configured; Start then fails with ErrGatewayUnavailable.
func NewCheckoutService(prices PriceResolver, gateway CheckoutGateway, baseURL string) *CheckoutService {
	return &CheckoutService{
		prices:  prices,
		gateway: gateway,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Start resolves in.SKU and opens a session. An unknown SKU yields an error
// wrapping ErrPriceNotFound and *pricing.NotFoundError.
func (s *CheckoutService) Start(ctx context.Context, in StartCheckoutInput) (*CheckoutResult, error) {
	sku := strings.TrimSpace(in.SKU)
	if sku == "" {
		return nil, fmt.Errorf("%w: sku is required", ErrInvalidCheckout)
	}

	mode := strings.ToLower(strings.TrimSpace(in.Mode))
	switch mode {
	case "":
		mode = ModeSubscription
	case ModeSubscription, ModePayment:
	default:
		return nil, fmt.Errorf("%w: unsupported mode %q", ErrInvalidCheckout, in.Mode)
	}

	quantity := in.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 || quantity > maxQuantity {
		return nil, fmt.Errorf("%w: quantity must be between 1 and %d", ErrInvalidCheckout, maxQuantity)
	}

	res := s.prices.Resolve(ctx, sku)
	if !res.Found {
		observability.CheckoutSessions.WithLabelValues("price_not_found").Inc()
		return nil, fmt.Errorf("%w: %w", ErrPriceNotFound, res.Err())
	}

	if s.gateway == nil {
		observability.CheckoutSessions.WithLabelValues("gateway_unavailable").Inc()
		return nil, ErrGatewayUnavailable
	}

	successURL := in.SuccessURL
	if successURL == "" {
		successURL = s.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cancelURL := in.CancelURL
	if cancelURL == "" {
		cancelURL = s.baseURL + "/pricing?canceled=1"
	}

	meta := map[string]string{
		"sku":          sku,
		"price_id":     res.PriceID,
		"price_source": string(res.Source),
	}
	req := CheckoutRequest{
		PriceID:       res.PriceID,
		Mode:          mode,
		Quantity:      quantity,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		CustomerEmail: in.Email,
		Metadata:      meta,
	}
	if in.UserID != nil {
		uid := strconv.FormatUint(uint64(*in.UserID), 10)
		meta["user_id"] = uid
		req.ClientReferenceID = uid
	}

	session, err := s.gateway.CreateSession(ctx, req)
	if err != nil {
		observability.CheckoutSessions.WithLabelValues("gateway_error").Inc()
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	observability.CheckoutSessions.WithLabelValues("created").Inc()
	return &CheckoutResult{
		SessionID:   session.ID,
		URL:         session.URL,
		PriceSource: res.Source,
	}, nil
}
