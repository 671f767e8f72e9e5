package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

// Stripe event types the service acts on.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

// ErrInvalidSignature means the payload was not signed with the webhook secret.
var ErrInvalidSignature = errors.New("stripe signature invalid")

// Event is a Stripe webhook event reduced to the fields subscriptions need.
type Event struct {
	ID                string
	Type              string
	APIVersion        string
	CustomerID        string
	SubscriptionID    string
	CheckoutSessionID string
	CustomerEmail     string
	SKU               string
	PriceID           string
	Status            string
	UserID            *uint
	CurrentPeriodEnd  *time.Time
}

// WebhookProcessor verifies Stripe signatures and normalizes events.
type WebhookProcessor struct {
	secret string
}

// NewWebhookProcessor verifies with the endpoint's signing secret.
func NewWebhookProcessor(secret string) *WebhookProcessor {
	return &WebhookProcessor{secret: secret}
}

// VerifyAndParse checks the Stripe-Signature header and normalizes the
// event. Event types the service does not handle yield nil, nil.
// Events from an endpoint pinned to another API version are accepted: only
// ids, statuses, metadata and period ends are read, and those are stable
// across versions. The version is kept on the Event for logging.
func (p *WebhookProcessor) VerifyAndParse(payload []byte, signature string) (*Event, error) {
	if p.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if event.Data == nil {
		return nil, nil
	}

	out := &Event{ID: event.ID, Type: string(event.Type), APIVersion: event.APIVersion}
	switch out.Type {
	case EventCheckoutCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		fromCheckoutSession(out, &cs)

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		fromSubscription(out, &sub)
		if out.Type == EventSubscriptionDeleted {
			out.Status = string(stripe.SubscriptionStatusCanceled)
		}

	case EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		if inv.Subscription != nil {
			out.SubscriptionID = inv.Subscription.ID
		}
		if inv.Customer != nil {
			out.CustomerID = inv.Customer.ID
		}
		out.CustomerEmail = inv.CustomerEmail
		out.Status = string(stripe.SubscriptionStatusPastDue)

	default:
		return nil, nil
	}

	return out, nil
}

func fromCheckoutSession(out *Event, cs *stripe.CheckoutSession) {
	out.CheckoutSessionID = cs.ID
	if cs.Customer != nil {
		out.CustomerID = cs.Customer.ID
	}
	if cs.Subscription != nil {
		out.SubscriptionID = cs.Subscription.ID
	}
	out.CustomerEmail = cs.CustomerEmail
	if out.CustomerEmail == "" && cs.CustomerDetails != nil {
		out.CustomerEmail = cs.CustomerDetails.Email
	}
	out.SKU = cs.Metadata["sku"]
	out.PriceID = cs.Metadata["price_id"]
	out.UserID = parseUserID(cs.Metadata["user_id"])
	if out.UserID == nil {
		out.UserID = parseUserID(cs.ClientReferenceID)
	}

	switch cs.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		out.Status = string(stripe.SubscriptionStatusActive)
	default:
		out.Status = string(stripe.SubscriptionStatusIncomplete)
	}
}

func fromSubscription(out *Event, sub *stripe.Subscription) {
	out.SubscriptionID = sub.ID
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	out.Status = string(sub.Status)
	out.SKU = sub.Metadata["sku"]
	out.UserID = parseUserID(sub.Metadata["user_id"])
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &end
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
}

func parseUserID(s string) *uint {
	if s == "" {
		return nil
	}
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return nil
	}
	uid := uint(id)
	return &uid
}
