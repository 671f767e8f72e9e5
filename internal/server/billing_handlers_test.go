package server

import (
	"bytes"
	"errors"
	"net/http"
	"testing"

	"skrbl/internal/billing"
	"skrbl/internal/models"
	"skrbl/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckout(t *testing.T) {
	env := newTestEnv(t)
	gw := &fakeGateway{}
	env.server.configureBilling(pricing.MapProvider{
		"STRIPE_PRICE_STARTER_MONTHLY": "price_env_starter",
		"STRIPE_PRICES_JSON":           `{"team-annual":"price_json_team"}`,
	}, gw)
	u, token := env.createUser(t, "buyer", false)

	t.Run("static sku", func(t *testing.T) {
		resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/stripe/checkout",
			map[string]any{"sku": "skrbl_pro_monthly"}, ""))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "static", body["price_source"])
		assert.NotEmpty(t, body["url"])
		assert.NotEmpty(t, body["session_id"])
	})

	t.Run("env-direct sku links signed-in user", func(t *testing.T) {
		resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/stripe/checkout",
			map[string]any{"sku": "starter-monthly", "mode": "payment"}, token))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "env-direct", body["price_source"])

		last := gw.reqs[len(gw.reqs)-1]
		assert.Equal(t, "price_env_starter", last.PriceID)
		assert.Equal(t, billing.ModePayment, last.Mode)
		assert.Equal(t, u.Email, last.CustomerEmail)
		assert.Equal(t, "starter-monthly", last.Metadata["sku"])
		assert.NotEmpty(t, last.Metadata["user_id"])
		assert.Contains(t, last.SuccessURL, "https://skrbl.test/")
	})

	t.Run("env-json sku", func(t *testing.T) {
		resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/stripe/checkout",
			map[string]any{"sku": "team-annual"}, ""))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "env-json", body["price_source"])
	})

	t.Run("unknown sku", func(t *testing.T) {
		resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/stripe/checkout",
			map[string]any{"sku": "nope"}, ""))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "no price configured for sku=nope", body["error"])
	})

	t.Run("missing sku", func(t *testing.T) {
		resp, _ := env.do(t, jsonRequest(http.MethodPost, "/api/stripe/checkout", map[string]any{}, ""))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("foreign success url", func(t *testing.T) {
		resp, _ := env.do(t, jsonRequest(http.MethodPost, "/api/stripe/checkout", map[string]any{
			"sku":         "skrbl_pro_monthly",
			"success_url": "https://evil.example/done",
		}, ""))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("provider down", func(t *testing.T) {
		gw.err = billing.ErrProviderDown
		defer func() { gw.err = nil }()
		resp, _ := env.do(t, jsonRequest(http.MethodPost, "/api/stripe/checkout",
			map[string]any{"sku": "skrbl_pro_monthly"}, ""))
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("unexpected gateway error", func(t *testing.T) {
		gw.err = errors.New("boom")
		defer func() { gw.err = nil }()
		resp, _ := env.do(t, jsonRequest(http.MethodPost, "/api/stripe/checkout",
			map[string]any{"sku": "skrbl_pro_monthly"}, ""))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestCreateCheckout_NoGateway(t *testing.T) {
	env := newTestEnv(t)
	env.server.configureBilling(pricing.MapProvider{}, nil)

	resp, _ := env.do(t, jsonRequest(http.MethodPost, "/api/stripe/checkout",
		map[string]any{"sku": "skrbl_pro_monthly"}, ""))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// Price lookup still runs first, so an unknown SKU is a 400 even without Stripe.
	resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/stripe/checkout",
		map[string]any{"sku": "nope"}, ""))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "no price configured for sku=nope", body["error"])
}

func webhookRequest(payload []byte, signature string) *http.Request {
	req, _ := http.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	return req
}

func TestStripeWebhook(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.createUser(t, "subscriber", false)

	payload, sig := signedEvent(t, "evt_1", billing.EventCheckoutCompleted, map[string]any{
		"id":             "cs_test_1",
		"object":         "checkout.session",
		"customer":       "cus_1",
		"subscription":   "sub_1",
		"payment_status": "paid",
		"metadata": map[string]string{
			"sku":      "skrbl_pro_monthly",
			"price_id": "price_1PskrblProMonthly",
			"user_id":  "1",
		},
	})

	t.Run("bad signature", func(t *testing.T) {
		resp, _ := env.do(t, webhookRequest(payload, "t=1,v1=deadbeef"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("applied", func(t *testing.T) {
		resp, body := env.do(t, webhookRequest(payload, sig))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, billing.OutcomeApplied, body["outcome"])

		var sub models.Subscription
		require.NoError(t, env.db.Where("stripe_subscription_id = ?", "sub_1").First(&sub).Error)
		assert.Equal(t, "active", sub.Status)
		assert.Equal(t, "skrbl_pro_monthly", sub.SKU)
		require.NotNil(t, sub.UserID)
		assert.Equal(t, u.ID, *sub.UserID)
	})

	t.Run("redelivery is a duplicate", func(t *testing.T) {
		resp, body := env.do(t, webhookRequest(payload, sig))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, billing.OutcomeDuplicate, body["outcome"])
	})

	t.Run("unhandled type is ignored", func(t *testing.T) {
		p, s := signedEvent(t, "evt_2", "customer.created", map[string]any{"id": "cus_2", "object": "customer"})
		resp, body := env.do(t, webhookRequest(p, s))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, billing.OutcomeIgnored, body["outcome"])
	})
}
