package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	retries := int64(0)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: &retries,
	})
	return NewStripeGateway("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestStripeGateway_CreateSession(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "subscription", r.PostForm.Get("mode"))
		assert.Equal(t, "price_123", r.PostForm.Get("line_items[0][price]"))
		assert.Equal(t, "2", r.PostForm.Get("line_items[0][quantity]"))
		assert.Equal(t, "sports_plan_starter", r.PostForm.Get("metadata[sku]"))
		assert.Equal(t, "sports_plan_starter", r.PostForm.Get("subscription_data[metadata][sku]"))
		assert.Equal(t, "7", r.PostForm.Get("client_reference_id"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	})

	session, err := gw.CreateSession(context.Background(), CheckoutRequest{
		PriceID:           "price_123",
		Mode:              ModeSubscription,
		Quantity:          2,
		SuccessURL:        "https://skrbl.ai/ok",
		CancelURL:         "https://skrbl.ai/no",
		ClientReferenceID: "7",
		Metadata:          map[string]string{"sku": "sports_plan_starter"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", session.URL)
}

func TestStripeGateway_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		provider bool
	}{
		{"invalid request", http.StatusBadRequest, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such price"}}`, false},
		{"outage", http.StatusServiceUnavailable, `{"error":{"type":"api_error","message":"down"}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := gw.CreateSession(context.Background(), CheckoutRequest{
				PriceID: "price_x", Mode: ModePayment, Quantity: 1,
				SuccessURL: "https://a", CancelURL: "https://b",
			})
			require.Error(t, err)
			if tt.provider {
				assert.ErrorIs(t, err, ErrProviderDown)
			} else {
				assert.NotErrorIs(t, err, ErrProviderDown)
			}
		})
	}
}
