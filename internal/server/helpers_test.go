package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"skrbl/internal/billing"
	"skrbl/internal/cache"
	"skrbl/internal/config"
	"skrbl/internal/database"
	"skrbl/internal/models"
	"skrbl/internal/pricing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testSecret        = "test-secret-key-12345678901234567890123456789012"
	testWebhookSecret = "whsec_test_secret"
	testPassword      = "Str0ng!Passw0rd"
)

type testEnv struct {
	server *Server
	app    *fiber.App
	db     *gorm.DB
	redis  *miniredis.Miniredis
}

// fakeGateway records checkout requests instead of calling Stripe.
type fakeGateway struct {
	mu   sync.Mutex
	reqs []billing.CheckoutRequest
	err  error
}

func (g *fakeGateway) CreateSession(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.reqs = append(g.reqs, req)
	id := fmt.Sprintf("cs_test_%d", len(g.reqs))
	return &billing.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })

	cfg := &config.Config{
		Env:                 "test",
		Port:                "0",
		JWTSecret:           testSecret,
		AppBaseURL:          "https://skrbl.test",
		StripeWebhookSecret: testWebhookSecret,
		StripePricePrefix:   pricing.DefaultEnvPrefix,
		StripePricesJSONKey: pricing.DefaultJSONKey,
		FeatureFlags:        "agent_video-studio=off",
	}
	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	app := fiber.New()
	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	return &testEnv{server: s, app: app, db: db, redis: mr}
}

func (e *testEnv) createUser(t *testing.T, username string, admin bool, roleNames ...string) (*models.User, string) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	u := &models.User{
		Username: username,
		Email:    username + "@skrbl.test",
		Password: string(hashed),
		IsAdmin:  admin,
	}
	require.NoError(t, e.db.Create(u).Error)

	for _, r := range roleNames {
		require.NoError(t, e.db.Create(&models.RoleMembership{
			UserID: u.ID,
			Role:   r,
			Status: models.RoleMembershipStatusActive,
		}).Error)
	}

	token, _, err := e.server.tokens.Issue(u.ID, u.Username)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp, body
}

func jsonRequest(method, target string, body any, token string) *http.Request {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = strings.NewReader(string(b))
	}
	req, _ := http.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// signedEvent builds a Stripe event payload and a valid Stripe-Signature header for it.
func signedEvent(t *testing.T, id, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)

	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return payload, fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
