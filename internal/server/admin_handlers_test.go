package server

import (
	"fmt"
	"net/http"
	"testing"

	"skrbl/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRequired(t *testing.T) {
	env := newTestEnv(t)
	_, memberToken := env.createUser(t, "member", false, "founder")

	resp, body := env.do(t, jsonRequest(http.MethodGet, "/api/admin/feature-flags", nil, memberToken))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", body["code"])

	resp, _ = env.do(t, jsonRequest(http.MethodGet, "/api/admin/feature-flags", nil, ""))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRoleManagement(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.createUser(t, "admin", true)
	target, targetToken := env.createUser(t, "target", false)
	rolesURL := fmt.Sprintf("/api/admin/users/%d/roles", target.ID)

	roleOf := func() string {
		_, body := env.do(t, jsonRequest(http.MethodGet, "/api/auth/role", nil, targetToken))
		return body["role"].(string)
	}

	// Prime the role cache so the grant has to invalidate it.
	require.Equal(t, "user", roleOf())

	resp, body := env.do(t, jsonRequest(http.MethodPost, rolesURL, map[string]string{"role": "VIP"}, adminToken))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "vip", body["role"])
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, "vip", roleOf())

	resp, body = env.do(t, jsonRequest(http.MethodGet, rolesURL, nil, adminToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "vip", body["effective_role"])
	assert.Equal(t, "/dashboard/vip", body["route"])
	assert.Len(t, body["memberships"], 1)

	resp, _ = env.do(t, jsonRequest(http.MethodDelete, rolesURL+"/vip", nil, adminToken))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "user", roleOf())

	t.Run("regrant reactivates", func(t *testing.T) {
		resp, body := env.do(t, jsonRequest(http.MethodPost, rolesURL, map[string]string{"role": "vip"}, adminToken))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "active", body["status"])
		assert.Equal(t, "vip", roleOf())
	})

	t.Run("user role cannot be granted", func(t *testing.T) {
		resp, _ := env.do(t, jsonRequest(http.MethodPost, rolesURL, map[string]string{"role": "user"}, adminToken))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid role name", func(t *testing.T) {
		resp, _ := env.do(t, jsonRequest(http.MethodPost, rolesURL, map[string]string{"role": "not a role"}, adminToken))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("revoke missing membership", func(t *testing.T) {
		resp, _ := env.do(t, jsonRequest(http.MethodDelete, rolesURL+"/parent", nil, adminToken))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown user", func(t *testing.T) {
		resp, _ := env.do(t, jsonRequest(http.MethodGet, "/api/admin/users/9999/roles", nil, adminToken))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("bad user id", func(t *testing.T) {
		resp, _ := env.do(t, jsonRequest(http.MethodGet, "/api/admin/users/abc/roles", nil, adminToken))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestExplainPrice(t *testing.T) {
	env := newTestEnv(t)
	env.server.configureBilling(pricing.MapProvider{
		"STRIPE_PRICE_SKRBL_PRO_MONTHLY": "price_env_override",
	}, nil)
	_, adminToken := env.createUser(t, "admin", true)

	resp, body := env.do(t, jsonRequest(http.MethodGet, "/api/admin/pricing/skrbl_pro_monthly", nil, adminToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := body["resolution"].(map[string]any)
	assert.Equal(t, "static", res["source"], "static table wins over env")
	attempts := body["attempts"].([]any)
	require.Len(t, attempts, 3)
	assert.Equal(t, true, attempts[0].(map[string]any)["hit"])
	assert.Equal(t, true, attempts[1].(map[string]any)["hit"])
	assert.Equal(t, "STRIPE_PRICE_SKRBL_PRO_MONTHLY", attempts[1].(map[string]any)["key"])
	assert.Equal(t, false, attempts[2].(map[string]any)["hit"])

	resp, body = env.do(t, jsonRequest(http.MethodGet, "/api/admin/pricing/missing", nil, adminToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no price configured for sku=missing", body["error"])
}
