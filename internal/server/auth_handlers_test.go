package server

import (
	"net/http"
	"testing"

	"skrbl/internal/auth"
	"skrbl/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupAndLogin(t *testing.T) {
	env := newTestEnv(t)

	signup := map[string]string{
		"username": "newmember",
		"email":    "New.Member@skrbl.test",
		"password": testPassword,
	}

	resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/auth/signup", signup, ""))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["token"])
	assert.Contains(t, resp.Header.Get("Set-Cookie"), auth.CookieName+"=")

	user := body["user"].(map[string]any)
	assert.Equal(t, "new.member@skrbl.test", user["email"])
	assert.NotContains(t, user, "password")

	t.Run("duplicate email conflicts", func(t *testing.T) {
		resp, _ := env.do(t, jsonRequest(http.MethodPost, "/api/auth/signup", signup, ""))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("weak password rejected", func(t *testing.T) {
		resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/auth/signup", map[string]string{
			"username": "other",
			"email":    "other@skrbl.test",
			"password": "short",
		}, ""))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.CodeValidation, body["code"])
	})

	t.Run("login with wrong password", func(t *testing.T) {
		resp, _ := env.do(t, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "new.member@skrbl.test",
			"password": "Wr0ng!Password",
		}, ""))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("login with unknown email", func(t *testing.T) {
		resp, _ := env.do(t, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "ghost@skrbl.test",
			"password": testPassword,
		}, ""))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("login succeeds", func(t *testing.T) {
		resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "NEW.MEMBER@skrbl.test",
			"password": testPassword,
		}, ""))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, body["token"])
	})
}

func TestGetRole(t *testing.T) {
	env := newTestEnv(t)
	_, plainToken := env.createUser(t, "plain", false)
	_, vipToken := env.createUser(t, "vipper", false, "vip")
	_, stackedToken := env.createUser(t, "stacked", false, " VIP ", "founder", "vip", "astronaut")

	tests := []struct {
		name      string
		token     string
		wantRole  string
		wantRoute string
		wantUser  bool
	}{
		{"anonymous", "", "user", "/dashboard", false},
		{"garbage token is anonymous", "not-a-jwt", "user", "/dashboard", false},
		{"no memberships", plainToken, "user", "/dashboard", true},
		{"single role", vipToken, "vip", "/dashboard/vip", true},
		{"highest of several", stackedToken, "founder", "/dashboard/founder", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, jsonRequest(http.MethodGet, "/api/auth/role", nil, tt.token))
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.wantRole, body["role"])
			assert.Equal(t, tt.wantRoute, body["route"])
			if tt.wantUser {
				assert.NotNil(t, body["user"])
			} else {
				assert.Nil(t, body["user"])
			}
		})
	}
}

func TestGetRole_StoreFailureDegradesToUser(t *testing.T) {
	env := newTestEnv(t)
	u, token := env.createUser(t, "heiress", false, "heir")

	require.NoError(t, env.db.Migrator().DropTable(&models.RoleMembership{}))

	resp, body := env.do(t, jsonRequest(http.MethodGet, "/api/auth/role", nil, token))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user", body["role"])
	assert.Equal(t, "/dashboard", body["route"])
	user := body["user"].(map[string]any)
	assert.EqualValues(t, u.ID, user["id"])
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "leaver", true)

	resp, _ := env.do(t, jsonRequest(http.MethodGet, "/api/admin/feature-flags", nil, token))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, jsonRequest(http.MethodPost, "/api/auth/logout", nil, token))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, jsonRequest(http.MethodGet, "/api/admin/feature-flags", nil, token))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token has been revoked", body["error"])
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "runner", false)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"missing token", func(r *http.Request) {}, http.StatusUnauthorized},
		{"malformed bearer", func(r *http.Request) { r.Header.Set("Authorization", "Token abc") }, http.StatusUnauthorized},
		{"invalid token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc.def.ghi") }, http.StatusUnauthorized},
		{"bearer token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusNotImplemented},
		{"session cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
		}, http.StatusNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(http.MethodPost, "/api/agents/content-creator/run", nil, "")
			tt.setup(req)
			resp, _ := env.do(t, req)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
