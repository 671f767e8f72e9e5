package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"skrbl/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockUserLookup struct {
	mock.Mock
}

func (m *MockUserLookup) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSession_CurrentUser(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, nil)
	token, _, err := issuer.Issue(5, "carol")
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		users := new(MockUserLookup)
		u, err := NewSession(issuer, users, "").CurrentUser(ctx)
		assert.NoError(t, err)
		assert.Nil(t, u)
		users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("invalid token is anonymous", func(t *testing.T) {
		users := new(MockUserLookup)
		u, err := NewSession(issuer, users, "broken").CurrentUser(ctx)
		assert.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("valid token", func(t *testing.T) {
		users := new(MockUserLookup)
		carol := &models.User{ID: 5, Username: "carol"}
		users.On("GetByID", mock.Anything, uint(5)).Return(carol, nil)

		s := NewSession(issuer, users, token)
		u, err := s.CurrentUser(ctx)
		assert.NoError(t, err)
		assert.Equal(t, carol, u)
		require.NotNil(t, s.Claims())
		assert.Equal(t, uint(5), s.Claims().UserID)
	})

	t.Run("deleted user is anonymous", func(t *testing.T) {
		users := new(MockUserLookup)
		users.On("GetByID", mock.Anything, uint(5)).Return(nil, models.NewNotFoundError("User", 5))

		u, err := NewSession(issuer, users, token).CurrentUser(ctx)
		assert.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		users := new(MockUserLookup)
		users.On("GetByID", mock.Anything, uint(5)).Return(nil, errors.New("db down"))

		u, err := NewSession(issuer, users, token).CurrentUser(ctx)
		assert.Error(t, err)
		assert.Nil(t, u)
	})
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *fiberRequest)
		want  string
	}{
		{"bearer header", func(r *fiberRequest) { r.header = "Bearer abc" }, "abc"},
		{"cookie", func(r *fiberRequest) { r.cookie = "from-cookie" }, "from-cookie"},
		{"query", func(r *fiberRequest) { r.query = "from-query" }, "from-query"},
		{"header wins over cookie", func(r *fiberRequest) { r.header = "Bearer h"; r.cookie = "c" }, "h"},
		{"non bearer header ignored", func(r *fiberRequest) { r.header = "Basic xyz" }, ""},
		{"nothing", func(*fiberRequest) {}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				got = TokenFromRequest(c)
				return nil
			})

			var fr fiberRequest
			tt.setup(&fr)
			target := "/"
			if fr.query != "" {
				target += "?token=" + fr.query
			}
			req := httptest.NewRequest("GET", target, nil)
			if fr.header != "" {
				req.Header.Set("Authorization", fr.header)
			}
			if fr.cookie != "" {
				req.Header.Set("Cookie", CookieName+"="+fr.cookie)
			}

			_, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fiberRequest struct {
	header string
	cookie string
	query  string
}
