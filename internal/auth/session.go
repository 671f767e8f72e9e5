package auth

import (
	"context"
	"errors"
	"strings"

	"skrbl/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UserLookup loads a user by id.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// TokenFromRequest extracts a token from the Authorization bearer header,
// the session cookie or the token query parameter, in that order.
func TokenFromRequest(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie := c.Cookies(CookieName); cookie != "" {
		return cookie
	}
	return c.Query("token")
}

// Session identifies the caller of one request. It implements the role
// resolver's session interface.
type Session struct {
	issuer *TokenIssuer
	users  UserLookup
	token  string

	claims *Claims
}

// NewSession returns a session for the given raw token. An empty token is
// an anonymous session.
func NewSession(issuer *TokenIssuer, users UserLookup, token string) *Session {
	return &Session{issuer: issuer, users: users, token: token}
}

// Claims returns the verified claims after a successful CurrentUser call.
func (s *Session) Claims() *Claims {
	return s.claims
}

// CurrentUser returns nil, nil for anonymous requests and for tokens that
// fail verification or name a user that no longer exists. Other errors
// come from the user store.
func (s *Session) CurrentUser(ctx context.Context) (*models.User, error) {
	if s.token == "" {
		return nil, nil
	}

	claims, err := s.issuer.Parse(ctx, s.token)
	if err != nil {
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}

	s.claims = claims
	return user, nil
}
