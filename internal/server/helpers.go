package server

import (
	"errors"

	"skrbl/internal/auth"
	"skrbl/internal/models"
	"skrbl/internal/roles"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+param))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// session builds the caller's session from whatever token the request carries.
func (s *Server) session(c *fiber.Ctx) *auth.Session {
	return auth.NewSession(s.tokens, s.userRepo, auth.TokenFromRequest(c))
}

// resolveCaller runs the role resolver for the request. It never fails;
// anonymous callers get the fallback role.
func (s *Server) resolveCaller(c *fiber.Ctx) roles.UserAndRole {
	return s.roleResolver.GetUserAndRole(c.UserContext(), s.session(c))
}

func (s *Server) setSessionCookie(c *fiber.Ctx, token string, claims *auth.Claims) {
	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.ClearCookie(auth.CookieName)
}

func respondAppError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}
