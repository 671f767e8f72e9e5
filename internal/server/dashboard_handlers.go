package server

import (
	"skrbl/internal/roles"

	"github.com/gofiber/fiber/v2"
)

// signInPath is where anonymous dashboard visitors are sent.
const signInPath = "/sign-in"

// Dashboard handles GET /dashboard. Anonymous callers go to sign-in with a
// return path; role holders are redirected to their dashboard. Plain users
// already are on theirs and get the resolution back instead of a redirect
// to the same path.
// @Summary Dashboard entry
// @Tags dashboard
// @Produce json
// @Success 200 {object} object{user=models.User,role=string,route=string}
// @Success 302
// @Router /dashboard [get]
func (s *Server) Dashboard(c *fiber.Ctx) error {
	res := s.resolveCaller(c)
	if !res.Authenticated() {
		return c.Redirect(signInPath+"?redirect="+roles.DefaultRoute, fiber.StatusFound)
	}

	route := res.Route()
	if route == roles.DefaultRoute {
		return c.JSON(fiber.Map{
			"user":  res.User,
			"role":  res.Role,
			"route": route,
		})
	}
	return c.Redirect(route, fiber.StatusFound)
}
