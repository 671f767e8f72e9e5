package server

import (
	"strings"

	"skrbl/internal/models"
	"skrbl/internal/roles"
	"skrbl/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
// @Summary Feature flags
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool}
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)

	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}

// ExplainPrice reports how a SKU resolves: the winning resolution plus what
// every configuration layer returned.
// @Summary Price resolution provenance
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param sku path string true "SKU"
// @Success 200 {object} object{resolution=pricing.Resolution,attempts=[]pricing.Attempt}
// @Router /admin/pricing/{sku} [get]
func (s *Server) ExplainPrice(c *fiber.Ctx) error {
	sku := c.Params("sku")
	res := s.prices.Resolve(c.UserContext(), sku)

	body := fiber.Map{
		"resolution": res,
		"attempts":   s.prices.Explain(c.UserContext(), sku),
	}
	if !res.Found {
		body["error"] = res.Err().Error()
	}
	return c.JSON(body)
}

// ListUserRoles returns a user's memberships and the role they resolve to.
// @Summary List role memberships
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{memberships=[]models.RoleMembership,effective_role=string,route=string}
// @Router /admin/users/{id}/roles [get]
func (s *Server) ListUserRoles(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.userRepo.GetByID(c.UserContext(), userID); err != nil {
		return respondAppError(c, err)
	}

	memberships, err := s.roleRepo.ListByUser(c.UserContext(), userID)
	if err != nil {
		return respondAppError(c, err)
	}
	role := roles.ResolveEffectiveRole(memberships)
	return c.JSON(fiber.Map{
		"memberships":    memberships,
		"effective_role": role,
		"route":          roles.RouteForRole(role),
	})
}

// GrantUserRole creates or reactivates a membership.
// @Summary Grant role
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body object{role=string} true "Role to grant"
// @Success 201 {object} models.RoleMembership
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/users/{id}/roles [post]
func (s *Server) GrantUserRole(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := validation.ValidateRoleName(req.Role); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}
	if r := roles.Normalize(req.Role); r == roles.User {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("role user is implicit and cannot be granted"))
	}

	if _, err := s.userRepo.GetByID(c.UserContext(), userID); err != nil {
		return respondAppError(c, err)
	}

	adminID, _ := c.Locals("userID").(uint)
	m, err := s.roleRepo.Grant(c.UserContext(), userID, req.Role, "admin", &adminID)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

// RevokeUserRole marks a membership revoked.
// @Summary Revoke role
// @Tags admin
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param role path string true "Role"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id}/roles/{role} [delete]
func (s *Server) RevokeUserRole(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	role := strings.TrimSpace(c.Params("role"))
	if role == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid role"))
	}

	if err := s.roleRepo.Revoke(c.UserContext(), userID, role); err != nil {
		return respondAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
