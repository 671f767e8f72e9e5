package server

import (
	"errors"

	"skrbl/internal/agents"
	"skrbl/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListAgents handles GET /api/agents
// @Summary List agents
// @Description Agents visible to the caller's effective role.
// @Tags agents
// @Produce json
// @Success 200 {object} object{role=string,agents=[]agents.Agent}
// @Router /agents [get]
func (s *Server) ListAgents(c *fiber.Ctx) error {
	res := s.resolveCaller(c)
	var userID uint
	if res.User != nil {
		userID = res.User.ID
	}
	return c.JSON(fiber.Map{
		"role":   res.Role,
		"agents": s.catalog.VisibleTo(res.Role, userID, s.featureFlags),
	})
}

// RunAgent handles POST /api/agents/:id/run. Agents are catalog entries
// only, so an authorized run answers 501.
// @Summary Run agent
// @Tags agents
// @Security BearerAuth
// @Produce json
// @Param id path string true "Agent ID"
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 501 {object} models.ErrorResponse
// @Router /agents/{id}/run [post]
func (s *Server) RunAgent(c *fiber.Ctx) error {
	agent, ok := s.catalog.Get(c.Params("id"))
	if !ok {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Agent", c.Params("id")))
	}

	res := s.resolveCaller(c)
	userID, _ := c.Locals("userID").(uint)
	if err := s.catalog.Authorize(agent, res.Role, userID, s.featureFlags); err != nil {
		if errors.Is(err, agents.ErrNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Agent", agent.ID))
		}
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Agent "+agent.ID+" requires role "+string(agent.MinRole)))
	}

	return c.Status(fiber.StatusNotImplemented).JSON(models.ErrorResponse{
		Error: "agent " + agent.ID + " is not available yet",
		Code:  "NOT_IMPLEMENTED",
	})
}
