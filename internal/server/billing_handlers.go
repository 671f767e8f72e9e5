package server

import (
	"errors"
	"log/slog"

	"skrbl/internal/billing"
	"skrbl/internal/models"
	"skrbl/internal/observability"
	"skrbl/internal/pricing"
	"skrbl/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type checkoutRequest struct {
	SKU        string `json:"sku"`
	Mode       string `json:"mode,omitempty"`
	Quantity   int64  `json:"quantity,omitempty"`
	SuccessURL string `json:"success_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
}

// CreateCheckout handles POST /api/stripe/checkout
// @Summary Start checkout
// @Description Resolves the SKU to a Stripe price and opens a hosted checkout session.
// @Tags billing
// @Accept json
// @Produce json
// @Param request body checkoutRequest true "Checkout request"
// @Success 200 {object} billing.CheckoutResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /stripe/checkout [post]
func (s *Server) CreateCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	for _, u := range []string{req.SuccessURL, req.CancelURL} {
		if err := validation.ValidateRedirectURL(u, s.config.AppBaseURL); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError(err.Error()))
		}
	}

	in := billing.StartCheckoutInput{
		SKU:        req.SKU,
		Mode:       req.Mode,
		Quantity:   req.Quantity,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}
	// Checkout is open to anonymous visitors; signed-in users are linked.
	if caller := s.resolveCaller(c); caller.User != nil {
		id := caller.User.ID
		in.UserID = &id
		in.Email = caller.User.Email
	}

	result, err := s.checkout.Start(c.UserContext(), in)
	if err != nil {
		return s.respondCheckoutError(c, err)
	}
	return c.JSON(result)
}

func (s *Server) respondCheckoutError(c *fiber.Ctx, err error) error {
	var notFound *pricing.NotFoundError
	switch {
	case errors.As(err, &notFound):
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(notFound.Error()))
	case errors.Is(err, billing.ErrInvalidCheckout):
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	case errors.Is(err, billing.ErrGatewayUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "checkout is not available",
		})
	case errors.Is(err, billing.ErrProviderDown):
		observability.Logger.WarnContext(c.UserContext(), "payment provider unavailable", slog.String("error", err.Error()))
		return c.Status(fiber.StatusBadGateway).JSON(models.ErrorResponse{
			Error: "payment provider unavailable",
		})
	default:
		observability.Logger.ErrorContext(c.UserContext(), "checkout failed", slog.String("error", err.Error()))
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
}

// StripeWebhook handles POST /api/stripe/webhook
// @Summary Stripe webhook
// @Description Verifies the Stripe-Signature header and applies subscription events.
// @Tags billing
// @Accept json
// @Produce json
// @Success 200 {object} object{received=bool,outcome=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /stripe/webhook [post]
func (s *Server) StripeWebhook(c *fiber.Ctx) error {
	ev, err := s.webhooks.VerifyAndParse(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		observability.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		observability.Logger.WarnContext(c.UserContext(), "rejected stripe webhook", slog.String("error", err.Error()))
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid webhook signature"))
	}

	outcome, err := s.webhookSvc.Handle(c.UserContext(), ev)
	if err != nil {
		// A 5xx makes Stripe redeliver.
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"received": true, "outcome": outcome})
}
