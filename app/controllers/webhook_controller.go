package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
)

// WebhookController receives gateway status notifications
type WebhookController struct {
	service PaymentService
}

// NewWebhookController creates a new webhook controller
func NewWebhookController(service PaymentService) *WebhookController {
	return &WebhookController{service: service}
}

// HandleWebhook always acknowledges with 200 so the gateway does not retry
// deliveries that can never succeed. Problems are reported as a warning.
func (wc *WebhookController) HandleWebhook(c *fiber.Ctx) error {
	res, err := wc.service.HandleWebhook(c.UserContext(), c.Body())
	if err != nil {
		log.Warnf("[Webhook] delivery from %s not applied: %v", GetClientIP(c), err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"ok":      false,
			"warning": apperror.MessageOf(err),
			"error":   string(apperror.KindOf(err)),
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":       true,
		"order_id": res.OrderID,
		"status":   res.Status,
		"applied":  res.Applied,
	})
}
