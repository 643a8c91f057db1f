package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/medora-health/medora_backend/internal/api/http/handler"
)

func (r *Router) registerPaymentRoutes(api fiber.Router, ph *handler.PaymentHandler) {
	payments := api.Group("/payments")

	payments.Post("/orders", ph.CreateOrder)
	payments.Post("/verify", ph.Verify)
	payments.Post("/refund", ph.Refund)

	// Gateway-to-server delivery, authenticated by its own HMAC header.
	payments.Post("/webhook", ph.Webhook)
}
