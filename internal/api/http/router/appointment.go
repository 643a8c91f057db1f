package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/medora-health/medora_backend/internal/api/http/handler"
)

func (r *Router) registerAppointmentRoutes(api fiber.Router, ah *handler.AppointmentHandler) {
	appointments := api.Group("/appointments")

	appointments.Post("/", ah.Book)
	appointments.Get("/", ah.List)
	appointments.Get("/:id", ah.Get)
	appointments.Patch("/:id/accept", ah.Accept)
	appointments.Patch("/:id/decline", ah.Decline)
	appointments.Patch("/:id/cancel", ah.Cancel)
}
