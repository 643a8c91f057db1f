package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/medora-health/medora_backend/internal/api/http/handler"
)

func (r *Router) registerReminderRoutes(api fiber.Router, rh *handler.ReminderHandler) {
	reminders := api.Group("/reminders")

	reminders.Post("/appointments/:id/schedule", rh.Schedule)
	reminders.Post("/appointments/:id/cancel", rh.Cancel)

	// Manual trigger for operations; the cron job runs the same sweep.
	reminders.Post("/sweep", rh.Sweep)
}
