package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/medora-health/medora_backend/internal/service/reminder"
)

type ReminderHandler struct {
	svc reminder.Service
}

func NewReminderHandler(svc reminder.Service) *ReminderHandler {
	return &ReminderHandler{svc: svc}
}

// POST /reminders/appointments/:id/schedule
func (h *ReminderHandler) Schedule(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid appointment id")
	}

	if err := h.svc.ScheduleForAppointment(c.Context(), id); err != nil {
		switch {
		case errors.Is(err, reminder.ErrAppointmentNotFound):
			return notFound(c, err.Error())
		default:
			return internalError(c)
		}
	}
	return noContent(c)
}

// POST /reminders/appointments/:id/cancel
func (h *ReminderHandler) Cancel(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid appointment id")
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind().JSON(&body)

	n, err := h.svc.CancelForAppointment(c.Context(), id, body.Reason)
	if err != nil {
		return internalError(c)
	}
	return ok(c, fiber.Map{"cancelled": n})
}

// POST /reminders/sweep
func (h *ReminderHandler) Sweep(c fiber.Ctx) error {
	stats, err := h.svc.Sweep(c.Context())
	if err != nil {
		return internalError(c)
	}
	return ok(c, stats)
}
