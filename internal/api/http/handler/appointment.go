package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/medora-health/medora_backend/internal/model"
	"github.com/medora-health/medora_backend/internal/service/appointment"
)

type AppointmentHandler struct {
	svc appointment.Service
}

func NewAppointmentHandler(svc appointment.Service) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

type appointmentResponse struct {
	ID            string     `json:"id"`
	PatientID     string     `json:"patient_id"`
	DoctorID      string     `json:"doctor_id"`
	StartTime     time.Time  `json:"start_time"`
	Status        string     `json:"status"`
	Notes         *string    `json:"notes,omitempty"`
	PaymentStatus string     `json:"payment_status"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	RefundAmount  *int64     `json:"refund_amount,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toAppointmentResponse(a *model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:            a.ID.String(),
		PatientID:     a.PatientID.String(),
		DoctorID:      a.DoctorID.String(),
		StartTime:     a.StartTime,
		Status:        string(a.Status),
		Notes:         a.Notes,
		PaymentStatus: string(a.PaymentStatus),
		Amount:        a.Amount,
		Currency:      a.Currency,
		RefundAmount:  a.RefundAmount,
		CancelledAt:   a.CancelledAt,
		CreatedAt:     a.CreatedAt,
	}
}

func mapAppointmentError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, appointment.ErrNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, appointment.ErrStartTimeInPast),
		errors.Is(err, appointment.ErrSamePartner):
		return badRequest(c, err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		return conflict(c, err.Error())
	default:
		return internalError(c)
	}
}

func appointmentIDParam(c fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("id"))
}

// POST /appointments
func (h *AppointmentHandler) Book(c fiber.Ctx) error {
	var body struct {
		PatientID string  `json:"patient_id"`
		DoctorID  string  `json:"doctor_id"`
		StartTime string  `json:"start_time"`
		Amount    int64   `json:"amount"`
		Currency  string  `json:"currency"`
		Notes     *string `json:"notes"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	patientID, err := uuid.Parse(body.PatientID)
	if err != nil {
		return badRequest(c, "invalid patient_id")
	}
	doctorID, err := uuid.Parse(body.DoctorID)
	if err != nil {
		return badRequest(c, "invalid doctor_id")
	}
	startTime, err := time.Parse(time.RFC3339, body.StartTime)
	if err != nil {
		return badRequest(c, "start_time must be RFC3339")
	}
	if body.Amount <= 0 {
		return badRequest(c, "amount must be positive")
	}

	appt, err := h.svc.Book(c.Context(), appointment.BookInput{
		PatientID: patientID,
		DoctorID:  doctorID,
		StartTime: startTime,
		Amount:    body.Amount,
		Currency:  body.Currency,
		Notes:     body.Notes,
	})
	if err != nil {
		return mapAppointmentError(c, err)
	}
	return created(c, toAppointmentResponse(appt))
}

// GET /appointments
func (h *AppointmentHandler) List(c fiber.Ctx) error {
	var status *model.AppointmentStatus
	if s := c.Query("status"); s != "" {
		st := model.AppointmentStatus(s)
		status = &st
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	appts, err := h.svc.List(c.Context(), status, limit, offset)
	if err != nil {
		return mapAppointmentError(c, err)
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return ok(c, out)
}

// GET /appointments/:id
func (h *AppointmentHandler) Get(c fiber.Ctx) error {
	id, err := appointmentIDParam(c)
	if err != nil {
		return badRequest(c, "invalid appointment id")
	}
	appt, err := h.svc.GetByID(c.Context(), id)
	if err != nil {
		return mapAppointmentError(c, err)
	}
	return ok(c, toAppointmentResponse(appt))
}

// PATCH /appointments/:id/accept
func (h *AppointmentHandler) Accept(c fiber.Ctx) error {
	id, err := appointmentIDParam(c)
	if err != nil {
		return badRequest(c, "invalid appointment id")
	}
	if err := h.svc.Accept(c.Context(), id); err != nil {
		return mapAppointmentError(c, err)
	}
	return noContent(c)
}

// PATCH /appointments/:id/decline
func (h *AppointmentHandler) Decline(c fiber.Ctx) error {
	id, err := appointmentIDParam(c)
	if err != nil {
		return badRequest(c, "invalid appointment id")
	}
	if err := h.svc.Decline(c.Context(), id); err != nil {
		return mapAppointmentError(c, err)
	}
	return noContent(c)
}

// PATCH /appointments/:id/cancel
func (h *AppointmentHandler) Cancel(c fiber.Ctx) error {
	id, err := appointmentIDParam(c)
	if err != nil {
		return badRequest(c, "invalid appointment id")
	}

	var body struct {
		Reason string `json:"reason"`
	}
	// Body is optional for cancellation.
	_ = c.Bind().JSON(&body)

	if err := h.svc.Cancel(c.Context(), id, body.Reason); err != nil {
		return mapAppointmentError(c, err)
	}
	return noContent(c)
}
