package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/medora-health/medora_backend/internal/service/payment"
	"github.com/medora-health/medora_backend/pkg/razorpay"
)

type PaymentHandler struct {
	svc payment.Service
}

func NewPaymentHandler(svc payment.Service) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

func mapPaymentError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, payment.ErrAppointmentNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, payment.ErrBelowMinimum),
		errors.Is(err, payment.ErrPaymentNotCaptured),
		errors.Is(err, payment.ErrOrderMismatch),
		errors.Is(err, payment.ErrNoPayment),
		errors.Is(err, payment.ErrNoRefundAvailable):
		return badRequest(c, err.Error())
	case errors.Is(err, payment.ErrAlreadyPaid),
		errors.Is(err, payment.ErrAlreadyRefunded):
		return conflict(c, err.Error())
	case errors.Is(err, payment.ErrSignatureMismatch):
		return unauthorized(c)
	default:
		var apiErr *razorpay.APIError
		if errors.As(err, &apiErr) {
			return badGateway(c, apiErr.Error())
		}
		if errors.Is(err, razorpay.ErrTransport) {
			return badGateway(c, "payment gateway unreachable")
		}
		return internalError(c)
	}
}

// POST /payments/orders
func (h *PaymentHandler) CreateOrder(c fiber.Ctx) error {
	var body struct {
		AppointmentID string `json:"appointment_id"`
		Amount        *int64 `json:"amount"`
		Currency      string `json:"currency"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	apptID, err := uuid.Parse(body.AppointmentID)
	if err != nil {
		return badRequest(c, "invalid appointment_id")
	}

	res, err := h.svc.CreateOrder(c.Context(), apptID, payment.CreateOrderInput{
		Amount:   body.Amount,
		Currency: body.Currency,
	})
	if err != nil {
		return mapPaymentError(c, err)
	}
	return created(c, res)
}

// POST /payments/verify
// Called by the frontend after Razorpay checkout completes.
func (h *PaymentHandler) Verify(c fiber.Ctx) error {
	var body struct {
		AppointmentID     string `json:"appointment_id"`
		RazorpayOrderID   string `json:"razorpay_order_id"`
		RazorpayPaymentID string `json:"razorpay_payment_id"`
		RazorpaySignature string `json:"razorpay_signature"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	apptID, err := uuid.Parse(body.AppointmentID)
	if err != nil {
		return badRequest(c, "invalid appointment_id")
	}
	if body.RazorpayOrderID == "" || body.RazorpayPaymentID == "" || body.RazorpaySignature == "" {
		return badRequest(c, "missing razorpay checkout fields")
	}

	err = h.svc.VerifyPayment(c.Context(), payment.VerifyInput{
		AppointmentID: apptID,
		OrderID:       body.RazorpayOrderID,
		PaymentID:     body.RazorpayPaymentID,
		Signature:     body.RazorpaySignature,
	})
	if err != nil {
		return mapPaymentError(c, err)
	}
	return ok(c, fiber.Map{"status": "paid"})
}

// POST /payments/webhook
// Razorpay server-to-server delivery. The HMAC covers the exact raw body, so
// it must be passed through unparsed.
func (h *PaymentHandler) Webhook(c fiber.Ctx) error {
	signature := c.Get("X-Razorpay-Signature")
	if signature == "" {
		return unauthorized(c)
	}

	if err := h.svc.HandleWebhook(c.Context(), c.Body(), signature); err != nil {
		if errors.Is(err, payment.ErrSignatureMismatch) {
			return unauthorized(c)
		}
		// Non-2xx makes the gateway redeliver later.
		return internalError(c)
	}
	return ok(c, fiber.Map{"status": "ok"})
}

// POST /payments/refund
func (h *PaymentHandler) Refund(c fiber.Ctx) error {
	var body struct {
		AppointmentID string `json:"appointment_id"`
		Amount        *int64 `json:"amount"`
		Reason        string `json:"reason"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	apptID, err := uuid.Parse(body.AppointmentID)
	if err != nil {
		return badRequest(c, "invalid appointment_id")
	}

	res, err := h.svc.CreateRefund(c.Context(), apptID, payment.RefundInput{
		Amount: body.Amount,
		Reason: body.Reason,
	})
	if err != nil {
		return mapPaymentError(c, err)
	}
	return ok(c, res)
}
