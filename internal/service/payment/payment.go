// Package payment orchestrates the order, verification, webhook and refund
// flows against the Razorpay gateway. It is the only writer of the payment
// columns on appointments and of the payment ledger.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medora-health/medora_backend/config"
	"github.com/medora-health/medora_backend/internal/model"
	"github.com/medora-health/medora_backend/internal/service/notification"
	"github.com/medora-health/medora_backend/pkg/razorpay"
)

// Store is the persistence slice this service needs.
type Store interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	UpdateAppointmentPayment(ctx context.Context, id uuid.UUID, patch model.PaymentPatch) error
	InsertPaymentRecord(ctx context.Context, r *model.PaymentRecord) error
	UpdatePaymentRecordStatus(ctx context.Context, gatewayPaymentID string, status model.PaymentRecordStatus) error
	ResolveUserDisplayName(ctx context.Context, id uuid.UUID) (string, error)
	ResolveUserEmail(ctx context.Context, id uuid.UUID) (string, error)
}

// Gateway is the slice of the Razorpay client this service uses.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	CreateRefund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (*razorpay.Refund, error)
}

type Service interface {
	// CreateOrder opens a gateway order for an unpaid appointment. Local
	// payment state is untouched until verification.
	CreateOrder(ctx context.Context, appointmentID uuid.UUID, in CreateOrderInput) (*OrderResult, error)

	// VerifyPayment checks the checkout callback signature and, on success,
	// confirms the payment against the gateway's authoritative record.
	VerifyPayment(ctx context.Context, in VerifyInput) error

	// HandleWebhook authenticates a raw gateway webhook delivery and feeds
	// captured and authorized payments through the same confirmation path as
	// VerifyPayment.
	HandleWebhook(ctx context.Context, body []byte, signature string) error

	// CreateRefund refunds a paid appointment. Without an explicit amount the
	// time-decay policy measured against the start time decides the sum.
	CreateRefund(ctx context.Context, appointmentID uuid.UUID, in RefundInput) (*RefundResult, error)
}

// CreateOrderInput carries optional overrides. A nil Amount means the
// appointment's consultation fee; an empty Currency falls back to the
// appointment's, then the configured default.
type CreateOrderInput struct {
	Amount   *int64
	Currency string
}

// RefundInput carries the optional explicit amount and the reason recorded
// with the gateway. A nil Amount means the time-decay entitlement.
type RefundInput struct {
	Amount *int64
	Reason string
}

type OrderResult struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"`
}

type VerifyInput struct {
	AppointmentID uuid.UUID
	OrderID       string
	PaymentID     string
	Signature     string
}

type RefundResult struct {
	RefundID string `json:"refund_id"`
	Amount   int64  `json:"amount"`
	Full     bool   `json:"full"`
}

type service struct {
	store    Store
	gateway  Gateway
	notifier notification.Dispatcher
	cfg      config.RazorpayConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store Store, gateway Gateway, notifier notification.Dispatcher, cfg config.RazorpayConfig, logger *slog.Logger) Service {
	return &service{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *service) CreateOrder(ctx context.Context, appointmentID uuid.UUID, in CreateOrderInput) (*OrderResult, error) {
	appt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if appt.PaymentStatus == model.PaymentPaid {
		return nil, ErrAlreadyPaid
	}

	amount := appt.Amount
	if in.Amount != nil && *in.Amount > 0 {
		amount = *in.Amount
	}
	if amount < s.cfg.MinAmount {
		return nil, fmt.Errorf("%w: %d.%02d is less than %d.%02d",
			ErrBelowMinimum, amount/100, amount%100, s.cfg.MinAmount/100, s.cfg.MinAmount%100)
	}

	currency := in.Currency
	if currency == "" {
		currency = appt.Currency
	}
	if currency == "" {
		currency = s.cfg.Currency
	}

	// Receipt must be unique at the gateway even when a stale order for the
	// same appointment exists.
	receipt := fmt.Sprintf("appt-%s-%d", appt.ID.String()[:8], s.now().Unix())

	order, err := s.gateway.CreateOrder(ctx, amount, currency, receipt, map[string]string{
		"appointment_id": appt.ID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	// No local write here. The order id, amount and currency land on the
	// appointment only when a payment is verified, so a retried order never
	// strands a payment made against an earlier one.
	s.logger.Info("payment order created",
		"appointment_id", appt.ID.String(),
		"order_id", order.ID,
		"amount", amount,
	)

	return &OrderResult{
		OrderID:  order.ID,
		Amount:   amount,
		Currency: currency,
		KeyID:    s.cfg.KeyID,
	}, nil
}

func (s *service) VerifyPayment(ctx context.Context, in VerifyInput) error {
	// Signature first. Nothing is read or written until the caller proves
	// the callback came from the gateway.
	if !razorpay.VerifyPaymentSignature(in.OrderID, in.PaymentID, in.Signature, s.cfg.KeySecret) {
		return ErrSignatureMismatch
	}
	return s.confirmPayment(ctx, in.AppointmentID, in.OrderID, in.PaymentID)
}

// webhookEvent is the slice of Razorpay's webhook envelope we care about.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity razorpay.Payment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (s *service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !razorpay.VerifyWebhookSignature(body, signature, s.cfg.WebhookSecret) {
		return ErrSignatureMismatch
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode webhook: %w", err)
	}

	switch ev.Event {
	case "payment.captured", "payment.authorized":
	default:
		s.logger.Debug("ignoring webhook event", "event", ev.Event)
		return nil
	}

	entity := ev.Payload.Payment.Entity
	rawID, ok := entity.Notes["appointment_id"]
	if !ok || rawID == "" {
		// Not a payment we initiated. Acknowledge so the gateway stops
		// retrying.
		s.logger.Warn("webhook payment without appointment note", "payment_id", entity.ID)
		return nil
	}
	appointmentID, err := uuid.Parse(rawID)
	if err != nil {
		s.logger.Warn("webhook payment with malformed appointment note",
			"payment_id", entity.ID, "note", rawID)
		return nil
	}

	err = s.confirmPayment(ctx, appointmentID, entity.OrderID, entity.ID)
	if errors.Is(err, ErrAlreadyPaid) {
		// Webhook redeliveries for a confirmed payment are expected.
		return nil
	}
	return err
}

// confirmPayment is the single confirmation path shared by the checkout
// callback and the webhook. The gateway's payment record is authoritative
// for amount, currency and status; caller-supplied values are never stored.
func (s *service) confirmPayment(ctx context.Context, appointmentID uuid.UUID, orderID, paymentID string) error {
	appt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return ErrAppointmentNotFound
		}
		return err
	}

	if appt.PaymentStatus == model.PaymentPaid {
		if appt.GatewayPaymentID != nil && *appt.GatewayPaymentID == paymentID {
			return nil // replayed confirmation of the same payment
		}
		return ErrAlreadyPaid
	}

	payment, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("fetch payment: %w", err)
	}
	recordStatus := model.PaymentRecordCaptured
	switch payment.Status {
	case "captured":
	case "authorized":
		recordStatus = model.PaymentRecordAuthorized
	default:
		return fmt.Errorf("%w: status=%s", ErrPaymentNotCaptured, payment.Status)
	}
	if payment.OrderID != orderID {
		return ErrOrderMismatch
	}

	raw, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("encode payment payload: %w", err)
	}

	if err := s.store.InsertPaymentRecord(ctx, &model.PaymentRecord{
		ID:               uuid.New(),
		AppointmentID:    appt.ID,
		GatewayPaymentID: payment.ID,
		GatewayOrderID:   payment.OrderID,
		Amount:           payment.Amount,
		Currency:         payment.Currency,
		Status:           recordStatus,
		Method:           payment.Method,
		RawPayload:       raw,
	}); err != nil {
		return fmt.Errorf("insert payment record: %w", err)
	}

	paid := model.PaymentPaid
	if err := s.store.UpdateAppointmentPayment(ctx, appt.ID, model.PaymentPatch{
		PaymentStatus:    &paid,
		Amount:           &payment.Amount,
		Currency:         &payment.Currency,
		GatewayOrderID:   &payment.OrderID,
		GatewayPaymentID: &payment.ID,
	}); err != nil {
		return fmt.Errorf("mark appointment paid: %w", err)
	}

	s.logger.Info("payment confirmed",
		"appointment_id", appt.ID.String(),
		"payment_id", payment.ID,
		"amount", payment.Amount,
	)

	s.notifyPaymentConfirmed(appt, payment)
	return nil
}

// notifyPaymentConfirmed emails both parties in the background. Delivery is
// best effort; a failure never rolls back the confirmed payment.
func (s *service) notifyPaymentConfirmed(appt *model.Appointment, payment *razorpay.Payment) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		patientName, _ := s.store.ResolveUserDisplayName(ctx, appt.PatientID)
		doctorName, _ := s.store.ResolveUserDisplayName(ctx, appt.DoctorID)

		recipients := []struct {
			userID      uuid.UUID
			name        string
			counterpart string
		}{
			{appt.PatientID, patientName, doctorName},
			{appt.DoctorID, doctorName, patientName},
		}
		for _, r := range recipients {
			email, err := s.store.ResolveUserEmail(ctx, r.userID)
			if err != nil {
				s.logger.Warn("payment notification skipped, no email",
					"appointment_id", appt.ID.String(), "user_id", r.userID.String(), "error", err)
				continue
			}
			err = s.notifier.Send(ctx, notification.KindPaymentConfirmed, email, notification.Payload{
				RecipientName:   r.name,
				CounterpartName: r.counterpart,
				AppointmentAt:   appt.StartTime,
				Amount:          payment.Amount,
				Currency:        payment.Currency,
				PaymentID:       payment.ID,
			})
			if err != nil {
				s.logger.Warn("payment notification failed",
					"appointment_id", appt.ID.String(), "user_id", r.userID.String(), "error", err)
			}
		}
	}()
}

func (s *service) CreateRefund(ctx context.Context, appointmentID uuid.UUID, in RefundInput) (*RefundResult, error) {
	appt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	switch appt.PaymentStatus {
	case model.PaymentRefunded, model.PaymentPartialRefund:
		return nil, ErrAlreadyRefunded
	case model.PaymentPaid:
		// proceed
	default:
		return nil, ErrNoPayment
	}
	if appt.GatewayPaymentID == nil {
		return nil, ErrNoPayment
	}

	amount := RefundAmount(appt.Amount, appt.StartTime.Sub(s.now()))
	if in.Amount != nil {
		amount = *in.Amount
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount %d", ErrNoRefundAvailable, amount)
	}

	refund, err := s.gateway.CreateRefund(ctx, *appt.GatewayPaymentID, amount, map[string]string{
		"appointment_id": appt.ID.String(),
		"reason":         in.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway refund: %w", err)
	}

	full := amount >= appt.Amount
	status := model.PaymentPartialRefund
	if full {
		status = model.PaymentRefunded
	}
	refundedAt := s.now()

	if err := s.store.UpdateAppointmentPayment(ctx, appt.ID, model.PaymentPatch{
		PaymentStatus: &status,
		RefundID:      &refund.ID,
		RefundAmount:  &amount,
		RefundedAt:    &refundedAt,
	}); err != nil {
		return nil, fmt.Errorf("store refund: %w", err)
	}

	if err := s.store.UpdatePaymentRecordStatus(ctx, *appt.GatewayPaymentID, model.PaymentRecordRefunded); err != nil {
		// Ledger row is advisory here; the appointment already carries the
		// refund. Log and return success.
		s.logger.Warn("failed to mark ledger row refunded",
			"payment_id", *appt.GatewayPaymentID, "error", err)
	}

	s.logger.Info("refund created",
		"appointment_id", appt.ID.String(),
		"refund_id", refund.ID,
		"amount", amount,
		"full", full,
	)

	return &RefundResult{RefundID: refund.ID, Amount: amount, Full: full}, nil
}

// RefundAmount applies the cancellation time-decay policy. until is how far
// in the future the appointment starts; paid is the captured amount in minor
// units. Percentages floor toward zero.
//
//	more than 24h before start: 100%
//	more than 12h:               50%
//	more than 6h:                25%
//	otherwise:                    0
func RefundAmount(paid int64, until time.Duration) int64 {
	switch {
	case until > 24*time.Hour:
		return paid
	case until > 12*time.Hour:
		return paid * 50 / 100
	case until > 6*time.Hour:
		return paid * 25 / 100
	default:
		return 0
	}
}
