package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by the store when a row does not exist.
var ErrNotFound = errors.New("record not found")

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentAccepted  AppointmentStatus = "accepted"
	AppointmentDeclined  AppointmentStatus = "declined"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPaid          PaymentStatus = "paid"
	PaymentFailed        PaymentStatus = "failed"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentPartialRefund PaymentStatus = "partial_refund"
)

// Appointment is a booked consultation. The payment attribute set lives as
// columns on this entity, not as a separate table; only the payment
// orchestrator mutates those columns.
type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	Status    AppointmentStatus
	Notes     *string

	// Payment attributes. Invariant: PaymentStatus == paid implies
	// GatewayPaymentID != nil and Amount > 0; refunded/partial_refund imply
	// a prior paid state and RefundID != nil.
	PaymentStatus    PaymentStatus
	Amount           int64 // minor units (paise/cents)
	Currency         string
	GatewayOrderID   *string
	GatewayPaymentID *string
	RefundID         *string
	RefundAmount     *int64
	RefundedAt       *time.Time

	CancelledAt        *time.Time
	CancellationReason *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PaymentPatch is the set of payment columns a verification or refund is
// allowed to write on an appointment. Nil fields are left untouched.
type PaymentPatch struct {
	PaymentStatus    *PaymentStatus
	Amount           *int64
	Currency         *string
	GatewayOrderID   *string
	GatewayPaymentID *string
	RefundID         *string
	RefundAmount     *int64
	RefundedAt       *time.Time
}
