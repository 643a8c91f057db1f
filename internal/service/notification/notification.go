// Package notification fans domain events out to delivery channels. Email is
// the only channel wired today; the dispatcher interface keeps callers
// channel-agnostic so SMS or push can slot in later.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/medora-health/medora_backend/pkg/email"
)

type Kind string

const (
	KindPaymentConfirmed    Kind = "payment_confirmed"
	KindAppointmentReminder Kind = "appointment_reminder"
)

// Payload carries every field any template may need. Unused fields are
// ignored by templates that do not reference them.
type Payload struct {
	RecipientName   string
	CounterpartName string
	AppointmentAt   time.Time
	Amount          int64 // minor units
	Currency        string
	PaymentID       string
	ReminderKind    string
}

type Dispatcher interface {
	Send(ctx context.Context, kind Kind, recipient string, data Payload) error
}

// mailer is the slice of *email.Client the dispatcher uses.
type mailer interface {
	IsEnabled() bool
	Send(ctx context.Context, m email.Message) error
}

type dispatcher struct {
	mail   mailer
	logger *slog.Logger
}

func NewDispatcher(mail *email.Client, logger *slog.Logger) Dispatcher {
	return &dispatcher{mail: mail, logger: logger}
}

func (d *dispatcher) Send(ctx context.Context, kind Kind, recipient string, data Payload) error {
	if recipient == "" {
		return ErrNoRecipient
	}

	// A deployment without SMTP credentials still runs; deliveries become
	// logged no-ops rather than errors.
	if !d.mail.IsEnabled() {
		d.logger.Info("email disabled, skipping notification",
			"kind", string(kind),
			"recipient", recipient,
		)
		return nil
	}

	var msg email.Message
	switch kind {
	case KindPaymentConfirmed:
		msg = email.BuildPaymentConfirmedEmail(email.PaymentConfirmedData{
			RecipientName:   data.RecipientName,
			Email:           recipient,
			CounterpartName: data.CounterpartName,
			AppointmentAt:   data.AppointmentAt,
			Amount:          data.Amount,
			Currency:        data.Currency,
			PaymentID:       data.PaymentID,
		})
	case KindAppointmentReminder:
		msg = email.BuildReminderEmail(email.ReminderData{
			PatientName:   data.RecipientName,
			Email:         recipient,
			DoctorName:    data.CounterpartName,
			AppointmentAt: data.AppointmentAt,
			Kind:          data.ReminderKind,
		})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if err := d.mail.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFail, err)
	}

	d.logger.Debug("notification sent",
		"kind", string(kind),
		"recipient", recipient,
	)
	return nil
}
