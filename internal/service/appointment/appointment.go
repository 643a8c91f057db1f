// Package appointment implements the booking lifecycle around which payments
// and reminders orbit: pending -> accepted -> completed, with decline and
// cancel branches. Accept and cancel publish events that the workers turn
// into reminder scheduling and cancellation.
package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medora-health/medora_backend/internal/events"
	"github.com/medora-health/medora_backend/internal/model"
	"github.com/medora-health/medora_backend/internal/service/payment"
)

// Store is the persistence slice this service needs.
type Store interface {
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	ListAppointments(ctx context.Context, status *model.AppointmentStatus, limit, offset int) ([]*model.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, reason *string) error
}

// Publisher is the slice of *nats.Conn this service uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type BookInput struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	Amount    int64 // consultation fee in minor units
	Currency  string
	Notes     *string
}

type Service interface {
	Book(ctx context.Context, in BookInput) (*model.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	List(ctx context.Context, status *model.AppointmentStatus, limit, offset int) ([]*model.Appointment, error)

	// Accept moves a pending appointment to accepted and announces it so
	// reminders get scheduled.
	Accept(ctx context.Context, id uuid.UUID) error

	// Decline moves a pending appointment to declined.
	Decline(ctx context.Context, id uuid.UUID) error

	// Cancel moves a pending or accepted appointment to cancelled, refunds
	// any captured payment per the decay policy and announces the
	// cancellation so pending reminders get skipped.
	Cancel(ctx context.Context, id uuid.UUID, reason string) error
}

type service struct {
	store    Store
	payments payment.Service
	pub      Publisher
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store Store, payments payment.Service, pub Publisher, logger *slog.Logger) Service {
	return &service{
		store:    store,
		payments: payments,
		pub:      pub,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *service) Book(ctx context.Context, in BookInput) (*model.Appointment, error) {
	if !in.StartTime.After(s.now()) {
		return nil, ErrStartTimeInPast
	}
	if in.PatientID == in.DoctorID {
		return nil, ErrSamePartner
	}

	appt := &model.Appointment{
		ID:            uuid.New(),
		PatientID:     in.PatientID,
		DoctorID:      in.DoctorID,
		StartTime:     in.StartTime,
		Status:        model.AppointmentPending,
		Notes:         in.Notes,
		PaymentStatus: model.PaymentPending,
		Amount:        in.Amount,
		Currency:      in.Currency,
	}
	if err := s.store.CreateAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID.String(),
		"doctor_id", appt.DoctorID.String(),
		"start_time", appt.StartTime,
	)
	return appt, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return appt, nil
}

func (s *service) List(ctx context.Context, status *model.AppointmentStatus, limit, offset int) ([]*model.Appointment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListAppointments(ctx, status, limit, offset)
}

func (s *service) Accept(ctx context.Context, id uuid.UUID) error {
	appt, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if appt.Status != model.AppointmentPending {
		return fmt.Errorf("%w: %s -> accepted", ErrInvalidTransition, appt.Status)
	}

	if err := s.store.UpdateAppointmentStatus(ctx, id, model.AppointmentAccepted, nil); err != nil {
		return fmt.Errorf("accept appointment: %w", err)
	}

	s.publish(events.AppointmentAcceptedSubject(id), events.AppointmentEvent{AppointmentID: id})
	s.logger.Info("appointment accepted", "appointment_id", id.String())
	return nil
}

func (s *service) Decline(ctx context.Context, id uuid.UUID) error {
	appt, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if appt.Status != model.AppointmentPending {
		return fmt.Errorf("%w: %s -> declined", ErrInvalidTransition, appt.Status)
	}
	if err := s.store.UpdateAppointmentStatus(ctx, id, model.AppointmentDeclined, nil); err != nil {
		return fmt.Errorf("decline appointment: %w", err)
	}
	s.logger.Info("appointment declined", "appointment_id", id.String())
	return nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	appt, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch appt.Status {
	case model.AppointmentPending, model.AppointmentAccepted:
		// cancellable
	default:
		return fmt.Errorf("%w: %s -> cancelled", ErrInvalidTransition, appt.Status)
	}

	// Refund before flipping status so a gateway failure leaves the
	// appointment cancellable and retryable as a whole.
	if appt.PaymentStatus == model.PaymentPaid {
		_, err := s.payments.CreateRefund(ctx, id, payment.RefundInput{Reason: reason})
		switch {
		case err == nil:
		case errors.Is(err, payment.ErrNoRefundAvailable):
			s.logger.Info("cancellation inside no-refund window", "appointment_id", id.String())
		case errors.Is(err, payment.ErrAlreadyRefunded):
			// a previous cancel attempt got this far
		default:
			return fmt.Errorf("refund on cancel: %w", err)
		}
	}

	if err := s.store.UpdateAppointmentStatus(ctx, id, model.AppointmentCancelled, &reason); err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}

	s.publish(events.AppointmentCancelledSubject(id), events.AppointmentEvent{
		AppointmentID: id,
		Reason:        reason,
	})
	s.logger.Info("appointment cancelled", "appointment_id", id.String(), "reason", reason)
	return nil
}

// publish is best effort. Losing an event degrades to the daily safety-net
// sweep catching up; it never fails the user-facing operation.
func (s *service) publish(subject string, ev events.AppointmentEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("encode event", "subject", subject, "error", err)
		return
	}
	if err := s.pub.Publish(subject, data); err != nil {
		s.logger.Warn("publish event failed", "subject", subject, "error", err)
	}
}
