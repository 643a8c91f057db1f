// Package reminder schedules and delivers appointment reminders. Rows are
// materialized when an appointment is accepted and flipped to a terminal
// state by the periodic sweep; a reminder is touched by the sweep at most
// once.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medora-health/medora_backend/config"
	"github.com/medora-health/medora_backend/internal/model"
	"github.com/medora-health/medora_backend/internal/service/notification"
)

// Store is the persistence slice this service needs.
type Store interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	GetReminder(ctx context.Context, appointmentID uuid.UUID, kind string) (*model.ReminderRecord, error)
	InsertReminder(ctx context.Context, r *model.ReminderRecord) error
	ListUpcomingAcceptedAppointments(ctx context.Context, until time.Time) ([]*model.Appointment, error)
	QueryDueReminders(ctx context.Context, from, to time.Time) ([]*model.ReminderRecord, error)
	UpdateReminderStatus(ctx context.Context, id uuid.UUID, status model.ReminderStatus, errorMessage *string, sentAt *time.Time) (bool, error)
	BulkSkipPendingReminders(ctx context.Context, appointmentID uuid.UUID, reason string) (int64, error)
	ResolveUserDisplayName(ctx context.Context, id uuid.UUID) (string, error)
	ResolveUserEmail(ctx context.Context, id uuid.UUID) (string, error)
}

type Service interface {
	// ScheduleForAppointment materializes one pending reminder per enabled
	// kind for an accepted appointment; any other status is a quiet no-op.
	// Already-existing and already-due kinds are skipped; scheduling is
	// idempotent.
	ScheduleForAppointment(ctx context.Context, appointmentID uuid.UUID) error

	// Sweep delivers every pending reminder inside the due window. Each
	// reminder is processed in isolation; one failure never aborts the run.
	Sweep(ctx context.Context) (SweepStats, error)

	// ScheduleUpcoming re-runs scheduling for every accepted appointment
	// inside the reminder horizon. It is the safety net for accepted events
	// lost in transit; ScheduleForAppointment's idempotency makes rerunning
	// it harmless.
	ScheduleUpcoming(ctx context.Context) error

	// CancelForAppointment flips the appointment's still-pending reminders
	// to skipped. Terminal reminders are left as they are.
	CancelForAppointment(ctx context.Context, appointmentID uuid.UUID, reason string) (int64, error)
}

// SweepStats summarizes one sweep run for logging and the manual trigger
// endpoint.
type SweepStats struct {
	Due     int `json:"due"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// DefaultKinds is used when the reminders config lists none.
var DefaultKinds = []config.ReminderKindConfig{
	{Kind: "24h_before", HoursBefore: 24, Enabled: true},
	{Kind: "2h_before", HoursBefore: 2, Enabled: true},
	{Kind: "1h_before", HoursBefore: 1, Enabled: true},
}

const (
	defaultGraceMinutes     = 60
	defaultLookaheadMinutes = 15
)

type service struct {
	store    Store
	notifier notification.Dispatcher
	cfg      config.RemindersConfig
	logger   *slog.Logger
	now      func() time.Time

	// sweepMu serializes sweeps. The cron runner already skips overlapping
	// jobs; this covers the manual HTTP trigger racing a scheduled run.
	sweepMu sync.Mutex
}

func NewService(store Store, notifier notification.Dispatcher, cfg config.RemindersConfig, logger *slog.Logger) Service {
	return &service{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *service) kinds() []config.ReminderKindConfig {
	if len(s.cfg.Kinds) == 0 {
		return DefaultKinds
	}
	return s.cfg.Kinds
}

func (s *service) window(now time.Time) (from, to time.Time) {
	grace := s.cfg.GraceMinutes
	if grace <= 0 {
		grace = defaultGraceMinutes
	}
	lookahead := s.cfg.LookaheadMinutes
	if lookahead <= 0 {
		lookahead = defaultLookaheadMinutes
	}
	return now.Add(-time.Duration(grace) * time.Minute),
		now.Add(time.Duration(lookahead) * time.Minute)
}

func (s *service) ScheduleForAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	appt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return ErrAppointmentNotFound
		}
		return err
	}
	if appt.Status != model.AppointmentAccepted {
		// Only accepted appointments carry reminders. Callers fire this on
		// best effort, so a wrong-state call is not their problem.
		s.logger.Debug("skipping reminder scheduling",
			"appointment_id", appt.ID.String(), "status", string(appt.Status))
		return nil
	}

	now := s.now()
	var errs []error
	for _, kind := range s.kinds() {
		if !kind.Enabled {
			continue
		}

		scheduledFor := appt.StartTime.Add(-time.Duration(kind.HoursBefore) * time.Hour)
		if !scheduledFor.After(now) {
			// Accepted too late for this offset. Creating a pending row
			// in the past would fire a confusing reminder immediately.
			s.logger.Debug("reminder offset already passed",
				"appointment_id", appt.ID.String(), "kind", kind.Kind)
			continue
		}

		_, err := s.store.GetReminder(ctx, appt.ID, kind.Kind)
		if err == nil {
			continue // already scheduled
		}
		if !errors.Is(err, model.ErrNotFound) {
			errs = append(errs, fmt.Errorf("check reminder %s: %w", kind.Kind, err))
			continue
		}

		err = s.store.InsertReminder(ctx, &model.ReminderRecord{
			ID:            uuid.New(),
			AppointmentID: appt.ID,
			Kind:          kind.Kind,
			ScheduledFor:  scheduledFor,
			Status:        model.ReminderPending,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("insert reminder %s: %w", kind.Kind, err))
			continue
		}

		s.logger.Info("reminder scheduled",
			"appointment_id", appt.ID.String(),
			"kind", kind.Kind,
			"scheduled_for", scheduledFor,
		)
	}
	return errors.Join(errs...)
}

func (s *service) ScheduleUpcoming(ctx context.Context) error {
	horizon := time.Hour
	for _, kind := range s.kinds() {
		if kind.Enabled && time.Duration(kind.HoursBefore)*time.Hour > horizon {
			horizon = time.Duration(kind.HoursBefore) * time.Hour
		}
	}

	appts, err := s.store.ListUpcomingAcceptedAppointments(ctx, s.now().Add(horizon+time.Hour))
	if err != nil {
		return fmt.Errorf("list upcoming appointments: %w", err)
	}

	var errs []error
	for _, appt := range appts {
		if err := s.ScheduleForAppointment(ctx, appt.ID); err != nil {
			errs = append(errs, fmt.Errorf("appointment %s: %w", appt.ID, err))
		}
	}
	if len(appts) > 0 {
		s.logger.Debug("safety net pass finished",
			"appointments", len(appts), "errors", len(errs))
	}
	return errors.Join(errs...)
}

func (s *service) Sweep(ctx context.Context) (SweepStats, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	now := s.now()
	from, to := s.window(now)

	due, err := s.store.QueryDueReminders(ctx, from, to)
	if err != nil {
		return SweepStats{}, fmt.Errorf("query due reminders: %w", err)
	}

	stats := SweepStats{Due: len(due)}
	for _, rem := range due {
		switch s.process(ctx, rem, now) {
		case model.ReminderSent:
			stats.Sent++
		case model.ReminderFailed:
			stats.Failed++
		case model.ReminderSkipped:
			stats.Skipped++
		}
	}

	if stats.Due > 0 {
		s.logger.Info("reminder sweep finished",
			"due", stats.Due, "sent", stats.Sent,
			"failed", stats.Failed, "skipped", stats.Skipped,
		)
	}
	return stats, nil
}

// process moves one due reminder to its terminal state and reports which one
// it reached. A zero return means the reminder was left pending for the next
// sweep, or had already been taken by a concurrent run.
func (s *service) process(ctx context.Context, rem *model.ReminderRecord, now time.Time) model.ReminderStatus {
	appt, err := s.store.GetAppointment(ctx, rem.AppointmentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			reason := "appointment no longer exists"
			return s.finish(ctx, rem, model.ReminderSkipped, &reason, nil)
		}
		// Transient read failure: leave the row pending so the next sweep
		// retries while it is still inside the grace window.
		s.logger.Error("sweep could not load appointment",
			"reminder_id", rem.ID.String(),
			"appointment_id", rem.AppointmentID.String(),
			"error", err,
		)
		return ""
	}

	if appt.Status != model.AppointmentAccepted {
		reason := fmt.Sprintf("appointment is %s", appt.Status)
		return s.finish(ctx, rem, model.ReminderSkipped, &reason, nil)
	}

	email, err := s.store.ResolveUserEmail(ctx, appt.PatientID)
	if err != nil {
		msg := fmt.Sprintf("resolve patient email: %v", err)
		return s.finish(ctx, rem, model.ReminderFailed, &msg, nil)
	}
	patientName, _ := s.store.ResolveUserDisplayName(ctx, appt.PatientID)
	doctorName, _ := s.store.ResolveUserDisplayName(ctx, appt.DoctorID)

	err = s.notifier.Send(ctx, notification.KindAppointmentReminder, email, notification.Payload{
		RecipientName:   patientName,
		CounterpartName: doctorName,
		AppointmentAt:   appt.StartTime,
		ReminderKind:    rem.Kind,
	})
	if err != nil {
		msg := err.Error()
		return s.finish(ctx, rem, model.ReminderFailed, &msg, nil)
	}

	sentAt := now
	return s.finish(ctx, rem, model.ReminderSent, nil, &sentAt)
}

// finish applies the terminal transition. The update is conditional on the
// row still being pending; zero rows means another run got there first and
// this attempt counts as nothing.
func (s *service) finish(ctx context.Context, rem *model.ReminderRecord, status model.ReminderStatus, errorMessage *string, sentAt *time.Time) model.ReminderStatus {
	updated, err := s.store.UpdateReminderStatus(ctx, rem.ID, status, errorMessage, sentAt)
	if err != nil {
		s.logger.Error("failed to finalize reminder",
			"reminder_id", rem.ID.String(), "status", string(status), "error", err)
		return ""
	}
	if !updated {
		s.logger.Debug("reminder already processed elsewhere", "reminder_id", rem.ID.String())
		return ""
	}
	if status == model.ReminderFailed {
		s.logger.Warn("reminder delivery failed",
			"reminder_id", rem.ID.String(),
			"appointment_id", rem.AppointmentID.String(),
			"kind", rem.Kind,
			"error", derefOr(errorMessage, ""),
		)
	}
	return status
}

func (s *service) CancelForAppointment(ctx context.Context, appointmentID uuid.UUID, reason string) (int64, error) {
	if reason == "" {
		reason = "appointment cancelled"
	}
	n, err := s.store.BulkSkipPendingReminders(ctx, appointmentID, reason)
	if err != nil {
		return 0, fmt.Errorf("cancel reminders: %w", err)
	}
	if n > 0 {
		s.logger.Info("reminders cancelled",
			"appointment_id", appointmentID.String(), "count", n)
	}
	return n, nil
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
