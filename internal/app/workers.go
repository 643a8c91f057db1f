package app

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"

	"github.com/medora-health/medora_backend/config"
	"github.com/medora-health/medora_backend/internal/events"
	"github.com/medora-health/medora_backend/internal/service/reminder"
)

const (
	defaultSweepCron     = "*/15 * * * *"
	defaultSafetyNetCron = "0 3 * * *"
)

// WorkerModule registers the NATS event workers and the cron jobs.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc          fx.Lifecycle
	NC          *nats.Conn
	ReminderSvc reminder.Service
	Cfg         *config.Config
}

func RegisterWorkers(p WorkerParams) {
	// SkipIfStillRunning guards against a slow sweep overlapping the next
	// tick; the service mutex covers the manual HTTP trigger.
	runner := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			startReminderWorker(p.NC, p.ReminderSvc)
			if err := registerCronJobs(runner, p.ReminderSvc, p.Cfg.Reminders); err != nil {
				return err
			}
			runner.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// NATS drain handled by ProvideNatsClient.
			stopped := runner.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
}

// ---------------------------------------------------------------------------
// reminder_worker
// ---------------------------------------------------------------------------

func startReminderWorker(nc *nats.Conn, reminderSvc reminder.Service) {
	_, err := nc.Subscribe(events.SubjectAppointmentAccepted+".*", func(msg *nats.Msg) {
		var ev events.AppointmentEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("reminder_worker: bad accepted event", "err", err)
			return
		}

		ctx := context.Background()
		if err := reminderSvc.ScheduleForAppointment(ctx, ev.AppointmentID); err != nil {
			slog.Warn("reminder_worker: schedule failed",
				"appointment_id", ev.AppointmentID.String(), "err", err)
		}
	})
	if err != nil {
		slog.Error("reminder_worker: subscribe appointment.accepted failed", "err", err)
	}

	_, err = nc.Subscribe(events.SubjectAppointmentCancelled+".*", func(msg *nats.Msg) {
		var ev events.AppointmentEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("reminder_worker: bad cancelled event", "err", err)
			return
		}

		ctx := context.Background()
		if _, err := reminderSvc.CancelForAppointment(ctx, ev.AppointmentID, ev.Reason); err != nil {
			slog.Warn("reminder_worker: cancel failed",
				"appointment_id", ev.AppointmentID.String(), "err", err)
		}
	})
	if err != nil {
		slog.Error("reminder_worker: subscribe appointment.cancelled failed", "err", err)
	}

	slog.Info("reminder_worker: started")
}

// ---------------------------------------------------------------------------
// cron jobs
// ---------------------------------------------------------------------------

func registerCronJobs(runner *cron.Cron, reminderSvc reminder.Service, cfg config.RemindersConfig) error {
	sweepSpec := cfg.SweepCron
	if sweepSpec == "" {
		sweepSpec = defaultSweepCron
	}
	safetySpec := cfg.SafetyNetCron
	if safetySpec == "" {
		safetySpec = defaultSafetyNetCron
	}

	_, err := runner.AddFunc(sweepSpec, func() {
		stats, err := reminderSvc.Sweep(context.Background())
		if err != nil {
			slog.Error("reminder sweep failed", "err", err)
			return
		}
		if stats.Failed > 0 {
			slog.Warn("reminder sweep had failures", "failed", stats.Failed)
		}
	})
	if err != nil {
		return err
	}

	_, err = runner.AddFunc(safetySpec, func() {
		ctx := context.Background()
		if err := reminderSvc.ScheduleUpcoming(ctx); err != nil {
			slog.Error("reminder safety net failed", "err", err)
		}
		// Rows materialized above may already be inside the due window.
		if _, err := reminderSvc.Sweep(ctx); err != nil {
			slog.Error("reminder safety net sweep failed", "err", err)
		}
	})
	if err != nil {
		return err
	}

	slog.Info("cron jobs registered", "sweep", sweepSpec, "safety_net", safetySpec)
	return nil
}
