package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/medora-health/medora_backend/config"
	"github.com/medora-health/medora_backend/internal/service/appointment"
	"github.com/medora-health/medora_backend/internal/service/notification"
	"github.com/medora-health/medora_backend/internal/service/payment"
	"github.com/medora-health/medora_backend/internal/service/reminder"
	"github.com/medora-health/medora_backend/internal/store"
	"github.com/medora-health/medora_backend/pkg/email"
	razorpaypkg "github.com/medora-health/medora_backend/pkg/razorpay"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideLogger,
		ProvideStore,
		ProvideNotificationDispatcher,
		ProvidePaymentService,
		ProvideReminderService,
		ProvideAppointmentService,
	),
)

func ProvideLogger() *slog.Logger {
	return slog.Default()
}

func ProvideStore(pool *pgxpool.Pool) *store.Store {
	return store.New(pool)
}

func ProvideNotificationDispatcher(mail *email.Client, logger *slog.Logger) notification.Dispatcher {
	return notification.NewDispatcher(mail, logger)
}

func ProvidePaymentService(
	st *store.Store,
	gateway *razorpaypkg.Client,
	notifier notification.Dispatcher,
	cfg *config.Config,
	logger *slog.Logger,
) payment.Service {
	return payment.NewService(st, gateway, notifier, cfg.Razorpay, logger)
}

func ProvideReminderService(
	st *store.Store,
	notifier notification.Dispatcher,
	cfg *config.Config,
	logger *slog.Logger,
) reminder.Service {
	return reminder.NewService(st, notifier, cfg.Reminders, logger)
}

func ProvideAppointmentService(
	st *store.Store,
	payments payment.Service,
	nc *nats.Conn,
	logger *slog.Logger,
) appointment.Service {
	return appointment.NewService(st, payments, nc, logger)
}
