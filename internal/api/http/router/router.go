package router

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/medora-health/medora_backend/config"
	"github.com/medora-health/medora_backend/internal/api/http/handler"
	"github.com/medora-health/medora_backend/internal/service/appointment"
	"github.com/medora-health/medora_backend/internal/service/payment"
	"github.com/medora-health/medora_backend/internal/service/reminder"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg            *config.Config
	AppointmentSvc appointment.Service
	PaymentSvc     payment.Service
	ReminderSvc    reminder.Service
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

func (r *Router) Register(app *fiber.App) {
	// 1. Health & Metrics
	r.registerSystemRoutes(app)

	// 2. Initialize Handlers
	appointmentH := handler.NewAppointmentHandler(r.p.AppointmentSvc)
	paymentH := handler.NewPaymentHandler(r.p.PaymentSvc)
	reminderH := handler.NewReminderHandler(r.p.ReminderSvc)

	api := app.Group("/api/v1")

	// 3. Delegate to sub-files
	r.registerAppointmentRoutes(api, appointmentH)
	r.registerPaymentRoutes(api, paymentH)
	r.registerReminderRoutes(api, reminderH)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New())
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		path := r.p.Cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}
}
