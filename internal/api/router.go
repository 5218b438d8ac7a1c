package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/telehealth-scheduling/internal/account"
	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/availability"
	"github.com/hackgods/telehealth-scheduling/internal/ledger"
	"github.com/hackgods/telehealth-scheduling/internal/payout"
)

type AccountService interface {
	Current(ctx context.Context, id uuid.UUID) (*account.Account, error)
	ChooseRole(ctx context.Context, id uuid.UUID, role account.Role, p account.Profile) (*account.Account, error)
	SetVerification(ctx context.Context, adminID, doctorID uuid.UUID, status account.VerificationStatus) (*account.Account, error)
	PurchaseCredits(ctx context.Context, id uuid.UUID, credits int64) (*account.Account, error)
	AdjustCredits(ctx context.Context, adminID, id uuid.UUID, delta int64) (*account.Account, error)
	Reconcile(ctx context.Context, adminID, id uuid.UUID) (*ledger.Reconciliation, error)
	History(ctx context.Context, id uuid.UUID, limit int) ([]ledger.Transaction, error)
	ListPendingDoctors(ctx context.Context, adminID uuid.UUID, limit int) ([]account.Account, error)
}

type AvailabilityService interface {
	ComputeSlots(ctx context.Context, doctorID uuid.UUID, q availability.Query) ([]availability.DaySlots, error)
	Window(ctx context.Context, doctorID uuid.UUID) (availability.Window, error)
	SetWindow(ctx context.Context, doctorID uuid.UUID, w availability.Window) (availability.Window, error)
}

type AppointmentService interface {
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	Cancel(ctx context.Context, accountID, id uuid.UUID) (*appointment.Appointment, error)
	Complete(ctx context.Context, doctorID, id uuid.UUID) (*appointment.Appointment, error)
	Delete(ctx context.Context, accountID, id uuid.UUID) error
	JoinToken(ctx context.Context, accountID, id uuid.UUID) (*appointment.JoinCredentials, error)
	Get(ctx context.Context, accountID, id uuid.UUID) (*appointment.Appointment, error)
	ListForAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]appointment.Appointment, error)
}

type PayoutService interface {
	Request(ctx context.Context, doctorID uuid.UUID, credits int64, paypalEmail string) (*payout.Payout, error)
	Approve(ctx context.Context, payoutID, adminID uuid.UUID) (*payout.Payout, error)
	ListPending(ctx context.Context, adminID uuid.UUID, limit int) ([]payout.Payout, error)
}

type RouterConfig struct {
	Accounts     AccountService
	Availability AvailabilityService
	Appointments AppointmentService
	Payouts      PayoutService

	Postgres Pinger
	Redis    Pinger
	Gatherer prometheus.Gatherer

	Logger  *slog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(withRequestID)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(requireIdentity(cfg.Accounts, logger))

		r.Get("/me", currentAccountHandler())
		r.Post("/me/role", chooseRoleHandler(cfg.Accounts, logger))
		r.Get("/me/availability", getWindowHandler(cfg.Availability, logger))
		r.Put("/me/availability", setWindowHandler(cfg.Availability, logger))

		r.Get("/doctors/{id}/slots", doctorSlotsHandler(cfg.Availability, logger))

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", bookAppointmentHandler(cfg.Appointments, logger))
			r.Get("/", listAppointmentsHandler(cfg.Appointments, logger))
			r.Get("/{id}", getAppointmentHandler(cfg.Appointments, logger))
			r.Delete("/{id}", deleteAppointmentHandler(cfg.Appointments, logger))
			r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Appointments, logger))
			r.Post("/{id}/complete", completeAppointmentHandler(cfg.Appointments, logger))
			r.Post("/{id}/join-token", joinTokenHandler(cfg.Appointments, logger))
		})

		r.Post("/credits/purchase", purchaseCreditsHandler(cfg.Accounts, logger))
		r.Get("/credits/transactions", creditHistoryHandler(cfg.Accounts, logger))

		r.Post("/payouts", requestPayoutHandler(cfg.Payouts, logger))

		r.Route("/admin", func(r chi.Router) {
			r.Get("/doctors/pending", pendingDoctorsHandler(cfg.Accounts, logger))
			r.Post("/doctors/{id}/verification", setVerificationHandler(cfg.Accounts, logger))
			r.Post("/accounts/{id}/credits", adjustCreditsHandler(cfg.Accounts, logger))
			r.Get("/accounts/{id}/reconcile", reconcileHandler(cfg.Accounts, logger))
			r.Get("/payouts", pendingPayoutsHandler(cfg.Payouts, logger))
			r.Post("/payouts/{id}/approve", approvePayoutHandler(cfg.Payouts, logger))
		})
	})

	return otelhttp.NewHandler(r, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
