package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/resource-scheduler/internal/telemetry"
)

type RouterConfig struct {
	Availability *AvailabilityHandler
	Capabilities *CapabilityHandler
	Projects     *ProjectHandler
	Metrics      *telemetry.Metrics
	// AdminTokenHash is a bcrypt hash guarding every mutating route. Empty
	// leaves the API open.
	AdminTokenHash string
	// HealthCheck backs GET /healthz. Nil always reports healthy.
	HealthCheck    func(ctx context.Context) error
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Middleware     []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger(logger))
	router.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware)
	}
	if cfg.RequestTimeout > 0 {
		router.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	for _, mw := range cfg.Middleware {
		if mw != nil {
			router.Use(mw)
		}
	}

	router.Get("/healthz", healthHandler(cfg.HealthCheck, logger))
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics.Handler())
	}

	admin := RequireAdminToken(cfg.AdminTokenHash, logger)

	if h := cfg.Availability; h != nil {
		router.Get("/resources/{id}/availability", h.Availability)
		router.Get("/resources/{id}/calendar", h.Calendar)
		router.Get("/calendars", h.Calendars)
		router.Get("/parents/{id}/availability", h.ParentAvailability)
		router.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/resources/{id}/slots", h.CreateSlots)
			r.Post("/resources/{id}/slots/recurring", h.CreateRecurringSlots)
			r.Post("/resources/{id}/block", h.Block)
			r.Post("/resources/{id}/release", h.Release)
			r.Post("/resources/{id}/disable", h.Disable)
			r.Post("/resources/{id}/enable", h.Enable)
		})
	}

	if h := cfg.Capabilities; h != nil {
		router.Get("/capabilities", h.Find)
		router.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/resources/{id}/capabilities", h.Schedule)
			r.Post("/allocations", h.Allocate)
		})
	}

	if h := cfg.Projects; h != nil {
		router.Get("/projects", h.List)
		router.Get("/projects/{id}", h.Get)
		router.Post("/projects/{id}/feasibility", h.Feasibility)
		router.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/projects", h.Create)
			r.Put("/projects/{id}/stages", h.DefineStages)
			r.Post("/projects/{id}/demands", h.AddDemands)
			r.Post("/projects/{id}/critical-stages", h.PlanCriticalStages)
			r.Post("/projects/{id}/schedule", h.PlanFromStart)
		})
	}

	return router
}

type healthResponse struct {
	Status string `json:"status"`
}

func healthHandler(check func(ctx context.Context) error, logger *slog.Logger) http.HandlerFunc {
	responder := newResponder(logger)
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "health check failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
