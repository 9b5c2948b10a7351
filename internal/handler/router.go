package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/infra/observability"
	"github.com/billzap/billzap-go/internal/scheduler"
	"github.com/billzap/billzap-go/internal/service"
)

// NewRouter creates the HTTP router with all routes and middleware.
// Mutating routes require a Bearer token; read-only admin routes and
// operational endpoints are open.
func NewRouter(
	svc *service.BillingService,
	advisor *service.TemplateAdvisor,
	sched *scheduler.Scheduler,
	metrics *observability.Metrics,
	logger *zap.Logger,
	jwtSecret string,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(sched))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Tenant billing (read)
		// =============================================
		r.Get("/tenants/{tenantID}/billing/settings", billingSettingsHandler(svc, logger))
		r.Get("/tenants/{tenantID}/billing/runs/last", lastRunHandler(svc))
		r.Get("/tenants/{tenantID}/templates", listTemplatesHandler(svc, logger))
		r.Get("/tenants/{tenantID}/contacts", listContactsHandler(svc, logger))

		// =============================================
		// Tenant billing (mutating, protected)
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(jwtSecret, logger))
			r.Post("/tenants/{tenantID}/billing/run", runBillingHandler(svc, logger))
			if advisor != nil {
				r.Post("/tenants/{tenantID}/templates/suggest", suggestTemplateHandler(advisor, logger))
			}
			r.Post("/scheduler/start", schedulerStartHandler(sched))
			r.Post("/scheduler/stop", schedulerStopHandler(sched))
		})

		// =============================================
		// Scheduler & metrics
		// =============================================
		r.Get("/scheduler/status", schedulerStatusHandler(sched))
		r.Get("/metrics/billing", billingMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schedulerState := "stopped"
		if sched != nil && sched.IsRunning() {
			schedulerState = "running"
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "healthy",
			"scheduler": schedulerState,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func schedulerStartHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sched == nil {
			writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
			return
		}
		started := sched.Start()
		writeJSON(w, http.StatusOK, map[string]any{"running": true, "started": started})
	}
}

func schedulerStopHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sched == nil {
			writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
			return
		}
		stopped := sched.Stop()
		writeJSON(w, http.StatusOK, map[string]any{"running": false, "stopped": stopped})
	}
}

func schedulerStatusHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		running := sched != nil && sched.IsRunning()
		writeJSON(w, http.StatusOK, map[string]bool{"running": running})
	}
}

func billingMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetBillingSnapshot())
	}
}
