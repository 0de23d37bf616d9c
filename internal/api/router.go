package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apiMiddleware "github.com/orderflow/orderflow/internal/api/middleware"
	"github.com/orderflow/orderflow/internal/api/shared"
)

// HealthCheck reports whether the service can reach its dependencies.
type HealthCheck func(ctx context.Context) error

// healthTimeout bounds a single health probe.
const healthTimeout = 2 * time.Second

// NewRouter creates the HTTP router with all routes and middleware.
// health may be nil, in which case /health always reports ok.
func NewRouter(orders *OrderHandler, health HealthCheck, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", orders.SubmitOrder)
		r.Get("/orders/{order_id}", orders.GetOrderStatus)
		r.Post("/notifications", orders.SubmitNotification)
		r.Get("/status/{task_id}", orders.GetTaskStatus)
		r.Get("/invoice/{order_id}", orders.GetInvoice)
		r.Get("/stock/{product}", orders.GetStock)
		r.Put("/stock/{product}", orders.SetStock)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := health(ctx); err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "unavailable", err)
				return
			}
		}
		shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
