// Package server wires HTTP handlers into a chi router for the relay.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tyrowin/roomrelay/internal/metrics"
)

// SetupRoutes configures and returns a router with all application routes:
// health checks, stats, the WebSocket endpoint and the test page. /metrics is
// mounted only when gatherer is non-nil.
func SetupRoutes(hub *Hub, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.HandleFunc("/", HealthHandler)
	r.Get("/healthz", HealthzHandler)
	r.Get("/stats", StatsHandler(hub))
	r.HandleFunc("/ws", WebSocketHandler(hub))
	r.Get("/test", TestPageHandler)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	}
	return r
}
