package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ryanbastic/go-placebot/internal/metrics"
)

// NewServer creates an HTTP server with all routes configured. breaker may
// be nil when the backend is not guarded.
func NewServer(logger *slog.Logger, dispatcher Dispatcher, canvases CanvasReader, backends map[string]Pinger, breaker BreakerReporter) http.Handler {
	mux := chi.NewRouter()

	mux.Use(RequestID)
	mux.Use(Logging(logger))
	mux.Use(Recovery(logger))
	mux.Use(metrics.Metrics)

	health := NewHealthHandler(backends, breaker, logger)
	mux.Get("/v1/livez", health.Livez)
	mux.Get("/v1/readyz", health.Readyz)
	mux.Get("/v1/health", health.Readyz)
	mux.Handle(metrics.ScrapePath, promhttp.Handler())

	api := humachi.New(mux, huma.DefaultConfig("placebot", "1.0.0"))
	registerCommandRoutes(api, NewCommandHandler(dispatcher, logger))
	registerCanvasRoutes(api, NewCanvasHandler(canvases, logger))

	return mux
}
