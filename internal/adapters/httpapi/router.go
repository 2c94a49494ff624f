// Package httpapi exposes the roster service over a JSON HTTP API.
package httpapi

import (
	"expvar"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"roster/internal/core"
)

// API holds the handler dependencies.
type API struct {
	svc     *core.Service
	logger  *zap.Logger
	metrics http.Handler
	now     func() time.Time
}

// Option customises the router.
type Option func(*API)

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *API) { a.metrics = h }
}

// NewRouter builds the chi router for svc.
func NewRouter(svc *core.Service, opts ...Option) http.Handler {
	api := &API{svc: svc, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(api)
	}
	api.logger = api.logger.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(api.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if api.metrics != nil {
		r.Method(http.MethodGet, "/metrics", api.metrics)
	}
	r.Method(http.MethodGet, "/debug/vars", expvar.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Post("/login", api.handleLogin)
			r.Post("/logout", api.handleLogout)
			r.Get("/", api.handleSession)
		})
		r.Group(func(r chi.Router) {
			r.Use(api.requireSession)
			r.Route("/employees", func(r chi.Router) {
				r.Get("/", api.handleListEmployees)
				r.Post("/", api.handleCreateEmployee)
				r.Get("/summary", api.handleSummary)
				r.Get("/print", api.handlePrint)
				r.Get("/{id}", api.handleGetEmployee)
				r.Put("/{id}", api.handleUpdateEmployee)
				r.Delete("/{id}", api.handleDeleteEmployee)
			})
			r.Post("/images", api.handleUploadImage)
			r.Get("/images/*", api.handleGetImage)
			r.Head("/images/*", api.handleHeadImage)
		})
	})
	return r
}
