package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Options struct {
	Service Service
	Logger  *zap.Logger
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	// Timeout bounds each request. Zero means 10s.
	Timeout time.Duration
}

func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	h := NewHandler(opts.Service, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(Logger(logger))
	r.Use(Recover(logger))
	r.Use(chimw.Timeout(timeout))

	r.Get("/health", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/verify", func(r chi.Router) {
		r.Use(engineContext)
		r.Post("/start", h.Start)
		r.Post("/check", h.Check)
		r.Post("/status", h.Status)
		r.Get("/{id}", h.StatusByID)
	})

	return r
}
