package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type RouterConfig struct {
	CORSOrigins []string
	// Analyze holds the request open for the whole run, so it gets its own, longer timeout.
	RequestTimeout time.Duration
	AnalyzeTimeout time.Duration
}

func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) http.Handler {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.AnalyzeTimeout == 0 {
		cfg.AnalyzeTimeout = 30 * time.Minute
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		ExposedHeaders: []string{"Location", "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(chimiddleware.Timeout(cfg.AnalyzeTimeout)).Post("/analyze", h.Analyze)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

			r.Post("/sessions", h.Submit)
			r.Get("/sessions/{sessionID}", h.GetSession)
			r.Get("/sessions/{sessionID}/totals", h.GetTotals)
			r.Get("/sessions/{sessionID}/frames", h.GetFrames)

			r.Get("/download/{sessionID}/{filename}", h.Download)
			r.Post("/cleanup/{sessionID}", h.Cleanup)
		})
	})

	return r
}
