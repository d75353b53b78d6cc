package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arkeep-io/krra/internal/coordinator"
)

// RouterConfig bundles the dependencies NewRouter needs, matching the
// reference service's own RouterConfig shape.
type RouterConfig struct {
	Coordinator *coordinator.Coordinator
	TokenIssuer *TokenIssuer
	Logger      *zap.Logger
}

// NewRouter builds the chi router for the Admin API.
func NewRouter(cfg RouterConfig) http.Handler {
	h := &handlers{coord: cfg.Coordinator, tokens: cfg.TokenIssuer, logger: cfg.Logger.Named("api")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/api/auth/login", h.login)
	r.Handle("/metrics", h.metricsHandler())

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(cfg.TokenIssuer))

		r.Get("/api/agents", h.listAgents)
		r.Post("/api/agents", h.createAgent)
		r.Get("/api/nodes", h.listNodes)
		r.Get("/api/jobs", h.listJobs)
		r.Post("/api/jobs", h.submitJob)
		r.Post("/api/jobs/{jobID}/cancel", h.cancelJob)
		r.Get("/api/proofs", h.listProofs)
		r.Get("/api/audit", h.listAudit)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	return r
}

func (h *handlers) metricsHandler() http.Handler {
	prom := promhttp.HandlerFor(h.coord.Metrics.Registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.coord.RefreshGauges()
		prom.ServeHTTP(w, r)
	})
}

// requestLogger mirrors the reference service's own zap-backed request
// logging middleware: one structured line per request, at Info unless the
// response was a server error.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			}
			if ww.Status() >= 500 {
				logger.Error("request", fields...)
			} else {
				logger.Info("request", fields...)
			}
		})
	}
}
