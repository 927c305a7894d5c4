// Package httptransport assembles the HTTP surface: shared middleware,
// health and metrics endpoints, and the authenticated module routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodia/internal/platform/metrics"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/platform/middleware/auth"
	"custodia/pkg/platform/middleware/metadata"
	"custodia/pkg/platform/middleware/request"
	"custodia/pkg/platform/middleware/requesttime"
)

const (
	defaultRequestTimeout = 10 * time.Second
	healthCheckTimeout    = 2 * time.Second
)

// Registrar mounts one module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// RegistrarFunc adapts a function to Registrar.
type RegistrarFunc func(r chi.Router)

func (f RegistrarFunc) Register(r chi.Router) { f(r) }

// Guarded mounts registrar behind additional middleware, typically a role
// check for modules whose service does not authorize callers itself.
func Guarded(registrar Registrar, mw ...func(http.Handler) http.Handler) Registrar {
	return RegistrarFunc(func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mw...)
			registrar.Register(r)
		})
	})
}

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds the router's dependencies.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Validator      auth.JWTValidator
	RequestTimeout time.Duration
	// Health lists named dependency checks run by /healthz. Unconfigured
	// dependencies are simply absent.
	Health map[string]HealthCheck
	// Clock overrides the per-request ledger time. Nil uses the wall clock.
	Clock func() time.Time
}

// NewRouter wires every module behind the shared middleware chain. Module
// routes require a bearer token; /healthz and /metrics do not.
func NewRouter(cfg Config, registrars ...Registrar) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	clock := requesttime.Middleware
	if cfg.Clock != nil {
		clock = requesttime.WithClock(cfg.Clock)
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(logger))
	r.Use(metrics.LatencyMiddleware(cfg.Metrics))
	r.Use(clock)

	r.Get("/healthz", healthz(cfg.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(timeout))
		r.Use(auth.RequireAuth(cfg.Validator, logger))
		r.Use(request.ContentTypeJSON)
		for _, reg := range registrars {
			reg.Register(r)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
