package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presence/internal/platform/config"
	"presence/internal/platform/metrics"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/httputil"
	"presence/pkg/platform/middleware/admin"
	"presence/pkg/platform/middleware/metadata"
	"presence/pkg/platform/middleware/request"
)

// Mount attaches a feature's routes to r.
type Mount func(r chi.Router)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// RouterDeps collects everything NewRouter wires. Admin mounts sit behind the
// X-Admin-Token guard; Metrics may be nil.
type RouterDeps struct {
	Config    config.Server
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Public    []Mount
	Admin     []Mount
	Readiness map[string]ReadinessCheck
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Recover(deps.Logger))
	r.Use(request.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Admin-Token", request.HeaderRequestID},
		ExposedHeaders: []string{request.HeaderRequestID},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(deps.Readiness))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(deps.Config.RequestTimeout))
		for _, mount := range deps.Public {
			mount(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(deps.Config.AdminToken, deps.Logger))
			for _, mount := range deps.Admin {
				mount(r)
			}
		})
	})
	return r
}

func readiness(checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		ready := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				ready = false
				continue
			}
			status[name] = "ok"
		}
		if !ready {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error":  string(dErrors.CodeUnavailable),
				"checks": status,
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": status})
	}
}
