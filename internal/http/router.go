package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/plabarre/agenda/internal/api"
	"github.com/plabarre/agenda/internal/auth"
	"github.com/plabarre/agenda/internal/config"
	"github.com/plabarre/agenda/internal/http/ratelimit"
	"github.com/plabarre/agenda/internal/metrics"
	"github.com/plabarre/agenda/internal/store"
)

// NewRouter wires the HTTP surface: health probes, optional metrics, and the
// /v1 API.
func NewRouter(cfg *config.Config, st *store.Store, handler *api.Handler, authMW *auth.Middleware, oidc *auth.OIDCFlow) http.Handler {
	r := chi.NewRouter()

	// Credential endpoints allow 20 attempts per minute per IP.
	authLimiter := ratelimit.PerMinute(20, 5, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(authMW.Authenticate)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Mount("/v1", handler.Routes(authLimiter.Middleware, oidc))

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
