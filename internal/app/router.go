// Package app wires configuration, adapters, and handlers into a running
// process.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/hh-autopilot/internal/adapter/httpserver"
	"github.com/fairyhunter13/hh-autopilot/internal/adapter/observability"
	"github.com/fairyhunter13/hh-autopilot/internal/config"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming
// spaces. An empty input means all origins.
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Short-deadline API routes. The bulk-apply stream lives outside this
	// group because a run outlasts any sane request timeout.
	r.Group(func(gr chi.Router) {
		gr.Use(httpserver.TimeoutMiddleware(30 * time.Second))

		gr.Get("/scheduler/settings", srv.GetSettingsHandler())
		gr.Get("/scheduler/status", srv.StatusHandler())
		gr.Get("/scheduler/history", srv.HistoryHandler())
		gr.Get("/resumes", srv.ResumesHandler())
		gr.Get("/me", srv.MeHandler())

		gr.Get("/auth/login", srv.LoginHandler())
		gr.Get("/auth/callback", srv.CallbackHandler())

		gr.Get("/autoreply/settings", srv.GetAutoReplySettingsHandler())
		gr.Get("/autoreply/history", srv.AutoReplyHistoryHandler())

		gr.Group(func(wr chi.Router) {
			wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
			wr.Post("/scheduler/settings", srv.UpdateSettingsHandler())
			wr.Post("/scheduler/run", srv.RunHandler())
			wr.Post("/scheduler/stop", srv.StopHandler())
			wr.Post("/autoreply/settings", srv.UpdateAutoReplySettingsHandler())
		})
	})

	// Long-running routes: single apply can wait on the LLM, the stream on
	// a whole run.
	r.Group(func(lr chi.Router) {
		lr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		lr.Post("/apply", srv.ApplyHandler())
		lr.Post("/apply/bulk/stream", srv.BulkApplyStreamHandler())
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })

	return httpserver.SecurityHeaders(r)
}
