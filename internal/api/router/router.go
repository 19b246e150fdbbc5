// Package router assembles the chi router: public webhook and health
// endpoints, the Prometheus scrape endpoint, and the JWT-guarded admin
// surface.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mlaurent/clinic-voice-agent/internal/http/handlers"
	httpmiddleware "github.com/mlaurent/clinic-voice-agent/internal/http/middleware"
	"github.com/mlaurent/clinic-voice-agent/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger          *logging.Logger
	VoiceWebhooks   *handlers.VoiceWebhookHandler
	Admin           *handlers.AdminHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.VoiceWebhooks != nil {
			public.Post("/webhooks/voice", cfg.VoiceWebhooks.HandleVoice)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.Admin != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/calls", cfg.Admin.HandleListCalls)
			admin.Get("/sessions/{callID}", cfg.Admin.HandleGetSession)
		})
	}

	return r
}
