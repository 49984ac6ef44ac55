package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Priya8975/webhook-notifier/internal/gateway"
	"github.com/Priya8975/webhook-notifier/internal/health"
	"github.com/Priya8975/webhook-notifier/internal/metrics"
)

// Deps are the collaborators the HTTP layer routes to. Hub and Health may be nil.
type Deps struct {
	Sender        TestSender
	Publisher     Publisher
	Registrations gateway.RegistrationLookup
	Health        health.Checker
	Hub           http.Handler
	Checks        map[string]Pinger
	Logger        *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) http.Handler {
	metrics.RegisterDefault()
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	webhooks := NewWebhookHandler(d.Sender, d.Registrations, d.Health, d.Logger)
	events := NewEventHandler(d.Publisher, d.Logger)

	if d.Hub != nil {
		r.Handle("/ws", d.Hub)
	}
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(d.Checks))

		r.Route("/stores/{storeID}", func(r chi.Router) {
			r.Use(RequireActor)

			r.Post("/events", events.Publish)
			r.Post("/webhooks/{registrationID}/test", webhooks.SendTest)
			r.Get("/webhooks/{registrationID}/health", webhooks.Health)
		})
	})

	return r
}

// corsMiddleware adds CORS headers for the dashboard.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+ActorHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
