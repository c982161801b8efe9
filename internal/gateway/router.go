// ABOUTME: HTTP routing for helpdesk-gateway using chi
// ABOUTME: Mounts health, metrics, WebSocket, login and admin API routes with middleware

package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/helpdesk-gateway/internal/auth"
)

// routes builds the HTTP handler.
func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()

	// Metrics first so every request is counted
	r.Use(metricsMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(g.logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   g.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if g.config.Metrics.Enabled {
		r.Handle(g.config.Metrics.Path, promhttp.Handler())
	}

	r.Get("/health", g.handleHealth)
	r.Get("/health/ready", g.handleReady)
	r.Get("/ws", g.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.With(chimw.Timeout(10*time.Second)).Post("/admin/login", g.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin(g.auth))
			r.Get("/sessions", g.handleListSessions)
			r.Get("/sessions/closed", g.handleListClosedSessions)
			r.Get("/clients/{clientID}/history", g.handleClientHistory)
			r.Get("/admins", g.handleListAdmins)
		})
	})

	return r
}
