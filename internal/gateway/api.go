// ABOUTME: HTTP API handlers for health, admin login and session listings
// ABOUTME: Listings reuse the WebSocket summary shapes so dashboards can poll either surface

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/helpdesk-gateway/internal/auth"
	"github.com/2389/helpdesk-gateway/internal/coordinator"
	"github.com/2389/helpdesk-gateway/internal/metrics"
	"github.com/2389/helpdesk-gateway/internal/notify"
	"github.com/2389/helpdesk-gateway/internal/protocol"
)

// maxLoginBody bounds the login request body.
const maxLoginBody = 4 * 1024

// LoginRequest is the body of POST /api/admin/login.
type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Name      string    `json:"name"`
}

// ReadyResponse is returned by GET /health/ready.
type ReadyResponse struct {
	Status      string            `json:"status"`
	AuthEnabled bool              `json:"authEnabled"`
	Sessions    coordinator.Stats `json:"sessions"`

	// AdminSubscribers counts admin connections receiving list broadcasts.
	AdminSubscribers int `json:"adminSubscribers"`
}

// AdminView is one connected admin in GET /api/admins.
type AdminView struct {
	Name      string    `json:"name"`
	Available bool      `json:"available"`
	SessionID *string   `json:"sessionId"`
	JoinedAt  time.Time `json:"joinedAt"`
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady reports readiness together with the current counts.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, ReadyResponse{
		Status:      "ready",
		AuthEnabled: g.auth != nil,
		Sessions:    g.coordinator.Snapshot(),

		AdminSubscribers: g.hub.RoomSize(notify.AdminRoom),
	})
}

// handleLogin exchanges the shared admin password for a token.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	if g.auth == nil {
		g.sendJSONError(w, http.StatusNotFound, "admin auth is disabled")
		return
	}

	ip := remoteIP(r)
	if !g.loginLimiter.Allow(ip) {
		metrics.LoginAttempts.WithLabelValues("rate_limited").Inc()
		w.Header().Set("Retry-After", "5")
		g.sendJSONError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, expiresAt, err := g.auth.Login(req.Name, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			metrics.LoginAttempts.WithLabelValues("denied").Inc()
			g.logger.Warn("admin login denied", "name", req.Name, "remote_ip", ip)
			g.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		g.logger.Error("admin login failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "login failed")
		return
	}

	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	g.logger.Info("admin logged in", "name", req.Name, "remote_ip", ip)
	g.writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt, Name: req.Name})
}

// handleListSessions returns the active sessions, oldest first.
func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, protocol.Summaries(g.coordinator.ActiveSessions()))
}

// handleListClosedSessions returns the closed sessions, most recently closed first.
func (g *Gateway) handleListClosedSessions(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, protocol.Summaries(g.coordinator.ClosedSessions()))
}

// handleClientHistory returns every closed session of one client id.
func (g *Gateway) handleClientHistory(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	if clientID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "client id is required")
		return
	}
	if a := auth.FromContext(r.Context()); a != nil {
		g.logger.Debug("client history requested", "admin", a.Name, "client_id", clientID)
	}
	h := g.coordinator.ClientHistory(clientID)
	g.writeJSON(w, http.StatusOK, protocol.NewClientHistoryView(h, g.coordinator.Render()))
}

// handleListAdmins returns the connected admins, earliest first.
func (g *Gateway) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	admins := g.registry.Admins()
	out := make([]AdminView, 0, len(admins))
	for _, p := range admins {
		v := AdminView{
			Name:      p.Name,
			Available: g.registry.IsAvailable(p.ConnectionID),
			JoinedAt:  p.JoinedAt,
		}
		if p.SessionID != "" {
			id := p.SessionID
			v.SessionID = &id
		}
		out = append(out, v)
	}
	g.writeJSON(w, http.StatusOK, out)
}
