// Package gateway wires the helpdesk components to HTTP and WebSocket.
//
// # Overview
//
// The Gateway owns the participant registry, the session store, the
// client history index, the notification hub and the coordinator. It
// serves them over one HTTP server bound to a TCP address or a Tailscale
// node.
//
// # Routes
//
//   - GET /ws - WebSocket endpoint for customers and admins
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check with session counts
//   - GET /metrics - Prometheus metrics (when enabled)
//   - POST /api/admin/login - Exchange the admin password for a token
//   - GET /api/sessions - Active sessions
//   - GET /api/sessions/closed - Closed sessions
//   - GET /api/clients/{clientID}/history - Closed sessions of one client
//   - GET /api/admins - Connected admins and their availability
//
// The /api listing routes require an admin bearer token unless no
// admin_password_hash is configured.
//
// # Connections
//
// Each WebSocket connection runs a reader goroutine and a writer
// goroutine. The reader decodes frames and hands them to the coordinator.
// The writer drains the connection's hub outbox and sends pings. When the
// reader exits the coordinator is told the connection is gone.
//
// # Shutdown
//
// Shutdown stops the HTTP server, closes the hub (which ends every writer
// and therefore every connection), stops the retention sweeper and closes
// the Tailscale node. Errors are joined.
package gateway
