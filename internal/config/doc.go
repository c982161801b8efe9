// Package config handles configuration loading for helpdesk-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// Missing values get defaults and the result is validated.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from the --config flag
//  2. Path from HELPDESK_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/helpdesk/gateway.yaml (~/.config/helpdesk/gateway.yaml)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${HELPDESK_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
// Server and Tailscale:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	tailscale:
//	  enabled: false
//	  hostname: "helpdesk-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//	  funnel: false
//
// Admin authentication (omit admin_password_hash for open mode):
//
//	auth:
//	  admin_password_hash: "$2a$10$..."  # helpdesk-gateway hash-password
//	  jwt_secret: "${HELPDESK_JWT_SECRET}" # at least 32 bytes
//	  token_ttl: "12h"
//	  login_rate: 0.2
//	  login_burst: 5
//
// Sessions:
//
//	sessions:
//	  returning_window: "24h"
//	  closed_retention: "72h"
//	  max_closed: 10000
//	  sweep_interval: "1m"
//
// WebSocket transport:
//
//	transport:
//	  read_limit: 65536
//	  write_wait: "10s"
//	  pong_wait: "60s"
//	  ping_period: "54s"
//
// Logging, metrics and CORS:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//	cors:
//	  allowed_origins: ["*"]
//
// The messages section overrides the texts sent to customers (welcome,
// welcome_back, session_invalid, new_after_invalid, session_self_healed,
// rejoined, default_close_reason, admin_left, admin_disconnected,
// disconnect_reason).
package config
