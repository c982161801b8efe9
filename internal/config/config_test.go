// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, duration parsing and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"

auth:
  admin_password_hash: "$2a$10$abcdefghijklmnopqrstuv"
  jwt_secret: "`+testSecret+`"
  token_ttl: "2h"
  login_rate: 1.5
  login_burst: 3

sessions:
  returning_window: "12h"
  closed_retention: "24h"
  max_closed: 500
  sweep_interval: "30s"

transport:
  read_limit: 4096
  write_wait: "5s"
  pong_wait: "30s"
  ping_period: "20s"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/internal/metrics"

cors:
  allowed_origins:
    - "https://support.example.com"

messages:
  welcome: "Hi there"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if !cfg.AuthEnabled() {
		t.Error("AuthEnabled() = false, want true")
	}
	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 2h", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.LoginRate != 1.5 || cfg.Auth.LoginBurst != 3 {
		t.Errorf("Auth login limit = %v/%d, want 1.5/3", cfg.Auth.LoginRate, cfg.Auth.LoginBurst)
	}
	if cfg.Sessions.ReturningWindow != 12*time.Hour {
		t.Errorf("Sessions.ReturningWindow = %v, want 12h", cfg.Sessions.ReturningWindow)
	}
	if cfg.Sessions.ClosedRetention != 24*time.Hour {
		t.Errorf("Sessions.ClosedRetention = %v, want 24h", cfg.Sessions.ClosedRetention)
	}
	if cfg.Sessions.MaxClosed != 500 {
		t.Errorf("Sessions.MaxClosed = %d, want 500", cfg.Sessions.MaxClosed)
	}
	if cfg.Sessions.SweepInterval != 30*time.Second {
		t.Errorf("Sessions.SweepInterval = %v, want 30s", cfg.Sessions.SweepInterval)
	}
	if cfg.Transport.ReadLimit != 4096 {
		t.Errorf("Transport.ReadLimit = %d, want 4096", cfg.Transport.ReadLimit)
	}
	if cfg.Transport.PingPeriod != 20*time.Second || cfg.Transport.PongWait != 30*time.Second {
		t.Errorf("Transport ping/pong = %v/%v, want 20s/30s", cfg.Transport.PingPeriod, cfg.Transport.PongWait)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://support.example.com" {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Messages.Welcome != "Hi there" {
		t.Errorf("Messages.Welcome = %q, want %q", cfg.Messages.Welcome, "Hi there")
	}
	if cfg.Messages.WelcomeBack != "" {
		t.Errorf("Messages.WelcomeBack = %q, want empty", cfg.Messages.WelcomeBack)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  http_addr: \"127.0.0.1:9000\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AuthEnabled() {
		t.Error("AuthEnabled() = true without a password hash")
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Auth.TokenTTL", cfg.Auth.TokenTTL, DefaultTokenTTL},
		{"Auth.LoginBurst", cfg.Auth.LoginBurst, DefaultLoginBurst},
		{"Sessions.ReturningWindow", cfg.Sessions.ReturningWindow, 24 * time.Hour},
		{"Sessions.ClosedRetention", cfg.Sessions.ClosedRetention, 72 * time.Hour},
		{"Sessions.MaxClosed", cfg.Sessions.MaxClosed, 10000},
		{"Sessions.SweepInterval", cfg.Sessions.SweepInterval, time.Minute},
		{"Transport.ReadLimit", cfg.Transport.ReadLimit, int64(DefaultReadLimit)},
		{"Transport.PongWait", cfg.Transport.PongWait, DefaultPongWait},
		{"Transport.PingPeriod", cfg.Transport.PingPeriod, 54 * time.Second},
		{"Logging.Level", cfg.Logging.Level, "info"},
		{"Logging.Format", cfg.Logging.Format, "text"},
		{"Metrics.Path", cfg.Metrics.Path, "/metrics"},
		{"CORS.AllowedOrigins[0]", cfg.CORS.AllowedOrigins[0], "*"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_HELPDESK_SECRET", testSecret)
	t.Setenv("TEST_HELPDESK_HASH", "$2a$10$fromenv")

	cfg, err := Load(writeConfig(t, `
auth:
  admin_password_hash: "${TEST_HELPDESK_HASH}"
  jwt_secret: "${TEST_HELPDESK_SECRET}"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != testSecret {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, testSecret)
	}
	if cfg.Auth.AdminPasswordHash != "$2a$10$fromenv" {
		t.Errorf("Auth.AdminPasswordHash = %q", cfg.Auth.AdminPasswordHash)
	}
}

func TestLoad_TailscaleAuthKeyFromEnvironment(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "tskey-auth-env")

	cfg, err := Load(writeConfig(t, "tailscale:\n  enabled: true\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tailscale.Hostname != DefaultTailscaleHostname {
		t.Errorf("Tailscale.Hostname = %q, want %q", cfg.Tailscale.Hostname, DefaultTailscaleHostname)
	}
	if cfg.Tailscale.AuthKey != "tskey-auth-env" {
		t.Errorf("Tailscale.AuthKey = %q, want %q", cfg.Tailscale.AuthKey, "tskey-auth-env")
	}
	if cfg.Server.HTTPAddr != "" {
		t.Errorf("Server.HTTPAddr = %q, want empty with tailscale", cfg.Server.HTTPAddr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  http_addr: [unclosed\n"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"token ttl", "auth:\n  token_ttl: \"soon\"\n", "auth.token_ttl"},
		{"returning window", "sessions:\n  returning_window: \"a day\"\n", "sessions.returning_window"},
		{"pong wait", "transport:\n  pong_wait: \"1 minute\"\n", "transport.pong_wait"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() expected error for invalid duration, got nil")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Load() error = %q, want it to name %q", err.Error(), tt.field)
			}
		})
	}
}

func TestParse_RetentionMustCoverReturningWindow(t *testing.T) {
	_, err := Parse([]byte("sessions:\n  closed_retention: 1h\n  max_closed: 1\n"))
	if err == nil {
		t.Fatal("Parse() expected error for retention shorter than the returning window, got nil")
	}
	if !strings.Contains(err.Error(), "sessions.closed_retention") {
		t.Errorf("Parse() error = %q, want it to name sessions.closed_retention", err.Error())
	}

	_, err = Parse([]byte("sessions:\n  returning_window: 1h\n  closed_retention: 1h\n"))
	if err != nil {
		t.Errorf("Parse() unexpected error: %v", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_A", "alpha")
	t.Setenv("TEST_VAR_B", "beta")

	tests := []struct {
		input string
		want  string
	}{
		{"${TEST_VAR_A}", "alpha"},
		{"prefix-${TEST_VAR_A}-suffix", "prefix-alpha-suffix"},
		{"${TEST_VAR_A}:${TEST_VAR_B}", "alpha:beta"},
		{"${TEST_VAR_UNSET_XYZ}", ""},
		{"no variables here", "no variables here"},
	}

	for _, tt := range tests {
		if got := expandEnvVars(tt.input); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		wantErrSubstr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name: "tailscale enabled allows empty http address",
			mutate: func(c *Config) {
				c.Server.HTTPAddr = ""
				c.Tailscale = TailscaleConfig{Enabled: true, Hostname: "helpdesk"}
			},
		},
		{
			name: "tailscale enabled requires hostname",
			mutate: func(c *Config) {
				c.Tailscale = TailscaleConfig{Enabled: true}
			},
			wantErrSubstr: "tailscale.hostname is required",
		},
		{
			name:          "http address required without tailscale",
			mutate:        func(c *Config) { c.Server.HTTPAddr = "" },
			wantErrSubstr: "server.http_addr is required",
		},
		{
			name:          "password hash requires jwt secret",
			mutate:        func(c *Config) { c.Auth.AdminPasswordHash = "$2a$10$x" },
			wantErrSubstr: "auth.jwt_secret is required",
		},
		{
			name: "short jwt secret",
			mutate: func(c *Config) {
				c.Auth.AdminPasswordHash = "$2a$10$x"
				c.Auth.JWTSecret = "short"
			},
			wantErrSubstr: "at least 32 bytes",
		},
		{
			name: "jwt secret without password hash is ignored",
			mutate: func(c *Config) {
				c.Auth.JWTSecret = "short"
			},
		},
		{
			name:          "ping period must be shorter than pong wait",
			mutate:        func(c *Config) { c.Transport.PingPeriod = c.Transport.PongWait },
			wantErrSubstr: "transport.ping_period",
		},
		{
			name:          "negative returning window",
			mutate:        func(c *Config) { c.Sessions.ReturningWindow = -time.Hour },
			wantErrSubstr: "sessions durations",
		},
		{
			name:          "negative max closed",
			mutate:        func(c *Config) { c.Sessions.MaxClosed = -1 },
			wantErrSubstr: "sessions.max_closed",
		},
		{
			name:          "closed retention shorter than returning window",
			mutate:        func(c *Config) { c.Sessions.ClosedRetention = time.Hour },
			wantErrSubstr: "sessions.closed_retention",
		},
		{
			name: "closed retention equal to returning window",
			mutate: func(c *Config) {
				c.Sessions.ClosedRetention = c.Sessions.ReturningWindow
			},
		},
		{
			name:          "tiny max closed",
			mutate:        func(c *Config) { c.Sessions.MaxClosed = 1 },
			wantErrSubstr: "sessions.max_closed must be at least",
		},
		{
			name:   "max closed at minimum",
			mutate: func(c *Config) { c.Sessions.MaxClosed = MinMaxClosed },
		},
		{
			name:          "unknown log level",
			mutate:        func(c *Config) { c.Logging.Level = "verbose" },
			wantErrSubstr: "logging.level",
		},
		{
			name:          "unknown log format",
			mutate:        func(c *Config) { c.Logging.Format = "xml" },
			wantErrSubstr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErrSubstr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Errorf("Validate() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}
			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Validate() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}
