// ABOUTME: Configuration loading and parsing for helpdesk-gateway
// ABOUTME: Supports YAML files with environment variable expansion, duration parsing and defaults

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when a value is left unset.
const (
	DefaultHTTPAddr          = "localhost:8080"
	DefaultTailscaleHostname = "helpdesk-gateway"
	DefaultTokenTTL          = 12 * time.Hour
	DefaultLoginRate         = 0.2
	DefaultLoginBurst        = 5
	DefaultReturningWindow   = 24 * time.Hour
	DefaultClosedRetention   = 72 * time.Hour
	DefaultMaxClosed         = 10000
	MinMaxClosed             = 100
	DefaultSweepInterval     = time.Minute
	DefaultReadLimit         = 64 * 1024
	DefaultWriteWait         = 10 * time.Second
	DefaultPongWait          = 60 * time.Second
	DefaultMetricsPath       = "/metrics"
)

// MinJWTSecretLength is the minimum accepted jwt_secret length in bytes.
const MinJWTSecretLength = 32

// Config represents the complete helpdesk-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Auth      AuthConfig      `yaml:"auth"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Transport TransportConfig `yaml:"transport"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	CORS      CORSConfig      `yaml:"cors"`
	Messages  MessagesConfig  `yaml:"messages"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"` // falls back to TS_AUTHKEY
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`  // serve on :443 with Tailscale certs
	Funnel    bool   `yaml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// AuthConfig holds the shared admin credential and token settings.
// An empty AdminPasswordHash runs the gateway in open mode.
type AuthConfig struct {
	AdminPasswordHash string        `yaml:"admin_password_hash"`
	JWTSecret         string        `yaml:"jwt_secret"`
	TokenTTL          time.Duration `yaml:"-"`
	LoginRate         float64       `yaml:"login_rate"` // attempts per second per IP
	LoginBurst        int           `yaml:"login_burst"`

	TokenTTLRaw string `yaml:"token_ttl"`
}

// SessionsConfig holds session lifecycle settings
type SessionsConfig struct {
	ReturningWindow time.Duration `yaml:"-"`
	ClosedRetention time.Duration `yaml:"-"`
	SweepInterval   time.Duration `yaml:"-"`
	MaxClosed       int           `yaml:"max_closed"`

	// Raw string values for YAML unmarshaling
	ReturningWindowRaw string `yaml:"returning_window"`
	ClosedRetentionRaw string `yaml:"closed_retention"`
	SweepIntervalRaw   string `yaml:"sweep_interval"`
}

// TransportConfig holds WebSocket connection settings
type TransportConfig struct {
	ReadLimit  int64         `yaml:"read_limit"`
	WriteWait  time.Duration `yaml:"-"`
	PongWait   time.Duration `yaml:"-"`
	PingPeriod time.Duration `yaml:"-"`

	WriteWaitRaw  string `yaml:"write_wait"`
	PongWaitRaw   string `yaml:"pong_wait"`
	PingPeriodRaw string `yaml:"ping_period"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CORSConfig lists the origins allowed to call the HTTP API and open
// WebSocket connections from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MessagesConfig overrides the texts sent to customers. Empty fields keep
// the built-in wording.
type MessagesConfig struct {
	Welcome            string `yaml:"welcome"`
	WelcomeBack        string `yaml:"welcome_back"`
	SessionInvalid     string `yaml:"session_invalid"`
	NewAfterInvalid    string `yaml:"new_after_invalid"`
	SessionSelfHealed  string `yaml:"session_self_healed"`
	Rejoined           string `yaml:"rejoined"`
	DefaultCloseReason string `yaml:"default_close_reason"`
	AdminLeft          string `yaml:"admin_left"`
	AdminDisconnected  string `yaml:"admin_disconnected"`
	DisconnectReason   string `yaml:"disconnect_reason"`
}

// AuthEnabled reports whether admin joins require a login token.
func (c *Config) AuthEnabled() bool {
	return c.Auth.AdminPasswordHash != ""
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration content, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" && !cfg.Tailscale.Enabled {
		cfg.Server.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Tailscale.Enabled {
		if cfg.Tailscale.Hostname == "" {
			cfg.Tailscale.Hostname = DefaultTailscaleHostname
		}
		if cfg.Tailscale.AuthKey == "" {
			cfg.Tailscale.AuthKey = os.Getenv("TS_AUTHKEY")
		}
	}

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = DefaultTokenTTL
	}
	if cfg.Auth.LoginRate == 0 {
		cfg.Auth.LoginRate = DefaultLoginRate
	}
	if cfg.Auth.LoginBurst == 0 {
		cfg.Auth.LoginBurst = DefaultLoginBurst
	}

	if cfg.Sessions.ReturningWindow == 0 {
		cfg.Sessions.ReturningWindow = DefaultReturningWindow
	}
	if cfg.Sessions.ClosedRetention == 0 {
		cfg.Sessions.ClosedRetention = DefaultClosedRetention
	}
	if cfg.Sessions.MaxClosed == 0 {
		cfg.Sessions.MaxClosed = DefaultMaxClosed
	}
	if cfg.Sessions.SweepInterval == 0 {
		cfg.Sessions.SweepInterval = DefaultSweepInterval
	}

	if cfg.Transport.ReadLimit == 0 {
		cfg.Transport.ReadLimit = DefaultReadLimit
	}
	if cfg.Transport.WriteWait == 0 {
		cfg.Transport.WriteWait = DefaultWriteWait
	}
	if cfg.Transport.PongWait == 0 {
		cfg.Transport.PongWait = DefaultPongWait
	}
	if cfg.Transport.PingPeriod == 0 {
		cfg.Transport.PingPeriod = cfg.Transport.PongWait * 9 / 10
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return errors.New("server.http_addr is required (or enable tailscale)")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return errors.New("tailscale.hostname is required when tailscale is enabled")
	}

	if c.AuthEnabled() {
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required when auth.admin_password_hash is set")
		}
		if len(c.Auth.JWTSecret) < MinJWTSecretLength {
			return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
		}
	}
	if c.Auth.TokenTTL < 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.Auth.LoginRate < 0 || c.Auth.LoginBurst < 0 {
		return errors.New("auth.login_rate and auth.login_burst must not be negative")
	}

	if c.Sessions.ReturningWindow < 0 || c.Sessions.ClosedRetention < 0 || c.Sessions.SweepInterval < 0 {
		return errors.New("sessions durations must not be negative")
	}
	if c.Sessions.MaxClosed < 0 {
		return errors.New("sessions.max_closed must not be negative")
	}
	if c.Sessions.ClosedRetention > 0 && c.Sessions.ClosedRetention < c.Sessions.ReturningWindow {
		return fmt.Errorf("sessions.closed_retention (%s) must not be shorter than sessions.returning_window (%s)",
			c.Sessions.ClosedRetention, c.Sessions.ReturningWindow)
	}
	if c.Sessions.MaxClosed > 0 && c.Sessions.MaxClosed < MinMaxClosed {
		return fmt.Errorf("sessions.max_closed must be at least %d", MinMaxClosed)
	}

	if c.Transport.ReadLimit < 0 {
		return errors.New("transport.read_limit must not be negative")
	}
	if c.Transport.PingPeriod >= c.Transport.PongWait {
		return fmt.Errorf("transport.ping_period (%s) must be shorter than transport.pong_wait (%s)",
			c.Transport.PingPeriod, c.Transport.PongWait)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"sessions.returning_window", cfg.Sessions.ReturningWindowRaw, &cfg.Sessions.ReturningWindow},
		{"sessions.closed_retention", cfg.Sessions.ClosedRetentionRaw, &cfg.Sessions.ClosedRetention},
		{"sessions.sweep_interval", cfg.Sessions.SweepIntervalRaw, &cfg.Sessions.SweepInterval},
		{"transport.write_wait", cfg.Transport.WriteWaitRaw, &cfg.Transport.WriteWait},
		{"transport.pong_wait", cfg.Transport.PongWaitRaw, &cfg.Transport.PongWait},
		{"transport.ping_period", cfg.Transport.PingPeriodRaw, &cfg.Transport.PingPeriod},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
