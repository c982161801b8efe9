// ABOUTME: Configuration loading for helpdesk-tui
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/2389/helpdesk-gateway/internal/session"
)

const defaultGatewayURL = "http://localhost:8080"

type Config struct {
	Gateway  GatewayConfig  `toml:"gateway"`
	Identity IdentityConfig `toml:"identity"`
	Admin    AdminConfig    `toml:"admin"`
}

type GatewayConfig struct {
	URL string `toml:"url"`
}

type IdentityConfig struct {
	Role     string `toml:"role"`
	Name     string `toml:"name"`
	ClientID string `toml:"client_id"`
}

type AdminConfig struct {
	Password string `toml:"password"`
	Token    string `toml:"token"`
}

// configDir returns XDG_CONFIG_HOME/helpdesk or ~/.config/helpdesk.
func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(dir, "helpdesk")
}

// defaultConfigPath honors HELPDESK_TUI_CONFIG before the XDG location.
func defaultConfigPath() string {
	if p := os.Getenv("HELPDESK_TUI_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(configDir(), "tui.toml")
}

// Load reads config from the given path, expanding environment variables.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if _, err := toml.Decode(expandEnvVars(string(data)), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

func (c *Config) applyDefaults() {
	if c.Gateway.URL == "" {
		c.Gateway.URL = defaultGatewayURL
	}
	if c.Identity.Role == "" {
		c.Identity.Role = string(session.RoleCustomer)
	}
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("gateway.url must use http or https scheme")
	}
	switch session.Role(c.Identity.Role) {
	case session.RoleCustomer, session.RoleAdmin:
	default:
		return fmt.Errorf("identity.role must be customer or admin, got %q", c.Identity.Role)
	}
	if strings.TrimSpace(c.Identity.Name) == "" {
		return fmt.Errorf("identity.name is required")
	}
	return nil
}

// IsAdmin reports whether the client joins as an admin.
func (c *Config) IsAdmin() bool {
	return session.Role(c.Identity.Role) == session.RoleAdmin
}

// WebSocketURL maps the gateway base URL onto its /ws endpoint.
func (c *Config) WebSocketURL() string {
	u, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return c.Gateway.URL
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}

// ensureClientID fills Identity.ClientID for customers, reusing the id
// stored in dir so the gateway recognizes this terminal on later runs.
func (c *Config) ensureClientID(dir string) error {
	if c.IsAdmin() || c.Identity.ClientID != "" {
		return nil
	}
	path := filepath.Join(dir, "client_id")
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			c.Identity.ClientID = id
			return nil
		}
	}

	id := uuid.New().String()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return fmt.Errorf("writing client id: %w", err)
	}
	c.Identity.ClientID = id
	return nil
}
