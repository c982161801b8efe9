// ABOUTME: Tests for helpdesk-tui configuration loading
// ABOUTME: Covers TOML parsing, defaults, validation and client id persistence

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tui.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_ADMIN_PASSWORD", "hunter22")
	path := writeTOML(t, `
[gateway]
url = "https://help.example.com"

[identity]
role = "admin"
name = "Grace"

[admin]
password = "${TEST_ADMIN_PASSWORD}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://help.example.com", cfg.Gateway.URL)
	assert.True(t, cfg.IsAdmin())
	assert.Equal(t, "hunter22", cfg.Admin.Password)
	assert.Equal(t, "wss://help.example.com/ws", cfg.WebSocketURL())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, defaultGatewayURL, cfg.Gateway.URL)
	assert.Equal(t, "customer", cfg.Identity.Role)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.WebSocketURL())
}

func TestLoad_InvalidTOML(t *testing.T) {
	_, err := Load(writeTOML(t, "[gateway\nurl = 1"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad scheme", func(c *Config) { c.Gateway.URL = "ftp://x" }, "http or https"},
		{"bad role", func(c *Config) { c.Identity.Role = "agent" }, "identity.role"},
		{"missing name", func(c *Config) { c.Identity.Name = " " }, "identity.name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Identity: IdentityConfig{Name: "Ada"}}
			cfg.applyDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnsureClientID_Persists(t *testing.T) {
	dir := t.TempDir()

	first := &Config{Identity: IdentityConfig{Name: "Ada"}}
	first.applyDefaults()
	require.NoError(t, first.ensureClientID(dir))
	require.NotEmpty(t, first.Identity.ClientID)

	second := &Config{Identity: IdentityConfig{Name: "Ada"}}
	second.applyDefaults()
	require.NoError(t, second.ensureClientID(dir))
	assert.Equal(t, first.Identity.ClientID, second.Identity.ClientID)

	admin := &Config{Identity: IdentityConfig{Name: "Grace", Role: "admin"}}
	require.NoError(t, admin.ensureClientID(dir))
	assert.Empty(t, admin.Identity.ClientID)
}
