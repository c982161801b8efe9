// ABOUTME: Entry point for the helpdesk-gateway support chat server
// ABOUTME: Subcommands for serving, config setup, password hashing and status checks

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/2389/helpdesk-gateway/internal/config"
	"github.com/2389/helpdesk-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _          _           _           _
| |__   ___| |_ __   __| | ___  ___| | __
| '_ \ / _ \ | '_ \ / _' |/ _ \/ __| |/ /
| | | |  __/ | |_) | (_| |  __/\__ \   <
|_| |_|\___|_| .__/ \__,_|\___||___/_|\_\
             |_|
`

// getConfigPath returns the path to the gateway config file.
// Priority: HELPDESK_CONFIG env var > XDG_CONFIG_HOME/helpdesk/gateway.yaml > ~/.config/helpdesk/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("HELPDESK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "helpdesk", "gateway.yaml")
}

func usage() {
	fmt.Println("Usage: helpdesk-gateway <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve           Start the gateway server")
	fmt.Println("  init            Create a new config file interactively")
	fmt.Println("  hash-password   Hash an admin password for auth.admin_password_hash")
	fmt.Println("  health          Check gateway health")
	fmt.Println("  sessions        List sessions on a running gateway")
	fmt.Println("  version         Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, args)
	case "init":
		err = runInit(args)
	case "hash-password":
		err = runHashPassword(args)
	case "health":
		err = runHealth(ctx, args)
	case "sessions":
		err = runSessions(ctx, args)
	case "version", "--version":
		fmt.Println(version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads path. A missing file at the default location falls back
// to built-in defaults; a missing explicit path is an error.
func loadConfig(path string, explicit bool) (*config.Config, bool, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), false, nil
	}
	return nil, false, fmt.Errorf("loading config: %w", err)
}

func runServe(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to gateway.yaml (default: $HELPDESK_CONFIG or XDG config dir)")
	httpAddr := flags.String("http-addr", "", "override server.http_addr")
	if err := flags.Parse(args); err != nil {
		return err
	}

	path := *configPath
	explicit := path != ""
	if !explicit {
		path = getConfigPath()
	}

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, fromFile, err := loadConfig(path, explicit)
	if err != nil {
		return err
	}
	if *httpAddr != "" {
		cfg.Server.HTTPAddr = *httpAddr
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validating config: %w", err)
		}
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	if fromFile {
		fmt.Printf("Config:    %s\n", path)
	} else {
		fmt.Print("Config:    ")
		yellow.Println("built-in defaults (run 'helpdesk-gateway init')")
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		switch {
		case cfg.Tailscale.Funnel:
			yellow.Print(" [funnel]")
		case cfg.Tailscale.HTTPS:
			gray.Print(" [https]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}

	green.Print("    ▶ ")
	fmt.Print("Admins:    ")
	if cfg.AuthEnabled() {
		fmt.Println("password login")
	} else {
		yellow.Println("open (no admin_password_hash)")
	}
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}
	fmt.Println()

	logger.Info("starting helpdesk-gateway",
		"config", path,
		"http_addr", cfg.Server.HTTPAddr,
		"tailscale", cfg.Tailscale.Enabled,
		"auth", cfg.AuthEnabled(),
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}
