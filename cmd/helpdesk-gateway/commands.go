// ABOUTME: Setup and status subcommands for helpdesk-gateway
// ABOUTME: init, hash-password, health and sessions talk to config files or a running gateway

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/2389/helpdesk-gateway/internal/auth"
	"github.com/2389/helpdesk-gateway/internal/config"
	"github.com/2389/helpdesk-gateway/internal/protocol"
)

func runInit(args []string) error {
	flags := pflag.NewFlagSet("init", pflag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("helpdesk-gateway configuration setup")
	fmt.Println("====================================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", config.DefaultHTTPAddr)

	fmt.Println("\n--- Tailscale Configuration ---")
	tailscaleEnabled := yes(prompt(reader, "Enable Tailscale?", "no"))

	var tsHostname, tsAuthKey string
	var tsEphemeral, tsHTTPS, tsFunnel bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", config.DefaultTailscaleHostname)
		tsAuthKey = prompt(reader, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		tsEphemeral = yes(prompt(reader, "Ephemeral node?", "no"))
		tsFunnel = yes(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
		if !tsFunnel {
			tsHTTPS = yes(prompt(reader, "Serve HTTPS on the tailnet?", "no"))
		}
	}

	fmt.Println("\n--- Admin Authentication ---")
	var passwordHash, jwtSecret string
	if yes(prompt(reader, "Require an admin password?", "yes")) {
		password, err := readPassword(reader, "Admin password")
		if err != nil {
			return err
		}
		passwordHash, err = auth.HashPassword(password)
		if err != nil {
			return err
		}
		jwtSecret, err = generateSecret()
		if err != nil {
			return err
		}
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")
	metricsEnabled := yes(prompt(reader, "Expose Prometheus metrics?", "no"))

	var cfg strings.Builder
	cfg.WriteString("# helpdesk-gateway configuration\n")
	cfg.WriteString("# Generated by helpdesk-gateway init\n\n")

	if !tailscaleEnabled {
		cfg.WriteString("server:\n")
		fmt.Fprintf(&cfg, "  http_addr: %q\n\n", httpAddr)
	}

	cfg.WriteString("tailscale:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", tailscaleEnabled)
	if tailscaleEnabled {
		fmt.Fprintf(&cfg, "  hostname: %q\n", tsHostname)
		if tsAuthKey != "" {
			fmt.Fprintf(&cfg, "  auth_key: %q\n", tsAuthKey)
		}
		fmt.Fprintf(&cfg, "  ephemeral: %t\n", tsEphemeral)
		fmt.Fprintf(&cfg, "  https: %t\n", tsHTTPS)
		fmt.Fprintf(&cfg, "  funnel: %t\n", tsFunnel)
	}
	cfg.WriteString("\n")

	if passwordHash != "" {
		cfg.WriteString("auth:\n")
		fmt.Fprintf(&cfg, "  admin_password_hash: %q\n", passwordHash)
		fmt.Fprintf(&cfg, "  jwt_secret: %q\n", jwtSecret)
		fmt.Fprintf(&cfg, "  token_ttl: %q\n\n", config.DefaultTokenTTL.String())
	}

	cfg.WriteString("sessions:\n")
	fmt.Fprintf(&cfg, "  returning_window: %q\n", config.DefaultReturningWindow.String())
	fmt.Fprintf(&cfg, "  closed_retention: %q\n", config.DefaultClosedRetention.String())
	fmt.Fprintf(&cfg, "  max_closed: %d\n\n", config.DefaultMaxClosed)

	cfg.WriteString("logging:\n")
	fmt.Fprintf(&cfg, "  level: %q\n", logLevel)
	fmt.Fprintf(&cfg, "  format: %q\n\n", logFormat)

	cfg.WriteString("metrics:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", metricsEnabled)
	fmt.Fprintf(&cfg, "  path: %q\n", config.DefaultMetricsPath)

	if _, err := config.Parse([]byte(cfg.String())); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file may carry the jwt secret.
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  helpdesk-gateway serve\n")
	return nil
}

func runHashPassword(args []string) error {
	flags := pflag.NewFlagSet("hash-password", pflag.ContinueOnError)
	fromStdin := flags.Bool("stdin", false, "read the password from the first line of stdin")
	if err := flags.Parse(args); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	var password string
	var err error
	if *fromStdin {
		password, err = reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(password, "\r\n")
	} else {
		password, err = readPassword(reader, "Admin password")
		if err != nil {
			return err
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

// statusFlags are shared by the commands that talk to a running gateway.
type statusFlags struct {
	configPath string
	url        string
	token      string
}

func (s *statusFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&s.configPath, "config", "c", "", "path to gateway.yaml")
	flags.StringVar(&s.url, "url", "", "gateway base URL (default: derived from server.http_addr)")
	flags.StringVar(&s.token, "token", os.Getenv("HELPDESK_TOKEN"), "admin bearer token")
}

// baseURL resolves the gateway URL from --url or the config file.
func (s *statusFlags) baseURL() (string, error) {
	if s.url != "" {
		return strings.TrimSuffix(s.url, "/"), nil
	}
	path := s.configPath
	explicit := path != ""
	if !explicit {
		path = getConfigPath()
	}
	cfg, _, err := loadConfig(path, explicit)
	if err != nil {
		return "", err
	}
	if cfg.Tailscale.Enabled {
		scheme := "http"
		if cfg.Tailscale.HTTPS || cfg.Tailscale.Funnel {
			scheme = "https"
		}
		return scheme + "://" + cfg.Tailscale.Hostname, nil
	}
	return "http://" + dialableAddr(cfg.Server.HTTPAddr), nil
}

// dialableAddr maps wildcard listen hosts to loopback.
func dialableAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func (s *statusFlags) get(ctx context.Context, path string) (*http.Response, error) {
	base, err := s.baseURL()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func runHealth(ctx context.Context, args []string) error {
	var sf statusFlags
	flags := pflag.NewFlagSet("health", pflag.ContinueOnError)
	sf.register(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	resp, err := sf.get(ctx, "/health/ready")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	var ready struct {
		Status      string         `json:"status"`
		AuthEnabled bool           `json:"authEnabled"`
		Sessions    map[string]int `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	color.New(color.FgGreen).Println("healthy")
	fmt.Printf("  waiting:   %d\n", ready.Sessions["waitingSessions"])
	fmt.Printf("  active:    %d\n", ready.Sessions["activeSessions"])
	fmt.Printf("  closed:    %d\n", ready.Sessions["closedSessions"])
	fmt.Printf("  customers: %d\n", ready.Sessions["customers"])
	fmt.Printf("  admins:    %d (%d available)\n", ready.Sessions["admins"], ready.Sessions["availableAdmins"])
	return nil
}

func runSessions(ctx context.Context, args []string) error {
	var sf statusFlags
	flags := pflag.NewFlagSet("sessions", pflag.ContinueOnError)
	sf.register(flags)
	closed := flags.Bool("closed", false, "list closed sessions instead of active ones")
	client := flags.String("client", "", "show the closed-session history of one client id")
	if err := flags.Parse(args); err != nil {
		return err
	}

	path := "/api/sessions"
	switch {
	case *client != "":
		path = "/api/clients/" + *client + "/history"
	case *closed:
		path = "/api/sessions/closed"
	}

	resp, err := sf.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return errors.New("unauthorized: pass --token or set HELPDESK_TOKEN")
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if *client != "" {
		var h protocol.ClientHistory
		if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		printClientHistory(os.Stdout, h)
		return nil
	}

	var rows []protocol.SessionSummary
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	printSessions(os.Stdout, rows)
	return nil
}

func printSessions(w io.Writer, rows []protocol.SessionSummary) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no sessions")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCUSTOMER\tADMIN\tSTATUS\tMESSAGES\tCREATED")
	for _, s := range rows {
		customer, admin := "-", "-"
		if s.Customer != nil {
			customer = s.Customer.Name
		}
		if s.Admin != nil {
			admin = s.Admin.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID, customer, admin, s.Status, s.MessageCount, s.CreatedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}

func printClientHistory(w io.Writer, h protocol.ClientHistory) {
	fmt.Fprintf(w, "client %s: %d sessions, %d messages\n", h.ClientID, h.TotalSessions, h.TotalMessages)
	for _, s := range h.Sessions {
		fmt.Fprintf(w, "\n%s  %s  (%s, closed %s)\n",
			s.ID, s.CustomerName, s.AdminName, s.ClosedAt.Local().Format(time.DateTime))
		for _, m := range s.Messages {
			fmt.Fprintf(w, "  [%s] %s: %s\n", m.Timestamp.Local().Format(time.TimeOnly), m.User, m.Message)
		}
	}
}

// generateSecret returns a random base64 jwt secret.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// readPassword reads a password without echo when stdin is a terminal.
func readPassword(reader *bufio.Reader, question string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Printf("%s: ", question)
	first, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	fmt.Printf("Confirm %s: ", strings.ToLower(question))
	second, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func yes(answer string) bool {
	a := strings.ToLower(answer)
	return a == "yes" || a == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
