// ABOUTME: Terminal client for helpdesk-gateway customers and admins
// ABOUTME: Line-based input over a WebSocket connection with automatic rejoin after drops

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"

	"github.com/2389/helpdesk-gateway/internal/protocol"
	"github.com/2389/helpdesk-gateway/internal/session"
)

const (
	maxReconnects = 5
	writeWait     = 10 * time.Second
)

func main() {
	flags := pflag.NewFlagSet("helpdesk-tui", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", defaultConfigPath(), "path to tui.toml")
	server := flags.String("server", "", "gateway URL (overrides gateway.url)")
	name := flags.StringP("name", "n", "", "display name (overrides identity.name)")
	role := flags.String("role", "", "customer or admin (overrides identity.role)")
	clientID := flags.String("client-id", "", "durable client id (overrides identity.client_id)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *server != "" {
		cfg.Gateway.URL = *server
	}
	if *name != "" {
		cfg.Identity.Name = *name
	}
	if *role != "" {
		cfg.Identity.Role = *role
	}
	if *clientID != "" {
		cfg.Identity.ClientID = *clientID
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ensureClientID(configDir()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("helpdesk-tui connecting to %s as %s (%s)\n", cfg.Gateway.URL, cfg.Identity.Name, cfg.Identity.Role)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nGoodbye!")
}

// login exchanges the configured admin password for a token.
func login(ctx context.Context, cfg *Config) (string, error) {
	body, err := json.Marshal(map[string]string{"name": cfg.Identity.Name, "password": cfg.Admin.Password})
	if err != nil {
		return "", err
	}
	url := strings.TrimSuffix(cfg.Gateway.URL, "/") + "/api/admin/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed: status %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	return out.Token, nil
}

// connection is one live WebSocket plus the channel closed when its reader stops.
type connection struct {
	ws   *websocket.Conn
	done chan struct{}
}

func (c *connection) send(req protocol.Request) error {
	data, err := protocol.EncodeRequest(req)
	if err != nil {
		return err
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// connect dials the gateway, starts the reader and announces the client.
// A customer that already had a session asks to rejoin it.
func connect(ctx context.Context, cfg *Config, st *state, token string, out io.Writer) (*connection, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, cfg.WebSocketURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", cfg.WebSocketURL(), err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c := &connection{ws: ws, done: make(chan struct{})}
	go readLoop(c, st, out)

	var hello protocol.Request
	switch {
	case cfg.IsAdmin():
		hello = protocol.JoinRequest{Name: cfg.Identity.Name, Role: session.RoleAdmin, Token: token}
	case st.current() != "":
		hello = protocol.RejoinSessionRequest{SessionID: st.current(), Name: cfg.Identity.Name, ClientID: cfg.Identity.ClientID}
	default:
		hello = protocol.JoinRequest{Name: cfg.Identity.Name, Role: session.RoleCustomer, ClientID: cfg.Identity.ClientID}
	}
	if err := c.send(hello); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("sending join: %w", err)
	}
	return c, nil
}

func readLoop(c *connection, st *state, out io.Writer) {
	defer close(c.done)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var ev wireEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			fmt.Fprintln(out, bad("[error] undecodable event"))
			continue
		}
		line, err := st.apply(ev)
		if err != nil {
			fmt.Fprintf(out, "%s\n", bad("[error] "+ev.Type+": "+err.Error()))
			continue
		}
		if line != "" {
			fmt.Fprintln(out, line)
		}
	}
}

// reconnect retries connect with exponential backoff.
func reconnect(ctx context.Context, cfg *Config, st *state, token string) (*connection, error) {
	delay := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxReconnects; attempt++ {
		fmt.Println(warn(fmt.Sprintf("connection lost, reconnecting (%d/%d)...", attempt, maxReconnects)))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		c, err := connect(ctx, cfg, st, token, os.Stdout)
		if err == nil {
			return c, nil
		}
		lastErr = err
		delay *= 2
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", maxReconnects, lastErr)
}

func run(ctx context.Context, cfg *Config) error {
	token := cfg.Admin.Token
	if cfg.IsAdmin() && token == "" && cfg.Admin.Password != "" {
		var err error
		if token, err = login(ctx, cfg); err != nil {
			return err
		}
	}

	st := &state{}
	conn, err := connect(ctx, cfg, st, token, os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = conn.ws.Close() }()

	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
			return
		}
		errCh <- io.EOF
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errCh:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)

		case <-conn.done:
			_ = conn.ws.Close()
			if conn, err = reconnect(ctx, cfg, st, token); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			req, err := parseCommand(line, cfg.IsAdmin(), st.current())
			switch {
			case errors.Is(err, errQuit):
				return nil
			case errors.Is(err, errHelp):
				printHelp(cfg.IsAdmin())
				continue
			case err != nil:
				fmt.Println(bad("[error] " + err.Error()))
				continue
			}
			st.sent(req)
			if err := conn.send(req); err != nil {
				fmt.Println(bad("[error] send failed: " + err.Error()))
			}
		}
	}
}
