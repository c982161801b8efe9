// ABOUTME: Gateway orchestrator that wires the session components to HTTP and WebSocket
// ABOUTME: Manages listeners (TCP or Tailscale), graceful shutdown and component lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/helpdesk-gateway/internal/auth"
	"github.com/2389/helpdesk-gateway/internal/config"
	"github.com/2389/helpdesk-gateway/internal/coordinator"
	"github.com/2389/helpdesk-gateway/internal/history"
	"github.com/2389/helpdesk-gateway/internal/metrics"
	"github.com/2389/helpdesk-gateway/internal/notify"
	"github.com/2389/helpdesk-gateway/internal/registry"
	"github.com/2389/helpdesk-gateway/internal/render"
	"github.com/2389/helpdesk-gateway/internal/session"
)

// Gateway orchestrates the helpdesk-gateway server components.
type Gateway struct {
	config      *config.Config
	registry    *registry.Registry
	sessions    *session.Store
	history     *history.Index
	hub         *notify.Hub
	coordinator *coordinator.Coordinator
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	// auth is nil in open mode
	auth *auth.Authenticator

	// loginLimiter throttles POST /api/admin/login per remote IP
	loginLimiter *ipLimiter
}

// newAuthenticator returns nil when no admin credential is configured.
func newAuthenticator(cfg *config.Config, logger *slog.Logger) (*auth.Authenticator, error) {
	if !cfg.AuthEnabled() {
		logger.Warn("admin auth disabled - no auth.admin_password_hash configured")
		return nil, nil
	}
	a, err := auth.NewAuthenticator(cfg.Auth.AdminPasswordHash, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating authenticator: %w", err)
	}
	logger.Info("admin auth enabled", "token_ttl", cfg.Auth.TokenTTL)
	return a, nil
}

// coordinatorMessages maps configured texts onto the coordinator's.
func coordinatorMessages(m config.MessagesConfig) coordinator.Messages {
	return coordinator.Messages{
		Welcome:            m.Welcome,
		WelcomeBack:        m.WelcomeBack,
		SessionInvalid:     m.SessionInvalid,
		NewAfterInvalid:    m.NewAfterInvalid,
		SessionSelfHealed:  m.SessionSelfHealed,
		Rejoined:           m.Rejoined,
		DefaultCloseReason: m.DefaultCloseReason,
		AdminLeft:          m.AdminLeft,
		AdminDisconnected:  m.AdminDisconnected,
		DisconnectReason:   m.DisconnectReason,
	}
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	authn, err := newAuthenticator(cfg, logger)
	if err != nil {
		return nil, err
	}

	sessions := session.NewStore(
		session.WithLogger(logger.With("component", "sessions")),
		session.WithRetention(cfg.Sessions.ClosedRetention, cfg.Sessions.MaxClosed),
		session.WithLinkWindow(cfg.Sessions.ReturningWindow),
		session.WithSweepInterval(cfg.Sessions.SweepInterval),
		session.WithEvictHook(func(string) { metrics.ClosedSessionsEvicted.Inc() }),
	)
	hist := history.New(history.WithReturningWindow(cfg.Sessions.ReturningWindow))
	logger.Debug("session settings",
		"returning_window", hist.Window(),
		"closed_retention", cfg.Sessions.ClosedRetention,
		"max_closed", cfg.Sessions.MaxClosed)
	reg := registry.New(logger)
	hub := notify.NewHub(logger)

	coordCfg := coordinator.Config{
		Registry: reg,
		Sessions: sessions,
		History:  hist,
		Notifier: hub,
		Renderer: render.New(logger),
		Messages: coordinatorMessages(cfg.Messages),
		Logger:   logger,
	}
	if authn != nil {
		coordCfg.AdminAuth = authn
	}
	coord, err := coordinator.New(coordCfg)
	if err != nil {
		sessions.Shutdown()
		return nil, fmt.Errorf("creating coordinator: %w", err)
	}

	gw := &Gateway{
		config:       cfg,
		registry:     reg,
		sessions:     sessions,
		history:      hist,
		hub:          hub,
		coordinator:  coord,
		auth:         authn,
		loginLimiter: newIPLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst),
		logger:       logger.With("component", "gateway"),
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the HTTP handler serving every gateway route.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Coordinator returns the session coordinator.
func (g *Gateway) Coordinator() *coordinator.Coordinator {
	return g.coordinator
}

// setupTCPListener creates a standard TCP listener for HTTP.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}
	return g.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is canceled, then shuts down.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "helpdesk-gateway", "tailscale"), nil
}

// tailnetListener is the part of *tsnet.Server the gateway listens through.
type tailnetListener interface {
	Listen(network, addr string) (net.Listener, error)
	ListenTLS(network, addr string) (net.Listener, error)
	ListenFunnel(network, addr string, opts ...tsnet.FunnelOption) (net.Listener, error)
}

// tailnetExposure is how the gateway is reachable on the tailnet.
type tailnetExposure string

const (
	exposeFunnel tailnetExposure = "funnel"
	exposeHTTPS  tailnetExposure = "https"
	exposeHTTP   tailnetExposure = "http"
)

// exposureFor picks the exposure for cfg. Funnel implies HTTPS.
func exposureFor(cfg config.TailscaleConfig) tailnetExposure {
	switch {
	case cfg.Funnel:
		return exposeFunnel
	case cfg.HTTPS:
		return exposeHTTPS
	default:
		return exposeHTTP
	}
}

// listenTailnet opens the gateway listener on ts. Funnel and HTTPS serve
// :443 with tailnet-provisioned certificates; plain HTTP serves :80.
func listenTailnet(ts tailnetListener, cfg config.TailscaleConfig) (net.Listener, tailnetExposure, error) {
	exposure := exposureFor(cfg)
	var (
		ln  net.Listener
		err error
	)
	switch exposure {
	case exposeFunnel:
		ln, err = ts.ListenFunnel("tcp", ":443")
	case exposeHTTPS:
		ln, err = ts.ListenTLS("tcp", ":443")
	default:
		ln, err = ts.Listen("tcp", ":80")
	}
	if err != nil {
		return nil, exposure, fmt.Errorf("listening on tailnet (%s): %w", exposure, err)
	}
	return ln, exposure, nil
}

// setupTailscaleListener joins the tailnet and returns the gateway listener.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}
	if tsCfg.AuthKey == "" {
		return nil, errors.New("tailscale auth key required: set tailscale.auth_key or TS_AUTHKEY")
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   tsCfg.AuthKey,
	}

	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	attrs := []any{"hostname", tsCfg.Hostname, "state_dir", stateDir}
	if len(status.TailscaleIPs) > 0 {
		attrs = append(attrs, "tailscale_ip", status.TailscaleIPs[0].String())
	}
	if status.Self != nil {
		attrs = append(attrs, "dns_name", status.Self.DNSName)
	}

	ln, exposure, err := listenTailnet(g.tsnetServer, tsCfg)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, err
	}
	g.logger.Info("joined tailnet", append(attrs, "exposure", exposure)...)
	return ln, nil
}

// Shutdown gracefully stops the HTTP server and releases resources.
// Closing the hub ends every WebSocket writer, which in turn disconnects
// the connection through the coordinator.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	g.hub.Close()
	g.sessions.Shutdown()

	if g.tsnetServer != nil {
		if err := g.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("leaving tailnet: %w", err))
		}
	}
	return errors.Join(errs...)
}
