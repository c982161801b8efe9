// ABOUTME: Session coordinator serializing every cross-component operation
// ABOUTME: Owns dispatch of inbound requests, disconnect handling and list broadcasts

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/helpdesk-gateway/internal/history"
	"github.com/2389/helpdesk-gateway/internal/metrics"
	"github.com/2389/helpdesk-gateway/internal/notify"
	"github.com/2389/helpdesk-gateway/internal/protocol"
	"github.com/2389/helpdesk-gateway/internal/registry"
	"github.com/2389/helpdesk-gateway/internal/session"
)

// Notifier delivers outbound events. Implementations must not block.
type Notifier interface {
	SendTo(connID string, ev *protocol.Event)
	Broadcast(room string, ev *protocol.Event)
	JoinRoom(connID, room string)
	LeaveRoom(connID, room string)
}

// AdminVerifier validates the token carried by an admin join.
type AdminVerifier interface {
	VerifyAdmin(token string) (name string, err error)
}

// Renderer converts message bodies to HTML.
type Renderer interface {
	Render(body string) string
}

// Messages holds the human-facing texts sent by the coordinator.
type Messages struct {
	Welcome            string
	WelcomeBack        string
	SessionInvalid     string
	NewAfterInvalid    string
	SessionSelfHealed  string
	Rejoined           string
	DefaultCloseReason string
	AdminLeft          string
	AdminDisconnected  string
	DisconnectReason   string
}

// DefaultMessages returns the stock texts.
func DefaultMessages() Messages {
	return Messages{
		Welcome:            "Welcome to customer support! You can start asking questions. An admin will join shortly to help you.",
		WelcomeBack:        "Welcome back! We can see your previous conversations. An admin will join shortly to continue helping you.",
		SessionInvalid:     "Session no longer exists. Starting a new session...",
		NewAfterInvalid:    "New session created. An admin will join shortly to help you.",
		SessionSelfHealed:  "Session created. You can now send messages.",
		Rejoined:           "Reconnected to your previous session.",
		DefaultCloseReason: "Session closed by admin",
		AdminLeft:          "The admin has left the chat. You may need to wait for another admin to join.",
		AdminDisconnected:  "The admin has disconnected. Please wait for another admin to join.",
		DisconnectReason:   "Customer disconnected",
	}
}

func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&m.Welcome, d.Welcome)
	fill(&m.WelcomeBack, d.WelcomeBack)
	fill(&m.SessionInvalid, d.SessionInvalid)
	fill(&m.NewAfterInvalid, d.NewAfterInvalid)
	fill(&m.SessionSelfHealed, d.SessionSelfHealed)
	fill(&m.Rejoined, d.Rejoined)
	fill(&m.DefaultCloseReason, d.DefaultCloseReason)
	fill(&m.AdminLeft, d.AdminLeft)
	fill(&m.AdminDisconnected, d.AdminDisconnected)
	fill(&m.DisconnectReason, d.DisconnectReason)
	return m
}

// Config wires the coordinator to its components.
type Config struct {
	Registry *registry.Registry
	Sessions *session.Store
	History  *history.Index
	Notifier Notifier
	Renderer Renderer

	// AdminAuth verifies admin join tokens. Nil accepts every admin join.
	AdminAuth AdminVerifier

	Messages Messages
	Logger   *slog.Logger
}

// Coordinator is the single writer over registry, store and history.
type Coordinator struct {
	mu       sync.Mutex
	registry *registry.Registry
	sessions *session.Store
	history  *history.Index
	notifier Notifier
	renderer Renderer
	auth     AdminVerifier
	msgs     Messages
	logger   *slog.Logger
}

// New validates cfg and creates a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Registry == nil || cfg.Sessions == nil || cfg.History == nil || cfg.Notifier == nil {
		return nil, errors.New("coordinator: registry, sessions, history and notifier are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		registry: cfg.Registry,
		sessions: cfg.Sessions,
		history:  cfg.History,
		notifier: cfg.Notifier,
		renderer: cfg.Renderer,
		auth:     cfg.AdminAuth,
		msgs:     cfg.Messages.withDefaults(),
		logger:   logger.With("component", "coordinator"),
	}, nil
}

// Dispatch routes one decoded request. Failures are reported to connID as
// an error event and returned.
func (c *Coordinator) Dispatch(connID string, req protocol.Request) error {
	var err error
	switch r := req.(type) {
	case protocol.JoinRequest:
		if r.Role == session.RoleAdmin {
			err = c.JoinAdmin(connID, r.Name, r.Token)
		} else {
			err = c.JoinCustomer(connID, r.Name, r.ClientID)
		}
	case protocol.SendMessageRequest:
		err = c.SendMessage(connID, r.Body, r.SessionID)
	case protocol.JoinSessionRequest:
		err = c.JoinSession(connID, r.SessionID)
	case protocol.LeaveSessionRequest:
		err = c.LeaveSession(connID)
	case protocol.CloseSessionRequest:
		err = c.CloseSession(connID, r.SessionID, r.Reason)
	case protocol.GetSessionsRequest:
		err = c.GetSessions(connID)
	case protocol.GetClosedSessionsRequest:
		err = c.GetClosedSessions(connID)
	case protocol.GetSessionHistoryRequest:
		err = c.GetSessionHistory(connID, r.SessionID)
	case protocol.ViewClosedSessionRequest:
		err = c.ViewClosedSession(connID, r.SessionID)
	case protocol.GetClientHistoryRequest:
		err = c.GetClientHistory(connID, r.ClientID)
	case protocol.RejoinSessionRequest:
		err = c.RejoinSession(connID, r.SessionID, r.Name, r.ClientID)
	case protocol.TypingRequest:
		err = c.Typing(connID, r.IsTyping)
	default:
		err = fmt.Errorf("%w: %T", protocol.ErrUnknownType, req)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		kind := Kind(err)
		level := slog.LevelDebug
		if kind == KindInternal {
			level = slog.LevelError
		}
		c.logger.Log(context.Background(), level, "request failed",
			"connection_id", connID,
			"type", req.Type(),
			"kind", kind,
			"error", err)
		c.notifier.SendTo(connID, protocol.NewError(PublicMessage(err)))
	}
	metrics.InboundEvents.WithLabelValues(req.Type(), outcome).Inc()
	return err
}

// Disconnect handles a dropped connection. Unknown connections are a no-op.
func (c *Coordinator) Disconnect(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.registry.Get(connID)
	if !ok {
		return
	}

	if p.IsAdmin() {
		if p.SessionID != "" {
			c.releaseAdminLocked(p, c.msgs.AdminDisconnected)
		}
		c.registry.Remove(connID)
		c.notifier.LeaveRoom(connID, notify.AdminRoom)
		c.broadcastActiveLocked()
		return
	}

	c.registry.Remove(connID)
	if p.SessionID == "" {
		return
	}
	sess, err := c.sessions.GetActive(p.SessionID)
	if err != nil || sess.CustomerConnectionID() != connID {
		// Already closed, or a rejoin moved the session to a newer connection.
		return
	}

	if err := c.sessions.MarkCustomerDisconnected(sess.ID); err != nil {
		c.logger.Error("failed to mark customer disconnected", "session_id", sess.ID, "error", err)
		return
	}
	if adminConn := sess.AdminConnectionID(); adminConn != "" {
		c.notifier.SendTo(adminConn, protocol.NewCustomerDisconnected(
			sess.ID, p.Name, fmt.Sprintf("%s has disconnected", p.Name)))
	}

	closed, err := c.sessions.Close(sess.ID, c.msgs.DisconnectReason)
	if err != nil {
		c.logger.Error("failed to close session on disconnect", "session_id", sess.ID, "error", err)
		return
	}
	metrics.SessionsClosed.WithLabelValues("disconnect").Inc()
	c.freeAdminLocked(closed)
	c.logger.Info("session closed",
		"session_id", closed.ID,
		"cause", "customer disconnected",
		"messages", len(closed.Messages))

	c.broadcastActiveLocked()
	c.broadcastClosedLocked()
}

// Stats is a point-in-time view of coordinator state.
type Stats struct {
	ActiveSessions  int `json:"activeSessions"`
	WaitingSessions int `json:"waitingSessions"`
	ClosedSessions  int `json:"closedSessions"`
	Customers       int `json:"customers"`
	Admins          int `json:"admins"`
	AvailableAdmins int `json:"availableAdmins"`
}

// Snapshot returns current counts.
func (c *Coordinator) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *Coordinator) statsLocked() Stats {
	active, waiting, closed := c.sessions.Counts()
	customers, admins := c.registry.Count()
	return Stats{
		ActiveSessions:  active,
		WaitingSessions: waiting,
		ClosedSessions:  closed,
		Customers:       customers,
		Admins:          admins,
		AvailableAdmins: len(c.registry.AvailableAdmins()),
	}
}

// ActiveSessions returns copies of the active sessions, oldest first.
func (c *Coordinator) ActiveSessions() []*session.Session {
	return c.sessions.ListActive()
}

// ClosedSessions returns copies of the closed sessions, most recently closed first.
func (c *Coordinator) ClosedSessions() []*session.Session {
	return c.sessions.ListClosed()
}

// ClientHistory returns the closed-session history of clientID.
func (c *Coordinator) ClientHistory(clientID string) history.ClientHistory {
	return c.history.FullHistory(clientID, c.sessions.ClosedForClient(clientID))
}

// Render returns the render hook for outbound messages, or nil.
func (c *Coordinator) Render() protocol.RenderFunc {
	if c.renderer == nil {
		return nil
	}
	return c.renderer.Render
}

// freeAdminLocked returns the admin bound to a just-closed session to the
// available set.
func (c *Coordinator) freeAdminLocked(closed *session.Session) {
	adminConn := closed.AdminConnectionID()
	if adminConn == "" {
		return
	}
	p, ok := c.registry.Get(adminConn)
	if !ok || p.SessionID != closed.ID {
		return
	}
	c.registry.ClearSession(adminConn)
	if err := c.registry.MarkAdminAvailable(adminConn); err != nil {
		c.logger.Warn("failed to mark admin available", "connection_id", adminConn, "error", err)
	}
}

// freeCustomerLocked detaches a still-connected customer from a
// just-closed session so its next message opens a new one.
func (c *Coordinator) freeCustomerLocked(closed *session.Session) {
	connID := closed.CustomerConnectionID()
	if connID == "" {
		return
	}
	if p, ok := c.registry.Get(connID); ok && p.SessionID == closed.ID {
		c.registry.ClearSession(connID)
	}
}

// releaseAdminLocked unbinds admin p from its session and tells the customer.
func (c *Coordinator) releaseAdminLocked(p *registry.Participant, message string) {
	sessionID := p.SessionID
	if _, err := c.sessions.ReleaseAdmin(sessionID); err == nil {
		if sess, err := c.sessions.GetActive(sessionID); err == nil {
			c.sendToCustomerLocked(sess, protocol.NewAdminLeft(message))
		}
	} else if !errors.Is(err, session.ErrSessionNotFound) && !errors.Is(err, session.ErrNoAdminAssigned) {
		c.logger.Error("failed to release admin", "session_id", sessionID, "error", err)
	}
	c.registry.ClearSession(p.ConnectionID)
	_ = c.registry.MarkAdminAvailable(p.ConnectionID)
	c.logger.Info("admin released session",
		"connection_id", p.ConnectionID,
		"admin", p.Name,
		"session_id", sessionID)
}

// sendToCustomerLocked delivers ev to the session's customer when it is
// still connected.
func (c *Coordinator) sendToCustomerLocked(sess *session.Session, ev *protocol.Event) {
	if sess.Customer == nil || !sess.Customer.Connected {
		return
	}
	c.notifier.SendTo(sess.Customer.ConnectionID, ev)
}

func (c *Coordinator) broadcastActiveLocked() {
	c.notifier.Broadcast(notify.AdminRoom, protocol.NewSessionList(c.sessions.ListActive()))
	c.updateGaugesLocked()
}

func (c *Coordinator) broadcastClosedLocked() {
	c.notifier.Broadcast(notify.AdminRoom, protocol.NewClosedSessionList(c.sessions.ListClosed()))
}

func (c *Coordinator) updateGaugesLocked() {
	s := c.statsLocked()
	metrics.SessionsActive.WithLabelValues(string(session.StatusWaitingForAdmin)).Set(float64(s.WaitingSessions))
	metrics.SessionsActive.WithLabelValues("open").Set(float64(s.ActiveSessions))
	metrics.SessionsActive.WithLabelValues(string(session.StatusClosed)).Set(float64(s.ClosedSessions))
	metrics.AdminsAvailable.Set(float64(s.AvailableAdmins))
}

// requireAdminLocked returns the participant for connID if it is an admin.
func (c *Coordinator) requireAdminLocked(connID string) (*registry.Participant, error) {
	p, ok := c.registry.Get(connID)
	if !ok || !p.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return p, nil
}
