// ABOUTME: Customer-side coordinator operations
// ABOUTME: Join with returning-client linking, rejoin by session id, messaging and typing

package coordinator

import (
	"errors"
	"fmt"

	"github.com/2389/helpdesk-gateway/internal/metrics"
	"github.com/2389/helpdesk-gateway/internal/notify"
	"github.com/2389/helpdesk-gateway/internal/protocol"
	"github.com/2389/helpdesk-gateway/internal/registry"
	"github.com/2389/helpdesk-gateway/internal/session"
)

// JoinCustomer registers connID as a customer and opens its session. A
// session for the same client id that closed within the returning window
// is linked to the new one.
func (c *Coordinator) JoinCustomer(connID, name, clientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkCustomerJoinLocked(connID); err != nil {
		return err
	}

	c.registry.Register(&registry.Participant{
		ConnectionID: connID,
		Name:         name,
		Role:         session.RoleCustomer,
		ClientID:     clientID,
	})

	sess, returning := c.openSessionLocked(connID, name, clientID)
	welcome := c.msgs.Welcome
	if returning {
		welcome = c.msgs.WelcomeBack
	}
	c.announceSessionLocked(connID, sess, returning, welcome)
	return nil
}

// openSessionLocked records the join in the history index, creates the
// session and binds it to connID.
func (c *Coordinator) openSessionLocked(connID, name, clientID string) (*session.Session, bool) {
	var previous *session.Session
	if c.history.HasClient(clientID) {
		previous = c.history.FindRecentClosedSession(clientID, c.sessions.ClosedForClient(clientID))
	}

	c.history.RecordJoin(clientID, name)

	params := session.CreateParams{
		Customer:        session.CustomerRef{ConnectionID: connID, Name: name, ClientID: clientID},
		Previous:        previous,
		CustomerHistory: c.history.SummarizeByName(name),
	}
	if clientID != "" {
		params.ClientHistory = c.history.Summarize(clientID)
	}
	sess := c.sessions.Create(params)

	if err := c.registry.BindSession(connID, sess.ID); err != nil {
		c.logger.Error("failed to bind session", "connection_id", connID, "session_id", sess.ID, "error", err)
	}

	returning := previous != nil
	kind := "new"
	if returning {
		kind = "returning"
	}
	metrics.SessionsCreated.WithLabelValues(kind).Inc()

	attrs := []any{"session_id", sess.ID, "customer", name, "returning", returning}
	if clientID != "" {
		attrs = append(attrs, "client_id", clientID)
	}
	if previous != nil {
		attrs = append(attrs, "linked_session_id", previous.ID)
	}
	c.logger.Info("session created", attrs...)

	return sess, returning
}

// announceSessionLocked tells the customer about its new session, refreshes
// the admin list and alerts available admins.
func (c *Coordinator) announceSessionLocked(connID string, sess *session.Session, returning bool, message string) {
	created := protocol.SessionCreated{
		SessionID:         sess.ID,
		Message:           message,
		IsReturningClient: returning,
	}
	if sess.Previous != nil {
		created.LinkedPreviousSessionID = sess.Previous.ID
	}
	c.notifier.SendTo(connID, protocol.NewSessionCreated(created))

	c.broadcastActiveLocked()

	if c.registry.HasAvailableAdmins() {
		name := sess.Customer.Name
		c.notifier.Broadcast(notify.AdminRoom, protocol.NewNewSessionAlert(protocol.NewSessionAlert{
			SessionID:         sess.ID,
			CustomerName:      name,
			Message:           fmt.Sprintf("New customer support session from %s", name),
			IsReturningClient: returning,
		}))
	}
}

// RejoinSession reattaches a reconnecting customer to sessionID. When the
// session is gone the customer is told so and a fresh join is performed.
func (c *Coordinator) RejoinSession(connID, sessionID, name, clientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkCustomerJoinLocked(connID); err != nil {
		return err
	}

	var sess *session.Session
	if sessionID != "" {
		if s, err := c.sessions.GetActive(sessionID); err == nil && sameClient(s, clientID) {
			sess = s
		}
	}

	if sess == nil {
		c.notifier.SendTo(connID, protocol.NewSessionInvalid(c.msgs.SessionInvalid))
		c.registry.Register(&registry.Participant{
			ConnectionID: connID,
			Name:         name,
			Role:         session.RoleCustomer,
			ClientID:     clientID,
		})
		created, returning := c.openSessionLocked(connID, name, clientID)
		c.announceSessionLocked(connID, created, returning, c.msgs.NewAfterInvalid)
		return nil
	}

	if clientID == "" {
		clientID = sess.ClientID()
	}
	if old := sess.CustomerConnectionID(); old != "" && old != connID {
		c.registry.ClearSession(old)
	}
	if err := c.sessions.ReplaceCustomer(sess.ID, session.CustomerRef{
		ConnectionID: connID,
		Name:         name,
		ClientID:     clientID,
	}); err != nil {
		return fmt.Errorf("rejoin %s: %w", sess.ID, err)
	}
	c.registry.Register(&registry.Participant{
		ConnectionID: connID,
		Name:         name,
		Role:         session.RoleCustomer,
		ClientID:     clientID,
		SessionID:    sess.ID,
	})

	hasAdmin := sess.Admin != nil
	c.notifier.SendTo(connID, protocol.NewSessionRejoined(sess.ID, c.msgs.Rejoined, hasAdmin))
	if adminConn := sess.AdminConnectionID(); adminConn != "" {
		if _, ok := c.registry.Get(adminConn); ok {
			c.notifier.SendTo(adminConn, protocol.NewCustomerRejoined(sess.ID, name))
		}
	}

	c.logger.Info("customer rejoined session",
		"session_id", sess.ID,
		"customer", name,
		"has_admin", hasAdmin)
	c.broadcastActiveLocked()
	return nil
}

// sameClient reports whether a rejoin carrying clientID may take over s.
func sameClient(s *session.Session, clientID string) bool {
	owner := s.ClientID()
	return owner == "" || clientID == "" || owner == clientID
}

// SendMessage appends body to the sender's session and delivers it to both
// parties. Admins must name the target session.
func (c *Coordinator) SendMessage(connID, body, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.registry.Get(connID)
	if !ok {
		return ErrUnknownConnection
	}
	if p.IsAdmin() {
		return c.sendAsAdminLocked(p, body, sessionID)
	}
	return c.sendAsCustomerLocked(p, body)
}

func (c *Coordinator) sendAsCustomerLocked(p *registry.Participant, body string) error {
	sess, ok := c.activeSessionLocked(p)
	if !ok {
		var returning bool
		sess, returning = c.openSessionLocked(p.ConnectionID, p.Name, p.ClientID)
		c.announceSessionLocked(p.ConnectionID, sess, returning, c.msgs.SessionSelfHealed)
	}

	msg, err := c.sessions.Append(sess.ID, session.Message{
		AuthorName: p.Name,
		Role:       session.RoleCustomer,
		Body:       body,
	})
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return fmt.Errorf("%w: %s", ErrNoActiveSession, sess.ID)
		}
		return err
	}
	c.history.RecordMessage(p.Name)
	metrics.MessagesRouted.WithLabelValues(string(session.RoleCustomer)).Inc()

	ev := protocol.NewReceiveMessage(msg, c.Render())
	if adminConn := sess.AdminConnectionID(); adminConn != "" {
		c.notifier.SendTo(adminConn, ev)
	}
	c.notifier.SendTo(p.ConnectionID, ev)
	return nil
}

// activeSessionLocked returns the active session bound to customer p. A
// binding to a session that has since closed is cleared.
func (c *Coordinator) activeSessionLocked(p *registry.Participant) (*session.Session, bool) {
	if p.SessionID == "" {
		return nil, false
	}
	sess, err := c.sessions.GetActive(p.SessionID)
	if err != nil {
		c.registry.ClearSession(p.ConnectionID)
		p.SessionID = ""
		return nil, false
	}
	return sess, true
}

// checkCustomerJoinLocked rejects a customer join or rejoin from an admin
// connection or from a customer still holding an active session.
func (c *Coordinator) checkCustomerJoinLocked(connID string) error {
	p, exists := c.registry.Get(connID)
	if !exists {
		return nil
	}
	if p.IsAdmin() {
		return fmt.Errorf("%w: connection already joined as admin", ErrInvalidState)
	}
	if _, ok := c.activeSessionLocked(p); ok {
		return fmt.Errorf("%w: connection already joined", ErrInvalidState)
	}
	return nil
}

func (c *Coordinator) sendAsAdminLocked(p *registry.Participant, body, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id required", ErrInvalidSession)
	}
	sess, err := c.sessions.GetActive(sessionID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSession, sessionID)
	}
	if adminConn := sess.AdminConnectionID(); adminConn != "" && adminConn != p.ConnectionID {
		return fmt.Errorf("%w: session %s belongs to another admin", ErrUnauthorized, sessionID)
	}

	msg, err := c.sessions.Append(sessionID, session.Message{
		AuthorName: p.Name,
		Role:       session.RoleAdmin,
		Body:       body,
	})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSession, sessionID)
	}
	metrics.MessagesRouted.WithLabelValues(string(session.RoleAdmin)).Inc()

	ev := protocol.NewReceiveMessage(msg, c.Render())
	c.sendToCustomerLocked(sess, ev)
	c.notifier.SendTo(p.ConnectionID, ev)
	return nil
}

// Typing relays a typing indicator to the other party of the sender's
// session. It never changes state.
func (c *Coordinator) Typing(connID string, isTyping bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.registry.Get(connID)
	if !ok || p.SessionID == "" {
		return nil
	}
	sess, err := c.sessions.GetActive(p.SessionID)
	if err != nil {
		return nil
	}

	ev := protocol.NewUserTyping(p.Name, isTyping)
	if p.IsAdmin() {
		c.sendToCustomerLocked(sess, ev)
	} else if adminConn := sess.AdminConnectionID(); adminConn != "" {
		c.notifier.SendTo(adminConn, ev)
	}
	return nil
}
