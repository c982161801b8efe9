// ABOUTME: Admin-side coordinator operations
// ABOUTME: Join, claim, release and close sessions plus the history queries

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

// JoinAdmin registers connID as an available admin and sends it the
// current session lists.
func (c *Coordinator) JoinAdmin(connID, name, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.registry.Get(connID); exists {
		return fmt.Errorf("%w: connection already joined", ErrInvalidState)
	}
	if c.auth != nil {
		subject, err := c.auth.VerifyAdmin(token)
		if err != nil {
			c.logger.Warn("admin join rejected", "connection_id", connID, "name", name, "error", err)
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		c.logger.Debug("admin token verified", "connection_id", connID, "subject", subject)
	}

	c.registry.Register(&registry.Participant{
		ConnectionID: connID,
		Name:         name,
		Role:         session.RoleAdmin,
	})
	c.notifier.JoinRoom(connID, notify.AdminRoom)
	if err := c.registry.MarkAdminAvailable(connID); err != nil {
		return fmt.Errorf("mark available: %w", err)
	}

	c.notifier.SendTo(connID, protocol.NewSessionList(c.sessions.ListActive()))
	c.notifier.SendTo(connID, protocol.NewClosedSessionList(c.sessions.ListClosed()))
	c.updateGaugesLocked()
	return nil
}

// JoinSession binds the admin to a waiting session. An admin serves one
// session at a time.
func (c *Coordinator) JoinSession(connID, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.requireAdminLocked(connID)
	if err != nil {
		return err
	}
	if p.SessionID != "" {
		if p.SessionID == sessionID {
			return fmt.Errorf("join %s: %w", sessionID, session.ErrAdminAlreadyAssigned)
		}
		return fmt.Errorf("%w: admin is already in session %s", ErrInvalidState, p.SessionID)
	}

	if err := c.sessions.AssignAdmin(sessionID, session.AdminRef{ConnectionID: connID, Name: p.Name}); err != nil {
		return fmt.Errorf("join %s: %w", sessionID, err)
	}
	if err := c.registry.BindSession(connID, sessionID); err != nil {
		return fmt.Errorf("bind %s: %w", sessionID, err)
	}
	c.registry.MarkAdminBusy(connID)

	sess, err := c.sessions.GetActive(sessionID)
	if err != nil {
		return fmt.Errorf("join %s: %w", sessionID, err)
	}
	c.notifier.SendTo(connID, protocol.NewSessionHistory(sess, c.Render()))
	c.sendToCustomerLocked(sess, protocol.NewAdminJoined(p.Name,
		fmt.Sprintf("%s has joined the chat to help you.", p.Name)))

	c.logger.Info("admin joined session",
		"connection_id", connID,
		"admin", p.Name,
		"session_id", sessionID)
	c.broadcastActiveLocked()
	return nil
}

// LeaveSession releases the admin's current session back to waiting.
func (c *Coordinator) LeaveSession(connID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.requireAdminLocked(connID)
	if err != nil {
		return err
	}
	if p.SessionID == "" {
		return fmt.Errorf("%w: admin is not in a session", ErrInvalidState)
	}

	c.releaseAdminLocked(p, c.msgs.AdminLeft)
	c.broadcastActiveLocked()
	return nil
}

// CloseSession archives an active session. Any admin may close any session.
func (c *Coordinator) CloseSession(connID, sessionID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.requireAdminLocked(connID)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = c.msgs.DefaultCloseReason
	}

	sess, err := c.sessions.GetActive(sessionID)
	if err != nil {
		if _, closedErr := c.sessions.GetClosed(sessionID); closedErr == nil {
			return fmt.Errorf("%w: session %s is already closed", ErrInvalidState, sessionID)
		}
		return fmt.Errorf("close %s: %w", sessionID, err)
	}

	c.sendToCustomerLocked(sess, protocol.NewSessionClosed(reason))

	closed, err := c.sessions.Close(sessionID, reason)
	if err != nil {
		return fmt.Errorf("close %s: %w", sessionID, err)
	}
	metrics.SessionsClosed.WithLabelValues("admin").Inc()
	c.freeAdminLocked(closed)
	c.freeCustomerLocked(closed)

	c.logger.Info("session closed",
		"session_id", sessionID,
		"cause", "admin",
		"admin", p.Name,
		"reason", reason,
		"messages", len(closed.Messages))
	c.broadcastActiveLocked()
	c.broadcastClosedLocked()
	return nil
}

// GetSessions sends the active session list to the requesting admin.
func (c *Coordinator) GetSessions(connID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.requireAdminLocked(connID); err != nil {
		return err
	}
	c.notifier.SendTo(connID, protocol.NewSessionList(c.sessions.ListActive()))
	return nil
}

// GetClosedSessions sends the closed session list to the requesting admin.
func (c *Coordinator) GetClosedSessions(connID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.requireAdminLocked(connID); err != nil {
		return err
	}
	c.notifier.SendTo(connID, protocol.NewClosedSessionList(c.sessions.ListClosed()))
	return nil
}

// GetSessionHistory sends a session's log without joining it. Active
// sessions are searched first, then closed ones.
func (c *Coordinator) GetSessionHistory(connID, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.requireAdminLocked(connID); err != nil {
		return err
	}
	sess, err := c.sessions.GetActive(sessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		sess, err = c.sessions.GetClosed(sessionID)
	}
	if err != nil {
		return fmt.Errorf("history %s: %w", sessionID, err)
	}
	c.notifier.SendTo(connID, protocol.NewSessionHistory(sess, c.Render()))
	return nil
}

// ViewClosedSession sends the full record of a closed session.
func (c *Coordinator) ViewClosedSession(connID, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.requireAdminLocked(connID); err != nil {
		return err
	}
	sess, err := c.sessions.GetClosed(sessionID)
	if err != nil {
		return fmt.Errorf("view closed %s: %w", sessionID, err)
	}
	c.notifier.SendTo(connID, protocol.NewClosedSessionMessages(sess, c.Render()))
	return nil
}

// GetClientHistory sends every closed session of clientID, newest first.
func (c *Coordinator) GetClientHistory(connID, clientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.requireAdminLocked(connID); err != nil {
		return err
	}
	h := c.history.FullHistory(clientID, c.sessions.ClosedForClient(clientID))
	c.notifier.SendTo(connID, protocol.NewClientHistory(h, c.Render()))
	return nil
}
