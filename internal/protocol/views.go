// ABOUTME: JSON views of sessions, participants and messages
// ABOUTME: Shared by WebSocket events and the REST API

package protocol

import (
	"time"

	"github.com/2389/helpdesk-gateway/internal/history"
	"github.com/2389/helpdesk-gateway/internal/session"
)

// RenderFunc turns a message body into HTML. Nil disables rendering.
type RenderFunc func(body string) string

// CustomerView is the customer slot of a session.
type CustomerView struct {
	Name           string     `json:"name"`
	ClientID       string     `json:"clientId,omitempty"`
	IsConnected    bool       `json:"isConnected"`
	DisconnectedAt *time.Time `json:"disconnectedAt,omitempty"`
}

// AdminView is the admin slot of a session.
type AdminView struct {
	Name string `json:"name"`
}

// PreviousSessionView links a session to the closed one it follows.
type PreviousSessionView struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"messageCount"`
	ClosedAt     time.Time `json:"closedAt"`
}

// NameHistoryView is the name-keyed customer history summary.
type NameHistoryView struct {
	PreviousSessions int       `json:"previousSessions"`
	TotalMessages    int       `json:"totalMessages"`
	IsReturning      bool      `json:"isReturning"`
	FirstSeen        time.Time `json:"firstSeen"`
	LastSeen         time.Time `json:"lastSeen"`
}

// ClientHistoryView is the client-id keyed history summary.
type ClientHistoryView struct {
	PreviousNames []string  `json:"previousNames"`
	TotalSessions int       `json:"totalSessions"`
	IsReturning   bool      `json:"isReturning"`
	FirstSeen     time.Time `json:"firstSeen"`
	LastSeen      time.Time `json:"lastSeen"`
}

// SessionSummary is one row of the admin session lists.
type SessionSummary struct {
	ID                      string               `json:"id"`
	Customer                *CustomerView        `json:"customer"`
	Admin                   *AdminView           `json:"admin"`
	MessageCount            int                  `json:"messageCount"`
	CreatedAt               time.Time            `json:"createdAt"`
	ClosedAt                *time.Time           `json:"closedAt,omitempty"`
	Status                  string               `json:"status"`
	CloseReason             string               `json:"closeReason,omitempty"`
	CustomerHistory         *NameHistoryView     `json:"customerHistory,omitempty"`
	ClientHistory           *ClientHistoryView   `json:"clientHistory,omitempty"`
	PreviousSession         *PreviousSessionView `json:"previousSession,omitempty"`
	LinkedPreviousSessionID string               `json:"linkedPreviousSessionId,omitempty"`
}

// MessageView is a message as delivered to clients.
type MessageView struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Message   string    `json:"message"`
	HTML      string    `json:"html,omitempty"`
	Role      string    `json:"role"`
	IsAdmin   bool      `json:"isAdmin"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId"`
}

// PastSessionView is one closed session in a client history.
type PastSessionView struct {
	ID           string        `json:"id"`
	CustomerName string        `json:"customerName"`
	Messages     []MessageView `json:"messages"`
	CreatedAt    time.Time     `json:"createdAt"`
	ClosedAt     time.Time     `json:"closedAt"`
	MessageCount int           `json:"messageCount"`
	AdminName    string        `json:"adminName"`
}

// NewCustomerView returns nil for an empty slot.
func NewCustomerView(c *session.CustomerRef) *CustomerView {
	if c == nil {
		return nil
	}
	return &CustomerView{
		Name:           c.Name,
		ClientID:       c.ClientID,
		IsConnected:    c.Connected,
		DisconnectedAt: c.DisconnectedAt,
	}
}

// NewAdminView returns nil for an empty slot.
func NewAdminView(a *session.AdminRef) *AdminView {
	if a == nil {
		return nil
	}
	return &AdminView{Name: a.Name}
}

// NewMessageView converts a stored message.
func NewMessageView(m session.Message, render RenderFunc) MessageView {
	v := MessageView{
		ID:        m.ID,
		User:      m.AuthorName,
		Message:   m.Body,
		Role:      string(m.Role),
		IsAdmin:   m.Role == session.RoleAdmin,
		Timestamp: m.Timestamp,
		SessionID: m.SessionID,
	}
	if render != nil {
		v.HTML = render(m.Body)
	}
	return v
}

// MessageViews converts a message log, never returning nil.
func MessageViews(msgs []session.Message, render RenderFunc) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, NewMessageView(m, render))
	}
	return out
}

// Summarize converts one session into a list row.
func Summarize(s *session.Session) SessionSummary {
	out := SessionSummary{
		ID:           s.ID,
		Customer:     NewCustomerView(s.Customer),
		Admin:        NewAdminView(s.Admin),
		MessageCount: len(s.Messages),
		CreatedAt:    s.CreatedAt,
		ClosedAt:     s.ClosedAt,
		Status:       string(s.Status),
		CloseReason:  s.CloseReason,
	}
	if h := s.CustomerHistory; h != nil {
		out.CustomerHistory = &NameHistoryView{
			PreviousSessions: h.PreviousSessions,
			TotalMessages:    h.TotalMessages,
			IsReturning:      h.IsReturning,
			FirstSeen:        h.FirstSeen,
			LastSeen:         h.LastSeen,
		}
	}
	if h := s.ClientHistory; h != nil {
		out.ClientHistory = &ClientHistoryView{
			PreviousNames: h.PreviousNames,
			TotalSessions: h.TotalSessions,
			IsReturning:   h.IsReturning,
			FirstSeen:     h.FirstSeen,
			LastSeen:      h.LastSeen,
		}
	}
	if p := s.Previous; p != nil {
		out.PreviousSession = &PreviousSessionView{ID: p.ID, MessageCount: p.MessageCount, ClosedAt: p.ClosedAt}
		out.LinkedPreviousSessionID = p.ID
	}
	return out
}

// Summaries converts a session list, never returning nil.
func Summaries(sessions []*session.Session) []SessionSummary {
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, Summarize(s))
	}
	return out
}

// NewClientHistoryView converts a client history.
func NewClientHistoryView(h history.ClientHistory, render RenderFunc) ClientHistory {
	out := ClientHistory{
		ClientID:      h.ClientID,
		Sessions:      make([]PastSessionView, 0, len(h.Sessions)),
		TotalSessions: h.TotalSessions,
		TotalMessages: h.TotalMessages,
	}
	for _, p := range h.Sessions {
		out.Sessions = append(out.Sessions, PastSessionView{
			ID:           p.ID,
			CustomerName: p.CustomerName,
			Messages:     MessageViews(p.Messages, render),
			CreatedAt:    p.CreatedAt,
			ClosedAt:     p.ClosedAt,
			MessageCount: p.MessageCount,
			AdminName:    p.AdminName,
		})
	}
	return out
}
