// ABOUTME: Outbound event envelopes and their payload shapes
// ABOUTME: Constructors convert session snapshots into wire views

package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/2389/helpdesk-gateway/internal/history"
	"github.com/2389/helpdesk-gateway/internal/session"
)

// Outbound event types
const (
	EventSessionCreated        = "session_created"
	EventSessionInvalid        = "session_invalid"
	EventSessionRejoined       = "session_rejoined"
	EventCustomerRejoined      = "customer_rejoined"
	EventSessionListUpdate     = "session_list_update"
	EventClosedSessionsUpdate  = "closed_sessions_update"
	EventSessionHistory        = "session_history"
	EventClosedSessionMessages = "closed_session_messages"
	EventReceiveMessage        = "receive_message"
	EventAdminJoined           = "admin_joined"
	EventAdminLeft             = "admin_left"
	EventCustomerDisconnected  = "customer_disconnected"
	EventSessionClosed         = "session_closed"
	EventNewSessionAlert       = "new_session_alert"
	EventClientHistory         = "client_history"
	EventUserTyping            = "user_typing"
	EventError                 = "error"
)

// Event is one outbound envelope.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Encode marshals the envelope.
func (e *Event) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", e.Type, err)
	}
	return b, nil
}

// SessionCreated is sent to a customer when its session starts.
// IsReturning mirrors IsReturningClient for clients reading either name.
type SessionCreated struct {
	SessionID               string `json:"sessionId"`
	Message                 string `json:"message"`
	IsReturning             bool   `json:"isReturning"`
	IsReturningClient       bool   `json:"isReturningClient"`
	LinkedPreviousSessionID string `json:"linkedPreviousSessionId,omitempty"`
}

// SessionInvalid tells a rejoining customer its session is gone.
type SessionInvalid struct {
	Message string `json:"message"`
}

// SessionRejoined confirms a rejoin to the customer.
type SessionRejoined struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	HasAdmin  bool   `json:"hasAdmin"`
}

// CustomerRejoined tells the bound admin its customer is back.
type CustomerRejoined struct {
	SessionID    string `json:"sessionId"`
	CustomerName string `json:"customerName"`
}

// SessionHistory carries a session's log to an admin.
type SessionHistory struct {
	SessionID string        `json:"sessionId"`
	Messages  []MessageView `json:"messages"`
	Customer  *CustomerView `json:"customer"`
	Admin     *AdminView    `json:"admin"`
	Status    string        `json:"status"`
}

// ClosedSessionMessages carries a closed session's full record.
type ClosedSessionMessages struct {
	SessionID   string        `json:"sessionId"`
	Customer    *CustomerView `json:"customer"`
	Admin       *AdminView    `json:"admin"`
	Messages    []MessageView `json:"messages"`
	CreatedAt   time.Time     `json:"createdAt"`
	ClosedAt    *time.Time    `json:"closedAt"`
	Status      string        `json:"status"`
	CloseReason string        `json:"closeReason,omitempty"`
}

// AdminJoined tells a customer an admin claimed the session.
type AdminJoined struct {
	AdminName string `json:"adminName"`
	Message   string `json:"message"`
}

// AdminLeft tells a customer its admin released the session.
type AdminLeft struct {
	Message string `json:"message"`
}

// CustomerDisconnected tells the bound admin its customer dropped.
type CustomerDisconnected struct {
	SessionID    string `json:"sessionId"`
	CustomerName string `json:"customerName"`
	Message      string `json:"message"`
}

// SessionClosed tells a customer the session was closed.
type SessionClosed struct {
	Reason string `json:"reason"`
}

// NewSessionAlert is the advisory sent to the admin room.
type NewSessionAlert struct {
	SessionID         string `json:"sessionId"`
	CustomerName      string `json:"customerName"`
	Message           string `json:"message"`
	IsReturning       bool   `json:"isReturning"`
	IsReturningClient bool   `json:"isReturningClient"`
}

// ClientHistory is the closed-session history of a client id.
type ClientHistory struct {
	ClientID      string            `json:"clientId"`
	Sessions      []PastSessionView `json:"sessions"`
	TotalSessions int               `json:"totalSessions"`
	TotalMessages int               `json:"totalMessages"`
}

// UserTyping relays a typing indicator.
type UserTyping struct {
	User     string `json:"user"`
	IsTyping bool   `json:"isTyping"`
}

// ErrorPayload reports a failed request to its sender.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewSessionCreated builds a session_created event.
func NewSessionCreated(p SessionCreated) *Event {
	p.IsReturning = p.IsReturningClient
	return &Event{Type: EventSessionCreated, Data: p}
}

// NewSessionInvalid builds a session_invalid event.
func NewSessionInvalid(message string) *Event {
	return &Event{Type: EventSessionInvalid, Data: SessionInvalid{Message: message}}
}

// NewSessionRejoined builds a session_rejoined event.
func NewSessionRejoined(sessionID, message string, hasAdmin bool) *Event {
	return &Event{Type: EventSessionRejoined, Data: SessionRejoined{SessionID: sessionID, Message: message, HasAdmin: hasAdmin}}
}

// NewCustomerRejoined builds a customer_rejoined event.
func NewCustomerRejoined(sessionID, customerName string) *Event {
	return &Event{Type: EventCustomerRejoined, Data: CustomerRejoined{SessionID: sessionID, CustomerName: customerName}}
}

// NewSessionList builds a session_list_update event.
func NewSessionList(sessions []*session.Session) *Event {
	return &Event{Type: EventSessionListUpdate, Data: Summaries(sessions)}
}

// NewClosedSessionList builds a closed_sessions_update event.
func NewClosedSessionList(sessions []*session.Session) *Event {
	return &Event{Type: EventClosedSessionsUpdate, Data: Summaries(sessions)}
}

// NewSessionHistory builds a session_history event.
func NewSessionHistory(s *session.Session, render RenderFunc) *Event {
	return &Event{Type: EventSessionHistory, Data: SessionHistory{
		SessionID: s.ID,
		Messages:  MessageViews(s.Messages, render),
		Customer:  NewCustomerView(s.Customer),
		Admin:     NewAdminView(s.Admin),
		Status:    string(s.Status),
	}}
}

// NewClosedSessionMessages builds a closed_session_messages event.
func NewClosedSessionMessages(s *session.Session, render RenderFunc) *Event {
	return &Event{Type: EventClosedSessionMessages, Data: ClosedSessionMessages{
		SessionID:   s.ID,
		Customer:    NewCustomerView(s.Customer),
		Admin:       NewAdminView(s.Admin),
		Messages:    MessageViews(s.Messages, render),
		CreatedAt:   s.CreatedAt,
		ClosedAt:    s.ClosedAt,
		Status:      string(s.Status),
		CloseReason: s.CloseReason,
	}}
}

// NewReceiveMessage builds a receive_message event.
func NewReceiveMessage(m session.Message, render RenderFunc) *Event {
	return &Event{Type: EventReceiveMessage, Data: NewMessageView(m, render)}
}

// NewAdminJoined builds an admin_joined event.
func NewAdminJoined(adminName, message string) *Event {
	return &Event{Type: EventAdminJoined, Data: AdminJoined{AdminName: adminName, Message: message}}
}

// NewAdminLeft builds an admin_left event.
func NewAdminLeft(message string) *Event {
	return &Event{Type: EventAdminLeft, Data: AdminLeft{Message: message}}
}

// NewCustomerDisconnected builds a customer_disconnected event.
func NewCustomerDisconnected(sessionID, customerName, message string) *Event {
	return &Event{Type: EventCustomerDisconnected, Data: CustomerDisconnected{
		SessionID:    sessionID,
		CustomerName: customerName,
		Message:      message,
	}}
}

// NewSessionClosed builds a session_closed event.
func NewSessionClosed(reason string) *Event {
	return &Event{Type: EventSessionClosed, Data: SessionClosed{Reason: reason}}
}

// NewNewSessionAlert builds a new_session_alert event.
func NewNewSessionAlert(p NewSessionAlert) *Event {
	p.IsReturning = p.IsReturningClient
	return &Event{Type: EventNewSessionAlert, Data: p}
}

// NewClientHistory builds a client_history event.
func NewClientHistory(h history.ClientHistory, render RenderFunc) *Event {
	return &Event{Type: EventClientHistory, Data: NewClientHistoryView(h, render)}
}

// NewUserTyping builds a user_typing event.
func NewUserTyping(user string, isTyping bool) *Event {
	return &Event{Type: EventUserTyping, Data: UserTyping{User: user, IsTyping: isTyping}}
}

// NewError builds an error event.
func NewError(message string) *Event {
	return &Event{Type: EventError, Data: ErrorPayload{Message: message}}
}
