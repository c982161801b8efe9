// ABOUTME: Session, message and participant reference types for support conversations
// ABOUTME: Defines statuses, roles, history summaries and deep-copy helpers

package session

import (
	"errors"
	"slices"
	"time"
)

// Store errors
var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrAdminAlreadyAssigned = errors.New("session already has an admin")
	ErrNoAdminAssigned      = errors.New("session has no admin")
	ErrInvalidTransition    = errors.New("invalid session status transition")
)

// Status is the lifecycle state of a session.
type Status string

// Session statuses
const (
	StatusWaitingForAdmin      Status = "waiting_for_admin"
	StatusActive               Status = "active"
	StatusCustomerDisconnected Status = "customer_disconnected"
	StatusClosed               Status = "closed"
)

// Role identifies who authored a message or holds a connection.
type Role string

// Roles
const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// CustomerRef is the customer binding of a session.
type CustomerRef struct {
	ConnectionID   string
	Name           string
	ClientID       string
	Connected      bool
	DisconnectedAt *time.Time
}

// AdminRef is the admin binding of a session.
type AdminRef struct {
	ConnectionID string
	Name         string
}

// PreviousRef links a new session to a recently closed one for the same
// client. It is a reference only; message logs are never merged.
type PreviousRef struct {
	ID           string
	MessageCount int
	ClosedAt     time.Time
}

// Message is a single entry in a session log. Immutable once appended.
type Message struct {
	ID         string
	AuthorName string
	Role       Role
	Body       string
	Timestamp  time.Time
	SessionID  string
}

// NameSummary is the name-keyed history snapshot attached to a session.
type NameSummary struct {
	PreviousSessions int
	TotalMessages    int
	IsReturning      bool
	FirstSeen        time.Time
	LastSeen         time.Time
}

// ClientSummary is the client-id keyed history snapshot attached to a session.
type ClientSummary struct {
	PreviousNames []string
	TotalSessions int
	IsReturning   bool
	FirstSeen     time.Time
	LastSeen      time.Time
}

// Session is one customer's support conversation.
type Session struct {
	ID              string
	Customer        *CustomerRef
	Admin           *AdminRef
	Messages        []Message
	CreatedAt       time.Time
	ClosedAt        *time.Time
	Status          Status
	CloseReason     string
	CustomerHistory *NameSummary
	ClientHistory   *ClientSummary
	Previous        *PreviousRef
}

// ClientID returns the durable client id of the session's customer, if any.
func (s *Session) ClientID() string {
	if s.Customer == nil {
		return ""
	}
	return s.Customer.ClientID
}

// AdminConnectionID returns the bound admin's connection id, or "".
func (s *Session) AdminConnectionID() string {
	if s.Admin == nil {
		return ""
	}
	return s.Admin.ConnectionID
}

// CustomerConnectionID returns the bound customer's connection id, or "".
func (s *Session) CustomerConnectionID() string {
	if s.Customer == nil {
		return ""
	}
	return s.Customer.ConnectionID
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Customer != nil {
		c := *s.Customer
		if s.Customer.DisconnectedAt != nil {
			t := *s.Customer.DisconnectedAt
			c.DisconnectedAt = &t
		}
		out.Customer = &c
	}
	if s.Admin != nil {
		a := *s.Admin
		out.Admin = &a
	}
	out.Messages = slices.Clone(s.Messages)
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		out.ClosedAt = &t
	}
	if s.CustomerHistory != nil {
		h := *s.CustomerHistory
		out.CustomerHistory = &h
	}
	if s.ClientHistory != nil {
		h := *s.ClientHistory
		h.PreviousNames = slices.Clone(s.ClientHistory.PreviousNames)
		out.ClientHistory = &h
	}
	if s.Previous != nil {
		p := *s.Previous
		out.Previous = &p
	}
	return &out
}
