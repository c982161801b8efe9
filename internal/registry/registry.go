// ABOUTME: Live participant registry keyed by connection id
// ABOUTME: Tracks roles, session bindings and the available-admin set

package registry

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/2389/helpdesk-gateway/internal/session"
)

// ErrParticipantNotFound indicates no participant is registered for a connection.
var ErrParticipantNotFound = errors.New("participant not found")

// Participant is one joined connection.
type Participant struct {
	ConnectionID string
	Name         string
	Role         session.Role
	ClientID     string
	JoinedAt     time.Time
	SessionID    string
}

// IsAdmin reports whether the participant joined as an admin.
func (p *Participant) IsAdmin() bool {
	return p.Role == session.RoleAdmin
}

// Registry holds the live participants.
type Registry struct {
	participants map[string]*Participant
	available    map[string]struct{}
	mu           sync.RWMutex
	logger       *slog.Logger
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		participants: make(map[string]*Participant),
		available:    make(map[string]struct{}),
		logger:       logger.With("component", "registry"),
	}
}

// Register inserts or overwrites the participant for p.ConnectionID.
// A zero JoinedAt is set to the current time.
func (r *Registry) Register(p *Participant) {
	stored := *p
	if stored.JoinedAt.IsZero() {
		stored.JoinedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.participants[p.ConnectionID]; exists {
		r.logger.Debug("participant re-registered", "connection_id", p.ConnectionID)
	}
	r.participants[p.ConnectionID] = &stored
	if !stored.IsAdmin() {
		delete(r.available, p.ConnectionID)
	}
	r.logger.Info("participant joined",
		"connection_id", p.ConnectionID,
		"name", p.Name,
		"role", p.Role,
		"total", len(r.participants),
	)
}

// Get returns a copy of the participant for connID.
func (r *Registry) Get(connID string) (*Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.participants[connID]
	if !ok {
		return nil, false
	}
	out := *p
	return &out, true
}

// Remove deletes the participant and its availability. Removing an
// unknown connection is a no-op.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok {
		return
	}
	delete(r.participants, connID)
	delete(r.available, connID)
	r.logger.Info("participant left",
		"connection_id", connID,
		"name", p.Name,
		"role", p.Role,
		"total", len(r.participants),
	)
}

// MarkAdminAvailable adds an admin to the available set.
func (r *Registry) MarkAdminAvailable(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok || !p.IsAdmin() {
		return ErrParticipantNotFound
	}
	r.available[connID] = struct{}{}
	return nil
}

// MarkAdminBusy removes an admin from the available set.
func (r *Registry) MarkAdminBusy(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.available, connID)
}

// IsAvailable reports whether connID is in the available-admin set.
func (r *Registry) IsAvailable(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.available[connID]
	return ok
}

// AvailableAdmins returns the connection ids of available admins, sorted.
func (r *Registry) AvailableAdmins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.available))
	for id := range r.available {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// HasAvailableAdmins reports whether at least one admin is available.
func (r *Registry) HasAvailableAdmins() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.available) > 0
}

// BindSession records the session a participant is attached to.
func (r *Registry) BindSession(connID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok {
		return ErrParticipantNotFound
	}
	p.SessionID = sessionID
	return nil
}

// ClearSession detaches a participant from its session.
func (r *Registry) ClearSession(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.participants[connID]; ok {
		p.SessionID = ""
	}
}

// Admins returns copies of all registered admins, ordered by join time.
func (r *Registry) Admins() []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Participant
	for _, p := range r.participants {
		if p.IsAdmin() {
			cp := *p
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *Participant) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ConnectionID, b.ConnectionID)
	})
	return out
}

// Count returns the number of customers and admins registered.
func (r *Registry) Count() (customers, admins int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.participants {
		if p.IsAdmin() {
			admins++
		} else {
			customers++
		}
	}
	return customers, admins
}
