// ABOUTME: Client and name keyed history aggregates for returning customers
// ABOUTME: Decides returning-client linking and builds per-client session history

package history

import (
	"slices"
	"sync"
	"time"

	"github.com/2389/helpdesk-gateway/internal/session"
)

// DefaultReturningWindow is how recently a session must have closed for a
// rejoining client to be linked to it.
const DefaultReturningWindow = 24 * time.Hour

// noAdminName is reported for past sessions that never had an admin.
const noAdminName = "No admin assigned"

// ClientEntry aggregates everything seen for one durable client id.
type ClientEntry struct {
	ClientID      string
	KnownNames    []string
	FirstSeen     time.Time
	LastSeen      time.Time
	TotalSessions int
}

// NameEntry aggregates everything seen for one customer display name.
type NameEntry struct {
	Name          string
	SessionCount  int
	TotalMessages int
	FirstSeen     time.Time
	LastSeen      time.Time
}

// PastSession is one closed session in a client's history.
type PastSession struct {
	ID           string
	CustomerName string
	Messages     []session.Message
	CreatedAt    time.Time
	ClosedAt     time.Time
	MessageCount int
	AdminName    string
}

// ClientHistory is the full closed-session history of a client id.
type ClientHistory struct {
	ClientID      string
	Sessions      []PastSession
	TotalSessions int
	TotalMessages int
}

// Index holds the client and name aggregates.
type Index struct {
	mu      sync.RWMutex
	clients map[string]*ClientEntry
	names   map[string]*NameEntry
	now     func() time.Time
	window  time.Duration
}

// Option configures an Index.
type Option func(*Index)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(x *Index) { x.now = now }
}

// WithReturningWindow overrides DefaultReturningWindow.
func WithReturningWindow(d time.Duration) Option {
	return func(x *Index) {
		if d > 0 {
			x.window = d
		}
	}
}

// New creates an empty index.
func New(opts ...Option) *Index {
	x := &Index{
		clients: make(map[string]*ClientEntry),
		names:   make(map[string]*NameEntry),
		now:     time.Now,
		window:  DefaultReturningWindow,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Window returns the returning-client window in effect.
func (x *Index) Window() time.Duration {
	return x.window
}

// RecordJoin counts a new session for name and, when present, clientID.
func (x *Index) RecordJoin(clientID, name string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	now := x.now()

	n, ok := x.names[name]
	if !ok {
		n = &NameEntry{Name: name, FirstSeen: now}
		x.names[name] = n
	}
	n.SessionCount++
	n.LastSeen = now

	if clientID == "" {
		return
	}
	c, ok := x.clients[clientID]
	if !ok {
		c = &ClientEntry{ClientID: clientID, FirstSeen: now}
		x.clients[clientID] = c
	}
	if !slices.Contains(c.KnownNames, name) {
		c.KnownNames = append(c.KnownNames, name)
	}
	c.TotalSessions++
	c.LastSeen = now
}

// RecordMessage counts a customer message against the name aggregate.
func (x *Index) RecordMessage(name string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if n, ok := x.names[name]; ok {
		n.TotalMessages++
	}
}

// HasClient reports whether clientID has been seen before.
func (x *Index) HasClient(clientID string) bool {
	if clientID == "" {
		return false
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.clients[clientID]
	return ok
}

// Client returns a copy of the client entry.
func (x *Index) Client(clientID string) (ClientEntry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	c, ok := x.clients[clientID]
	if !ok {
		return ClientEntry{}, false
	}
	out := *c
	out.KnownNames = slices.Clone(c.KnownNames)
	return out, true
}

// Name returns a copy of the name entry.
func (x *Index) Name(name string) (NameEntry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n, ok := x.names[name]
	if !ok {
		return NameEntry{}, false
	}
	return *n, true
}

// Summarize returns the client summary attached to new sessions, or nil
// for an unknown client. TotalSessions excludes the current session.
func (x *Index) Summarize(clientID string) *session.ClientSummary {
	x.mu.RLock()
	defer x.mu.RUnlock()

	c, ok := x.clients[clientID]
	if !ok {
		return nil
	}
	return &session.ClientSummary{
		PreviousNames: slices.Clone(c.KnownNames),
		TotalSessions: c.TotalSessions - 1,
		IsReturning:   c.TotalSessions > 1,
		FirstSeen:     c.FirstSeen,
		LastSeen:      c.LastSeen,
	}
}

// SummarizeByName returns the name summary attached to new sessions, or
// nil for an unknown name. PreviousSessions excludes the current session.
func (x *Index) SummarizeByName(name string) *session.NameSummary {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n, ok := x.names[name]
	if !ok {
		return nil
	}
	return &session.NameSummary{
		PreviousSessions: n.SessionCount - 1,
		TotalMessages:    n.TotalMessages,
		IsReturning:      n.SessionCount > 1,
		FirstSeen:        n.FirstSeen,
		LastSeen:         n.LastSeen,
	}
}

// FindRecentClosedSession applies FindRecentClosed with the index clock and window.
func (x *Index) FindRecentClosedSession(clientID string, closed []*session.Session) *session.Session {
	return FindRecentClosed(clientID, closed, x.now(), x.window)
}

// FindRecentClosed picks the closed session for clientID with the latest
// ClosedAt (ties broken by the latest CreatedAt) and returns it only if it
// closed no more than within before now.
func FindRecentClosed(clientID string, closed []*session.Session, now time.Time, within time.Duration) *session.Session {
	if clientID == "" {
		return nil
	}

	var best *session.Session
	for _, s := range closed {
		if s.ClientID() != clientID || s.ClosedAt == nil {
			continue
		}
		if best == nil || newerClose(s, best) {
			best = s
		}
	}

	if best == nil || now.Sub(*best.ClosedAt) > within {
		return nil
	}
	return best
}

func newerClose(a, b *session.Session) bool {
	if !a.ClosedAt.Equal(*b.ClosedAt) {
		return a.ClosedAt.After(*b.ClosedAt)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// FullHistory builds the closed-session history for clientID, newest first.
func (x *Index) FullHistory(clientID string, closed []*session.Session) ClientHistory {
	out := ClientHistory{ClientID: clientID, Sessions: []PastSession{}}

	for _, s := range closed {
		if clientID == "" || s.ClientID() != clientID {
			continue
		}
		past := PastSession{
			ID:           s.ID,
			Messages:     slices.Clone(s.Messages),
			CreatedAt:    s.CreatedAt,
			MessageCount: len(s.Messages),
			AdminName:    noAdminName,
		}
		if s.Customer != nil {
			past.CustomerName = s.Customer.Name
		}
		if s.ClosedAt != nil {
			past.ClosedAt = *s.ClosedAt
		}
		if s.Admin != nil {
			past.AdminName = s.Admin.Name
		}
		out.Sessions = append(out.Sessions, past)
		out.TotalMessages += past.MessageCount
	}

	slices.SortStableFunc(out.Sessions, func(a, b PastSession) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	out.TotalSessions = len(out.Sessions)
	return out
}
