// ABOUTME: In-memory session store holding active and closed conversations
// ABOUTME: Enforces status transitions, append-only logs and atomic close-and-archive

package session

import (
	"cmp"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/helpdesk-gateway/internal/retention"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Store owns the active and closed session maps.
type Store struct {
	mu        sync.RWMutex
	active    map[string]*Session
	closed    map[string]*Session
	retention *retention.Index
	now       func() time.Time
	logger    *slog.Logger
	onEvict   func(id string)
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	now           func() time.Time
	logger        *slog.Logger
	ttl           time.Duration
	maxClosed     int
	linkWindow    time.Duration
	sweepInterval time.Duration
	onEvict       func(id string)
}

// WithClock overrides the time source used for timestamps and retention.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) { o.now = now }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) { o.logger = logger }
}

// WithRetention bounds the closed store by age and count. Zero values
// disable the respective bound.
func WithRetention(ttl time.Duration, maxClosed int) Option {
	return func(o *storeOptions) {
		o.ttl = ttl
		o.maxClosed = maxClosed
	}
}

// WithLinkWindow keeps sessions closed within d safe from count eviction,
// so the max_closed bound never drops a session a returning client could
// still be linked to.
func WithLinkWindow(d time.Duration) Option {
	return func(o *storeOptions) { o.linkWindow = d }
}

// WithSweepInterval sets how often expired closed sessions are swept.
func WithSweepInterval(d time.Duration) Option {
	return func(o *storeOptions) { o.sweepInterval = d }
}

// WithEvictHook registers a callback for every closed session dropped by retention.
func WithEvictHook(fn func(id string)) Option {
	return func(o *storeOptions) { o.onEvict = fn }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	o := storeOptions{
		now:           time.Now,
		logger:        slog.Default(),
		sweepInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{
		active:  make(map[string]*Session),
		closed:  make(map[string]*Session),
		now:     o.now,
		logger:  o.logger,
		onEvict: o.onEvict,
	}
	s.retention = retention.New(o.ttl, o.maxClosed, s.dropClosed,
		retention.WithClock(o.now),
		retention.WithSweepInterval(o.sweepInterval),
		retention.WithMinAge(o.linkWindow),
	)
	return s
}

// Shutdown stops the retention sweep.
func (s *Store) Shutdown() {
	s.retention.Close()
}

// CreateParams describes a new session.
type CreateParams struct {
	Customer        CustomerRef
	Previous        *Session
	CustomerHistory *NameSummary
	ClientHistory   *ClientSummary
}

// Create allocates a new waiting session and returns a copy of it.
func (s *Store) Create(p CreateParams) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	customer := p.Customer
	customer.Connected = true
	customer.DisconnectedAt = nil

	sess := &Session{
		ID:        s.newIDLocked(now),
		Customer:  &customer,
		CreatedAt: now,
		Status:    StatusWaitingForAdmin,
		Messages:  []Message{},
	}
	if p.CustomerHistory != nil {
		h := *p.CustomerHistory
		sess.CustomerHistory = &h
	}
	if p.ClientHistory != nil {
		h := *p.ClientHistory
		h.PreviousNames = slices.Clone(p.ClientHistory.PreviousNames)
		sess.ClientHistory = &h
	}
	if prev := p.Previous; prev != nil {
		ref := &PreviousRef{ID: prev.ID, MessageCount: len(prev.Messages)}
		if prev.ClosedAt != nil {
			ref.ClosedAt = *prev.ClosedAt
		}
		sess.Previous = ref
	}

	s.active[sess.ID] = sess
	s.logger.Debug("session created",
		"session_id", sess.ID,
		"customer", customer.Name,
		"client_id", customer.ClientID,
		"active_sessions", len(s.active),
	)
	return sess.Clone()
}

// newIDLocked generates a unique id of the form session_<millis>_<suffix>.
// Must be called with mu held.
func (s *Store) newIDLocked(now time.Time) string {
	for {
		suffix := make([]byte, 9)
		for i := range suffix {
			suffix[i] = idAlphabet[rand.IntN(len(idAlphabet))]
		}
		id := "session_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix)
		if _, ok := s.active[id]; ok {
			continue
		}
		if _, ok := s.closed[id]; ok {
			continue
		}
		return id
	}
}

// GetActive returns a copy of an active session.
func (s *Store) GetActive(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.active[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// GetClosed returns a copy of a closed session.
func (s *Store) GetClosed(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.closed[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Append adds a message to an active session's log. The stored message
// gets a fresh id and timestamp when they are unset.
func (s *Store) Append(id string, msg Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.active[id]
	if !ok {
		return Message{}, ErrSessionNotFound
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	msg.SessionID = id
	sess.Messages = append(sess.Messages, msg)
	return msg, nil
}

// AssignAdmin binds admin to the session and moves it to active.
func (s *Store) AssignAdmin(id string, admin AdminRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.active[id]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.Admin != nil {
		return ErrAdminAlreadyAssigned
	}
	if sess.Status == StatusCustomerDisconnected {
		return fmt.Errorf("%w: cannot assign admin to %s session", ErrInvalidTransition, sess.Status)
	}

	sess.Admin = &admin
	sess.Status = StatusActive
	return nil
}

// ReleaseAdmin clears the admin binding and returns the session to waiting.
func (s *Store) ReleaseAdmin(id string) (AdminRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.active[id]
	if !ok {
		return AdminRef{}, ErrSessionNotFound
	}
	if sess.Admin == nil {
		return AdminRef{}, ErrNoAdminAssigned
	}

	released := *sess.Admin
	sess.Admin = nil
	if sess.Status == StatusActive {
		sess.Status = StatusWaitingForAdmin
	}
	return released, nil
}

// MarkCustomerDisconnected records that the customer's connection dropped.
func (s *Store) MarkCustomerDisconnected(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.active[id]
	if !ok {
		return ErrSessionNotFound
	}

	now := s.now()
	if sess.Customer != nil {
		sess.Customer.Connected = false
		sess.Customer.DisconnectedAt = &now
	}
	sess.Status = StatusCustomerDisconnected
	return nil
}

// ReplaceCustomer rebinds the session to a new customer connection and
// resets its status to reflect the customer's presence.
func (s *Store) ReplaceCustomer(id string, customer CustomerRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.active[id]
	if !ok {
		return ErrSessionNotFound
	}

	customer.Connected = true
	customer.DisconnectedAt = nil
	sess.Customer = &customer
	if sess.Admin != nil {
		sess.Status = StatusActive
	} else {
		sess.Status = StatusWaitingForAdmin
	}
	return nil
}

// Close archives an active session. Setting the closed state, moving the
// record and registering it for retention happen under one lock.
func (s *Store) Close(id, reason string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.active[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	now := s.now()
	sess.ClosedAt = &now
	sess.Status = StatusClosed
	sess.CloseReason = reason

	delete(s.active, id)
	s.closed[id] = sess

	for _, evicted := range s.retention.Track(id) {
		delete(s.closed, evicted)
		s.logger.Debug("closed session evicted", "session_id", evicted, "reason", "capacity")
		if s.onEvict != nil {
			s.onEvict(evicted)
		}
	}

	s.logger.Debug("session closed",
		"session_id", id,
		"reason", reason,
		"messages", len(sess.Messages),
		"active_sessions", len(s.active),
		"closed_sessions", len(s.closed),
	)
	return sess.Clone(), nil
}

// dropClosed removes an expired closed session. Called by the retention sweep.
func (s *Store) dropClosed(id string) {
	s.mu.Lock()
	_, ok := s.closed[id]
	delete(s.closed, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	s.logger.Debug("closed session evicted", "session_id", id, "reason", "expired")
	if s.onEvict != nil {
		s.onEvict(id)
	}
}

// sweepClosed evicts expired closed sessions immediately and returns their ids.
func (s *Store) sweepClosed() []string {
	return s.retention.Sweep()
}

// ListActive returns copies of all active sessions, oldest first.
func (s *Store) ListActive() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.active))
	for _, sess := range s.active {
		out = append(out, sess.Clone())
	}
	slices.SortFunc(out, func(a, b *Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// ListClosed returns copies of all closed sessions, most recently closed first.
func (s *Store) ListClosed() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortClosed(s.collectClosedLocked(func(*Session) bool { return true }))
}

// ClosedForClient returns copies of the closed sessions whose customer
// carried clientID, most recently closed first.
func (s *Store) ClosedForClient(clientID string) []*Session {
	if clientID == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortClosed(s.collectClosedLocked(func(sess *Session) bool {
		return sess.ClientID() == clientID
	}))
}

func (s *Store) collectClosedLocked(keep func(*Session) bool) []*Session {
	out := make([]*Session, 0)
	for _, sess := range s.closed {
		if keep(sess) {
			out = append(out, sess.Clone())
		}
	}
	return out
}

func sortClosed(out []*Session) []*Session {
	slices.SortFunc(out, func(a, b *Session) int {
		if c := b.ClosedAt.Compare(*a.ClosedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Counts returns the number of active, waiting and closed sessions.
func (s *Store) Counts() (active, waiting, closed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.active {
		if sess.Status == StatusWaitingForAdmin {
			waiting++
		}
	}
	return len(s.active), waiting, len(s.closed)
}
