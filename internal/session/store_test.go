// ABOUTME: Tests for the in-memory session store
// ABOUTME: Covers creation, transitions, append-only logs, close semantics and retention

package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *testClock) {
	t.Helper()
	clock := newTestClock()
	s := NewStore(append([]Option{WithClock(clock.Now), WithSweepInterval(0)}, opts...)...)
	t.Cleanup(s.Shutdown)
	return s, clock
}

func customer(name string) CustomerRef {
	return CustomerRef{ConnectionID: "conn-" + name, Name: name}
}

func TestStore_CreateStartsWaiting(t *testing.T) {
	s, clock := newTestStore(t)

	sess := s.Create(CreateParams{Customer: customer("alice")})

	assert.True(t, strings.HasPrefix(sess.ID, "session_"))
	assert.Equal(t, StatusWaitingForAdmin, sess.Status)
	assert.Empty(t, sess.Messages)
	assert.Nil(t, sess.Admin)
	assert.True(t, sess.Customer.Connected)
	assert.Equal(t, clock.Now(), sess.CreatedAt)
	assert.Nil(t, sess.Previous)
}

func TestStore_CreateIDsAreUnique(t *testing.T) {
	s, _ := newTestStore(t)

	seen := make(map[string]bool)
	for range 500 {
		sess := s.Create(CreateParams{Customer: customer("bob")})
		require.False(t, seen[sess.ID], "duplicate id %s", sess.ID)
		seen[sess.ID] = true
	}
}

func TestStore_CreateLinksPreviousWithoutMergingMessages(t *testing.T) {
	s, clock := newTestStore(t)

	first := s.Create(CreateParams{Customer: customer("carol")})
	_, err := s.Append(first.ID, Message{AuthorName: "carol", Role: RoleCustomer, Body: "hi"})
	require.NoError(t, err)
	closed, err := s.Close(first.ID, "resolved")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	second := s.Create(CreateParams{Customer: customer("carol"), Previous: closed})

	require.NotNil(t, second.Previous)
	assert.Equal(t, first.ID, second.Previous.ID)
	assert.Equal(t, 1, second.Previous.MessageCount)
	assert.Equal(t, *closed.ClosedAt, second.Previous.ClosedAt)
	assert.Empty(t, second.Messages)
}

func TestStore_AppendAssignsIDAndTimestamp(t *testing.T) {
	s, clock := newTestStore(t)
	sess := s.Create(CreateParams{Customer: customer("dave")})

	msg, err := s.Append(sess.ID, Message{AuthorName: "dave", Role: RoleCustomer, Body: "hello"})
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, clock.Now(), msg.Timestamp)
	assert.Equal(t, sess.ID, msg.SessionID)

	got, err := s.GetActive(sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, msg, got.Messages[0])
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.Create(CreateParams{Customer: customer("erin")})

	var want []string
	for i := range 20 {
		body := fmt.Sprintf("m%d", i)
		want = append(want, body)
		_, err := s.Append(sess.ID, Message{Body: body, Role: RoleCustomer})
		require.NoError(t, err)
	}

	got, err := s.GetActive(sess.ID)
	require.NoError(t, err)
	var bodies []string
	for _, m := range got.Messages {
		bodies = append(bodies, m.Body)
	}
	assert.Equal(t, want, bodies)
}

func TestStore_AppendUnknownSession(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Append("session_missing", Message{Body: "x"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_AssignAdmin(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.Create(CreateParams{Customer: customer("frank")})

	require.NoError(t, s.AssignAdmin(sess.ID, AdminRef{ConnectionID: "a1", Name: "Mia"}))

	got, err := s.GetActive(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, "Mia", got.Admin.Name)
}

func TestStore_AssignAdminConflictKeepsExistingBinding(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.Create(CreateParams{Customer: customer("gina")})

	require.NoError(t, s.AssignAdmin(sess.ID, AdminRef{ConnectionID: "a1", Name: "Mia"}))
	err := s.AssignAdmin(sess.ID, AdminRef{ConnectionID: "a2", Name: "Noah"})
	assert.ErrorIs(t, err, ErrAdminAlreadyAssigned)

	got, err := s.GetActive(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", got.Admin.ConnectionID)
}

func TestStore_AssignAdminNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	assert.ErrorIs(t, s.AssignAdmin("nope", AdminRef{ConnectionID: "a1"}), ErrSessionNotFound)
}

func TestStore_AssignAdminRejectsDisconnectedCustomer(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.Create(CreateParams{Customer: customer("hank")})
	require.NoError(t, s.MarkCustomerDisconnected(sess.ID))

	err := s.AssignAdmin(sess.ID, AdminRef{ConnectionID: "a1"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStore_ConcurrentAssignOnlyOneWins(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.Create(CreateParams{Customer: customer("ivy")})

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := range 32 {
		wg.Go(func() {
			err := s.AssignAdmin(sess.ID, AdminRef{ConnectionID: fmt.Sprintf("a%d", i)})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestStore_ReleaseAdmin(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.Create(CreateParams{Customer: customer("jack")})
	require.NoError(t, s.AssignAdmin(sess.ID, AdminRef{ConnectionID: "a1", Name: "Mia"}))

	released, err := s.ReleaseAdmin(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", released.ConnectionID)

	got, err := s.GetActive(sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Admin)
	assert.Equal(t, StatusWaitingForAdmin, got.Status)

	_, err = s.ReleaseAdmin(sess.ID)
	assert.ErrorIs(t, err, ErrNoAdminAssigned)
}

func TestStore_MarkCustomerDisconnected(t *testing.T) {
	s, clock := newTestStore(t)
	sess := s.Create(CreateParams{Customer: customer("kim")})

	require.NoError(t, s.MarkCustomerDisconnected(sess.ID))

	got, err := s.GetActive(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCustomerDisconnected, got.Status)
	assert.False(t, got.Customer.Connected)
	require.NotNil(t, got.Customer.DisconnectedAt)
	assert.Equal(t, clock.Now(), *got.Customer.DisconnectedAt)
}

func TestStore_ReplaceCustomerResetsStatus(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.Create(CreateParams{Customer: customer("lee")})

	require.NoError(t, s.ReplaceCustomer(sess.ID, CustomerRef{ConnectionID: "new-conn", Name: "lee"}))
	got, err := s.GetActive(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-conn", got.Customer.ConnectionID)
	assert.Equal(t, StatusWaitingForAdmin, got.Status)

	require.NoError(t, s.AssignAdmin(sess.ID, AdminRef{ConnectionID: "a1"}))
	require.NoError(t, s.ReplaceCustomer(sess.ID, CustomerRef{ConnectionID: "newer-conn", Name: "lee"}))
	got, err = s.GetActive(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	assert.True(t, got.Customer.Connected)
}

func TestStore_CloseMovesToClosedStore(t *testing.T) {
	s, clock := newTestStore(t)
	sess := s.Create(CreateParams{Customer: customer("max")})
	_, err := s.Append(sess.ID, Message{Body: "one"})
	require.NoError(t, err)

	closed, err := s.Close(sess.ID, "resolved")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
	assert.Equal(t, "resolved", closed.CloseReason)
	assert.Equal(t, clock.Now(), *closed.ClosedAt)

	_, err = s.GetActive(sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	archived, err := s.GetClosed(sess.ID)
	require.NoError(t, err)
	assert.Len(t, archived.Messages, 1)

	for _, active := range s.ListActive() {
		assert.NotEqual(t, sess.ID, active.ID)
	}
}

func TestStore_ClosedSessionsAreFrozen(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.Create(CreateParams{Customer: customer("nora")})
	_, err := s.Append(sess.ID, Message{Body: "one"})
	require.NoError(t, err)
	_, err = s.Close(sess.ID, "done")
	require.NoError(t, err)

	_, err = s.Append(sess.ID, Message{Body: "late"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.AssignAdmin(sess.ID, AdminRef{ConnectionID: "a1"}), ErrSessionNotFound)
	_, err = s.Close(sess.ID, "again")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	archived, err := s.GetClosed(sess.ID)
	require.NoError(t, err)
	assert.Len(t, archived.Messages, 1)
	assert.Equal(t, "done", archived.CloseReason)
}

func TestStore_ReturnedSessionsAreCopies(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.Create(CreateParams{Customer: customer("olga")})
	_, err := s.Append(sess.ID, Message{Body: "original"})
	require.NoError(t, err)

	got, err := s.GetActive(sess.ID)
	require.NoError(t, err)
	got.Messages[0].Body = "tampered"
	got.Status = StatusClosed
	got.Customer.Name = "mallory"

	again, err := s.GetActive(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Messages[0].Body)
	assert.Equal(t, StatusWaitingForAdmin, again.Status)
	assert.Equal(t, "olga", again.Customer.Name)
}

func TestStore_ListOrdering(t *testing.T) {
	s, clock := newTestStore(t)

	a := s.Create(CreateParams{Customer: customer("a")})
	clock.Advance(time.Minute)
	b := s.Create(CreateParams{Customer: customer("b")})
	clock.Advance(time.Minute)
	c := s.Create(CreateParams{Customer: customer("c")})

	active := s.ListActive()
	require.Len(t, active, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{active[0].ID, active[1].ID, active[2].ID})

	_, err := s.Close(a.ID, "x")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = s.Close(c.ID, "x")
	require.NoError(t, err)

	closed := s.ListClosed()
	require.Len(t, closed, 2)
	assert.Equal(t, c.ID, closed[0].ID)
	assert.Equal(t, a.ID, closed[1].ID)

	activeCount, waiting, archived := s.Counts()
	assert.Equal(t, 1, activeCount)
	assert.Equal(t, 1, waiting)
	assert.Equal(t, 2, archived)
}

func TestStore_ClosedForClient(t *testing.T) {
	s, _ := newTestStore(t)

	mine := s.Create(CreateParams{Customer: CustomerRef{ConnectionID: "c1", Name: "p", ClientID: "client-1"}})
	other := s.Create(CreateParams{Customer: CustomerRef{ConnectionID: "c2", Name: "q", ClientID: "client-2"}})
	_, err := s.Close(mine.ID, "x")
	require.NoError(t, err)
	_, err = s.Close(other.ID, "x")
	require.NoError(t, err)

	got := s.ClosedForClient("client-1")
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)
	assert.Empty(t, s.ClosedForClient(""))
}

func TestStore_RetentionEvictsByCount(t *testing.T) {
	var evicted []string
	s, clock := newTestStore(t, WithRetention(0, 2), WithEvictHook(func(id string) {
		evicted = append(evicted, id)
	}))

	var ids []string
	for range 3 {
		sess := s.Create(CreateParams{Customer: customer("r")})
		_, err := s.Close(sess.ID, "x")
		require.NoError(t, err)
		ids = append(ids, sess.ID)
		clock.Advance(time.Second)
	}

	assert.Equal(t, []string{ids[0]}, evicted)
	_, err := s.GetClosed(ids[0])
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Len(t, s.ListClosed(), 2)
}

func TestStore_LinkWindowShieldsRecentCloses(t *testing.T) {
	s, clock := newTestStore(t, WithRetention(0, 1), WithLinkWindow(24*time.Hour))

	alice := s.Create(CreateParams{Customer: CustomerRef{ConnectionID: "c-a", Name: "Alice", ClientID: "c1"}})
	_, err := s.Close(alice.ID, "x")
	require.NoError(t, err)
	bob := s.Create(CreateParams{Customer: CustomerRef{ConnectionID: "c-b", Name: "Bob", ClientID: "c2"}})
	_, err = s.Close(bob.ID, "x")
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	recent := s.ClosedForClient("c1")
	require.Len(t, recent, 1)
	assert.Equal(t, alice.ID, recent[0].ID)

	clock.Advance(24 * time.Hour)
	carol := s.Create(CreateParams{Customer: customer("carol")})
	_, err = s.Close(carol.ID, "x")
	require.NoError(t, err)

	assert.Empty(t, s.ClosedForClient("c1"))
	assert.Empty(t, s.ClosedForClient("c2"))
	assert.Len(t, s.ListClosed(), 1)
}

func TestStore_RetentionEvictsByAge(t *testing.T) {
	s, clock := newTestStore(t, WithRetention(72*time.Hour, 0))

	old := s.Create(CreateParams{Customer: customer("old")})
	_, err := s.Close(old.ID, "x")
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)
	recent := s.Create(CreateParams{Customer: customer("recent")})
	_, err = s.Close(recent.ID, "x")
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)
	assert.Equal(t, []string{old.ID}, s.sweepClosed())

	_, err = s.GetClosed(old.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.GetClosed(recent.ID)
	assert.NoError(t, err)
}
