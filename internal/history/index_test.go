// ABOUTME: Tests for the client history index
// ABOUTME: Covers join aggregation, summaries, the returning window and full history

package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/helpdesk-gateway/internal/session"
)

var baseTime = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

func closedSession(id, clientID string, createdAt, closedAt time.Time, messages int) *session.Session {
	s := &session.Session{
		ID:        id,
		Customer:  &session.CustomerRef{Name: "name-" + id, ClientID: clientID},
		CreatedAt: createdAt,
		ClosedAt:  &closedAt,
		Status:    session.StatusClosed,
	}
	for range messages {
		s.Messages = append(s.Messages, session.Message{Body: "m", SessionID: id})
	}
	return s
}

func TestIndex_RecordJoinAggregatesClient(t *testing.T) {
	now := baseTime
	x := New(WithClock(func() time.Time { return now }))

	x.RecordJoin("c1", "Alice")
	now = now.Add(time.Hour)
	x.RecordJoin("c1", "Ally")
	x.RecordJoin("c1", "Alice")

	entry, ok := x.Client("c1")
	require.True(t, ok)
	assert.Equal(t, []string{"Alice", "Ally"}, entry.KnownNames)
	assert.Equal(t, 3, entry.TotalSessions)
	assert.Equal(t, baseTime, entry.FirstSeen)
	assert.Equal(t, baseTime.Add(time.Hour), entry.LastSeen)
}

func TestIndex_RecordJoinWithoutClientOnlyTracksName(t *testing.T) {
	x := New()

	x.RecordJoin("", "Bob")
	x.RecordJoin("", "Bob")

	assert.False(t, x.HasClient(""))
	name, ok := x.Name("Bob")
	require.True(t, ok)
	assert.Equal(t, 2, name.SessionCount)
}

func TestIndex_RecordMessage(t *testing.T) {
	x := New()
	x.RecordMessage("ghost")
	x.RecordJoin("", "Cara")
	x.RecordMessage("Cara")
	x.RecordMessage("Cara")

	_, ok := x.Name("ghost")
	assert.False(t, ok)
	name, _ := x.Name("Cara")
	assert.Equal(t, 2, name.TotalMessages)
}

func TestIndex_Summaries(t *testing.T) {
	x := New()

	assert.Nil(t, x.Summarize("unknown"))
	assert.Nil(t, x.SummarizeByName("unknown"))

	x.RecordJoin("c2", "Dan")
	first := x.Summarize("c2")
	require.NotNil(t, first)
	assert.False(t, first.IsReturning)
	assert.Equal(t, 0, first.TotalSessions)

	x.RecordJoin("c2", "Dan")
	second := x.Summarize("c2")
	assert.True(t, second.IsReturning)
	assert.Equal(t, 1, second.TotalSessions)
	assert.Equal(t, []string{"Dan"}, second.PreviousNames)

	byName := x.SummarizeByName("Dan")
	require.NotNil(t, byName)
	assert.True(t, byName.IsReturning)
	assert.Equal(t, 1, byName.PreviousSessions)
}

func TestFindRecentClosed_PicksLatestClose(t *testing.T) {
	older := closedSession("s1", "c1", baseTime, baseTime.Add(time.Hour), 1)
	newer := closedSession("s2", "c1", baseTime.Add(2*time.Hour), baseTime.Add(3*time.Hour), 1)
	foreign := closedSession("s3", "c9", baseTime, baseTime.Add(4*time.Hour), 1)

	got := FindRecentClosed("c1", []*session.Session{older, foreign, newer}, baseTime.Add(4*time.Hour), DefaultReturningWindow)
	require.NotNil(t, got)
	assert.Equal(t, "s2", got.ID)
}

func TestFindRecentClosed_TieBrokenByCreatedAt(t *testing.T) {
	closedAt := baseTime.Add(time.Hour)
	a := closedSession("a", "c1", baseTime, closedAt, 0)
	b := closedSession("b", "c1", baseTime.Add(time.Minute), closedAt, 0)

	got := FindRecentClosed("c1", []*session.Session{b, a}, closedAt, DefaultReturningWindow)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.ID)
}

func TestFindRecentClosed_Window(t *testing.T) {
	closedAt := baseTime
	s := closedSession("s1", "c1", baseTime.Add(-time.Hour), closedAt, 2)

	tests := []struct {
		name   string
		now    time.Time
		linked bool
	}{
		{"one hour later", closedAt.Add(time.Hour), true},
		{"exactly 24 hours", closedAt.Add(24 * time.Hour), true},
		{"24 hours and a minute", closedAt.Add(24*time.Hour + time.Minute), false},
		{"25 hours", closedAt.Add(25 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindRecentClosed("c1", []*session.Session{s}, tt.now, DefaultReturningWindow)
			assert.Equal(t, tt.linked, got != nil)
		})
	}
}

func TestFindRecentClosed_EmptyClientID(t *testing.T) {
	s := closedSession("s1", "", baseTime, baseTime, 0)
	assert.Nil(t, FindRecentClosed("", []*session.Session{s}, baseTime, DefaultReturningWindow))
}

func TestIndex_FindRecentClosedSessionUsesClockAndWindow(t *testing.T) {
	now := baseTime.Add(2 * time.Hour)
	x := New(WithClock(func() time.Time { return now }), WithReturningWindow(time.Hour))
	s := closedSession("s1", "c1", baseTime, baseTime, 0)

	assert.Nil(t, x.FindRecentClosedSession("c1", []*session.Session{s}))
	now = baseTime.Add(30 * time.Minute)
	assert.NotNil(t, x.FindRecentClosedSession("c1", []*session.Session{s}))
	assert.Equal(t, time.Hour, x.Window())
}

func TestIndex_FullHistory(t *testing.T) {
	x := New()
	s1 := closedSession("s1", "c1", baseTime, baseTime.Add(time.Hour), 2)
	s1.Admin = &session.AdminRef{Name: "Mia"}
	s2 := closedSession("s2", "c1", baseTime.Add(5*time.Hour), baseTime.Add(6*time.Hour), 3)
	other := closedSession("s3", "c2", baseTime, baseTime, 7)

	h := x.FullHistory("c1", []*session.Session{s1, other, s2})

	assert.Equal(t, "c1", h.ClientID)
	assert.Equal(t, 2, h.TotalSessions)
	assert.Equal(t, 5, h.TotalMessages)
	require.Len(t, h.Sessions, 2)
	assert.Equal(t, "s2", h.Sessions[0].ID)
	assert.Equal(t, noAdminName, h.Sessions[0].AdminName)
	assert.Equal(t, "s1", h.Sessions[1].ID)
	assert.Equal(t, "Mia", h.Sessions[1].AdminName)
	assert.Equal(t, 2, h.Sessions[1].MessageCount)
}

func TestIndex_FullHistoryUnknownClient(t *testing.T) {
	h := New().FullHistory("nobody", nil)
	assert.Equal(t, 0, h.TotalSessions)
	assert.NotNil(t, h.Sessions)
}
