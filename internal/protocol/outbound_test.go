// ABOUTME: Tests for outbound event construction and JSON shape
// ABOUTME: Checks the field names clients depend on

package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/helpdesk-gateway/internal/history"
	"github.com/2389/helpdesk-gateway/internal/session"
)

func encodeToMap(t *testing.T, ev *Event) map[string]any {
	t.Helper()
	raw, err := ev.Encode()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestNewReceiveMessage_Shape(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := session.Message{ID: "m1", AuthorName: "Mia", Role: session.RoleAdmin, Body: "**hi**", Timestamp: ts, SessionID: "s1"}

	out := encodeToMap(t, NewReceiveMessage(m, func(b string) string { return "<p>" + b + "</p>" }))

	assert.Equal(t, EventReceiveMessage, out["type"])
	data := out["data"].(map[string]any)
	assert.Equal(t, "m1", data["id"])
	assert.Equal(t, "Mia", data["user"])
	assert.Equal(t, "**hi**", data["message"])
	assert.Equal(t, "<p>**hi**</p>", data["html"])
	assert.Equal(t, "admin", data["role"])
	assert.Equal(t, true, data["isAdmin"])
	assert.Equal(t, "s1", data["sessionId"])
}

func TestNewReceiveMessage_NoRenderOmitsHTML(t *testing.T) {
	out := encodeToMap(t, NewReceiveMessage(session.Message{Body: "plain", Role: session.RoleCustomer}, nil))
	data := out["data"].(map[string]any)
	_, ok := data["html"]
	assert.False(t, ok)
	assert.Equal(t, false, data["isAdmin"])
}

func TestReturningFlagUsesBothNames(t *testing.T) {
	created := encodeToMap(t, NewSessionCreated(SessionCreated{
		SessionID:               "s2",
		Message:                 "welcome back",
		IsReturningClient:       true,
		LinkedPreviousSessionID: "s1",
	}))
	data := created["data"].(map[string]any)
	assert.Equal(t, true, data["isReturning"])
	assert.Equal(t, true, data["isReturningClient"])
	assert.Equal(t, "s1", data["linkedPreviousSessionId"])

	alert := encodeToMap(t, NewNewSessionAlert(NewSessionAlert{SessionID: "s3", CustomerName: "Bob"}))
	data = alert["data"].(map[string]any)
	assert.Equal(t, false, data["isReturning"])
	assert.Equal(t, false, data["isReturningClient"])
	_, linked := data["linkedPreviousSessionId"]
	assert.False(t, linked)
}

func TestSummarize(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	closed := created.Add(time.Hour)
	s := &session.Session{
		ID:        "s2",
		Customer:  &session.CustomerRef{Name: "Alice", ClientID: "c1", Connected: true},
		Messages:  []session.Message{{Body: "a"}, {Body: "b"}},
		CreatedAt: created,
		Status:    session.StatusWaitingForAdmin,
		ClientHistory: &session.ClientSummary{
			PreviousNames: []string{"Alice"},
			TotalSessions: 1,
			IsReturning:   true,
		},
		Previous: &session.PreviousRef{ID: "s1", MessageCount: 4, ClosedAt: closed},
	}

	sum := Summarize(s)
	assert.Equal(t, "s2", sum.ID)
	require.NotNil(t, sum.Customer)
	assert.True(t, sum.Customer.IsConnected)
	assert.Nil(t, sum.Admin)
	assert.Equal(t, 2, sum.MessageCount)
	assert.Equal(t, "waiting_for_admin", sum.Status)
	require.NotNil(t, sum.ClientHistory)
	assert.True(t, sum.ClientHistory.IsReturning)
	require.NotNil(t, sum.PreviousSession)
	assert.Equal(t, 4, sum.PreviousSession.MessageCount)
	assert.Equal(t, "s1", sum.LinkedPreviousSessionID)
	assert.Nil(t, sum.CustomerHistory)
}

func TestNewSessionList_EmptyIsArray(t *testing.T) {
	raw, err := NewSessionList(nil).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"session_list_update","data":[]}`, string(raw))
}

func TestNewSessionHistory_NullSlots(t *testing.T) {
	s := &session.Session{ID: "s1", Status: session.StatusWaitingForAdmin}
	out := encodeToMap(t, NewSessionHistory(s, nil))
	data := out["data"].(map[string]any)
	assert.Nil(t, data["customer"])
	assert.Nil(t, data["admin"])
	assert.Equal(t, []any{}, data["messages"])
}

func TestNewClientHistory(t *testing.T) {
	h := history.ClientHistory{
		ClientID:      "c1",
		TotalSessions: 1,
		TotalMessages: 1,
		Sessions: []history.PastSession{{
			ID:           "s1",
			CustomerName: "Alice",
			Messages:     []session.Message{{ID: "m1", Body: "hi", Role: session.RoleCustomer}},
			MessageCount: 1,
			AdminName:    "No admin assigned",
		}},
	}

	ev := NewClientHistory(h, nil)
	assert.Equal(t, EventClientHistory, ev.Type)
	view := ev.Data.(ClientHistory)
	require.Len(t, view.Sessions, 1)
	assert.Equal(t, "No admin assigned", view.Sessions[0].AdminName)
	assert.Equal(t, "hi", view.Sessions[0].Messages[0].Message)
}

func TestNewError(t *testing.T) {
	raw, err := NewError("Session not found").Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","data":{"message":"Session not found"}}`, string(raw))
}
