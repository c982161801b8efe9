// ABOUTME: Tests for helpdesk-tui input parsing and event handling
// ABOUTME: Covers role-specific commands and session tracking from events

package main

import (
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/helpdesk-gateway/internal/protocol"
)

func TestParseCommand_Customer(t *testing.T) {
	req, err := parseCommand("hello there", false, "")
	require.NoError(t, err)
	assert.Equal(t, protocol.SendMessageRequest{Body: "hello there"}, req)

	req, err = parseCommand("/typing off", false, "s1")
	require.NoError(t, err)
	assert.Equal(t, protocol.TypingRequest{IsTyping: false}, req)

	_, err = parseCommand("/sessions", false, "")
	require.Error(t, err)

	_, err = parseCommand("/quit", false, "")
	assert.ErrorIs(t, err, errQuit)
}

func TestParseCommand_Admin(t *testing.T) {
	tests := []struct {
		line    string
		current string
		want    protocol.Request
	}{
		{"/sessions", "", protocol.GetSessionsRequest{}},
		{"/closed", "", protocol.GetClosedSessionsRequest{}},
		{"/join s1", "", protocol.JoinSessionRequest{SessionID: "s1"}},
		{"/leave", "s1", protocol.LeaveSessionRequest{}},
		{"/close", "s1", protocol.CloseSessionRequest{SessionID: "s1"}},
		{"/close s2 all sorted", "s1", protocol.CloseSessionRequest{SessionID: "s2", Reason: "all sorted"}},
		{"/history s3", "", protocol.GetSessionHistoryRequest{SessionID: "s3"}},
		{"/view s4", "", protocol.ViewClosedSessionRequest{SessionID: "s4"}},
		{"/client c1", "", protocol.GetClientHistoryRequest{ClientID: "c1"}},
		{"on it", "s1", protocol.SendMessageRequest{Body: "on it", SessionID: "s1"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			req, err := parseCommand(tt.line, true, tt.current)
			require.NoError(t, err)
			assert.Equal(t, tt.want, req)
		})
	}
}

func TestParseCommand_AdminErrors(t *testing.T) {
	_, err := parseCommand("hello", true, "")
	assert.ErrorIs(t, err, errNoSession)

	for _, line := range []string{"/join", "/close", "/history", "/view a b", "/client", "/bogus"} {
		_, err := parseCommand(line, true, "")
		assert.Error(t, err, line)
	}
}

func event(t *testing.T, typ string, data any) wireEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return wireEvent{Type: typ, Data: raw}
}

func TestState_CustomerSession(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	st := &state{}
	line, err := st.apply(event(t, protocol.EventSessionCreated, protocol.SessionCreated{SessionID: "s1", Message: "Welcome"}))
	require.NoError(t, err)
	assert.Contains(t, line, "Welcome")
	assert.Equal(t, "s1", st.current())

	line, err = st.apply(event(t, protocol.EventSessionClosed, protocol.SessionClosed{Reason: "Resolved"}))
	require.NoError(t, err)
	assert.Equal(t, "Session closed: Resolved", line)
	assert.Empty(t, st.current())
}

func TestState_AdminJoin(t *testing.T) {
	st := &state{}
	st.sent(protocol.JoinSessionRequest{SessionID: "s1"})

	_, err := st.apply(event(t, protocol.EventSessionHistory, protocol.SessionHistory{SessionID: "s9"}))
	require.NoError(t, err)
	assert.Empty(t, st.current(), "history for another session does not join it")

	_, err = st.apply(event(t, protocol.EventSessionHistory, protocol.SessionHistory{SessionID: "s1"}))
	require.NoError(t, err)
	assert.Equal(t, "s1", st.current())

	_, err = st.apply(event(t, protocol.EventCustomerDisconnected, protocol.CustomerDisconnected{SessionID: "s1"}))
	require.NoError(t, err)
	assert.Empty(t, st.current())
}

func TestState_TypingOffPrintsNothing(t *testing.T) {
	st := &state{}
	line, err := st.apply(event(t, protocol.EventUserTyping, protocol.UserTyping{User: "Ada", IsTyping: false}))
	require.NoError(t, err)
	assert.Empty(t, line)
}

func TestState_BadPayload(t *testing.T) {
	st := &state{}
	_, err := st.apply(wireEvent{Type: protocol.EventSessionCreated, Data: json.RawMessage(`[1]`)})
	require.Error(t, err)
}
