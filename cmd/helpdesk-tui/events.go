// ABOUTME: Outbound event handling for helpdesk-tui
// ABOUTME: Tracks the current session from gateway events and formats them for the terminal

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/2389/helpdesk-gateway/internal/protocol"
)

// wireEvent is an outbound envelope with its payload left raw.
type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var (
	dim    = color.New(color.FgHiBlack).SprintFunc()
	info   = color.New(color.FgCyan).SprintFunc()
	warn   = color.New(color.FgYellow).SprintFunc()
	bad    = color.New(color.FgRed).SprintFunc()
	author = color.New(color.Bold).SprintFunc()
)

// state is the client's view of its session. Written by the reader
// goroutine, read by the input loop.
type state struct {
	mu          sync.Mutex
	sessionID   string
	pendingJoin string
}

func (s *state) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// sent records requests that change the session locally.
func (s *state) sent(req protocol.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch r := req.(type) {
	case protocol.JoinSessionRequest:
		s.pendingJoin = r.SessionID
	case protocol.LeaveSessionRequest:
		s.sessionID = ""
	case protocol.CloseSessionRequest:
		if r.SessionID == s.sessionID {
			s.sessionID = ""
		}
	}
}

// apply updates the state from one event and returns the line to print,
// or "" for events that print nothing.
func (s *state) apply(ev wireEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case protocol.EventSessionCreated:
		var p protocol.SessionCreated
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
		s.sessionID = p.SessionID
		line := info(p.Message) + dim(" (session "+p.SessionID+")")
		if p.LinkedPreviousSessionID != "" {
			line += dim(" continuing " + p.LinkedPreviousSessionID)
		}
		return line, nil

	case protocol.EventSessionInvalid:
		var p protocol.SessionInvalid
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
		s.sessionID = ""
		return warn(p.Message), nil

	case protocol.EventSessionRejoined:
		var p protocol.SessionRejoined
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
		s.sessionID = p.SessionID
		return info(p.Message), nil

	case protocol.EventCustomerRejoined:
		var p protocol.CustomerRejoined
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
		return info(p.CustomerName + " reconnected"), nil

	case protocol.EventSessionListUpdate, protocol.EventClosedSessionsUpdate:
		var rows []protocol.SessionSummary
		if err := json.Unmarshal(ev.Data, &rows); err != nil {
			return "", err
		}
		title := "active sessions"
		if ev.Type == protocol.EventClosedSessionsUpdate {
			title = "closed sessions"
		}
		return formatSessionList(title, rows), nil

	case protocol.EventSessionHistory:
		var p protocol.SessionHistory
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
		if p.SessionID == s.pendingJoin {
			s.sessionID = p.SessionID
			s.pendingJoin = ""
		}
		return formatMessages("session "+p.SessionID, p.Messages), nil

	case protocol.EventClosedSessionMessages:
		var p protocol.ClosedSessionMessages
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
		title := "closed session " + p.SessionID
		if p.CloseReason != "" {
			title += " (" + p.CloseReason + ")"
		}
		return formatMessages(title, p.Messages), nil

	case protocol.EventReceiveMessage:
		var m protocol.MessageView
		if err := json.Unmarshal(ev.Data, &m); err != nil {
			return "", err
		}
		return formatMessage(m), nil

	case protocol.EventAdminJoined:
		var p protocol.AdminJoined
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
		return info(p.Message), nil

	case protocol.EventAdminLeft:
		var p protocol.AdminLeft
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
		return warn(p.Message), nil

	case protocol.EventCustomerDisconnected:
		var p protocol.CustomerDisconnected
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
		if p.SessionID == s.sessionID {
			s.sessionID = ""
		}
		return warn(p.Message), nil

	case protocol.EventSessionClosed:
		var p protocol.SessionClosed
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
		s.sessionID = ""
		return warn("Session closed: " + p.Reason), nil

	case protocol.EventNewSessionAlert:
		var p protocol.NewSessionAlert
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
		line := warn("! "+p.Message) + dim(" /join "+p.SessionID)
		if p.IsReturningClient {
			line += dim(" (returning)")
		}
		return line, nil

	case protocol.EventClientHistory:
		var p protocol.ClientHistory
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
		return formatClientHistory(p), nil

	case protocol.EventUserTyping:
		var p protocol.UserTyping
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
		if !p.IsTyping {
			return "", nil
		}
		return dim(p.User + " is typing..."), nil

	case protocol.EventError:
		var p protocol.ErrorPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
		if s.pendingJoin != "" {
			s.pendingJoin = ""
		}
		return bad("[error] " + p.Message), nil
	}
	return dim("(" + ev.Type + ")"), nil
}

func formatMessage(m protocol.MessageView) string {
	name := m.User
	if m.IsAdmin {
		name += " (support)"
	}
	return dim(m.Timestamp.Local().Format(time.TimeOnly)+" ") + author(name) + ": " + m.Message
}

func formatMessages(title string, msgs []protocol.MessageView) string {
	var b strings.Builder
	b.WriteString(info("--- " + title + " ---"))
	for _, m := range msgs {
		b.WriteString("\n" + formatMessage(m))
	}
	if len(msgs) == 0 {
		b.WriteString("\n" + dim("(no messages)"))
	}
	return b.String()
}

func formatSessionList(title string, rows []protocol.SessionSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", info(fmt.Sprintf("--- %d %s ---", len(rows), title)))
	for _, r := range rows {
		customer := "?"
		if r.Customer != nil {
			customer = r.Customer.Name
		}
		fmt.Fprintf(&b, "\n  %s  %-20s %-22s %3d msgs", r.ID, customer, r.Status, r.MessageCount)
		if r.Admin != nil {
			b.WriteString(dim(" with " + r.Admin.Name))
		}
		if r.ClientHistory != nil && r.ClientHistory.IsReturning {
			b.WriteString(dim(" (returning)"))
		}
	}
	return b.String()
}

func formatClientHistory(h protocol.ClientHistory) string {
	var b strings.Builder
	b.WriteString(info(fmt.Sprintf("--- client %s: %d sessions, %d messages ---",
		h.ClientID, h.TotalSessions, h.TotalMessages)))
	for _, s := range h.Sessions {
		fmt.Fprintf(&b, "\n  %s  %s with %s, closed %s",
			s.ID, s.CustomerName, s.AdminName, s.ClosedAt.Local().Format(time.DateTime))
	}
	return b.String()
}
