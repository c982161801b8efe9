// ABOUTME: Inbound frame decoding into typed, validated request variants
// ABOUTME: Unknown types are reported separately from malformed payloads

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/2389/helpdesk-gateway/internal/session"
)

// MaxNameLength bounds display names in characters.
const MaxNameLength = 100

// Inbound frame types
const (
	TypeJoin              = "join"
	TypeSendMessage       = "send_message"
	TypeJoinSession       = "join_session"
	TypeLeaveSession      = "leave_session"
	TypeAdminClose        = "admin_close"
	TypeAdminAction       = "admin_action"
	TypeGetSessions       = "get_sessions"
	TypeGetClosedSessions = "get_closed_sessions"
	TypeGetSessionHistory = "get_session_history"
	TypeViewClosedSession = "view_closed_session"
	TypeGetClientHistory  = "get_client_history"
	TypeRejoinSession     = "rejoin_session"
	TypeTyping            = "typing"
)

// actionCloseSession is the admin_action subtype that closes a session.
const actionCloseSession = "close_session"

var (
	// ErrUnknownType indicates a frame type this gateway does not handle.
	ErrUnknownType = errors.New("unknown event type")
	// ErrMalformed indicates a known frame type with an invalid payload.
	ErrMalformed = errors.New("malformed event")
)

// Frame is the wire envelope.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ValidationError describes why a known frame was rejected.
type ValidationError struct {
	Type   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMalformed, e.Type, e.Reason)
}

// Is makes errors.Is(err, ErrMalformed) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrMalformed
}

// PublicMessage is the text sent back to the client.
func (e *ValidationError) PublicMessage() string {
	return fmt.Sprintf("Invalid %s request: %s", e.Type, e.Reason)
}

// Request is one validated inbound event.
type Request interface {
	Type() string
}

// JoinRequest registers a connection as a customer or an admin.
type JoinRequest struct {
	Name     string       `json:"name"`
	Role     session.Role `json:"role"`
	ClientID string       `json:"clientId,omitempty"`
	Token    string       `json:"token,omitempty"`
}

// SendMessageRequest appends a message to a session.
type SendMessageRequest struct {
	Body      string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// JoinSessionRequest is an admin claiming a session.
type JoinSessionRequest struct {
	SessionID string `json:"sessionId"`
}

// LeaveSessionRequest is an admin releasing its session.
type LeaveSessionRequest struct{}

// CloseSessionRequest is an admin closing a session.
type CloseSessionRequest struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

// GetSessionsRequest asks for the active session list.
type GetSessionsRequest struct{}

// GetClosedSessionsRequest asks for the closed session list.
type GetClosedSessionsRequest struct{}

// GetSessionHistoryRequest asks for a session's messages.
type GetSessionHistoryRequest struct {
	SessionID string `json:"sessionId"`
}

// ViewClosedSessionRequest asks for a closed session's full record.
type ViewClosedSessionRequest struct {
	SessionID string `json:"sessionId"`
}

// GetClientHistoryRequest asks for all closed sessions of a client id.
type GetClientHistoryRequest struct {
	ClientID string `json:"clientId"`
}

// RejoinSessionRequest is a customer reattaching to a session after a reconnect.
type RejoinSessionRequest struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
	ClientID  string `json:"clientId,omitempty"`
}

// TypingRequest relays a typing indicator to the session peer.
type TypingRequest struct {
	IsTyping bool `json:"isTyping"`
}

func (JoinRequest) Type() string              { return TypeJoin }
func (SendMessageRequest) Type() string       { return TypeSendMessage }
func (JoinSessionRequest) Type() string       { return TypeJoinSession }
func (LeaveSessionRequest) Type() string      { return TypeLeaveSession }
func (CloseSessionRequest) Type() string      { return TypeAdminClose }
func (GetSessionsRequest) Type() string       { return TypeGetSessions }
func (GetClosedSessionsRequest) Type() string { return TypeGetClosedSessions }
func (GetSessionHistoryRequest) Type() string { return TypeGetSessionHistory }
func (ViewClosedSessionRequest) Type() string { return TypeViewClosedSession }
func (GetClientHistoryRequest) Type() string  { return TypeGetClientHistory }
func (RejoinSessionRequest) Type() string     { return TypeRejoinSession }
func (TypingRequest) Type() string            { return TypeTyping }

// EncodeRequest builds the wire frame for a request. Used by clients.
func EncodeRequest(req Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", req.Type(), err)
	}
	return json.Marshal(Frame{Type: req.Type(), Data: data})
}

// ParseFrame decodes the envelope only.
func ParseFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, &ValidationError{Type: "frame", Reason: "invalid JSON"}
	}
	if f.Type == "" {
		return Frame{}, &ValidationError{Type: "frame", Reason: "type is required"}
	}
	return f, nil
}

// Decode validates a frame and returns its request variant.
func Decode(f Frame) (Request, error) {
	switch f.Type {
	case TypeJoin:
		return decodeJoin(f)
	case TypeSendMessage:
		return decodeSendMessage(f)
	case TypeJoinSession:
		var p JoinSessionRequest
		if err := unmarshalData(f, &p); err != nil {
			return nil, err
		}
		if err := requireField(f.Type, "sessionId", p.SessionID); err != nil {
			return nil, err
		}
		return p, nil
	case TypeLeaveSession:
		return LeaveSessionRequest{}, nil
	case TypeAdminClose:
		var p CloseSessionRequest
		if err := unmarshalData(f, &p); err != nil {
			return nil, err
		}
		return validateClose(f.Type, p)
	case TypeAdminAction:
		return decodeAdminAction(f)
	case TypeGetSessions:
		return GetSessionsRequest{}, nil
	case TypeGetClosedSessions:
		return GetClosedSessionsRequest{}, nil
	case TypeGetSessionHistory:
		var p GetSessionHistoryRequest
		if err := unmarshalData(f, &p); err != nil {
			return nil, err
		}
		if err := requireField(f.Type, "sessionId", p.SessionID); err != nil {
			return nil, err
		}
		return p, nil
	case TypeViewClosedSession:
		var p ViewClosedSessionRequest
		if err := unmarshalData(f, &p); err != nil {
			return nil, err
		}
		if err := requireField(f.Type, "sessionId", p.SessionID); err != nil {
			return nil, err
		}
		return p, nil
	case TypeGetClientHistory:
		var p GetClientHistoryRequest
		if err := unmarshalData(f, &p); err != nil {
			return nil, err
		}
		if err := requireField(f.Type, "clientId", p.ClientID); err != nil {
			return nil, err
		}
		return p, nil
	case TypeRejoinSession:
		return decodeRejoin(f)
	case TypeTyping:
		var p TypingRequest
		if err := unmarshalData(f, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
}

func decodeJoin(f Frame) (Request, error) {
	var raw struct {
		Name     string `json:"name"`
		Role     string `json:"role"`
		IsAdmin  bool   `json:"isAdmin"`
		ClientID string `json:"clientId"`
		Token    string `json:"token"`
	}
	if err := unmarshalData(f, &raw); err != nil {
		return nil, err
	}

	name, err := validateName(f.Type, raw.Name)
	if err != nil {
		return nil, err
	}

	role := session.RoleCustomer
	switch strings.ToLower(raw.Role) {
	case "":
		if raw.IsAdmin {
			role = session.RoleAdmin
		}
	case string(session.RoleCustomer):
	case string(session.RoleAdmin):
		role = session.RoleAdmin
	default:
		return nil, &ValidationError{Type: f.Type, Reason: "role must be customer or admin"}
	}

	return JoinRequest{
		Name:     name,
		Role:     role,
		ClientID: strings.TrimSpace(raw.ClientID),
		Token:    raw.Token,
	}, nil
}

func decodeSendMessage(f Frame) (Request, error) {
	var raw struct {
		Message   string `json:"message"`
		Body      string `json:"body"`
		SessionID string `json:"sessionId"`
	}
	if err := unmarshalData(f, &raw); err != nil {
		return nil, err
	}
	body := raw.Message
	if body == "" {
		body = raw.Body
	}
	if strings.TrimSpace(body) == "" {
		return nil, &ValidationError{Type: f.Type, Reason: "message is required"}
	}
	return SendMessageRequest{Body: body, SessionID: raw.SessionID}, nil
}

func decodeAdminAction(f Frame) (Request, error) {
	var raw struct {
		Type      string `json:"type"`
		SessionID string `json:"sessionId"`
		Reason    string `json:"reason"`
	}
	if err := unmarshalData(f, &raw); err != nil {
		return nil, err
	}
	if raw.Type != actionCloseSession {
		return nil, fmt.Errorf("%w: admin_action %q", ErrUnknownType, raw.Type)
	}
	return validateClose(f.Type, CloseSessionRequest{SessionID: raw.SessionID, Reason: raw.Reason})
}

func validateClose(typ string, p CloseSessionRequest) (Request, error) {
	if err := requireField(typ, "sessionId", p.SessionID); err != nil {
		return nil, err
	}
	p.Reason = strings.TrimSpace(p.Reason)
	return p, nil
}

func decodeRejoin(f Frame) (Request, error) {
	var raw struct {
		SessionID string `json:"sessionId"`
		Name      string `json:"name"`
		ClientID  string `json:"clientId"`
		User      *struct {
			Name     string `json:"name"`
			ClientID string `json:"clientId"`
		} `json:"user"`
	}
	if err := unmarshalData(f, &raw); err != nil {
		return nil, err
	}
	name, clientID := raw.Name, raw.ClientID
	if raw.User != nil {
		if name == "" {
			name = raw.User.Name
		}
		if clientID == "" {
			clientID = raw.User.ClientID
		}
	}
	name, err := validateName(f.Type, name)
	if err != nil {
		return nil, err
	}
	return RejoinSessionRequest{
		SessionID: raw.SessionID,
		Name:      name,
		ClientID:  strings.TrimSpace(clientID),
	}, nil
}

func unmarshalData(f Frame, v any) error {
	data := bytes.TrimSpace(f.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ValidationError{Type: f.Type, Reason: "invalid payload"}
	}
	return nil
}

func requireField(typ, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Type: typ, Reason: field + " is required"}
	}
	return nil
}

func validateName(typ, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Type: typ, Reason: "name is required"}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", &ValidationError{Type: typ, Reason: fmt.Sprintf("name exceeds %d characters", MaxNameLength)}
	}
	return name, nil
}
