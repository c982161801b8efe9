// ABOUTME: Coordinator error sentinels and their classification
// ABOUTME: Maps failures to a kind and to the text shown to the originating client

package coordinator

import (
	"errors"

	"github.com/2389/helpdesk-gateway/internal/session"
)

// Coordinator errors
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidSession    = errors.New("invalid session")
	ErrNoActiveSession   = errors.New("no active session")
	ErrInvalidState      = errors.New("invalid state")
	ErrUnknownConnection = errors.New("unknown connection")
)

// ErrorKind groups failures for clients and metrics.
type ErrorKind string

// Error kinds
const (
	KindNone         ErrorKind = ""
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindUnauthorized ErrorKind = "unauthorized"
	KindInvalidState ErrorKind = "invalid_state"
	KindInternal     ErrorKind = "internal"
)

// Kind classifies err.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, ErrInvalidSession),
		errors.Is(err, ErrNoActiveSession):
		return KindNotFound
	case errors.Is(err, session.ErrAdminAlreadyAssigned):
		return KindConflict
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrUnknownConnection):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrNoAdminAssigned):
		return KindInvalidState
	default:
		return KindInternal
	}
}

// PublicMessage returns the client-facing text for err.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSession):
		return "Invalid session"
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, ErrNoActiveSession):
		return "Session not found"
	case errors.Is(err, session.ErrAdminAlreadyAssigned):
		return "Session already has an admin"
	}

	switch Kind(err) {
	case KindUnauthorized:
		return "Unauthorized access"
	case KindInvalidState:
		return "Operation not allowed in the current session state"
	default:
		return "Internal error"
	}
}
