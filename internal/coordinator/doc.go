// Package coordinator implements the support session state machine.
//
// # Overview
//
// The Coordinator is the only component allowed to touch the registry,
// the session store and the history index in one logical operation. Every
// mutating operation runs under a single mutex, so no caller can observe a
// half-applied assignment, close or append.
//
// # Session Lifecycle
//
//	waiting_for_admin -> active           admin claims (JoinSession)
//	active -> waiting_for_admin           admin leaves or disconnects
//	any -> customer_disconnected -> closed customer connection drops
//	waiting_for_admin|active -> closed    admin closes (CloseSession)
//
// Assignment is pull based. New sessions only raise an advisory alert in
// the admin room; an admin must claim a session explicitly.
//
// # Returning Clients
//
// A customer joining with a client id that had a session closed within the
// history window (24h by default) gets a new session linked to that one.
// Message logs are never merged.
//
// # Events
//
// Outbound events go through the Notifier, whose sends must not block.
// Failures are reported to the originating connection as an error event
// by Dispatch, using the wording from PublicMessage.
package coordinator
