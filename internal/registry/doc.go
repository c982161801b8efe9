// Package registry tracks the live participants of the gateway.
//
// # Overview
//
// Every WebSocket connection that has sent a join is recorded here as a
// Participant keyed by its connection id. Admins additionally carry an
// availability flag used for advisory new-session alerts:
//
//	reg := registry.New(logger)
//	reg.Register(&registry.Participant{ConnectionID: id, Name: "Mia", Role: session.RoleAdmin})
//	reg.MarkAdminAvailable(id)
//
// The registry never reads or writes sessions. The coordinator keeps
// Participant.SessionID in step with the session store through BindSession
// and ClearSession.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Getters return copies.
package registry
