// Package session owns customer support conversations.
//
// # Lifecycle
//
// A session starts in StatusWaitingForAdmin and moves along:
//
//	waiting_for_admin -> active                 (admin claims it)
//	active            -> waiting_for_admin      (admin leaves)
//	waiting|active    -> customer_disconnected  (customer connection drops)
//	any               -> closed                 (admin close, or disconnect finalized)
//
// Closed sessions move from the active map to the closed map in one
// critical section and are read-only from then on. The closed map is
// bounded by a retention index (age and count), evicting oldest first.
//
// # Concurrency
//
// Store guards both maps and every session field with one RWMutex and
// only ever hands out deep copies, so callers cannot bypass the
// transition rules by mutating a returned *Session.
package session
