// Package history recognizes returning customers.
//
// Two aggregates are kept: ClientEntry, keyed by the durable client id a
// browser keeps across reconnects, and NameEntry, a softer name-keyed
// aggregate used when no client id is present. Both only grow.
//
// Whether a join is linked to earlier context is decided by
// FindRecentClosed: the most recently closed session for the same client
// id counts only if it closed within the returning window (24h default).
package history
