// Package notify fans outbound protocol events out to connections.
//
// Each connection subscribes once and receives a buffered outbox channel
// that its transport writer drains. Admin connections also join the
// "admins" room so list snapshots and alerts reach all of them. Sends never
// block: an event for a full outbox is dropped and counted.
package notify
