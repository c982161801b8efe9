// Package protocol defines the JSON event envelopes exchanged over /ws.
//
// Every frame is {"type": "...", "data": {...}}. Inbound frames are decoded
// into a closed set of Request variants and validated here, so the
// coordinator only ever sees well-formed requests. Outbound events are
// built with the New* constructors from session snapshots.
package protocol
