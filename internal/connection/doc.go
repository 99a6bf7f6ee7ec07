// Package connection manages the streaming WebSocket connection for one open
// conversation.
//
// # Lifecycle
//
// A Manager moves through these states:
//
//	Idle → Connecting → Open → (Reconnecting → Connecting)* → Closed | Failed
//
// Closed is reached by an explicit Close or a normal-closure from the peer;
// Failed is reached when the retry ceiling is exhausted. At most one
// reconnect timer is pending at any time.
//
// # Keepalive
//
// While open, the manager sends a {"type":"ping"} probe on a fixed interval
// and answers inbound probes with {"type":"pong"}. Keepalive frames are
// recognized and swallowed before the message callback sees anything.
//
// # Failure handling
//
// Establishment is bounded by a timeout; a lost or failed connection is
// retried with exponential backoff (min(base*2^attempt, cap)) up to the
// attempt ceiling, after which a terminal ErrRetriesExhausted is surfaced
// through the state callback. Malformed inbound frames are logged and
// dropped without disturbing the stream.
package connection
