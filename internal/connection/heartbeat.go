// ABOUTME: Keepalive policy for the streaming connection.
// ABOUTME: Symmetric ping/pong JSON control frames so either side can probe liveness.

package connection

import (
	"encoding/json"
	"time"
)

// Control frame types reserved on the stream. Everything else is a chat
// message frame.
const (
	controlPing = "ping"
	controlPong = "pong"
)

// HeartbeatPolicy defines the keepalive cadence and probe payloads.
type HeartbeatPolicy struct {
	// Interval between outbound probes while the socket is open.
	Interval time.Duration
}

// DefaultHeartbeat returns the production policy: a probe every 30s.
func DefaultHeartbeat() HeartbeatPolicy {
	return HeartbeatPolicy{Interval: 30 * time.Second}
}

// controlFrame is the reserved keepalive payload.
type controlFrame struct {
	Type string `json:"type"`
}

// Probe returns the outbound keepalive frame.
func (HeartbeatPolicy) Probe() []byte {
	data, _ := json.Marshal(controlFrame{Type: controlPing})
	return data
}

// Ack returns the response to an inbound probe.
func (HeartbeatPolicy) Ack() []byte {
	data, _ := json.Marshal(controlFrame{Type: controlPong})
	return data
}
