// ABOUTME: Owns the lifecycle of one streaming connection per conversation.
// ABOUTME: Dial, heartbeat, failure detection, bounded-backoff reconnect, clean teardown.

package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/tradepost-app/tradepost-chat/internal/chat"
)

// State describes where a connection is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosed
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrRetriesExhausted signals a terminal connection failure: the retry
	// ceiling was reached and no further reconnect will be scheduled.
	ErrRetriesExhausted = errors.New("retry attempts exhausted")

	// ErrNotConnected is returned by Send when no socket is open.
	ErrNotConnected = errors.New("not connected")

	// ErrManagerClosed is returned by Open after Close has been called.
	ErrManagerClosed = errors.New("connection manager closed")
)

// writeTimeout bounds individual frame writes.
const writeTimeout = 10 * time.Second

// Params configures a Manager.
type Params struct {
	// BaseURL is the REST base URL; the stream URL and scheme derive from it.
	BaseURL string
	// Backoff governs reconnect scheduling. Zero value means DefaultBackoff.
	Backoff BackoffPolicy
	// Heartbeat governs keepalive probes. Zero value means DefaultHeartbeat.
	Heartbeat HeartbeatPolicy
	// EstablishTimeout bounds connection establishment. Zero means 5s.
	EstablishTimeout time.Duration
	// Logger for connection events. Nil means slog.Default.
	Logger *slog.Logger
}

// Manager owns the live socket and retry state for exactly one conversation.
// It is constructed when the conversation is opened and discarded when it is
// closed; it is never shared across conversations.
type Manager struct {
	url              string
	baseURL          string
	backoff          BackoffPolicy
	heartbeat        HeartbeatPolicy
	establishTimeout time.Duration
	logger           *slog.Logger

	// Callbacks, set before Open.
	onMessage func(chat.Message)
	onState   func(State, error)

	mu            sync.Mutex
	state         State
	conn          *websocket.Conn
	attempts      int
	closing       bool
	opened        bool
	reconnect     *time.Timer
	heartbeatStop chan struct{}
}

// NewManager creates a connection manager. Open must be called to connect.
func NewManager(p Params) *Manager {
	if p.Backoff == (BackoffPolicy{}) {
		p.Backoff = DefaultBackoff()
	}
	if p.Heartbeat.Interval == 0 {
		p.Heartbeat = DefaultHeartbeat()
	}
	if p.EstablishTimeout == 0 {
		p.EstablishTimeout = 5 * time.Second
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &Manager{
		baseURL:          p.BaseURL,
		backoff:          p.Backoff,
		heartbeat:        p.Heartbeat,
		establishTimeout: p.EstablishTimeout,
		logger:           p.Logger.With("component", "connection"),
		state:            StateIdle,
	}
}

// OnMessage registers the callback for inbound chat messages. Keepalive
// frames are handled internally and never reach this callback. Must be set
// before Open.
func (m *Manager) OnMessage(fn func(chat.Message)) {
	m.onMessage = fn
}

// OnStateChange registers the callback for lifecycle transitions. The error
// is non-nil for StateReconnecting (the transient cause) and StateFailed
// (ErrRetriesExhausted). Must be set before Open.
func (m *Manager) OnStateChange(fn func(State, error)) {
	m.onState = fn
}

// Open starts the connection for the given conversation. It returns once the
// dial is underway; progress is reported through OnStateChange. A manager
// can be opened once.
func (m *Manager) Open(conversationID, userID string) error {
	url, err := StreamURL(m.baseURL, conversationID, userID)
	if err != nil {
		return fmt.Errorf("building stream URL: %w", err)
	}

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.opened {
		m.mu.Unlock()
		return fmt.Errorf("manager already opened")
	}
	m.opened = true
	m.url = url
	m.mu.Unlock()

	m.logger = m.logger.With("conversation_id", conversationID)
	m.transition(StateConnecting, nil)
	go m.dial()
	return nil
}

// Send marshals the payload as a JSON text frame and writes it to the open
// socket.
func (m *Manager) Send(ctx context.Context, payload any) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Close tears the connection down intentionally. The closing flag is set
// before the socket is closed so the read loop sees an intentional close and
// never schedules a reconnect; any pending reconnect timer is cancelled.
// Safe to call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return
	}
	m.closing = true
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.stopHeartbeatLocked()
	conn := m.conn
	m.mu.Unlock()

	if conn != nil {
		// The read loop observes the closure and finishes the transition.
		conn.Close(websocket.StatusNormalClosure, "conversation closed")
		return
	}
	m.transition(StateClosed, nil)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the current failed-attempt count.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// dial attempts to establish the socket, bounded by the establishment
// timeout. Failures route through the same reconnect scheduling as lost
// connections.
func (m *Manager) dial() {
	ctx, cancel := context.WithTimeout(context.Background(), m.establishTimeout)
	conn, _, err := websocket.Dial(ctx, m.url, nil)
	cancel()
	if err != nil {
		m.logger.Warn("connect failed", "error", err)
		m.scheduleReconnect(err)
		return
	}

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "closing")
		return
	}
	m.conn = conn
	m.attempts = 0
	stop := make(chan struct{})
	m.heartbeatStop = stop
	m.mu.Unlock()

	m.transition(StateOpen, nil)
	m.logger.Info("connected")

	// One immediate probe confirms bidirectional liveness.
	m.writeRaw(conn, m.heartbeat.Probe())

	go m.heartbeatLoop(conn, stop)
	go m.readLoop(conn)
}

// readLoop pumps inbound frames until the socket fails or closes. All
// failure handling goes through handleClose exactly once per connection, so
// there is no separate error path that could double-schedule a reconnect.
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			m.handleClose(err)
			return
		}
		m.dispatch(conn, data)
	}
}

// dispatch routes one inbound frame: keepalive frames are answered or
// swallowed, chat frames are decoded and handed to the message callback, and
// anything unparseable is logged and dropped so the stream stays alive.
func (m *Manager) dispatch(conn *websocket.Conn, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic in frame handling", "panic", r)
		}
	}()

	var ctl controlFrame
	if err := json.Unmarshal(data, &ctl); err != nil {
		m.logger.Warn("dropping malformed frame", "error", err)
		return
	}
	switch ctl.Type {
	case controlPing:
		m.writeRaw(conn, m.heartbeat.Ack())
		return
	case controlPong:
		return
	}

	var wire chat.WireMessage
	if err := json.Unmarshal(data, &wire); err != nil || wire.ID == "" {
		m.logger.Warn("dropping malformed message frame")
		return
	}
	if m.onMessage != nil {
		m.onMessage(wire.Message())
	}
}

// handleClose runs when the read loop fails. Intentional closes (explicit
// Close, or the peer closing normally) end the lifecycle; anything else is a
// transient failure handed to reconnect scheduling.
func (m *Manager) handleClose(err error) {
	m.mu.Lock()
	m.stopHeartbeatLocked()
	m.conn = nil
	closing := m.closing
	m.mu.Unlock()

	if closing {
		m.transition(StateClosed, nil)
		return
	}

	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure {
		m.logger.Info("peer closed connection")
		m.transition(StateClosed, nil)
		return
	}

	m.logger.Warn("connection lost", "close_status", int(status), "error", err)
	m.scheduleReconnect(err)
}

// scheduleReconnect arms the single reconnect timer, or surfaces a terminal
// failure once the retry ceiling is reached. The delay is computed from the
// current attempt count, then the count is incremented.
func (m *Manager) scheduleReconnect(cause error) {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return
	}
	if m.backoff.Exhausted(m.attempts) {
		attempts := m.attempts
		m.mu.Unlock()
		m.logger.Error("giving up", "attempts", attempts)
		m.transition(StateFailed, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempts, cause))
		return
	}
	delay := m.backoff.Delay(m.attempts)
	m.attempts++
	attempt := m.attempts
	if m.reconnect != nil {
		m.reconnect.Stop()
	}
	m.reconnect = time.AfterFunc(delay, m.redial)
	m.mu.Unlock()

	m.logger.Info("reconnect scheduled", "delay", delay, "attempt", attempt)
	m.transition(StateReconnecting, cause)
}

// redial fires from the reconnect timer.
func (m *Manager) redial() {
	m.mu.Lock()
	m.reconnect = nil
	if m.closing {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.transition(StateConnecting, nil)
	m.dial()
}

// heartbeatLoop sends keepalive probes while the socket is open. A write
// failure just ends the loop; the read loop notices the dead socket and owns
// the reconnect decision.
func (m *Manager) heartbeatLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(m.heartbeat.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := m.writeRaw(conn, m.heartbeat.Probe()); err != nil {
				return
			}
		}
	}
}

// writeRaw writes a pre-encoded frame with a bounded timeout.
func (m *Manager) writeRaw(conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		m.logger.Debug("frame write failed", "error", err)
		return err
	}
	return nil
}

// transition records the new state and notifies the listener outside the
// lock.
func (m *Manager) transition(s State, err error) {
	m.mu.Lock()
	m.state = s
	fn := m.onState
	m.mu.Unlock()

	if fn != nil {
		fn(s, err)
	}
}

// stopHeartbeatLocked stops the heartbeat goroutine. Caller holds mu.
func (m *Manager) stopHeartbeatLocked() {
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
}
