// ABOUTME: Integration tests for the connection manager against a live socket.
// ABOUTME: Dial, keepalive exchange, malformed-frame handling, reconnect, and teardown.

package connection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepost-app/tradepost-chat/internal/chat"
)

// streamServer is an httptest server that upgrades /ws/chat requests and
// hands the socket to a per-connection handler.
type streamServer struct {
	*httptest.Server
	mu       sync.Mutex
	accepted int
}

func newStreamServer(t *testing.T, handle func(*websocket.Conn)) *streamServer {
	t.Helper()
	s := &streamServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		s.mu.Lock()
		s.accepted++
		s.mu.Unlock()
		handle(conn)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *streamServer) acceptedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// fastParams returns manager params tuned for tests: tiny backoff so
// reconnect scenarios finish quickly.
func fastParams(baseURL string) Params {
	return Params{
		BaseURL: baseURL,
		Backoff: BackoffPolicy{
			Base:        5 * time.Millisecond,
			Cap:         20 * time.Millisecond,
			MaxAttempts: 5,
		},
		Heartbeat:        HeartbeatPolicy{Interval: time.Minute},
		EstablishTimeout: time.Second,
	}
}

func waitForState(t *testing.T, states <-chan State, want State) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func TestManager_DeliversInboundMessages(t *testing.T) {
	srv := newStreamServer(t, func(conn *websocket.Conn) {
		frame, _ := json.Marshal(chat.WireMessage{
			ID:             "m1",
			ConversationID: "c1",
			SenderID:       "peer",
			Content:        "hello there",
			CreatedAt:      time.Now().UTC(),
		})
		conn.Write(t.Context(), websocket.MessageText, frame)
		// Hold the socket open until the test finishes.
		conn.Read(t.Context())
	})

	messages := make(chan chat.Message, 4)
	states := make(chan State, 16)
	m := NewManager(fastParams(srv.URL))
	m.OnMessage(func(msg chat.Message) { messages <- msg })
	m.OnStateChange(func(s State, err error) { states <- s })

	require.NoError(t, m.Open("c1", "u1"))
	defer m.Close()
	waitForState(t, states, StateOpen)

	select {
	case msg := <-messages:
		assert.Equal(t, "m1", msg.ID)
		assert.Equal(t, "hello there", msg.Text)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestManager_AnswersServerPingAndSwallowsKeepalives(t *testing.T) {
	gotPong := make(chan struct{}, 1)
	srv := newStreamServer(t, func(conn *websocket.Conn) {
		ping, _ := json.Marshal(map[string]string{"type": "ping"})
		conn.Write(t.Context(), websocket.MessageText, ping)
		for {
			_, data, err := conn.Read(t.Context())
			if err != nil {
				return
			}
			var ctl struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(data, &ctl) == nil && ctl.Type == "pong" {
				select {
				case gotPong <- struct{}{}:
				default:
				}
			}
		}
	})

	messages := make(chan chat.Message, 4)
	states := make(chan State, 16)
	m := NewManager(fastParams(srv.URL))
	m.OnMessage(func(msg chat.Message) { messages <- msg })
	m.OnStateChange(func(s State, err error) { states <- s })

	require.NoError(t, m.Open("c1", "u1"))
	defer m.Close()
	waitForState(t, states, StateOpen)

	select {
	case <-gotPong:
	case <-time.After(3 * time.Second):
		t.Fatal("server never received a pong")
	}

	// Keepalive traffic must never surface as a chat message.
	select {
	case msg := <-messages:
		t.Fatalf("unexpected message from keepalive traffic: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManager_DropsMalformedFramesAndKeepsStream(t *testing.T) {
	srv := newStreamServer(t, func(conn *websocket.Conn) {
		conn.Write(t.Context(), websocket.MessageText, []byte("{not json"))
		conn.Write(t.Context(), websocket.MessageText, []byte(`{"type":"mystery"}`))
		frame, _ := json.Marshal(chat.WireMessage{
			ID:             "m-good",
			ConversationID: "c1",
			SenderID:       "peer",
			Content:        "survived",
			CreatedAt:      time.Now().UTC(),
		})
		conn.Write(t.Context(), websocket.MessageText, frame)
		conn.Read(t.Context())
	})

	messages := make(chan chat.Message, 4)
	states := make(chan State, 16)
	m := NewManager(fastParams(srv.URL))
	m.OnMessage(func(msg chat.Message) { messages <- msg })
	m.OnStateChange(func(s State, err error) { states <- s })

	require.NoError(t, m.Open("c1", "u1"))
	defer m.Close()

	select {
	case msg := <-messages:
		assert.Equal(t, "m-good", msg.ID, "valid frame after garbage must still arrive")
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the valid frame")
	}
}

func TestManager_ReconnectsAfterAbnormalClose(t *testing.T) {
	// The first connection dies abruptly; later ones stay up.
	var mu sync.Mutex
	connects := 0
	srv := newStreamServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		connects++
		first := connects == 1
		mu.Unlock()
		if first {
			conn.CloseNow()
			return
		}
		conn.Read(context.Background())
	})

	states := make(chan State, 32)
	m := NewManager(fastParams(srv.URL))
	m.OnStateChange(func(s State, err error) { states <- s })

	require.NoError(t, m.Open("c1", "u1"))
	defer m.Close()

	waitForState(t, states, StateReconnecting)
	waitForState(t, states, StateOpen)
	assert.GreaterOrEqual(t, srv.acceptedCount(), 2)
	assert.Equal(t, 0, m.Attempts(), "attempt counter resets on successful connect")
}

func TestManager_CloseNeverReconnects(t *testing.T) {
	srv := newStreamServer(t, func(conn *websocket.Conn) {
		conn.Read(context.Background())
	})

	states := make(chan State, 32)
	m := NewManager(fastParams(srv.URL))
	m.OnStateChange(func(s State, err error) { states <- s })

	require.NoError(t, m.Open("c1", "u1"))
	waitForState(t, states, StateOpen)

	m.Close()
	waitForState(t, states, StateClosed)

	// Give any stray reconnect timer time to fire, then confirm nothing did.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateClosed, m.State())
	assert.Equal(t, 1, srv.acceptedCount())
}

func TestManager_PeerNormalCloseEndsLifecycle(t *testing.T) {
	srv := newStreamServer(t, func(conn *websocket.Conn) {
		// Drain the initial probe, then close cleanly.
		conn.Read(context.Background())
		conn.Close(websocket.StatusNormalClosure, "done")
	})

	states := make(chan State, 32)
	m := NewManager(fastParams(srv.URL))
	m.OnStateChange(func(s State, err error) { states <- s })

	require.NoError(t, m.Open("c1", "u1"))
	waitForState(t, states, StateClosed)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateClosed, m.State())
	assert.Equal(t, 1, srv.acceptedCount())
}

func TestManager_FailsAfterRetryCeiling(t *testing.T) {
	// A server that is immediately shut down leaves a refused port.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	states := make(chan State, 64)
	var failErr error
	var mu sync.Mutex

	p := fastParams(baseURL)
	p.Backoff.MaxAttempts = 2
	p.EstablishTimeout = 200 * time.Millisecond
	m := NewManager(p)
	m.OnStateChange(func(s State, err error) {
		if s == StateFailed {
			mu.Lock()
			failErr = err
			mu.Unlock()
		}
		states <- s
	})

	require.NoError(t, m.Open("c1", "u1"))
	waitForState(t, states, StateFailed)

	mu.Lock()
	defer mu.Unlock()
	require.ErrorIs(t, failErr, ErrRetriesExhausted)
	assert.Equal(t, 2, m.Attempts())
}

func TestManager_SendWithoutConnection(t *testing.T) {
	m := NewManager(fastParams("http://localhost:1"))
	err := m.Send(t.Context(), map[string]string{"content": "hi"})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestManager_OpenAfterCloseRejected(t *testing.T) {
	m := NewManager(fastParams("http://localhost:1"))
	m.Close()
	err := m.Open("c1", "u1")
	require.ErrorIs(t, err, ErrManagerClosed)
}
