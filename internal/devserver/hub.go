// ABOUTME: In-memory fan-out of stored messages to streaming subscribers.
// ABOUTME: One subscriber set per conversation; slow subscribers drop frames.

package devserver

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tradepost-app/tradepost-chat/internal/chat"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Hub publishes persisted messages to every open stream of a conversation.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[string]chan chat.WireMessage // conversationID -> subID -> ch
	logger *slog.Logger
}

// NewHub creates a hub. Pass nil logger for the default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]map[string]chan chat.WireMessage),
		logger: logger.With("component", "devhub"),
	}
}

// Subscribe registers a stream for a conversation. The returned cancel
// function removes the subscription and closes the channel.
func (h *Hub) Subscribe(conversationID string) (<-chan chat.WireMessage, func()) {
	subID := uuid.New().String()
	ch := make(chan chat.WireMessage, subscriberBufferSize)

	h.mu.Lock()
	if _, ok := h.subs[conversationID]; !ok {
		h.subs[conversationID] = make(map[string]chan chat.WireMessage)
	}
	h.subs[conversationID][subID] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.subs[conversationID]
		if !ok {
			return
		}
		if c, exists := subs[subID]; exists {
			delete(subs, subID)
			close(c)
		}
		if len(subs) == 0 {
			delete(h.subs, conversationID)
		}
	}
	return ch, cancel
}

// Publish sends a message to all subscribers of its conversation.
// Non-blocking: frames are dropped for subscribers whose channels are full.
func (h *Hub) Publish(msg chat.WireMessage) {
	h.mu.RLock()
	subs := h.subs[msg.ConversationID]
	targets := make([]chan chat.WireMessage, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}
	h.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- msg:
		default:
			h.logger.Debug("dropped frame for slow subscriber",
				"conversation_id", msg.ConversationID)
		}
	}
}
