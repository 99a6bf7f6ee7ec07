// ABOUTME: Validates and submits outbound messages through the send service.
// ABOUTME: Plain text and structured scheduling payloads share one send path.

package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tradepost-app/tradepost-chat/internal/chat"
)

var (
	// ErrEmptyMessage rejects sends whose text is empty after trimming.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrSendInFlight rejects a send while another one for the same
	// conversation is still pending, preventing duplicate submissions
	// from rapid taps.
	ErrSendInFlight = errors.New("send already in flight for this conversation")
)

// Sender is what the composer needs from the REST layer.
type Sender interface {
	SendMessage(ctx context.Context, conversationID, senderID, content string) (chat.Message, error)
}

// Applier receives the authoritative copy of a delivered message to keep
// the conversation list preview in sync.
type Applier interface {
	ApplyLastMessage(conversationID string, msg chat.Message)
}

// Composer submits outbound messages. On success the canonical stored copy
// is applied to the directory preview and handed to the delivered hook; on
// failure nothing is applied locally and the error propagates. The composer
// never retries; reconnection is the connection manager's job, sending is
// not.
type Composer struct {
	api       Sender
	directory Applier
	logger    *slog.Logger

	// delivered feeds the authoritative message through the same path as
	// live ingestion, so local and streamed views never diverge.
	delivered func(chat.Message)

	mu       sync.Mutex
	inflight map[string]bool
}

// New creates a composer. Pass nil logger for the default.
func New(api Sender, directory Applier, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		api:       api,
		directory: directory,
		logger:    logger.With("component", "composer"),
		inflight:  make(map[string]bool),
	}
}

// OnDelivered registers the hook invoked with the canonical stored message
// after a successful send. Set before the first send.
func (c *Composer) OnDelivered(fn func(chat.Message)) {
	c.delivered = fn
}

// SendText validates and submits a plain text message, returning the
// canonical stored copy.
func (c *Composer) SendText(ctx context.Context, conversationID, senderID, text string) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	if !c.begin(conversationID) {
		return chat.Message{}, ErrSendInFlight
	}
	defer c.finish(conversationID)

	msg, err := c.api.SendMessage(ctx, conversationID, senderID, text)
	if err != nil {
		// Nothing was applied locally, so a failed send is never
		// silently shown.
		return chat.Message{}, fmt.Errorf("submitting message: %w", err)
	}

	c.logger.Debug("message delivered",
		"conversation_id", conversationID,
		"message_id", msg.ID)

	if c.directory != nil {
		c.directory.ApplyLastMessage(conversationID, msg)
	}
	if c.delivered != nil {
		c.delivered(msg)
	}
	return msg, nil
}

// SendScheduledDate encodes a proposed date as a structured payload and
// submits it through the same text-send path; the wire format carries no
// separate message kind.
func (c *Composer) SendScheduledDate(ctx context.Context, conversationID, senderID string, at time.Time) (chat.Message, error) {
	text, err := chat.EncodeDatePayload(at)
	if err != nil {
		return chat.Message{}, err
	}
	return c.SendText(ctx, conversationID, senderID, text)
}

// begin marks a conversation's send slot busy; false if already busy.
func (c *Composer) begin(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[conversationID] {
		return false
	}
	c.inflight[conversationID] = true
	return true
}

func (c *Composer) finish(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, conversationID)
}
