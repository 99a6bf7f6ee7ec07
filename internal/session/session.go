// ABOUTME: Orchestrates the engine: one open conversation at a time.
// ABOUTME: Tears down the previous stream fully before opening the next.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sync"

	"github.com/tradepost-app/tradepost-chat/internal/api"
	"github.com/tradepost-app/tradepost-chat/internal/chat"
	"github.com/tradepost-app/tradepost-chat/internal/composer"
	"github.com/tradepost-app/tradepost-chat/internal/config"
	"github.com/tradepost-app/tradepost-chat/internal/connection"
	"github.com/tradepost-app/tradepost-chat/internal/directory"
	"github.com/tradepost-app/tradepost-chat/internal/identity"
	"github.com/tradepost-app/tradepost-chat/internal/timeline"
)

// ErrNoConversation is returned by send calls when no conversation is open.
var ErrNoConversation = errors.New("no conversation open")

// Params configures a Session.
type Params struct {
	Config *config.Config
	// UserID is the viewer's opaque id. When empty, it is derived from the
	// configured access token's subject claim.
	UserID string
	Logger *slog.Logger
}

// Session is the engine facade: it owns the directory, the composer, and,
// for the single currently open conversation, the timeline and the streaming
// connection. Opening a conversation always tears the previous one down
// first; no two live sockets are permitted.
type Session struct {
	cfg       *config.Config
	api       *api.Client
	directory *directory.Directory
	composer  *composer.Composer
	logger    *slog.Logger
	userID    string

	onUpdate    func()
	onConnState func(connection.State, error)

	mu       sync.Mutex
	manager  *connection.Manager
	timeline *timeline.Timeline
}

// New creates a session for the configured backend and viewer.
func New(p Params) (*Session, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	userID, err := identity.Resolve(p.UserID, p.Config.API.Token)
	if err != nil {
		return nil, fmt.Errorf("resolving user id: %w", err)
	}

	client := api.NewClient(p.Config.API.BaseURL, logger, api.WithToken(p.Config.API.Token))
	dir := directory.New(client, logger)

	s := &Session{
		cfg:       p.Config,
		api:       client,
		directory: dir,
		logger:    logger.With("component", "session"),
		userID:    userID,
	}
	s.composer = composer.New(client, dir, logger)
	s.composer.OnDelivered(s.deliver)
	return s, nil
}

// OnUpdate registers a hook invoked whenever the open conversation's view
// changes (live message, delivered send). Set before Open.
func (s *Session) OnUpdate(fn func()) {
	s.onUpdate = fn
}

// OnConnectionState registers a hook for connection lifecycle changes of the
// open conversation. Set before Open.
func (s *Session) OnConnectionState(fn func(connection.State, error)) {
	s.onConnState = fn
}

// UserID returns the viewer's opaque id.
func (s *Session) UserID() string {
	return s.userID
}

// Directory returns the conversation directory.
func (s *Session) Directory() *directory.Directory {
	return s.directory
}

// Refresh reloads the conversation directory for the viewer.
func (s *Session) Refresh(ctx context.Context) ([]chat.Conversation, error) {
	return s.directory.Refresh(ctx, s.userID)
}

// StartConversation creates (or fetches) the conversation for a listing with
// the viewer as buyer, returning its id.
func (s *Session) StartConversation(ctx context.Context, listingID, sellerID string) (string, error) {
	return s.api.CreateConversation(ctx, listingID, sellerID, s.userID)
}

// Open makes conversationID the current conversation: the previous one is
// fully torn down (socket closed intentionally, timers cancelled), history
// is fetched, and the stream is opened. If the current conversation changes
// while the history fetch is in flight, the stale result is discarded.
func (s *Session) Open(ctx context.Context, conversationID string) error {
	tl := timeline.New(conversationID)

	s.mu.Lock()
	prev := s.manager
	s.manager = nil
	s.timeline = tl
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	history, err := s.api.History(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	s.mu.Lock()
	if s.timeline != tl {
		// Conversation changed while the fetch was in flight.
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	tl.ReplaceHistory(history)

	mgr := connection.NewManager(connection.Params{
		BaseURL:          s.cfg.API.BaseURL,
		Backoff:          s.backoffPolicy(),
		Heartbeat:        connection.HeartbeatPolicy{Interval: s.cfg.Connection.HeartbeatInterval},
		EstablishTimeout: s.cfg.Connection.EstablishTimeout,
		Logger:           s.logger,
	})
	mgr.OnMessage(func(msg chat.Message) { s.ingestLive(tl, msg) })
	mgr.OnStateChange(func(st connection.State, err error) {
		if s.onConnState != nil {
			s.onConnState(st, err)
		}
	})

	s.mu.Lock()
	if s.timeline != tl {
		s.mu.Unlock()
		return nil
	}
	s.manager = mgr
	s.mu.Unlock()

	if err := mgr.Open(conversationID, s.userID); err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	return nil
}

// Close tears down the current conversation, if any.
func (s *Session) Close() {
	s.mu.Lock()
	mgr := s.manager
	s.manager = nil
	s.timeline = nil
	s.mu.Unlock()

	if mgr != nil {
		mgr.Close()
	}
}

// ConversationID returns the id of the open conversation, or "".
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeline == nil {
		return ""
	}
	return s.timeline.ConversationID()
}

// View returns the display sequence for the open conversation.
func (s *Session) View() []timeline.Entry {
	s.mu.Lock()
	tl := s.timeline
	s.mu.Unlock()
	if tl == nil {
		return nil
	}
	return tl.View()
}

// SendText submits a text message to the open conversation.
func (s *Session) SendText(ctx context.Context, text string) (chat.Message, error) {
	conversationID := s.ConversationID()
	if conversationID == "" {
		return chat.Message{}, ErrNoConversation
	}
	return s.composer.SendText(ctx, conversationID, s.userID, text)
}

// SendScheduledDate submits a scheduling proposal to the open conversation.
func (s *Session) SendScheduledDate(ctx context.Context, at time.Time) (chat.Message, error) {
	conversationID := s.ConversationID()
	if conversationID == "" {
		return chat.Message{}, ErrNoConversation
	}
	return s.composer.SendScheduledDate(ctx, conversationID, s.userID, at)
}

// ingestLive handles one streamed message for the timeline it was wired to.
// Frames for a stale conversation are dropped.
func (s *Session) ingestLive(tl *timeline.Timeline, msg chat.Message) {
	if msg.ConversationID != tl.ConversationID() {
		s.logger.Debug("dropping frame for other conversation",
			"conversation_id", msg.ConversationID)
		return
	}

	s.mu.Lock()
	current := s.timeline == tl
	s.mu.Unlock()
	if !current {
		return
	}

	tl.Ingest(msg)
	s.directory.ApplyLastMessage(msg.ConversationID, msg)
	s.notify()
}

// deliver feeds the authoritative copy of a sent message into the timeline
// through the same path as live ingestion, so optimistic and streamed views
// never diverge. The directory preview was already applied by the composer.
func (s *Session) deliver(msg chat.Message) {
	s.mu.Lock()
	tl := s.timeline
	s.mu.Unlock()
	if tl == nil || tl.ConversationID() != msg.ConversationID {
		return
	}
	tl.Ingest(msg)
	s.notify()
}

func (s *Session) notify() {
	if s.onUpdate != nil {
		s.onUpdate()
	}
}

func (s *Session) backoffPolicy() connection.BackoffPolicy {
	return connection.BackoffPolicy{
		Base:        s.cfg.Connection.BackoffBase,
		Cap:         s.cfg.Connection.BackoffCap,
		MaxAttempts: s.cfg.Connection.MaxAttempts,
	}
}
