// ABOUTME: Holds the set of known conversations for the viewing user.
// ABOUTME: Counterpart resolution, last-message previews, and list filtering.

package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tradepost-app/tradepost-chat/internal/chat"
)

// Lister is what the directory needs from the REST layer.
type Lister interface {
	Conversations(ctx context.Context, userID string) ([]chat.Conversation, error)
}

// Directory owns the conversation list and its denormalized last-message
// previews. Refresh replaces the set from the backend; ApplyLastMessage
// keeps previews current between refreshes without a round-trip.
type Directory struct {
	api    Lister
	logger *slog.Logger

	mu    sync.RWMutex
	order []string
	byID  map[string]*chat.Conversation
}

// New creates an empty directory. Pass nil logger for the default.
func New(api Lister, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		api:    api,
		logger: logger.With("component", "directory"),
		byID:   make(map[string]*chat.Conversation),
	}
}

// Refresh replaces the conversation set from the backend and returns a
// snapshot. A fetch failure leaves the existing set untouched; the caller
// decides whether to retry (the directory never does).
func (d *Directory) Refresh(ctx context.Context, userID string) ([]chat.Conversation, error) {
	conversations, err := d.api.Conversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("refreshing directory: %w", err)
	}

	d.mu.Lock()
	d.order = make([]string, 0, len(conversations))
	d.byID = make(map[string]*chat.Conversation, len(conversations))
	for i := range conversations {
		c := conversations[i]
		if _, seen := d.byID[c.ID]; seen {
			continue
		}
		d.order = append(d.order, c.ID)
		d.byID[c.ID] = &c
	}
	d.mu.Unlock()

	d.logger.Debug("directory refreshed", "conversations", len(conversations))
	return d.Conversations(), nil
}

// Conversations returns a snapshot of the current set in directory order.
func (d *Directory) Conversations() []chat.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]chat.Conversation, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, *d.byID[id])
	}
	return out
}

// Get returns one conversation by id.
func (d *Directory) Get(conversationID string) (chat.Conversation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.byID[conversationID]
	if !ok {
		return chat.Conversation{}, false
	}
	return *c, true
}

// ApplyLastMessage updates a conversation's preview from a newly arrived or
// newly sent message. Structured payloads are previewed by their embedded
// label. Unknown conversation ids are ignored (the next Refresh picks the
// conversation up).
func (d *Directory) ApplyLastMessage(conversationID string, msg chat.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.byID[conversationID]
	if !ok {
		return
	}
	c.LastMessage = &chat.LastMessage{
		Text:      chat.DisplayText(msg.Text),
		Timestamp: msg.Timestamp,
	}
}

// Counterpart resolves who the viewer is talking to: the seller identity if
// the viewer is the buyer, the buyer identity otherwise. This single rule is
// used everywhere a "who am I talking to" decision is needed.
func Counterpart(c chat.Conversation, userID string) chat.Identity {
	if userID == c.BuyerID {
		return chat.Identity{ID: c.SellerID, Name: c.SellerName}
	}
	return chat.Identity{ID: c.BuyerID, Name: c.BuyerName}
}

// Filter returns the conversations whose counterpart name or last-message
// text contains the query, case-insensitively. An empty query returns the
// full set. The underlying set is not mutated.
func (d *Directory) Filter(query, userID string) []chat.Conversation {
	all := d.Conversations()
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return all
	}

	out := make([]chat.Conversation, 0, len(all))
	for _, c := range all {
		name := strings.ToLower(Counterpart(c, userID).Name)
		preview := ""
		if c.LastMessage != nil {
			preview = strings.ToLower(c.LastMessage.Text)
		}
		if strings.Contains(name, query) || strings.Contains(preview, query) {
			out = append(out, c)
		}
	}
	return out
}
