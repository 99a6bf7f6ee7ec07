// ABOUTME: Merges fetched history with live-streamed messages for one conversation.
// ABOUTME: Keyed replace-or-append dedup plus derived calendar-day dividers.

package timeline

import (
	"sync"
	"time"

	"github.com/tradepost-app/tradepost-chat/internal/chat"
)

// DayDivider is a derived display marker inserted before the first message
// of each calendar day. It is never sent over the wire.
type DayDivider struct {
	ID    string
	Label string
}

// Entry is one element of the display sequence: either a message or a day
// divider, never both.
type Entry struct {
	Message *chat.Message
	Divider *DayDivider
}

// IsDivider reports whether the entry is a day divider.
func (e Entry) IsDivider() bool {
	return e.Divider != nil
}

// Timeline owns the merged message sequence for the currently open
// conversation. History replaces the working set wholesale; live messages
// append in arrival order, except that a message with a known id replaces
// the existing entry in place (reconciling optimistic copies with the
// authoritative one). The transport delivers in send order per connection,
// so no resequencing by timestamp is done.
type Timeline struct {
	conversationID string

	mu    sync.Mutex
	order []string
	byID  map[string]chat.Message

	// now is swapped in divider tests.
	now func() time.Time
}

// New creates an empty timeline for one conversation.
func New(conversationID string) *Timeline {
	return &Timeline{
		conversationID: conversationID,
		byID:           make(map[string]chat.Message),
		now:            time.Now,
	}
}

// ConversationID returns the conversation this timeline belongs to.
func (t *Timeline) ConversationID() string {
	return t.conversationID
}

// ReplaceHistory swaps in the server-fetched history, discarding the working
// set. The history service returns messages ascending by time and that order
// is kept.
func (t *Timeline) ReplaceHistory(msgs []chat.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.order = make([]string, 0, len(msgs))
	t.byID = make(map[string]chat.Message, len(msgs))
	for _, m := range msgs {
		if _, seen := t.byID[m.ID]; !seen {
			t.order = append(t.order, m.ID)
		}
		t.byID[m.ID] = m
	}
}

// Ingest merges one live message. A message whose id is already known
// replaces the earlier entry in place; otherwise it appends to the end.
func (t *Timeline) Ingest(msg chat.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, seen := t.byID[msg.ID]; !seen {
		t.order = append(t.order, msg.ID)
	}
	t.byID[msg.ID] = msg
}

// Len returns the number of messages in the working set.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// View walks the working set and returns the flattened display sequence,
// inserting a divider before the first message of each new calendar day.
// It recomputes on every call; O(n) is fine at chat-history scale.
func (t *Timeline) View() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.order)+4)
	lastDay := ""
	for _, id := range t.order {
		msg := t.byID[id]
		day := dayKey(msg.Timestamp)
		if day != lastDay {
			entries = append(entries, Entry{Divider: &DayDivider{
				ID:    "day-" + day,
				Label: dividerLabel(msg.Timestamp, now),
			}})
			lastDay = day
		}
		m := msg
		entries = append(entries, Entry{Message: &m})
	}
	return entries
}
