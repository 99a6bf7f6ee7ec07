// ABOUTME: Tests for the outbound message composer.
// ABOUTME: Trim validation, in-flight guard, failure behavior, scheduled dates.

package composer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepost-app/tradepost-chat/internal/chat"
)

// fakeSender records sends and optionally blocks until released.
type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	err     error
	release chan struct{}
}

func (f *fakeSender) SendMessage(ctx context.Context, conversationID, senderID, content string) (chat.Message, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.sent = append(f.sent, content)
	f.mu.Unlock()
	if f.err != nil {
		return chat.Message{}, f.err
	}
	return chat.Message{
		ID:             "m-canonical",
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           content,
		Timestamp:      time.Now().UTC(),
	}, nil
}

func (f *fakeSender) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// fakeApplier records preview updates.
type fakeApplier struct {
	mu      sync.Mutex
	applied []chat.Message
}

func (f *fakeApplier) ApplyLastMessage(conversationID string, msg chat.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, msg)
}

func (f *fakeApplier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

func TestComposer_SendsTrimmedText(t *testing.T) {
	sender := &fakeSender{}
	c := New(sender, nil, nil)

	msg, err := c.SendText(t.Context(), "c1", "u1", "  hello there  ")
	require.NoError(t, err)
	assert.Equal(t, "m-canonical", msg.ID)
	assert.Equal(t, []string{"hello there"}, sender.sentTexts())
}

func TestComposer_RejectsEmptyText(t *testing.T) {
	sender := &fakeSender{}
	c := New(sender, nil, nil)

	_, err := c.SendText(t.Context(), "c1", "u1", "   \n\t ")
	require.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, sender.sentTexts(), "nothing reaches the backend")
}

func TestComposer_RejectsConcurrentSendSameConversation(t *testing.T) {
	sender := &fakeSender{release: make(chan struct{})}
	c := New(sender, nil, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := c.SendText(context.Background(), "c1", "u1", "first")
		firstDone <- err
	}()

	// Wait until the first send holds the slot.
	require.Eventually(t, func() bool {
		_, err := c.SendText(context.Background(), "c1", "u1", "second")
		return errors.Is(err, ErrSendInFlight)
	}, time.Second, 5*time.Millisecond)

	close(sender.release)
	require.NoError(t, <-firstDone)

	// Slot is free again after completion.
	_, err := c.SendText(t.Context(), "c1", "u1", "third")
	require.NoError(t, err)
}

func TestComposer_AllowsConcurrentSendsAcrossConversations(t *testing.T) {
	sender := &fakeSender{release: make(chan struct{})}
	c := New(sender, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.SendText(context.Background(), "c1", "u1", "busy conversation")
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, err := c.SendText(context.Background(), "c1", "u1", "blocked")
		return errors.Is(err, ErrSendInFlight)
	}, time.Second, 5*time.Millisecond)

	// c2 is unaffected by c1's pending send. Release first so the fake's
	// blocking gate does not stall this send too.
	close(sender.release)
	_, err := c.SendText(t.Context(), "c2", "u1", "other conversation")
	require.NoError(t, err)
	require.NoError(t, <-done)
}

func TestComposer_FailedSendAppliesNothing(t *testing.T) {
	sender := &fakeSender{err: errors.New("backend rejected")}
	applier := &fakeApplier{}
	c := New(sender, applier, nil)

	deliveries := 0
	c.OnDelivered(func(chat.Message) { deliveries++ })

	_, err := c.SendText(t.Context(), "c1", "u1", "hello")
	require.Error(t, err)
	assert.Equal(t, 0, applier.count(), "failed send must not touch the preview")
	assert.Equal(t, 0, deliveries)
}

func TestComposer_SuccessfulSendAppliesPreviewAndDelivers(t *testing.T) {
	sender := &fakeSender{}
	applier := &fakeApplier{}
	c := New(sender, applier, nil)

	var delivered chat.Message
	c.OnDelivered(func(m chat.Message) { delivered = m })

	msg, err := c.SendText(t.Context(), "c1", "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, applier.count())
	assert.Equal(t, msg.ID, delivered.ID, "delivered hook gets the canonical copy")
}

func TestComposer_SendScheduledDateEncodesPayload(t *testing.T) {
	sender := &fakeSender{}
	c := New(sender, nil, nil)

	at := time.Date(2026, 9, 5, 14, 0, 0, 0, time.Local)
	msg, err := c.SendScheduledDate(t.Context(), "c1", "u1", at)
	require.NoError(t, err)

	p, ok := chat.DecodePayload(msg.Text)
	require.True(t, ok, "the stored text must be a structured payload")
	assert.Equal(t, chat.PayloadTypeDate, p.Type)
	assert.True(t, p.Timestamp.Equal(at))
}
