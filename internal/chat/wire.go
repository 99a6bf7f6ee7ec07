// ABOUTME: Wire representations used by the REST endpoints and the stream.
// ABOUTME: Server field names are snake_case; mapping to the model happens here.

package chat

import "time"

// WireMessage is a chat message as the backend serializes it, both in REST
// responses and in WebSocket text frames.
type WireMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message converts the wire form to the internal model.
func (w WireMessage) Message() Message {
	return Message{
		ID:             w.ID,
		ConversationID: w.ConversationID,
		SenderID:       w.SenderID,
		Text:           w.Content,
		Timestamp:      w.CreatedAt,
	}
}

// WireFromMessage converts a model message back to its wire form.
func WireFromMessage(m Message) WireMessage {
	return WireMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Text,
		CreatedAt:      m.Timestamp,
	}
}

// WireLastMessage is the embedded last-message preview in a conversation.
type WireLastMessage struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// WireConversation is a conversation as the directory endpoint serializes it.
type WireConversation struct {
	ID          string           `json:"id"`
	ListingID   string           `json:"listing_id"`
	ListingName string           `json:"listing_name"`
	BuyerID     string           `json:"buyer_id"`
	BuyerName   string           `json:"buyer_name"`
	SellerID    string           `json:"seller_id"`
	SellerName  string           `json:"seller_name"`
	LastMessage *WireLastMessage `json:"last_message,omitempty"`
}

// Conversation converts the wire form to the internal model.
func (w WireConversation) Conversation() Conversation {
	c := Conversation{
		ID:          w.ID,
		ListingID:   w.ListingID,
		ListingName: w.ListingName,
		BuyerID:     w.BuyerID,
		BuyerName:   w.BuyerName,
		SellerID:    w.SellerID,
		SellerName:  w.SellerName,
	}
	if w.LastMessage != nil {
		c.LastMessage = &LastMessage{
			Text:      w.LastMessage.Text,
			Timestamp: w.LastMessage.Timestamp,
		}
	}
	return c
}
