// ABOUTME: Core data model for the Tradepost chat engine.
// ABOUTME: Conversations, messages, and identities shared by every layer.

package chat

import "time"

// Identity is a user as seen by the chat engine: an opaque id from the
// identity provider plus a display name.
type Identity struct {
	ID   string
	Name string
}

// LastMessage is the denormalized preview shown in conversation lists.
type LastMessage struct {
	Text      string
	Timestamp time.Time
}

// Conversation ties a buyer and a seller to a listing. Exactly one of
// BuyerID/SellerID equals the viewing user; the counterpart is whichever
// of the two is not the viewer.
type Conversation struct {
	ID          string
	ListingID   string
	ListingName string
	BuyerID     string
	BuyerName   string
	SellerID    string
	SellerName  string
	LastMessage *LastMessage
}

// Message is a single chat message. Text carries either plain content or a
// JSON-encoded structured payload (see payload.go); the wire format has no
// per-kind field, the distinction lives entirely inside the text.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Text           string
	Timestamp      time.Time
}
