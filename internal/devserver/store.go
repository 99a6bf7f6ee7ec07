// ABOUTME: SQLite-backed storage for the stub chat backend using modernc.org/sqlite.
// ABOUTME: Conversations and messages with automatic schema creation.

package devserver

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tradepost-app/tradepost-chat/internal/chat"
)

// Store persists the stub backend's conversations and messages.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) a SQLite database at the given path. Use
// ":memory:" for tests.
func NewStore(path string) (*Store, error) {
	logger := slog.Default().With("component", "devstore")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("stub store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			listing_id TEXT NOT NULL,
			listing_name TEXT NOT NULL,
			buyer_id TEXT NOT NULL,
			buyer_name TEXT NOT NULL,
			seller_id TEXT NOT NULL,
			seller_name TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_parties
			ON conversations(listing_id, buyer_id, seller_id);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// CreateConversation returns the id of the conversation for the given
// listing and parties, creating it if needed. Display names default to the
// ids; SeedConversation sets real names.
func (s *Store) CreateConversation(ctx context.Context, listingID, sellerID, buyerID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE listing_id = ? AND buyer_id = ? AND seller_id = ?`,
		listingID, buyerID, sellerID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("looking up conversation: %w", err)
	}

	id = uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, listing_id, listing_name, buyer_id, buyer_name, seller_id, seller_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, listingID, listingID, buyerID, buyerID, sellerID, sellerID, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}
	s.logger.Debug("conversation created", "conversation_id", id)
	return id, nil
}

// SeedConversation inserts a fully described conversation. Used by tests and
// the stub binary's demo seeding.
func (s *Store) SeedConversation(ctx context.Context, c chat.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, listing_id, listing_name, buyer_id, buyer_name, seller_id, seller_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ListingID, c.ListingName, c.BuyerID, c.BuyerName, c.SellerID, c.SellerName, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("seeding conversation: %w", err)
	}
	return nil
}

// ConversationsForUser lists conversations where the user is buyer or
// seller, each with its last-message preview.
func (s *Store) ConversationsForUser(ctx context.Context, userID string) ([]chat.WireConversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, listing_id, listing_name, buyer_id, buyer_name, seller_id, seller_name
		 FROM conversations
		 WHERE buyer_id = ? OR seller_id = ?
		 ORDER BY created_at`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []chat.WireConversation
	for rows.Next() {
		var c chat.WireConversation
		if err := rows.Scan(&c.ID, &c.ListingID, &c.ListingName,
			&c.BuyerID, &c.BuyerName, &c.SellerID, &c.SellerName); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		last, err := s.lastMessage(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].LastMessage = last
	}
	return out, nil
}

// lastMessage returns the newest message preview for a conversation, or nil.
func (s *Store) lastMessage(ctx context.Context, conversationID string) (*chat.WireLastMessage, error) {
	var last chat.WireLastMessage
	err := s.db.QueryRowContext(ctx,
		`SELECT content, created_at FROM messages
		 WHERE conversation_id = ?
		 ORDER BY created_at DESC LIMIT 1`,
		conversationID).Scan(&last.Text, &last.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading last message: %w", err)
	}
	return &last, nil
}

// ConversationExists reports whether the id is known and returns the
// participant ids.
func (s *Store) ConversationExists(ctx context.Context, conversationID string) (buyerID, sellerID string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT buyer_id, seller_id FROM conversations WHERE id = ?`,
		conversationID).Scan(&buyerID, &sellerID)
	if err == sql.ErrNoRows {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("looking up conversation: %w", err)
	}
	return buyerID, sellerID, true, nil
}

// Messages returns a conversation's history ascending by time.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]chat.WireMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, sender_id, content, created_at
		 FROM messages
		 WHERE conversation_id = ?
		 ORDER BY created_at`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []chat.WireMessage
	for rows.Next() {
		var m chat.WireMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveMessage stores a new message and returns the canonical copy with its
// assigned id and timestamp.
func (s *Store) SaveMessage(ctx context.Context, conversationID, senderID, content string) (chat.WireMessage, error) {
	m := chat.WireMessage{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.SenderID, m.Content, m.CreatedAt)
	if err != nil {
		return chat.WireMessage{}, fmt.Errorf("saving message: %w", err)
	}
	return m, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
