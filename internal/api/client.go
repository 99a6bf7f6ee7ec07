// ABOUTME: REST client for the marketplace chat backend.
// ABOUTME: Conversation directory, history, send, and create-conversation calls.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tradepost-app/tradepost-chat/internal/chat"
)

// Client talks to the backend's chat REST endpoints. All endpoints use the
// {success, data} envelope; anything without success:true is a failure
// regardless of HTTP status.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets a bearer token attached to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient creates a client for the given REST base URL. Pass nil logger
// for the default.
func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{},
		logger:  logger.With("component", "api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured REST base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the common response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Conversations fetches the conversation directory for a user.
func (c *Client) Conversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	var wire []chat.WireConversation
	if err := c.get(ctx, "/api/chat/conversation/"+userID, &wire); err != nil {
		return nil, fmt.Errorf("fetching conversations: %w", err)
	}
	conversations := make([]chat.Conversation, len(wire))
	for i, w := range wire {
		conversations[i] = w.Conversation()
	}
	return conversations, nil
}

// History fetches the ordered message history for a conversation. The
// backend returns messages ascending by time; the client preserves that
// order.
func (c *Client) History(ctx context.Context, conversationID string) ([]chat.Message, error) {
	var wire []chat.WireMessage
	if err := c.get(ctx, "/api/chat/messages/"+conversationID, &wire); err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	messages := make([]chat.Message, len(wire))
	for i, w := range wire {
		messages[i] = w.Message()
	}
	return messages, nil
}

// sendMessageRequest is the body for POST /api/chat/messages.
type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
}

// SendMessage durably persists a message and returns the canonical stored
// copy with its authoritative id and timestamp.
func (c *Client) SendMessage(ctx context.Context, conversationID, senderID, content string) (chat.Message, error) {
	body := sendMessageRequest{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	var wire chat.WireMessage
	if err := c.post(ctx, "/api/chat/messages", body, &wire); err != nil {
		return chat.Message{}, fmt.Errorf("sending message: %w", err)
	}
	return wire.Message(), nil
}

// createConversationRequest is the body for POST /api/chat/conversation.
type createConversationRequest struct {
	ListingID string `json:"listing_id"`
	SellerID  string `json:"seller_id"`
	BuyerID   string `json:"buyer_id"`
}

// createConversationResponse carries the id at the top level, not in data.
type createConversationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// CreateConversation creates (or returns) the conversation tying a buyer and
// seller to a listing, and returns its id.
func (c *Client) CreateConversation(ctx context.Context, listingID, sellerID, buyerID string) (string, error) {
	body := createConversationRequest{
		ListingID: listingID,
		SellerID:  sellerID,
		BuyerID:   buyerID,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPost, "/api/chat/conversation", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}
	var resp createConversationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("creating conversation: decoding response: %w", err)
	}
	if !resp.Success {
		return "", fmt.Errorf("creating conversation: %s", backendMessage(resp.Message))
	}
	return resp.ID, nil
}

// get performs a GET and decodes the envelope's data field into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decodeEnvelope(raw, out)
}

// post performs a POST with a JSON body and decodes the envelope's data
// field into out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	return decodeEnvelope(raw, out)
}

// do executes the request and returns the raw response body. HTTP-level
// failures are wrapped; envelope interpretation is left to the caller so the
// success flag is always what decides.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("request complete",
		"method", method,
		"path", path,
		"status", resp.StatusCode)

	return raw, nil
}

// decodeEnvelope checks the success flag and unmarshals data into out.
func decodeEnvelope(raw []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("backend error: %s", backendMessage(env.Message))
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

func backendMessage(msg string) string {
	if msg == "" {
		return "request rejected"
	}
	return msg
}
