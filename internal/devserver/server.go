// ABOUTME: Stub chat backend implementing the production REST and streaming contract.
// ABOUTME: gin routes plus a WebSocket endpoint with ping/pong keepalive.

package devserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// Server emulates the external chat backend for development and integration
// tests: the conversation directory, history, send, and create endpoints,
// and the per-conversation streaming endpoint.
type Server struct {
	store  *Store
	hub    *Hub
	logger *slog.Logger
	router *gin.Engine
}

// NewServer wires the routes. Pass nil logger for the default.
func NewServer(store *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		store:  store,
		hub:    NewHub(logger),
		logger: logger.With("component", "devserver"),
		router: gin.New(),
	}
	s.router.Use(gin.Recovery())

	s.router.GET("/api/chat/conversation/:userID", s.listConversations)
	s.router.POST("/api/chat/conversation", s.createConversation)
	s.router.GET("/api/chat/messages/:conversationID", s.listMessages)
	s.router.POST("/api/chat/messages", s.sendMessage)
	s.router.GET("/ws/chat/:conversationID/:userID", s.stream)

	return s
}

// Handler returns the HTTP handler, for http.Server or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store exposes the backing store for seeding.
func (s *Server) Store() *Store {
	return s.store
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

func (s *Server) listConversations(c *gin.Context) {
	userID := c.Param("userID")
	conversations, err := s.store.ConversationsForUser(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("list conversations failed", "error", err)
		fail(c, http.StatusInternalServerError, "cannot list conversations")
		return
	}
	ok(c, conversations)
}

func (s *Server) createConversation(c *gin.Context) {
	var req struct {
		ListingID string `json:"listing_id"`
		SellerID  string `json:"seller_id"`
		BuyerID   string `json:"buyer_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.ListingID == "" || req.SellerID == "" || req.BuyerID == "" {
		fail(c, http.StatusBadRequest, "listing_id, seller_id and buyer_id are required")
		return
	}
	if req.SellerID == req.BuyerID {
		fail(c, http.StatusBadRequest, "cannot start chat with yourself")
		return
	}

	id, err := s.store.CreateConversation(c.Request.Context(), req.ListingID, req.SellerID, req.BuyerID)
	if err != nil {
		s.logger.Error("create conversation failed", "error", err)
		fail(c, http.StatusInternalServerError, "cannot create conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

func (s *Server) listMessages(c *gin.Context) {
	conversationID := c.Param("conversationID")
	_, _, exists, err := s.store.ConversationExists(c.Request.Context(), conversationID)
	if err != nil {
		s.logger.Error("load conversation failed", "error", err)
		fail(c, http.StatusInternalServerError, "cannot load conversation")
		return
	}
	if !exists {
		fail(c, http.StatusNotFound, "conversation not found")
		return
	}

	messages, err := s.store.Messages(c.Request.Context(), conversationID)
	if err != nil {
		s.logger.Error("list messages failed", "error", err)
		fail(c, http.StatusInternalServerError, "cannot list messages")
		return
	}
	ok(c, messages)
}

func (s *Server) sendMessage(c *gin.Context) {
	var req struct {
		ConversationID string `json:"conversation_id"`
		SenderID       string `json:"sender_id"`
		Content        string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		fail(c, http.StatusBadRequest, "content is required")
		return
	}

	buyerID, sellerID, exists, err := s.store.ConversationExists(c.Request.Context(), req.ConversationID)
	if err != nil {
		s.logger.Error("load conversation failed", "error", err)
		fail(c, http.StatusInternalServerError, "cannot load conversation")
		return
	}
	if !exists {
		fail(c, http.StatusNotFound, "conversation not found")
		return
	}
	if req.SenderID != buyerID && req.SenderID != sellerID {
		fail(c, http.StatusForbidden, "not a chat participant")
		return
	}

	msg, err := s.store.SaveMessage(c.Request.Context(), req.ConversationID, req.SenderID, req.Content)
	if err != nil {
		s.logger.Error("save message failed", "error", err)
		fail(c, http.StatusInternalServerError, "cannot save message")
		return
	}

	s.hub.Publish(msg)
	ok(c, msg)
}

// stream is the WebSocket endpoint. It forwards every message stored for
// the conversation and answers {"type":"ping"} probes with {"type":"pong"}.
func (s *Server) stream(c *gin.Context) {
	conversationID := c.Param("conversationID")

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub, unsubscribe := s.hub.Subscribe(conversationID)
	defer unsubscribe()

	// Writer: forward stored messages to this stream.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, okCh := <-sub:
				if !okCh {
					return
				}
				data, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
					return
				}
			}
		}
	}()

	// Reader: keepalive handling; the stub accepts no chat frames over the
	// socket, sends go through REST.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var ctl struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &ctl); err != nil {
			continue
		}
		if ctl.Type == "ping" {
			pong, _ := json.Marshal(map[string]string{"type": "pong"})
			if err := conn.Write(ctx, websocket.MessageText, pong); err != nil {
				break
			}
		}
	}

	conn.Close(websocket.StatusNormalClosure, "")
}
