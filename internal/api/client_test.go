// ABOUTME: Tests for the REST client against httptest backends.
// ABOUTME: Covers the success envelope, failure signaling, and request shapes.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ConversationsDecodeEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/conversation/user-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": [{
				"id": "c1",
				"listing_id": "l1",
				"listing_name": "Road bike",
				"buyer_id": "user-1",
				"buyer_name": "Ada",
				"seller_id": "user-2",
				"seller_name": "Grace",
				"last_message": {"text": "still available?", "timestamp": "2026-08-30T10:00:00Z"}
			}]
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	conversations, err := client.Conversations(t.Context(), "user-1")
	require.NoError(t, err)
	require.Len(t, conversations, 1)

	c := conversations[0]
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "Grace", c.SellerName)
	require.NotNil(t, c.LastMessage)
	assert.Equal(t, "still available?", c.LastMessage.Text)
}

func TestClient_SuccessFalseIsErrorEvenWith200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success": false, "message": "conversation not found"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.History(t.Context(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conversation not found")
}

func TestClient_MissingSuccessFlagIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.Conversations(t.Context(), "user-1")
	require.Error(t, err)
}

func TestClient_HistoryKeepsServerOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": [
			{"id": "m1", "conversation_id": "c1", "sender_id": "a", "content": "first", "created_at": "2026-08-30T10:00:00Z"},
			{"id": "m2", "conversation_id": "c1", "sender_id": "b", "content": "second", "created_at": "2026-08-30T10:05:00Z"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	messages, err := client.History(t.Context(), "c1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, "m2", messages[1].ID)
}

func TestClient_SendMessagePostsWireFields(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success": true, "data": {
			"id": "m-server", "conversation_id": "c1", "sender_id": "u1",
			"content": "hello", "created_at": "2026-08-30T12:00:00Z"
		}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	msg, err := client.SendMessage(t.Context(), "c1", "u1", "hello")
	require.NoError(t, err)

	assert.Equal(t, "c1", got["conversation_id"])
	assert.Equal(t, "u1", got["sender_id"])
	assert.Equal(t, "hello", got["content"])

	assert.Equal(t, "m-server", msg.ID, "client should adopt the authoritative id")
	assert.True(t, msg.Timestamp.Equal(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)))
}

func TestClient_CreateConversationReturnsTopLevelID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "id": "c-new"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	id, err := client.CreateConversation(t.Context(), "l1", "seller", "buyer")
	require.NoError(t, err)
	assert.Equal(t, "c-new", id)
}

func TestClient_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Write([]byte(`{"success": true, "data": []}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, WithToken("tok-1"))
	_, err := client.Conversations(t.Context(), "u1")
	require.NoError(t, err)
}

func TestClient_NonJSONBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.History(t.Context(), "c1")
	require.Error(t, err)
}
