// ABOUTME: Streaming URL construction from the REST base URL.
// ABOUTME: http maps to ws and https to wss; path carries conversation and user ids.

package connection

import (
	"fmt"
	"net/url"
)

// StreamURL builds the WebSocket endpoint for a conversation from the REST
// base URL. The streaming scheme mirrors the API scheme.
func StreamURL(baseURL, conversationID, userID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}

	u.Path = "/ws/chat/" + conversationID + "/" + userID
	u.RawQuery = ""
	return u.String(), nil
}
