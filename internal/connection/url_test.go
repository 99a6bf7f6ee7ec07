// ABOUTME: Tests for streaming URL construction.
// ABOUTME: Scheme mapping and path layout.

package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamURL_HTTPBecomesWS(t *testing.T) {
	u, err := StreamURL("http://localhost:8080", "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws/chat/c1/u1", u)
}

func TestStreamURL_HTTPSBecomesWSS(t *testing.T) {
	u, err := StreamURL("https://api.example.com", "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "wss://api.example.com/ws/chat/c1/u1", u)
}

func TestStreamURL_DropsBaseQueryAndPath(t *testing.T) {
	u, err := StreamURL("http://localhost:8080/api?env=dev", "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws/chat/c1/u1", u)
}

func TestStreamURL_RejectsUnknownScheme(t *testing.T) {
	_, err := StreamURL("ftp://example.com", "c1", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}
