// Package api is the REST client for the chat backend: conversation
// directory, message history, durable sends, and conversation creation.
// The streaming connection lives in internal/connection, not here.
package api
