// Package chat defines the data model shared across the engine: conversations,
// messages, their wire representations, and the structured payload envelope
// that scheduling messages embed in the text field.
package chat
