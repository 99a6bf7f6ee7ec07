// ABOUTME: Structured payloads carried inside the message text field.
// ABOUTME: Scheduling ("date") messages are a JSON envelope, sniffed then parsed.

package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PayloadTypeDate marks a scheduling proposal embedded in a message.
const PayloadTypeDate = "date"

// Payload is the envelope for structured message content. The wire format
// has no message-kind field, so the envelope travels inside the ordinary
// text channel and receivers sniff for it.
type Payload struct {
	Text      string    `json:"text"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// EncodeDatePayload builds the text-field encoding of a proposed date. The
// human-readable label is rendered in the sender's local time; the timestamp
// keeps the machine-readable instant.
func EncodeDatePayload(at time.Time) (string, error) {
	p := Payload{
		Text:      "📅 " + at.Local().Format("Mon, Jan 2 at 3:04 PM"),
		Type:      PayloadTypeDate,
		Timestamp: at,
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding date payload: %w", err)
	}
	return string(data), nil
}

// DecodePayload sniffs a message text for a structured payload. It returns
// the payload and true only when the text is a JSON envelope with a known
// type; plain text (including plain JSON without a type) passes through
// with ok=false.
func DecodePayload(text string) (Payload, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return Payload{}, false
	}
	var p Payload
	if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
		return Payload{}, false
	}
	if p.Type != PayloadTypeDate {
		return Payload{}, false
	}
	return p, true
}

// DisplayText returns the text to render for a message: the embedded label
// for structured payloads, the raw text otherwise.
func DisplayText(text string) string {
	if p, ok := DecodePayload(text); ok {
		return p.Text
	}
	return text
}
