// Package composer validates and submits outbound chat messages, both plain
// text and structured scheduling proposals. Sends are never retried
// automatically; failures propagate to the caller.
package composer
