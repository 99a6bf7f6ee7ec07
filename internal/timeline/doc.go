// Package timeline merges server-fetched history with live-streamed messages
// into one deduplicated, chronologically grouped view for display.
package timeline
