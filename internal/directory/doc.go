// Package directory maintains the viewer's conversation list: counterpart
// resolution (buyer vs. seller perspective), last-message previews, and
// search filtering. Conversation lifecycle is owned by the backend; the
// directory only mirrors it.
package directory
