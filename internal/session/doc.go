// Package session is the engine facade. It ties the directory, composer,
// timeline, and connection manager together and enforces the single-open-
// conversation rule: opening a conversation tears the previous stream down
// completely before the next one is dialed, and results of in-flight
// history fetches are discarded when the conversation has changed.
package session
