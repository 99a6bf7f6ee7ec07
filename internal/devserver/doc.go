// Package devserver is a local stand-in for the external chat backend,
// implementing the published REST and streaming contract so the engine can
// be developed and integration-tested without the production services. It
// is not part of the core engine.
package devserver
