// ABOUTME: Package doc for identity.

// Package identity resolves the viewing user's opaque id. Callers can hand
// the engine an explicit id or an identity-provider access token; in the
// token case only the subject claim is read, without signature verification,
// since authentication is the identity provider's concern.
package identity
