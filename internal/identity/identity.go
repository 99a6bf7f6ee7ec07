// ABOUTME: Resolves the viewing user's opaque id from identity-provider input.
// ABOUTME: Either an explicit id or the subject claim of an access token.

package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// FromToken extracts the opaque user id from an identity-provider access
// token. The token is not verified here; the identity provider owns
// authentication and the engine only needs the subject claim as an input.
func FromToken(raw string) (string, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parsing access token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("access token has no subject claim")
	}
	return sub, nil
}

// Resolve returns the viewer's user id: the explicit id when given,
// otherwise the token's subject claim.
func Resolve(explicitID, token string) (string, error) {
	if explicitID != "" {
		return explicitID, nil
	}
	if token == "" {
		return "", fmt.Errorf("no user id or access token provided")
	}
	return FromToken(token)
}
