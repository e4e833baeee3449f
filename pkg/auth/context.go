// Package auth authenticates WebSocket clients.
//
// Authentication is optional. When enabled, a token taken from the upgrade
// request is offered to a chain of authenticators (API keys, then JWTs);
// the first that accepts it names the user.
package auth

import "context"

// AuthTypeAnonymous marks users admitted without credentials.
const AuthTypeAnonymous = "anonymous"

// UserInfo identifies an authenticated user.
type UserInfo struct {
	UserID   string         `json:"user_id"`
	Email    string         `json:"email,omitempty"`
	Roles    []string       `json:"roles,omitempty"`
	Claims   map[string]any `json:"claims,omitempty"`
	AuthType string         `json:"auth_type"` // "apikey", "jwt", "anonymous"
}

// Anonymous reports whether the user was admitted without credentials.
func (u *UserInfo) Anonymous() bool {
	return u == nil || u.AuthType == AuthTypeAnonymous
}

// HasRole checks if the user has a specific role.
func (u *UserInfo) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authenticator validates the token carried by ctx.
type Authenticator interface {
	Authenticate(ctx context.Context) (*UserInfo, error)
}

// contextKey is a private type for context keys.
type contextKey int

const (
	tokenContextKey contextKey = iota
	userContextKey
)

// WithToken adds a token to the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// GetToken retrieves a token from the context.
func GetToken(ctx context.Context) string {
	if token, ok := ctx.Value(tokenContextKey).(string); ok {
		return token
	}
	return ""
}

// WithUser adds user information to the context.
func WithUser(ctx context.Context, user *UserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUser retrieves user information from the context.
func GetUser(ctx context.Context) *UserInfo {
	if u, ok := ctx.Value(userContextKey).(*UserInfo); ok {
		return u
	}
	return nil
}
