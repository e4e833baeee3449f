package auth

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned when no authenticator accepts the request
// and anonymous access is disabled.
var ErrUnauthenticated = errors.New("authentication failed")

// ChainedAuthenticator tries multiple authenticators in order.
type ChainedAuthenticator struct {
	authenticators []Authenticator
	allowAnonymous bool
}

// ChainedAuthConfig configures the chained authenticator.
type ChainedAuthConfig struct {
	AllowAnonymous bool
}

// NewChainedAuthenticator creates a new chained authenticator.
func NewChainedAuthenticator(cfg ChainedAuthConfig, authenticators ...Authenticator) *ChainedAuthenticator {
	return &ChainedAuthenticator{
		authenticators: authenticators,
		allowAnonymous: cfg.AllowAnonymous,
	}
}

// Authenticate tries each authenticator in order. With anonymous access
// enabled, a request without a token is admitted as anonymous, but a
// presented token that every authenticator rejects is still an error.
func (c *ChainedAuthenticator) Authenticate(ctx context.Context) (*UserInfo, error) {
	if GetToken(ctx) == "" {
		if c.allowAnonymous {
			return &UserInfo{UserID: AuthTypeAnonymous, AuthType: AuthTypeAnonymous}, nil
		}
		return nil, ErrUnauthenticated
	}

	lastErr := ErrUnauthenticated
	for _, a := range c.authenticators {
		user, err := a.Authenticate(ctx)
		if err == nil && user != nil {
			return user, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return nil, lastErr
}

// Verify interface compliance.
var _ Authenticator = (*ChainedAuthenticator)(nil)
