package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyConfig holds API key configuration.
type APIKeyConfig struct {
	Keys []APIKey
}

// APIKey represents an API key entry. Exactly one of Key or Hash is set.
type APIKey struct {
	Key   string   // Plain key value
	Hash  string   // bcrypt hash of the key value
	Name  string   // Display name for the key
	Roles []string // Roles assigned to this key
}

// ErrInvalidAPIKey is returned when no configured key matches.
var ErrInvalidAPIKey = errors.New("invalid API key")

// APIKeyAuthenticator authenticates using API keys.
type APIKeyAuthenticator struct {
	plain  map[string]*APIKey
	hashed []*APIKey
}

// NewAPIKeyAuthenticator creates a new API key authenticator.
func NewAPIKeyAuthenticator(cfg APIKeyConfig) *APIKeyAuthenticator {
	a := &APIKeyAuthenticator{plain: make(map[string]*APIKey)}
	for i := range cfg.Keys {
		key := &cfg.Keys[i]
		if key.Hash != "" {
			a.hashed = append(a.hashed, key)
		} else if key.Key != "" {
			a.plain[key.Key] = key
		}
	}
	return a
}

// HashAPIKey returns the bcrypt hash to store for key.
func HashAPIKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing API key: %w", err)
	}
	return string(h), nil
}

// Authenticate validates the API key and returns user info.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context) (*UserInfo, error) {
	token := GetToken(ctx)
	if token == "" {
		return nil, fmt.Errorf("no API key found in context")
	}

	matched := a.match(token)
	if matched == nil {
		return nil, ErrInvalidAPIKey
	}

	return &UserInfo{
		UserID:   "apikey:" + matched.Name,
		Claims:   make(map[string]any),
		Roles:    matched.Roles,
		AuthType: "apikey",
	}, nil
}

func (a *APIKeyAuthenticator) match(token string) *APIKey {
	// Constant-time comparison against every plain key.
	var matched *APIKey
	for k, v := range a.plain {
		if subtle.ConstantTimeCompare([]byte(k), []byte(token)) == 1 {
			matched = v
		}
	}
	if matched != nil {
		return matched
	}
	for _, k := range a.hashed {
		if bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(token)) == nil {
			return k
		}
	}
	return nil
}

// Verify interface compliance.
var _ Authenticator = (*APIKeyAuthenticator)(nil)
