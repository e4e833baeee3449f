package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Issuer is the expected issuer claim.
	Issuer string

	// SigningKey is the HMAC key used to verify signatures.
	SigningKey []byte

	// RoleClaimPath is the dot-separated path to roles, e.g. "realm_access.roles".
	RoleClaimPath string

	// RolePrefix filters roles to those with this prefix.
	RolePrefix string
}

// JWTAuthenticator validates HMAC-signed JWTs.
type JWTAuthenticator struct {
	cfg       JWTConfig
	extractor *ClaimsExtractor
}

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(cfg JWTConfig) (*JWTAuthenticator, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("jwt issuer is required")
	}
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("jwt signing key is required")
	}

	return &JWTAuthenticator{
		cfg: cfg,
		extractor: &ClaimsExtractor{
			RoleClaimPath:    cfg.RoleClaimPath,
			RolePrefix:       cfg.RolePrefix,
			EmailClaimPath:   "email",
			SubjectClaimPath: "sub",
		},
	}, nil
}

// Authenticate validates the JWT token and returns user info.
func (a *JWTAuthenticator) Authenticate(ctx context.Context) (*UserInfo, error) {
	token := GetToken(ctx)
	if token == "" {
		return nil, fmt.Errorf("no token found in context")
	}

	claims, err := a.parseAndValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	user := a.extractor.Extract(claims)
	if user.UserID == "" {
		return nil, fmt.Errorf("missing sub claim")
	}
	user.AuthType = "jwt"
	return user, nil
}

// parseAndValidateToken verifies signature, expiry and issuer.
func (a *JWTAuthenticator) parseAndValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.cfg.SigningKey, nil
	}, jwt.WithIssuer(a.cfg.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}

// Verify interface compliance.
var _ Authenticator = (*JWTAuthenticator)(nil)
