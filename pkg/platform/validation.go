package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// validateServer checks listener and connection settings.
func (c *Config) validateServer() []error {
	var errs []error
	s := c.Server

	if !strings.HasPrefix(s.Path, "/") {
		errs = append(errs, fmt.Errorf("server.path must start with /, got %q", s.Path))
	}
	if s.TLS.Enabled && (s.TLS.CertFile == "" || s.TLS.KeyFile == "") {
		errs = append(errs, errors.New("server.tls.cert_file and server.tls.key_file are required when TLS is enabled"))
	}
	if s.PingInterval > 0 && s.PongTimeout > 0 && s.PingInterval >= s.PongTimeout {
		errs = append(errs, errors.New("server.ping_interval must be shorter than server.pong_timeout"))
	}
	for _, o := range s.AllowedOrigins {
		if o != "*" && !strings.Contains(o, "://") {
			errs = append(errs, fmt.Errorf("server.allowed_origins: %q is not an origin (scheme://host)", o))
		}
	}
	if c.Session.PollInterval < 0 {
		errs = append(errs, errors.New("session.poll_interval must not be negative"))
	}
	if c.Session.PageSize > maxPageSize {
		errs = append(errs, fmt.Errorf("session.page_size must be at most %d", maxPageSize))
	}
	return errs
}

// maxPageSize is the largest page NewsAPI serves.
const maxPageSize = 100

// validateAuth checks the authenticator definitions.
func (c *Config) validateAuth() []error {
	var errs []error
	a := c.Auth

	if a.JWT.Enabled {
		if a.JWT.Issuer == "" {
			errs = append(errs, errors.New("auth.jwt.issuer is required when JWT is enabled"))
		}
		if a.JWT.SigningKey == "" {
			errs = append(errs, errors.New("auth.jwt.signing_key is required when JWT is enabled"))
		}
	}

	if a.APIKeys.Enabled {
		for i, k := range a.APIKeys.Keys {
			if k.Name == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys.keys[%d].name is required", i))
			}
			if k.Key == "" && k.Hash == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys.keys[%d] needs a key or a hash", i))
			}
		}
	}

	if !c.AnonymousAllowed() && !a.JWT.Enabled && !a.APIKeys.Enabled {
		errs = append(errs, errors.New("auth.allow_anonymous is false but no authenticator is enabled"))
	}
	return errs
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown level %q", name)
	}
	return level, nil
}
