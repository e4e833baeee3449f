// Package platform wires the live-search server together from configuration.
package platform

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Session  SessionConfig  `yaml:"session"`
	Cache    CacheConfig    `yaml:"cache"`
	History  HistoryConfig  `yaml:"history"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Audit    AuditConfig    `yaml:"audit"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP listener and WebSocket connections.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	Path            string        `yaml:"path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TLS             TLSConfig     `yaml:"tls"`

	AllowedOrigins []string      `yaml:"allowed_origins"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PongTimeout    time.Duration `yaml:"pong_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	SendBuffer     int           `yaml:"send_buffer"`
	CookieMaxAge   time.Duration `yaml:"cookie_max_age"`
	CookieSecure   bool          `yaml:"cookie_secure"`
}

// TLSConfig configures TLS.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProviderConfig configures the NewsAPI client.
type ProviderConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Language          string        `yaml:"language"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// SessionConfig tunes every session.
type SessionConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	PageSize      int           `yaml:"page_size"`
	DedupCapacity int           `yaml:"dedup_capacity"`
	MailboxSize   int           `yaml:"mailbox_size"`
}

// CacheConfig configures the shared result cache.
type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	MaxEntries      int           `yaml:"max_entries"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// HistoryConfig configures the per-session history store.
type HistoryConfig struct {
	IdleTTL         time.Duration `yaml:"idle_ttl"`
	MaxSessions     int           `yaml:"max_sessions"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// AnalysisConfig configures the analysis dispatcher.
type AnalysisConfig struct {
	Concurrency int           `yaml:"concurrency"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
	TopWords    int           `yaml:"top_words"`
	SourcesTTL  time.Duration `yaml:"sources_ttl"`
}

// AuthConfig configures connection authentication.
type AuthConfig struct {
	// AllowAnonymous admits connections without a token. Defaults to true.
	AllowAnonymous *bool            `yaml:"allow_anonymous"`
	APIKeys        APIKeyAuthConfig `yaml:"api_keys"`
	JWT            JWTAuthConfig    `yaml:"jwt"`
}

// APIKeyAuthConfig configures API key authentication.
type APIKeyAuthConfig struct {
	Enabled bool        `yaml:"enabled"`
	Keys    []APIKeyDef `yaml:"keys"`
}

// APIKeyDef defines an API key. Exactly one of Key or Hash is expected; Hash
// is a bcrypt hash of the key.
type APIKeyDef struct {
	Key   string   `yaml:"key"`
	Hash  string   `yaml:"hash"`
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

// JWTAuthConfig configures HMAC-signed JWT authentication.
type JWTAuthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Issuer        string `yaml:"issuer"`
	SigningKey    string `yaml:"signing_key"`
	RoleClaimPath string `yaml:"role_claim_path"`
	RolePrefix    string `yaml:"role_prefix"`
}

// DatabaseConfig configures the PostgreSQL connection used by the audit trail.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// AuditConfig configures the search audit trail.
type AuditConfig struct {
	Enabled         bool          `yaml:"enabled"`
	QueueSize       int           `yaml:"queue_size"`
	RetentionDays   int           `yaml:"retention_days"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Logging formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Defaults applied by LoadConfig.
const (
	DefaultAddress         = ":8080"
	DefaultPath            = "/ws"
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxOpenConns    = 25
	DefaultRetentionDays   = 90
	DefaultCleanupInterval = time.Minute
	DefaultAuditCleanup    = time.Hour
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, expanding ${VAR} references and
// applying defaults.
func ParseConfig(data []byte) (*Config, error) {
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultAddress
	}
	if cfg.Server.Path == "" {
		cfg.Server.Path = DefaultPath
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Cache.CleanupInterval == 0 {
		cfg.Cache.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.History.CleanupInterval == 0 {
		cfg.History.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.Auth.AllowAnonymous == nil {
		allow := true
		cfg.Auth.AllowAnonymous = &allow
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = DefaultMaxOpenConns
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = DefaultRetentionDays
	}
	if cfg.Audit.CleanupInterval == 0 {
		cfg.Audit.CleanupInterval = DefaultAuditCleanup
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
}

// AnonymousAllowed reports whether unauthenticated connections are admitted.
func (c *Config) AnonymousAllowed() bool {
	return c.Auth.AllowAnonymous == nil || *c.Auth.AllowAnonymous
}

// Validate validates the configuration, reporting every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Provider.APIKey == "" {
		errs = append(errs, errors.New("provider.api_key is required"))
	}
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateAuth()...)

	if c.Audit.Enabled && c.Audit.RetentionDays < 0 {
		errs = append(errs, errors.New("audit.retention_days must not be negative"))
	}
	if c.Database.AutoMigrate && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required when auto_migrate is set"))
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("logging.format must be %q or %q, got %q",
			LogFormatText, LogFormatJSON, c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %w", errors.Join(errs...))
	}
	return nil
}
