package platform

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	cfgTestFilePerms       = 0o600
	cfgTestAPIKey          = "news-key"
	cfgTestPollInterval    = 45 * time.Second
	cfgTestCacheTTL        = 2 * time.Minute
	cfgTestIdleTTL         = 3 * time.Hour
	cfgTestTaskTimeout     = 5 * time.Second
	cfgTestPageSize        = 20
	cfgTestDedupCapacity   = 500
	cfgTestMaxOpenConns    = 5
	cfgTestRetentionDays   = 30
	cfgTestPingInterval    = 20 * time.Second
	cfgTestPongTimeout     = 30 * time.Second
	cfgTestRequestsPerSec  = 1.5
	cfgTestAllowedOrigin   = "https://news.example.com"
	cfgTestJWTIssuer       = "https://auth.example.com"
	cfgTestAPIKeyName      = "dashboard"
	cfgTestEnvProviderKey  = "LIVESEARCH_TEST_PROVIDER_KEY"
	cfgTestEnvProviderVal  = "from-env"
	cfgTestInvalidLogLevel = "chatty"
)

// writeTestConfig writes a YAML config to a temp dir and returns the path.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), cfgTestFilePerms); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configPath
}

// loadTestConfig writes and loads a config, failing the test on error.
func loadTestConfig(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := LoadConfig(writeTestConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	return cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadTestConfig(t, `provider:
  api_key: `+cfgTestAPIKey)

	if cfg.Server.Address != DefaultAddress {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, DefaultAddress)
	}
	if cfg.Server.Path != DefaultPath {
		t.Errorf("Server.Path = %q, want %q", cfg.Server.Path, DefaultPath)
	}
	if cfg.Server.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("Server.ShutdownTimeout = %v, want %v", cfg.Server.ShutdownTimeout, DefaultShutdownTimeout)
	}
	if !cfg.AnonymousAllowed() {
		t.Error("AnonymousAllowed() = false, want true by default")
	}
	if cfg.Database.MaxOpenConns != DefaultMaxOpenConns {
		t.Errorf("Database.MaxOpenConns = %d, want %d", cfg.Database.MaxOpenConns, DefaultMaxOpenConns)
	}
	if cfg.Audit.RetentionDays != DefaultRetentionDays {
		t.Errorf("Audit.RetentionDays = %d, want %d", cfg.Audit.RetentionDays, DefaultRetentionDays)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != LogFormatText {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfig_AllSections(t *testing.T) {
	cfg := loadTestConfig(t, `
server:
  address: ":9090"
  path: /live
  allowed_origins: ["`+cfgTestAllowedOrigin+`"]
  ping_interval: 20s
  pong_timeout: 30s
provider:
  api_key: `+cfgTestAPIKey+`
  language: en
  requests_per_second: 1.5
session:
  poll_interval: 45s
  page_size: 20
  dedup_capacity: 500
cache:
  ttl: 2m
history:
  idle_ttl: 3h
analysis:
  task_timeout: 5s
  top_words: 25
auth:
  allow_anonymous: false
  api_keys:
    enabled: true
    keys:
      - key: secret
        name: `+cfgTestAPIKeyName+`
  jwt:
    enabled: true
    issuer: `+cfgTestJWTIssuer+`
    signing_key: sekrit
database:
  dsn: postgres://localhost/livesearch
  max_open_conns: 5
  auto_migrate: true
audit:
  enabled: true
  retention_days: 30
logging:
  level: debug
  format: json
`)

	if cfg.Server.Address != ":9090" || cfg.Server.Path != "/live" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != cfgTestAllowedOrigin {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.PingInterval != cfgTestPingInterval || cfg.Server.PongTimeout != cfgTestPongTimeout {
		t.Errorf("ping/pong = %v/%v", cfg.Server.PingInterval, cfg.Server.PongTimeout)
	}
	if cfg.Provider.RequestsPerSecond != cfgTestRequestsPerSec {
		t.Errorf("Provider.RequestsPerSecond = %v", cfg.Provider.RequestsPerSecond)
	}
	if cfg.Session.PollInterval != cfgTestPollInterval {
		t.Errorf("Session.PollInterval = %v, want %v", cfg.Session.PollInterval, cfgTestPollInterval)
	}
	if cfg.Session.PageSize != cfgTestPageSize || cfg.Session.DedupCapacity != cfgTestDedupCapacity {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.Cache.TTL != cfgTestCacheTTL {
		t.Errorf("Cache.TTL = %v, want %v", cfg.Cache.TTL, cfgTestCacheTTL)
	}
	if cfg.History.IdleTTL != cfgTestIdleTTL {
		t.Errorf("History.IdleTTL = %v, want %v", cfg.History.IdleTTL, cfgTestIdleTTL)
	}
	if cfg.Analysis.TaskTimeout != cfgTestTaskTimeout {
		t.Errorf("Analysis.TaskTimeout = %v", cfg.Analysis.TaskTimeout)
	}
	if cfg.AnonymousAllowed() {
		t.Error("AnonymousAllowed() = true, want false")
	}
	if cfg.Auth.APIKeys.Keys[0].Name != cfgTestAPIKeyName {
		t.Errorf("APIKeys = %+v", cfg.Auth.APIKeys)
	}
	if cfg.Auth.JWT.Issuer != cfgTestJWTIssuer {
		t.Errorf("JWT.Issuer = %q", cfg.Auth.JWT.Issuer)
	}
	if cfg.Database.MaxOpenConns != cfgTestMaxOpenConns || !cfg.Database.AutoMigrate {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Audit.RetentionDays != cfgTestRetentionDays {
		t.Errorf("Audit.RetentionDays = %d", cfg.Audit.RetentionDays)
	}
	if cfg.Logging.Format != LogFormatJSON {
		t.Errorf("Logging.Format = %q", cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfig_ExpandsEnvVars(t *testing.T) {
	t.Setenv(cfgTestEnvProviderKey, cfgTestEnvProviderVal)

	cfg := loadTestConfig(t, `provider:
  api_key: ${`+cfgTestEnvProviderKey+`}`)

	if cfg.Provider.APIKey != cfgTestEnvProviderVal {
		t.Errorf("Provider.APIKey = %q, want %q", cfg.Provider.APIKey, cfgTestEnvProviderVal)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("LoadConfig() expected error for missing file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("error = %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeTestConfig(t, "server: [unclosed"))
	if err == nil {
		t.Fatal("LoadConfig() expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "parsing config") {
		t.Errorf("error = %v", err)
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	_, err := LoadConfig(writeTestConfig(t, `session:
  poll_interval: soon`))
	if err == nil {
		t.Fatal("LoadConfig() expected error for invalid duration")
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := loadTestConfig(t, `
server:
  path: ws
  tls:
    enabled: true
auth:
  jwt:
    enabled: true
  api_keys:
    enabled: true
    keys:
      - roles: [reader]
logging:
  level: `+cfgTestInvalidLogLevel+`
  format: xml
`)

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	msg := err.Error()
	for _, want := range []string{
		"provider.api_key is required",
		"server.path must start with /",
		"server.tls.cert_file",
		"auth.jwt.issuer is required",
		"auth.jwt.signing_key is required",
		"auth.api_keys.keys[0].name is required",
		"auth.api_keys.keys[0] needs a key or a hash",
		"logging.level",
		"logging.format",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Validate() error missing %q:\n%s", want, msg)
		}
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "anonymous disabled without authenticators",
			yaml: `auth:
  allow_anonymous: false`,
			wantErr: "no authenticator is enabled",
		},
		{
			name: "ping not shorter than pong",
			yaml: `server:
  ping_interval: 30s
  pong_timeout: 30s`,
			wantErr: "server.ping_interval",
		},
		{
			name: "origin without scheme",
			yaml: `server:
  allowed_origins: [news.example.com]`,
			wantErr: "is not an origin",
		},
		{
			name: "page size over provider maximum",
			yaml: `session:
  page_size: 500`,
			wantErr: "session.page_size",
		},
		{
			name: "auto migrate without dsn",
			yaml: `database:
  auto_migrate: true`,
			wantErr: "database.dsn is required",
		},
		{
			name: "hashed api key is enough",
			yaml: `auth:
  api_keys:
    enabled: true
    keys:
      - hash: "$2a$10$abcdefghijklmnopqrstuv"
        name: hashed`,
		},
		{
			name: "wildcard origin",
			yaml: `server:
  allowed_origins: ["*"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte("provider:\n  api_key: " + cfgTestAPIKey + "\n" + tt.yaml))
			if err != nil {
				t.Fatalf("ParseConfig() error = %v", err)
			}
			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"debug", "info", "warn", "error", "INFO"} {
		if _, err := ParseLevel(name); err != nil {
			t.Errorf("ParseLevel(%q) error = %v", name, err)
		}
	}
	if _, err := ParseLevel(cfgTestInvalidLogLevel); err == nil {
		t.Errorf("ParseLevel(%q) expected error", cfgTestInvalidLogLevel)
	}
}
