package platform

import (
	"database/sql"
	"log/slog"

	"github.com/txn2/live-search/pkg/audit"
	"github.com/txn2/live-search/pkg/auth"
	"github.com/txn2/live-search/pkg/search"
	"github.com/txn2/live-search/pkg/session"
)

// Options configures the platform.
type Options struct {
	// Config is the platform configuration.
	Config *Config

	// Database connection (optional, opened from database.dsn if not provided).
	DB *sql.DB

	// Provider (optional, a NewsAPI client is created from config if not provided).
	Provider search.Provider

	// SourceLister backs the sources analyses. Defaults to Provider when it
	// implements search.SourceLister.
	SourceLister search.SourceLister

	// Authenticator (optional, will be created from config if not provided).
	Authenticator auth.Authenticator

	// AuditLogger (optional, will be created from config if not provided).
	AuditLogger audit.Logger

	// Scheduler drives session polling. Defaults to session.TickerScheduler.
	Scheduler session.Scheduler

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithDB sets the database connection.
func WithDB(db *sql.DB) Option {
	return func(o *Options) {
		o.DB = db
	}
}

// WithProvider sets the search provider.
func WithProvider(p search.Provider) Option {
	return func(o *Options) {
		o.Provider = p
	}
}

// WithSourceLister sets the source directory used by the sources analyses.
func WithSourceLister(l search.SourceLister) Option {
	return func(o *Options) {
		o.SourceLister = l
	}
}

// WithAuthenticator sets the authenticator.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(o *Options) {
		o.Authenticator = a
	}
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(logger audit.Logger) Option {
	return func(o *Options) {
		o.AuditLogger = logger
	}
}

// WithScheduler sets the poll scheduler.
func WithScheduler(s session.Scheduler) Option {
	return func(o *Options) {
		o.Scheduler = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}
