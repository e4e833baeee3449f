package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/lib/pq" // PostgreSQL driver for database.dsn

	"github.com/txn2/live-search/pkg/analysis"
	"github.com/txn2/live-search/pkg/audit"
	auditpostgres "github.com/txn2/live-search/pkg/audit/postgres"
	"github.com/txn2/live-search/pkg/auth"
	"github.com/txn2/live-search/pkg/database/migrate"
	"github.com/txn2/live-search/pkg/health"
	"github.com/txn2/live-search/pkg/history"
	"github.com/txn2/live-search/pkg/metrics"
	"github.com/txn2/live-search/pkg/resultcache"
	"github.com/txn2/live-search/pkg/search"
	"github.com/txn2/live-search/pkg/search/newsapi"
	"github.com/txn2/live-search/pkg/session"
	"github.com/txn2/live-search/pkg/stream"
)

// Platform is the live-search server facade: it owns the shared caches, the
// provider, the audit trail and the WebSocket handler.
type Platform struct {
	config    *Config
	logger    *slog.Logger
	lifecycle *Lifecycle

	db     *sql.DB
	ownsDB bool

	provider   search.Provider
	metrics    *metrics.Metrics
	health     *health.Checker
	results    *resultcache.Cache
	history    *history.Store
	dispatcher *analysis.Dispatcher

	authenticator auth.Authenticator
	auditLogger   audit.Logger
	auditStore    *auditpostgres.Store

	stream *stream.Handler
}

// New creates a new platform instance.
func New(opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, errors.New("config is required")
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Platform{
		config:    options.Config,
		logger:    logger,
		lifecycle: NewLifecycle(),
		metrics:   metrics.New(),
		health:    health.NewChecker(),
	}

	if err := p.initializeComponents(options); err != nil {
		if p.ownsDB {
			_ = p.db.Close()
		}
		return nil, fmt.Errorf("initializing components: %w", err)
	}
	return p, nil
}

// initializeComponents initializes all platform components.
func (p *Platform) initializeComponents(opts *Options) error {
	if err := p.initDatabase(opts); err != nil {
		return err
	}
	p.initProvider(opts)
	p.initSearchState(opts)
	if err := p.initAuth(opts); err != nil {
		return err
	}
	p.initAudit(opts)
	p.initStream(opts)
	p.registerHooks()
	return nil
}

// initDatabase opens database.dsn unless a connection was supplied.
func (p *Platform) initDatabase(opts *Options) error {
	if opts.DB != nil {
		p.db = opts.DB
		return nil
	}
	if p.config.Database.DSN == "" {
		return nil
	}
	db, err := sql.Open("postgres", p.config.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(p.config.Database.MaxOpenConns)
	p.db = db
	p.ownsDB = true
	return nil
}

// initProvider creates the NewsAPI client unless a provider was supplied.
func (p *Platform) initProvider(opts *Options) {
	if opts.Provider != nil {
		p.provider = opts.Provider
		return
	}
	pc := p.config.Provider
	p.provider = newsapi.New(newsapi.Config{
		BaseURL:           pc.BaseURL,
		APIKey:            pc.APIKey,
		Language:          pc.Language,
		Timeout:           pc.Timeout,
		RequestsPerSecond: pc.RequestsPerSecond,
		Burst:             pc.Burst,
	})
}

// initSearchState creates the shared result cache, history store and
// analysis dispatcher.
func (p *Platform) initSearchState(opts *Options) {
	p.results = resultcache.New(resultcache.Config{
		TTL:        p.config.Cache.TTL,
		MaxEntries: p.config.Cache.MaxEntries,
	})
	p.history = history.NewStore(history.Config{
		IdleTTL:     p.config.History.IdleTTL,
		MaxSessions: p.config.History.MaxSessions,
	})

	lister := opts.SourceLister
	if lister == nil {
		lister, _ = p.provider.(search.SourceLister)
	}
	var catalog *analysis.Catalog
	if lister != nil {
		catalog = analysis.NewCatalog(lister, p.config.Analysis.SourcesTTL)
	}

	p.dispatcher = analysis.NewDispatcher(analysis.DispatcherConfig{
		Concurrency: p.config.Analysis.Concurrency,
		TaskTimeout: p.config.Analysis.TaskTimeout,
		Logger:      p.logger,
		Recorder:    p.metrics,
	}, analysis.Standard(catalog, p.config.Analysis.TopWords)...)

	p.metrics.TrackSize("result_cache_entries", "Cached provider responses.", p.results.Len)
	p.metrics.TrackSize("history_sessions", "Sessions with a search history bucket.", p.history.Sessions)
}

// initAuth initializes connection authentication.
func (p *Platform) initAuth(opts *Options) error {
	if opts.Authenticator != nil {
		p.authenticator = opts.Authenticator
		return nil
	}
	authenticator, err := p.createAuthenticator()
	if err != nil {
		return fmt.Errorf("creating authenticator: %w", err)
	}
	p.authenticator = authenticator
	return nil
}

// createAuthenticator creates the authenticator chain from config. It
// returns nil when no authenticator is enabled and anonymous access is
// allowed.
func (p *Platform) createAuthenticator() (auth.Authenticator, error) {
	ac := p.config.Auth
	var authenticators []auth.Authenticator

	if ac.JWT.Enabled {
		jwtAuth, err := auth.NewJWTAuthenticator(auth.JWTConfig{
			Issuer:        ac.JWT.Issuer,
			SigningKey:    []byte(ac.JWT.SigningKey),
			RoleClaimPath: ac.JWT.RoleClaimPath,
			RolePrefix:    ac.JWT.RolePrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("creating JWT authenticator: %w", err)
		}
		authenticators = append(authenticators, jwtAuth)
	}

	if ac.APIKeys.Enabled {
		keys := make([]auth.APIKey, 0, len(ac.APIKeys.Keys))
		for _, k := range ac.APIKeys.Keys {
			keys = append(keys, auth.APIKey{
				Key:   k.Key,
				Hash:  k.Hash,
				Name:  k.Name,
				Roles: k.Roles,
			})
		}
		authenticators = append(authenticators, auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{Keys: keys}))
	}

	allowAnonymous := p.config.AnonymousAllowed()
	if len(authenticators) == 0 && allowAnonymous {
		return nil, nil
	}

	return auth.NewChainedAuthenticator(
		auth.ChainedAuthConfig{AllowAnonymous: allowAnonymous},
		authenticators...,
	), nil
}

// initAudit picks the audit sink: PostgreSQL behind an async queue when a
// database is configured, structured logs otherwise.
func (p *Platform) initAudit(opts *Options) {
	if opts.AuditLogger != nil {
		p.auditLogger = opts.AuditLogger
		return
	}
	if !p.config.Audit.Enabled {
		return
	}
	if p.db == nil {
		p.auditLogger = audit.NewSlogLogger(p.logger)
		return
	}
	p.auditStore = auditpostgres.New(p.db, auditpostgres.Config{
		RetentionDays: p.config.Audit.RetentionDays,
	})
	p.auditLogger = audit.NewAsyncLogger(p.auditStore, p.config.Audit.QueueSize, p.logger)
}

// initStream creates the WebSocket handler and hooks its registry into
// readiness and metrics.
func (p *Platform) initStream(opts *Options) {
	sc := p.config.Server
	cfg := stream.Config{
		AllowedOrigins: sc.AllowedOrigins,
		WriteTimeout:   sc.WriteTimeout,
		PongTimeout:    sc.PongTimeout,
		PingInterval:   sc.PingInterval,
		MaxMessageSize: sc.MaxMessageSize,
		SendBuffer:     sc.SendBuffer,
		CookieMaxAge:   sc.CookieMaxAge,
		CookieSecure:   sc.CookieSecure || sc.TLS.Enabled,
		Session: session.Config{
			PollInterval:  p.config.Session.PollInterval,
			PageSize:      p.config.Session.PageSize,
			DedupCapacity: p.config.Session.DedupCapacity,
			MailboxSize:   p.config.Session.MailboxSize,
		},
	}
	deps := session.Deps{
		Provider:  p.provider,
		Cache:     p.results,
		History:   p.history,
		Analysis:  p.dispatcher,
		Scheduler: opts.Scheduler,
		Audit:     p.auditLogger,
		Recorder:  p.metrics,
		Logger:    p.logger,
	}

	streamOpts := []stream.Option{
		stream.WithRecorder(p.metrics),
		stream.WithLogger(p.logger),
	}
	if p.authenticator != nil {
		streamOpts = append(streamOpts, stream.WithAuthenticator(p.authenticator))
	}
	p.stream = stream.NewHandler(cfg, deps, streamOpts...)

	registry := p.stream.Registry()
	p.health.SetSessions(registry)
	p.metrics.TrackSize("sessions_searching", "Connected sessions with an active search.", registry.Searching)
}

// registerHooks registers start and stop callbacks. Stop runs in reverse, so
// connections close before the caches, the audit queue flushes before the
// database closes.
func (p *Platform) registerHooks() {
	if p.db != nil {
		p.lifecycle.Append(Hook{
			Name: "database",
			Start: func(ctx context.Context) error {
				if err := p.db.PingContext(ctx); err != nil {
					return fmt.Errorf("connecting to database: %w", err)
				}
				if !p.config.Database.AutoMigrate {
					return nil
				}
				if err := migrate.Run(p.db); err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}
				return nil
			},
			Stop: func(context.Context) error {
				if !p.ownsDB {
					return nil
				}
				return p.db.Close()
			},
		})
	}

	if p.auditLogger != nil {
		p.lifecycle.Append(Hook{
			Name: "audit",
			Start: func(context.Context) error {
				if p.auditStore != nil {
					p.auditStore.StartCleanupRoutine(p.config.Audit.CleanupInterval)
				}
				return nil
			},
			Stop: func(context.Context) error { return p.auditLogger.Close() },
		})
	}

	p.lifecycle.Append(Hook{
		Name: "result-cache",
		Start: func(context.Context) error {
			p.results.StartCleanupRoutine(p.config.Cache.CleanupInterval)
			return nil
		},
		Stop: func(context.Context) error { return p.results.Close() },
	})
	p.lifecycle.Append(Hook{
		Name: "history",
		Start: func(context.Context) error {
			p.history.StartCleanupRoutine(p.config.History.CleanupInterval)
			return nil
		},
		Stop: func(context.Context) error { return p.history.Close() },
	})
	p.lifecycle.OnStop("stream", p.stream.Shutdown)
}

// Start starts the platform and marks it ready.
func (p *Platform) Start(ctx context.Context) error {
	if err := p.lifecycle.Start(ctx); err != nil {
		return err
	}
	p.health.SetReady()
	p.logger.Info("platform: started",
		"path", p.config.Server.Path,
		"auth", p.authenticator != nil,
		"audit", p.auditLogger != nil,
	)
	return nil
}

// Drain flips readiness to draining so load balancers stop routing here.
func (p *Platform) Drain() {
	p.health.SetDraining()
}

// Stop drains the platform, closes every connection and releases resources.
func (p *Platform) Stop(ctx context.Context) error {
	p.Drain()
	return p.lifecycle.Stop(ctx)
}

// Handler returns the HTTP routes: the WebSocket endpoint, health probes
// and metrics.
func (p *Platform) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(p.config.Server.Path, p.stream)
	mux.Handle("/healthz", p.health.LivenessHandler())
	mux.Handle("/readyz", p.health.ReadinessHandler())
	mux.Handle("/metrics", p.metrics.Handler())
	return mux
}

// Config returns the platform configuration.
func (p *Platform) Config() *Config {
	return p.config
}

// Health returns the readiness checker.
func (p *Platform) Health() *health.Checker {
	return p.health
}

// Sessions returns the registry of connected sessions.
func (p *Platform) Sessions() *session.Registry {
	return p.stream.Registry()
}

// History returns the session history store.
func (p *Platform) History() *history.Store {
	return p.history
}

// AuditLogger returns the audit logger, or nil when auditing is disabled.
func (p *Platform) AuditLogger() audit.Logger {
	return p.auditLogger
}
