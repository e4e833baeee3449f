// Package stream serves live-search sessions over WebSocket.
//
// Every upgraded connection gets its own session.Actor. Frames read from the
// socket go into the actor's mailbox; messages the actor sends are queued on
// a bounded per-connection buffer drained by a single writer goroutine.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/txn2/live-search/pkg/auth"
	"github.com/txn2/live-search/pkg/session"
)

// Defaults applied by NewHandler.
const (
	DefaultWriteTimeout   = 10 * time.Second
	DefaultPongTimeout    = 60 * time.Second
	DefaultMaxMessageSize = 4096
	DefaultSendBuffer     = 64

	// SessionHeader carries a client-chosen session id.
	SessionHeader = "X-Session-Id"

	// SessionCookie persists the session id across page reloads.
	SessionCookie = "livesearch_session"

	slogKeyError = "error"
)

// validSessionID bounds ids accepted from clients.
var validSessionID = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// Config configures the WebSocket handler.
type Config struct {
	// AllowedOrigins lists browser origins allowed to connect. Empty means
	// same-origin only; "*" allows any origin.
	AllowedOrigins []string

	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration // defaults to 9/10 of PongTimeout
	MaxMessageSize int64
	SendBuffer     int

	// CookieMaxAge is the session cookie lifetime. Zero makes it a browser
	// session cookie.
	CookieMaxAge time.Duration
	CookieSecure bool

	Session session.Config
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = DefaultPongTimeout
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongTimeout {
		c.PingInterval = c.PongTimeout * 9 / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
	}
	return c
}

// Recorder receives connection metrics.
type Recorder interface {
	SessionOpened()
	SessionClosed()
	ClientDropped()
}

// Handler upgrades requests to WebSocket and runs a session per connection.
type Handler struct {
	cfg      Config
	deps     session.Deps
	auth     auth.Authenticator
	registry *session.Registry
	recorder Recorder
	logger   *slog.Logger
	upgrader websocket.Upgrader

	base     context.Context
	cancel   context.CancelFunc
	conns    sync.WaitGroup
	mu       sync.Mutex
	draining bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithAuthenticator requires every connection to pass a.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(h *Handler) { h.auth = a }
}

// WithRegistry tracks connected sessions in r.
func WithRegistry(r *session.Registry) Option {
	return func(h *Handler) { h.registry = r }
}

// WithRecorder reports connection metrics to r.
func WithRecorder(r Recorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates a handler. deps is the template for every session; its
// Sender is replaced per connection.
func NewHandler(cfg Config, deps session.Deps, opts ...Option) *Handler {
	cfg = cfg.withDefaults()
	base, cancel := context.WithCancel(context.Background())
	h := &Handler{
		cfg:      cfg,
		deps:     deps,
		registry: session.NewRegistry(),
		logger:   slog.Default(),
		base:     base,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "stream")
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	if h.deps.Logger == nil {
		h.deps.Logger = h.logger
	}
	return h
}

// Registry returns the registry of connected sessions.
func (h *Handler) Registry() *session.Registry {
	return h.registry
}

// ServeHTTP authenticates the request, upgrades it, and runs the session
// until the client disconnects or the handler shuts down.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.acquire() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.conns.Done()

	userID, err := h.authenticate(r)
	if err != nil {
		h.logger.Debug("stream: authentication failed", slogKeyError, err)
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID, isNew := resolveSessionID(r)
	var header http.Header
	if isNew {
		header = http.Header{}
		header.Add("Set-Cookie", h.sessionCookie(sessionID).String())
	}

	conn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("stream: upgrade failed", slogKeyError, err)
		return
	}

	h.serve(conn, sessionID, userID)
}

func (h *Handler) serve(conn *websocket.Conn, sessionID, userID string) {
	c := newClient(conn, h.cfg)
	deps := h.deps
	deps.Sender = c
	actor := session.New(sessionID, userID, deps, h.cfg.Session)

	ctx, cancel := context.WithCancel(h.base)
	actorDone := make(chan struct{})
	writerDone := make(chan struct{})

	h.registry.Add(actor)
	if h.recorder != nil {
		h.recorder.SessionOpened()
	}
	h.logger.Info("stream: connected", "session_id", sessionID, "user_id", userID)

	go func() {
		defer close(actorDone)
		actor.Run(ctx)
	}()
	go func() {
		defer close(writerDone)
		c.writePump(ctx)
	}()

	err := c.readPump(actor.Receive)

	cancel()
	c.markGone()
	<-writerDone
	<-actorDone

	h.registry.Remove(actor)
	if h.recorder != nil {
		h.recorder.SessionClosed()
		if c.isDropped() {
			h.recorder.ClientDropped()
		}
	}

	if c.isDropped() {
		h.logger.Warn("stream: dropped slow client", "session_id", sessionID)
	} else if err != nil && !isNormalClose(err) {
		h.logger.Debug("stream: read failed", "session_id", sessionID, slogKeyError, err)
	}
	h.logger.Info("stream: disconnected", "session_id", sessionID)
}

// Shutdown stops accepting connections, closes every open one, and waits
// for their sessions to finish or ctx to expire.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire registers a connection unless the handler is draining.
func (h *Handler) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.conns.Add(1)
	return true
}

func (h *Handler) authenticate(r *http.Request) (string, error) {
	if h.auth == nil {
		return "", nil
	}
	ctx := r.Context()
	if token := auth.TokenFromRequest(r); token != "" {
		ctx = auth.WithToken(ctx, token)
	}
	user, err := h.auth.Authenticate(ctx)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", auth.ErrUnauthenticated
	}
	if user.Anonymous() {
		return "", nil
	}
	return user.UserID, nil
}

func (h *Handler) sessionCookie(id string) *http.Cookie {
	c := &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cfg.CookieMaxAge > 0 {
		c.MaxAge = int(h.cfg.CookieMaxAge.Seconds())
	}
	return c
}

// resolveSessionID returns the client's session id from the header or
// cookie, or a new one. isNew reports whether the id was generated.
func resolveSessionID(r *http.Request) (id string, isNew bool) {
	if v := strings.TrimSpace(r.Header.Get(SessionHeader)); validSessionID.MatchString(v) {
		return v, false
	}
	if c, err := r.Cookie(SessionCookie); err == nil && validSessionID.MatchString(c.Value) {
		return c.Value, false
	}
	return uuid.NewString(), true
}

// originChecker returns the upgrader origin policy. A nil result selects
// gorilla's same-origin check.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

func isNormalClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, session.ErrClosed)
}
