// Package session runs live-search sessions.
//
// Each connected client is served by an Actor: a single goroutine that owns
// the session's query, dedup set and poll schedule, and processes inbound
// messages, poll ticks and async completions strictly one at a time from one
// mailbox. Provider lookups and analyses run on their own goroutines and post
// their completions back into the mailbox tagged with the search generation
// they were started under, so nothing from a superseded search reaches the
// client.
package session

import (
	"log/slog"
	"time"

	"github.com/txn2/live-search/pkg/analysis"
	"github.com/txn2/live-search/pkg/audit"
	"github.com/txn2/live-search/pkg/dedup"
	"github.com/txn2/live-search/pkg/history"
	"github.com/txn2/live-search/pkg/resultcache"
	"github.com/txn2/live-search/pkg/search"
)

// State is the session lifecycle state.
type State string

// Session states.
const (
	StateIdle      State = "idle"
	StateSearching State = "searching"
)

// Defaults applied by New.
const (
	DefaultPollInterval = 30 * time.Second
	DefaultMailboxSize  = 64
)

const (
	slogKeyError     = "error"
	slogKeySessionID = "session_id"
)

// Config tunes a session.
type Config struct {
	// PollInterval is the time between update checks.
	PollInterval time.Duration

	// PageSize is the number of articles requested per lookup.
	PageSize int

	// DedupCapacity bounds the seen-article set and the accumulated
	// article set used for aggregate analyses.
	DedupCapacity int

	// MailboxSize is the mailbox buffer length.
	MailboxSize int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PageSize <= 0 {
		c.PageSize = search.DefaultPageSize
	}
	if c.DedupCapacity <= 0 {
		c.DedupCapacity = dedup.DefaultCapacity
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = DefaultMailboxSize
	}
	return c
}

// Sender delivers server messages to the client. Send must not block for
// long; a slow client is the transport's problem.
type Sender interface {
	Send(msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(Message) error

// Send calls f(msg).
func (f SenderFunc) Send(msg Message) error { return f(msg) }

// Recorder receives search metrics.
type Recorder interface {
	ObserveSearch(kind string, d time.Duration, hit bool, errClass string)
	ArticlesAppended(n int)
}

// Deps are the collaborators a session drives. Provider, Cache, History,
// Analysis and Sender are required.
type Deps struct {
	Provider  search.Provider
	Cache     *resultcache.Cache
	History   *history.Store
	Analysis  *analysis.Dispatcher
	Sender    Sender
	Scheduler Scheduler    // defaults to TickerScheduler
	Audit     audit.Logger // optional
	Recorder  Recorder     // optional
	Logger    *slog.Logger // defaults to slog.Default()
	Now       func() time.Time
}

// Info is a point-in-time view of a session.
type Info struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	State     State     `json:"state"`
	Query     string    `json:"query,omitempty"`
	SortBy    string    `json:"sort_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
