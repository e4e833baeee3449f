// Package history keeps a short, newest-first list of completed searches for
// each session.
//
// The store is shared by every session. Buckets that go unread and unwritten
// for the idle TTL are dropped, and the number of tracked sessions is capped;
// beyond the cap the least recently used bucket is evicted.
package history

import (
	"time"

	"github.com/txn2/live-search/pkg/analysis"
	"github.com/txn2/live-search/pkg/cache"
	"github.com/txn2/live-search/pkg/search"
)

// Store defaults.
const (
	// MaxEntries is the number of searches kept per session.
	MaxEntries = 10

	DefaultIdleTTL     = 2 * time.Hour
	DefaultMaxSessions = 10000
)

// Entry summarizes one completed search. Entries are never modified after
// they are pushed.
type Entry struct {
	Query        string               `json:"query"`
	SortBy       search.SortBy        `json:"sortBy"`
	TotalResults int                  `json:"totalResults"`
	Articles     []search.Article     `json:"articles"`
	Readability  analysis.Readability `json:"readability"`
	Sentiment    analysis.Sentiment   `json:"sentiment"`
	CreatedAt    time.Time            `json:"timestamp"`
}

// NewEntry builds an entry for a completed search, scoring readability and
// sentiment over its articles.
func NewEntry(query string, sortBy search.SortBy, resp *search.Response, at time.Time) Entry {
	articles := make([]search.Article, len(resp.Articles))
	copy(articles, resp.Articles)
	return Entry{
		Query:        query,
		SortBy:       sortBy,
		TotalResults: resp.TotalResults,
		Articles:     articles,
		Readability:  analysis.ScoreReadability(articles),
		Sentiment:    analysis.ScoreSentiment(articles),
		CreatedAt:    at,
	}
}

// Config configures a Store.
type Config struct {
	IdleTTL     time.Duration
	MaxSessions int
}

// Store holds per-session history buckets.
type Store struct {
	buckets *cache.Map[string, []Entry]
}

// NewStore creates a Store. Zero config values select the defaults.
func NewStore(cfg Config) *Store {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	return &Store{
		buckets: cache.New[string, []Entry](cache.Config{
			TTL:               cfg.IdleTTL,
			MaxEntries:        cfg.MaxSessions,
			ExpireAfterAccess: true,
		}),
	}
}

// Push inserts entry at the front of the session's bucket, dropping the
// oldest entry beyond MaxEntries. Buckets are replaced, never mutated, so
// snapshots returned by List stay valid.
func (s *Store) Push(sessionID string, entry Entry) {
	s.buckets.Compute(sessionID, func(old []Entry, _ bool) []Entry {
		n := min(len(old)+1, MaxEntries)
		next := make([]Entry, 0, n)
		next = append(next, entry)
		next = append(next, old[:n-1]...)
		return next
	})
}

// List returns the session's entries, newest first. The result is a copy and
// is never nil.
func (s *Store) List(sessionID string) []Entry {
	bucket, ok := s.buckets.Get(sessionID)
	if !ok {
		return []Entry{}
	}
	out := make([]Entry, len(bucket))
	copy(out, bucket)
	return out
}

// Clear drops the session's bucket.
func (s *Store) Clear(sessionID string) {
	s.buckets.Delete(sessionID)
}

// Sessions returns the number of tracked sessions.
func (s *Store) Sessions() int {
	return s.buckets.Len()
}

// StartCleanupRoutine periodically drops idle buckets until Close.
func (s *Store) StartCleanupRoutine(interval time.Duration) {
	s.buckets.StartCleanupRoutine(interval)
}

// Close stops the cleanup routine.
func (s *Store) Close() error {
	return s.buckets.Close()
}
