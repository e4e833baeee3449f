// Package audit records an operator-facing trail of provider lookups.
//
// Events are never read back into a session; they exist for operators
// asking what was searched, by whom, and how the provider behaved.
package audit

import (
	"context"
	"errors"
	"time"
)

// ErrQueryUnsupported is returned by loggers that cannot read events back.
var ErrQueryUnsupported = errors.New("audit logger does not support queries")

// Logger defines the interface for audit logging.
type Logger interface {
	// Log records an audit event.
	Log(ctx context.Context, event Event) error

	// Query retrieves audit events matching the filter.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Close releases resources.
	Close() error
}

// Event is one provider lookup.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	DurationMS   int64     `json:"duration_ms"`
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id,omitempty"`
	Kind         Kind      `json:"kind"`
	Query        string    `json:"query"`
	SortBy       string    `json:"sort_by"`
	TotalResults int       `json:"total_results"`
	NewArticles  int       `json:"new_articles"`
	CacheHit     bool      `json:"cache_hit"`
	Success      bool      `json:"success"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// QueryFilter defines criteria for querying audit events.
type QueryFilter struct {
	StartTime *time.Time
	EndTime   *time.Time
	SessionID string
	UserID    string
	Query     string
	Kind      Kind
	Success   *bool
	Limit     int
	Offset    int
}
