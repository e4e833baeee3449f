package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind categorizes search audit events.
type Kind string

const (
	// KindInitial is the first lookup of a search.
	KindInitial Kind = "initial"

	// KindPoll is a scheduled re-check of a running search.
	KindPoll Kind = "poll"
)

// NewEvent creates a new audit event for a lookup in the given session.
func NewEvent(sessionID string, kind Kind) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Kind:      kind,
	}
}

// WithUser adds the authenticated user to the event.
func (e *Event) WithUser(userID string) *Event {
	e.UserID = userID
	return e
}

// WithSearch adds the query and sort order.
func (e *Event) WithSearch(query, sortBy string) *Event {
	e.Query = query
	e.SortBy = sortBy
	return e
}

// WithOutcome adds result counts. newArticles is the number of articles the
// client had not seen before.
func (e *Event) WithOutcome(totalResults, newArticles int, cacheHit bool) *Event {
	e.TotalResults = totalResults
	e.NewArticles = newArticles
	e.CacheHit = cacheHit
	return e
}

// WithResult adds success, failure class and timing.
func (e *Event) WithResult(success bool, errorKind, errorMsg string, durationMS int64) *Event {
	e.Success = success
	e.ErrorKind = errorKind
	e.ErrorMessage = errorMsg
	e.DurationMS = durationMS
	return e
}
