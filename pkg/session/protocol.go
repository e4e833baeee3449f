package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/txn2/live-search/pkg/analysis"
	"github.com/txn2/live-search/pkg/history"
	"github.com/txn2/live-search/pkg/search"
)

// ErrInvalidMessage is returned for client messages that are not one of the
// recognized kinds or are missing required fields.
var ErrInvalidMessage = errors.New("invalid message")

// Client message types.
const (
	TypeStartSearch = "start_search"
	TypeStopSearch  = "stop_search"
	TypeGetHistory  = "get_history"
	TypePing        = "ping"
)

// Server message types. Analysis results use their analysis.Kind as type.
const (
	TypeInitialResults = "initial_results"
	TypeAppend         = "append"
	TypeStatus         = "status"
	TypeError          = "error"
	TypePong           = "pong"
	TypeHistory        = "history"
)

// Inbound is a decoded client message: one of StartSearch, StopSearch,
// GetHistory or Ping.
type Inbound interface {
	inbound()
}

// StartSearch begins a live search, replacing any active one.
type StartSearch struct {
	Query  string
	SortBy search.SortBy
}

// StopSearch ends the active search.
type StopSearch struct{}

// GetHistory requests the session's recent searches.
type GetHistory struct{}

// Ping requests a pong.
type Ping struct{}

func (StartSearch) inbound() {}
func (StopSearch) inbound()  {}
func (GetHistory) inbound()  {}
func (Ping) inbound()        {}

// rawInbound is the wire shape of every client message.
type rawInbound struct {
	Type   string `json:"type"`
	Query  string `json:"query"`
	SortBy string `json:"sortBy"`
}

// DecodeInbound parses a client frame. Every failure wraps ErrInvalidMessage.
func DecodeInbound(data []byte) (Inbound, error) {
	var raw rawInbound
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	switch raw.Type {
	case TypeStartSearch:
		q := strings.TrimSpace(raw.Query)
		if q == "" {
			return nil, fmt.Errorf("%w: empty query", ErrInvalidMessage)
		}
		return StartSearch{Query: q, SortBy: search.ParseSortBy(raw.SortBy)}, nil
	case TypeStopSearch:
		return StopSearch{}, nil
	case TypeGetHistory:
		return GetHistory{}, nil
	case TypePing:
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, raw.Type)
	}
}

// Message is a server message. Implementations marshal to a JSON object
// whose "type" field equals MessageType.
type Message interface {
	MessageType() string
}

type header struct {
	Type string `json:"type"`
}

func (h header) MessageType() string { return h.Type }

// InitialResults carries the first page of a new search.
type InitialResults struct {
	header
	Query        string           `json:"query"`
	SortBy       search.SortBy    `json:"sortBy"`
	TotalResults int              `json:"totalResults"`
	Articles     []search.Article `json:"articles"`
	Timestamp    time.Time        `json:"timestamp"`
}

// Append carries articles found by a poll.
type Append struct {
	header
	Count              int                     `json:"count"`
	Articles           []search.Article        `json:"articles"`
	ArticleReadability []analysis.ArticleScore `json:"articleReadability"`
}

// Status is an informational notice.
type Status struct {
	header
	Message string `json:"message"`
}

// Error reports a failure the client can act on.
type Error struct {
	header
	Message string `json:"message"`
}

// Pong answers a ping.
type Pong struct {
	header
}

// History lists the session's recent searches, newest first.
type History struct {
	header
	Count      int             `json:"count"`
	MaxHistory int             `json:"maxHistory"`
	Searches   []history.Entry `json:"searches"`
}

// AnalysisResult carries one analysis payload. Its JSON form is the payload
// object with a "type" field added.
type AnalysisResult struct {
	Kind    analysis.Kind
	Payload any
}

// MessageType returns the analysis kind.
func (m AnalysisResult) MessageType() string { return string(m.Kind) }

// MarshalJSON merges the type field into the payload object.
func (m AnalysisResult) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", m.Kind, err)
	}
	typ, err := json.Marshal(string(m.Kind))
	if err != nil {
		return nil, fmt.Errorf("marshaling type: %w", err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%s payload is not an object", m.Kind)
	}

	out := make([]byte, 0, len(body)+len(typ)+10)
	out = append(out, `{"type":`...)
	out = append(out, typ...)
	if rest := body[1:]; len(rest) > 1 {
		out = append(out, ',')
		out = append(out, rest...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

func newInitialResults(query string, sortBy search.SortBy, resp *search.Response, at time.Time) InitialResults {
	articles := resp.Articles
	if articles == nil {
		articles = []search.Article{}
	}
	return InitialResults{
		header:       header{TypeInitialResults},
		Query:        query,
		SortBy:       sortBy,
		TotalResults: resp.TotalResults,
		Articles:     articles,
		Timestamp:    at,
	}
}

func newAppend(articles []search.Article) Append {
	return Append{
		header:             header{TypeAppend},
		Count:              len(articles),
		Articles:           articles,
		ArticleReadability: analysis.ScoreArticles(articles),
	}
}

func newStatus(msg string) Status { return Status{header: header{TypeStatus}, Message: msg} }

func newError(msg string) Error { return Error{header: header{TypeError}, Message: msg} }

func newPong() Pong { return Pong{header: header{TypePong}} }

func newHistory(entries []history.Entry) History {
	return History{
		header:     header{TypeHistory},
		Count:      len(entries),
		MaxHistory: history.MaxEntries,
		Searches:   entries,
	}
}
