package audit

import "time"

// BreakdownDimension defines valid group-by dimensions.
type BreakdownDimension string

const (
	// BreakdownByQuery groups by search query.
	BreakdownByQuery BreakdownDimension = "query"

	// BreakdownBySessionID groups by session.
	BreakdownBySessionID BreakdownDimension = "session_id"

	// BreakdownByUserID groups by user ID.
	BreakdownByUserID BreakdownDimension = "user_id"

	// BreakdownByKind groups by lookup kind (initial, poll).
	BreakdownByKind BreakdownDimension = "kind"

	// BreakdownByErrorKind groups by provider failure class.
	BreakdownByErrorKind BreakdownDimension = "error_kind"
)

// ValidBreakdownDimensions is the set of allowed group-by values.
var ValidBreakdownDimensions = map[BreakdownDimension]bool{
	BreakdownByQuery:     true,
	BreakdownBySessionID: true,
	BreakdownByUserID:    true,
	BreakdownByKind:      true,
	BreakdownByErrorKind: true,
}

// BreakdownFilter controls breakdown query parameters.
type BreakdownFilter struct {
	GroupBy   BreakdownDimension
	Limit     int
	StartTime *time.Time
	EndTime   *time.Time
}

// BreakdownEntry holds aggregated stats for a single dimension value.
type BreakdownEntry struct {
	Dimension     string  `json:"dimension"`
	Count         int     `json:"count"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// Overview holds aggregate statistics for the audit trail.
type Overview struct {
	TotalSearches  int     `json:"total_searches"`
	SuccessRate    float64 `json:"success_rate"`
	AvgDurationMS  float64 `json:"avg_duration_ms"`
	UniqueSessions int     `json:"unique_sessions"`
	UniqueQueries  int     `json:"unique_queries"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	NewArticles    int64   `json:"new_articles"`
	ErrorCount     int     `json:"error_count"`
}
