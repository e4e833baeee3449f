package audit

import (
	"context"
	"log/slog"
)

// SlogLogger writes audit events to a structured logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates a SlogLogger. A nil logger selects slog.Default.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger.With("component", "audit")}
}

// Log implements Logger.
func (l *SlogLogger) Log(ctx context.Context, e Event) error {
	attrs := []slog.Attr{
		slog.String("id", e.ID),
		slog.String("session_id", e.SessionID),
		slog.String("kind", string(e.Kind)),
		slog.String("query", e.Query),
		slog.String("sort_by", e.SortBy),
		slog.Int("total_results", e.TotalResults),
		slog.Int("new_articles", e.NewArticles),
		slog.Bool("cache_hit", e.CacheHit),
		slog.Bool("success", e.Success),
		slog.Int64("duration_ms", e.DurationMS),
	}
	if e.UserID != "" {
		attrs = append(attrs, slog.String("user_id", e.UserID))
	}
	if e.ErrorKind != "" {
		attrs = append(attrs, slog.String("error_kind", e.ErrorKind), slog.String("error", e.ErrorMessage))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "search audit", attrs...)
	return nil
}

// Query implements Logger. Log output cannot be read back.
func (*SlogLogger) Query(context.Context, QueryFilter) ([]Event, error) {
	return nil, ErrQueryUnsupported
}

// Close implements Logger.
func (*SlogLogger) Close() error {
	return nil
}

var _ Logger = (*SlogLogger)(nil)
