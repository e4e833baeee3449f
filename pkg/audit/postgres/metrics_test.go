package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/live-search/pkg/audit"
)

var breakdownColumns = []string{"dimension", "count", "success_rate", "avg_duration_ms"}

func TestBreakdown_Success(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT COALESCE\(query, ''\) AS dimension.+FROM search_audit.+GROUP BY dimension ORDER BY count DESC LIMIT 10`).
		WillReturnRows(sqlmock.NewRows(breakdownColumns).
			AddRow("ai", 12, 0.75, 210.5).
			AddRow("go", 3, 1.0, 90.0))

	entries, err := store.Breakdown(context.Background(), audit.BreakdownFilter{GroupBy: audit.BreakdownByQuery})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.BreakdownEntry{Dimension: "ai", Count: 12, SuccessRate: 0.75, AvgDurationMS: 210.5}, entries[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBreakdown_InvalidDimension(t *testing.T) {
	store, _ := newMockStore(t)
	_, err := store.Breakdown(context.Background(), audit.BreakdownFilter{GroupBy: "password"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid breakdown dimension")
}

func TestBreakdown_AllDimensions(t *testing.T) {
	for dim := range audit.ValidBreakdownDimensions {
		t.Run(string(dim), func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows(breakdownColumns))

			entries, err := store.Breakdown(context.Background(), audit.BreakdownFilter{GroupBy: dim})
			require.NoError(t, err)
			assert.NotNil(t, entries)
			assert.Empty(t, entries)
		})
	}
}

func TestBreakdown_LimitCapped(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("LIMIT 100").WillReturnRows(sqlmock.NewRows(breakdownColumns))

	_, err := store.Breakdown(context.Background(), audit.BreakdownFilter{GroupBy: audit.BreakdownByKind, Limit: 5000})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBreakdown_QueryError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT COALESCE").WillReturnError(errors.New("db down"))

	_, err := store.Breakdown(context.Background(), audit.BreakdownFilter{GroupBy: audit.BreakdownByErrorKind})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying breakdown")
}

func TestOverview_Success(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT.+FROM search_audit").
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{
			"total_searches", "success_rate", "avg_duration_ms", "unique_sessions",
			"unique_queries", "cache_hit_rate", "new_articles", "error_count",
		}).AddRow(100, 0.9, 150.0, 12, 30, 0.4, int64(250), 10))

	o, err := store.Overview(context.Background(), &start, &end)
	require.NoError(t, err)
	assert.Equal(t, &audit.Overview{
		TotalSearches:  100,
		SuccessRate:    0.9,
		AvgDurationMS:  150,
		UniqueSessions: 12,
		UniqueQueries:  30,
		CacheHitRate:   0.4,
		NewArticles:    250,
		ErrorCount:     10,
	}, o)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverview_QueryError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("db down"))

	_, err := store.Overview(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying overview")
}

func TestDefaultTimeRange(t *testing.T) {
	t.Run("both nil", func(t *testing.T) {
		start, end := defaultTimeRange(nil, nil)
		assert.WithinDuration(t, time.Now(), end, time.Second)
		assert.Equal(t, defaultMetricsWindow, end.Sub(start))
	})

	t.Run("with values", func(t *testing.T) {
		s := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		e := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
		start, end := defaultTimeRange(&s, &e)
		assert.Equal(t, s, start)
		assert.Equal(t, e, end)
	})
}

func TestClampBreakdownLimit(t *testing.T) {
	assert.Equal(t, defaultBreakdownLimit, clampBreakdownLimit(0))
	assert.Equal(t, 25, clampBreakdownLimit(25))
	assert.Equal(t, maxBreakdownLimit, clampBreakdownLimit(1000))
}
