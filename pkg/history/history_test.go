package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/live-search/pkg/search"
)

const testSession = "sess-1"

func entry(query string) Entry {
	return Entry{Query: query, SortBy: search.SortPublishedAt, CreatedAt: time.Now()}
}

func TestStore_ListEmpty(t *testing.T) {
	s := NewStore(Config{})
	got := s.List("missing")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_PushNewestFirst(t *testing.T) {
	s := NewStore(Config{})
	s.Push(testSession, entry("first"))
	s.Push(testSession, entry("second"))

	got := s.List(testSession)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Query)
	assert.Equal(t, "first", got[1].Query)
}

func TestStore_KeepsAtMostMaxEntries(t *testing.T) {
	for _, n := range []int{1, 5, MaxEntries, MaxEntries + 1, 3 * MaxEntries} {
		t.Run(fmt.Sprintf("%d searches", n), func(t *testing.T) {
			s := NewStore(Config{})
			for i := range n {
				s.Push(testSession, entry(fmt.Sprintf("q%d", i)))
			}
			got := s.List(testSession)
			require.Len(t, got, min(n, MaxEntries))
			assert.Equal(t, fmt.Sprintf("q%d", n-1), got[0].Query)
			for i := 1; i < len(got); i++ {
				assert.Equal(t, fmt.Sprintf("q%d", n-1-i), got[i].Query)
			}
		})
	}
}

func TestStore_SnapshotsAreStable(t *testing.T) {
	s := NewStore(Config{})
	s.Push(testSession, entry("a"))
	snap := s.List(testSession)

	s.Push(testSession, entry("b"))
	snap[0].Query = "mutated"

	require.Len(t, snap, 1)
	got := s.List(testSession)
	assert.Equal(t, []string{"b", "a"}, []string{got[0].Query, got[1].Query})
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	s := NewStore(Config{})
	s.Push("a", entry("for-a"))
	s.Push("b", entry("for-b"))

	assert.Equal(t, "for-a", s.List("a")[0].Query)
	assert.Equal(t, "for-b", s.List("b")[0].Query)
	assert.Equal(t, 2, s.Sessions())
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(Config{})
	s.Push(testSession, entry("a"))
	s.Clear(testSession)
	assert.Empty(t, s.List(testSession))
	assert.Equal(t, 0, s.Sessions())
}

func TestStore_MaxSessions(t *testing.T) {
	s := NewStore(Config{MaxSessions: 2})
	s.Push("a", entry("1"))
	s.Push("b", entry("2"))
	s.List("a")
	s.Push("c", entry("3"))

	assert.Equal(t, 2, s.Sessions())
	assert.Empty(t, s.List("b"), "least recently used bucket is evicted")
	assert.NotEmpty(t, s.List("a"))
}

func TestStore_IdleExpiry(t *testing.T) {
	s := NewStore(Config{IdleTTL: 30 * time.Millisecond})
	s.Push(testSession, entry("a"))
	s.StartCleanupRoutine(10 * time.Millisecond)
	defer func() { require.NoError(t, s.Close()) }()

	require.Eventually(t, func() bool { return s.Sessions() == 0 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, s.List(testSession))
}

func TestStore_ConcurrentPush(t *testing.T) {
	s := NewStore(Config{})
	var wg sync.WaitGroup
	for g := range 10 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range 20 {
				s.Push(testSession, entry(fmt.Sprintf("%d-%d", g, i)))
				s.List(testSession)
			}
		}(g)
	}
	wg.Wait()
	assert.Len(t, s.List(testSession), MaxEntries)
}

func TestNewEntry(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	resp := &search.Response{
		TotalResults: 7,
		Articles: []search.Article{
			{Title: "a", Description: "A great and amazing win."},
		},
	}
	e := NewEntry("ai", search.SortRelevancy, resp, at)

	assert.Equal(t, "ai", e.Query)
	assert.Equal(t, search.SortRelevancy, e.SortBy)
	assert.Equal(t, 7, e.TotalResults)
	assert.Equal(t, at, e.CreatedAt)
	assert.Len(t, e.Readability.ArticleScores, 1)
	assert.Equal(t, ":-)", e.Sentiment.Sentiment)

	resp.Articles[0].Title = "changed"
	assert.Equal(t, "a", e.Articles[0].Title, "entry holds its own article snapshot")
}
