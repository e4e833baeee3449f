package analysis

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/live-search/pkg/search"
)

type stubAnalyzer struct {
	kind    Kind
	payload any
	err     error
	panics  bool
	delay   time.Duration
}

func (s stubAnalyzer) Kind() Kind { return s.kind }

func (s stubAnalyzer) Analyze(ctx context.Context, _ Input) (any, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.panics {
		panic("boom")
	}
	return s.payload, s.err
}

func (s stubAnalyzer) Degraded(_ Input, err error) any {
	return "degraded: " + err.Error()
}

type collector struct {
	mu      sync.Mutex
	results []Result
}

func (c *collector) deliver(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *collector) byKind() map[Kind]Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Kind]Result, len(c.results))
	for _, r := range c.results {
		out[r.Kind] = r
	}
	return out
}

type recordingRecorder struct {
	mu     sync.Mutex
	kinds  []string
	failed int
}

func (r *recordingRecorder) ObserveAnalysis(kind string, _ time.Duration, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	if failed {
		r.failed++
	}
}

func TestDispatch_DeliversEveryAnalyzer(t *testing.T) {
	rec := &recordingRecorder{}
	d := NewDispatcher(DispatcherConfig{Recorder: rec},
		stubAnalyzer{kind: KindReadability, payload: 1},
		stubAnalyzer{kind: KindSentiment, payload: 2},
		stubAnalyzer{kind: KindWordStats, err: errors.New("bad input")},
		stubAnalyzer{kind: KindSources, panics: true},
	)

	c := &collector{}
	d.Dispatch(context.Background(), Input{}, nil, c.deliver)

	got := c.byKind()
	require.Len(t, got, 4)
	assert.Equal(t, 1, got[KindReadability].Payload)
	assert.NoError(t, got[KindReadability].Err)
	assert.Equal(t, "degraded: bad input", got[KindWordStats].Payload)
	assert.Error(t, got[KindWordStats].Err)
	assert.Contains(t, got[KindSources].Err.Error(), "panicked")
	assert.Contains(t, got[KindSources].Payload, "degraded")

	sort.Strings(rec.kinds)
	assert.Equal(t, []string{"readability", "sentiment", "sources", "wordStats"}, rec.kinds)
	assert.Equal(t, 2, rec.failed)
}

func TestDispatch_OnlySelectedKinds(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, Standard(nil, 0)...)

	c := &collector{}
	d.Dispatch(context.Background(), Input{Articles: []search.Article{{Description: "Good news."}}},
		[]Kind{KindReadability, KindSentiment}, c.deliver)

	got := c.byKind()
	require.Len(t, got, 2)
	assert.IsType(t, Readability{}, got[KindReadability].Payload)
	assert.IsType(t, Sentiment{}, got[KindSentiment].Payload)
}

func TestDispatch_TaskTimeoutDegrades(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{TaskTimeout: 20 * time.Millisecond},
		stubAnalyzer{kind: KindSources, delay: time.Second},
	)

	c := &collector{}
	start := time.Now()
	d.Dispatch(context.Background(), Input{}, nil, c.deliver)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	got := c.byKind()
	require.Contains(t, got, KindSources)
	assert.ErrorIs(t, got[KindSources].Err, context.DeadlineExceeded)
}

func TestDispatch_CancelledContextDeliversNothing(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, stubAnalyzer{kind: KindReadability, payload: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &collector{}
	d.Dispatch(ctx, Input{}, nil, c.deliver)
	assert.Empty(t, c.byKind())
}

func TestDispatch_RespectsConcurrencyLimit(t *testing.T) {
	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	track := func() {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
	}

	var analyzers []Analyzer
	for _, k := range []Kind{KindReadability, KindSentiment, KindWordStats, KindSources, KindSourceProfile} {
		analyzers = append(analyzers, funcAnalyzer{kind: k, fn: track})
	}
	d := NewDispatcher(DispatcherConfig{Concurrency: 2}, analyzers...)
	c := &collector{}
	d.Dispatch(context.Background(), Input{}, nil, c.deliver)

	assert.Len(t, c.byKind(), 5)
	assert.LessOrEqual(t, peak, 2)
}

type funcAnalyzer struct {
	kind Kind
	fn   func()
}

func (f funcAnalyzer) Kind() Kind { return f.kind }

func (f funcAnalyzer) Analyze(context.Context, Input) (any, error) {
	f.fn()
	return nil, nil
}

func (funcAnalyzer) Degraded(Input, error) any { return nil }

func TestDispatcher_Kinds(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, Standard(nil, 0)...)
	assert.Equal(t, []Kind{KindReadability, KindSentiment, KindWordStats}, d.Kinds())
}
