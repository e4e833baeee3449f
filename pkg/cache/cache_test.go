package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTTL        = time.Minute
	testGoroutines = 10
	testIterations = 100
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMap(cfg Config) (*Map[string, int], *fakeClock) {
	clock := newFakeClock()
	m := New[string, int](cfg)
	m.now = clock.Now
	return m, clock
}

func TestMap_SetAndGet(t *testing.T) {
	m, _ := newTestMap(Config{})

	_, ok := m.Get("a")
	assert.False(t, ok)

	m.Set("a", 1)
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	m.Set("a", 2)
	v, _ = m.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, m.Len())
}

func TestMap_TTLExpiry(t *testing.T) {
	m, clock := newTestMap(Config{TTL: testTTL})
	m.Set("a", 1)

	clock.Advance(testTTL - time.Second)
	_, ok := m.Get("a")
	assert.True(t, ok, "entry should be live before TTL")

	clock.Advance(time.Second)
	_, ok = m.Get("a")
	assert.False(t, ok, "entry should expire at TTL")
	assert.Equal(t, 0, m.Len(), "expired entry is removed on lookup")
}

func TestMap_ReadDoesNotExtendWriteTTL(t *testing.T) {
	m, clock := newTestMap(Config{TTL: testTTL})
	m.Set("a", 1)

	for range 5 {
		clock.Advance(testTTL / 4)
		m.Get("a")
	}
	_, ok := m.Get("a")
	assert.False(t, ok)
}

func TestMap_ExpireAfterAccess(t *testing.T) {
	m, clock := newTestMap(Config{TTL: testTTL, ExpireAfterAccess: true})
	m.Set("a", 1)

	for range 5 {
		clock.Advance(testTTL / 2)
		_, ok := m.Get("a")
		require.True(t, ok, "reads keep the entry alive")
	}

	clock.Advance(testTTL)
	_, ok := m.Get("a")
	assert.False(t, ok, "idle entry expires")
}

func TestMap_MaxEntriesEvictsLeastRecentlyUsed(t *testing.T) {
	m, _ := newTestMap(Config{MaxEntries: 3})
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	// Touch "a" so "b" becomes the oldest.
	m.Get("a")
	m.Set("d", 4)

	assert.Equal(t, 3, m.Len())
	_, ok := m.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	for _, k := range []string{"a", "c", "d"} {
		_, ok := m.Get(k)
		assert.True(t, ok, k)
	}
}

func TestMap_GetOrCompute(t *testing.T) {
	m, clock := newTestMap(Config{TTL: testTTL})
	calls := 0
	compute := func() int {
		calls++
		return calls * 10
	}

	assert.Equal(t, 10, m.GetOrCompute("a", compute))
	assert.Equal(t, 10, m.GetOrCompute("a", compute))
	assert.Equal(t, 1, calls)

	clock.Advance(testTTL)
	assert.Equal(t, 20, m.GetOrCompute("a", compute))
	assert.Equal(t, 2, calls)
}

func TestMap_Compute(t *testing.T) {
	m, _ := newTestMap(Config{})

	v := m.Compute("a", func(old int, found bool) int {
		assert.False(t, found)
		assert.Zero(t, old)
		return 1
	})
	assert.Equal(t, 1, v)

	v = m.Compute("a", func(old int, found bool) int {
		assert.True(t, found)
		return old + 1
	})
	assert.Equal(t, 2, v)
}

func TestMap_ComputeIsAtomic(t *testing.T) {
	m := New[string, int](Config{})

	var wg sync.WaitGroup
	for range testGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range testIterations {
				m.Compute("counter", func(old int, _ bool) int { return old + 1 })
			}
		}()
	}
	wg.Wait()

	v, ok := m.Get("counter")
	require.True(t, ok)
	assert.Equal(t, testGoroutines*testIterations, v)
}

func TestMap_Delete(t *testing.T) {
	m, clock := newTestMap(Config{TTL: testTTL})
	m.Set("a", 1)
	assert.True(t, m.Delete("a"))
	assert.False(t, m.Delete("a"))

	m.Set("b", 2)
	clock.Advance(testTTL)
	assert.False(t, m.Delete("b"), "expired entry is not reported as removed")
	assert.Equal(t, 0, m.Len())
}

func TestMap_Cleanup(t *testing.T) {
	m, clock := newTestMap(Config{TTL: testTTL})
	m.Set("old", 1)
	clock.Advance(testTTL / 2)
	m.Set("new", 2)
	clock.Advance(testTTL / 2)

	assert.Equal(t, 1, m.Cleanup())
	assert.Equal(t, 1, m.Len())
	_, ok := m.Get("new")
	assert.True(t, ok)
}

func TestMap_CleanupWithoutTTL(t *testing.T) {
	m, clock := newTestMap(Config{})
	m.Set("a", 1)
	clock.Advance(24 * time.Hour)
	assert.Equal(t, 0, m.Cleanup())
	assert.Equal(t, 1, m.Len())
}

func TestMap_CleanupRoutine(t *testing.T) {
	m := New[string, int](Config{TTL: 20 * time.Millisecond})
	m.Set("a", 1)
	m.StartCleanupRoutine(10 * time.Millisecond)

	require.Eventually(t, func() bool { return m.Len() == 0 },
		time.Second, 10*time.Millisecond)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "second Close is a no-op")
}

func TestMap_CloseWithoutRoutine(t *testing.T) {
	m := New[string, int](Config{})
	assert.NoError(t, m.Close())
}

func TestMap_ConcurrentAccess(t *testing.T) {
	m := New[string, int](Config{TTL: testTTL, MaxEntries: 50})

	var wg sync.WaitGroup
	for g := range testGoroutines {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range testIterations {
				key := fmt.Sprintf("k-%d-%d", g, i%20)
				m.Set(key, i)
				m.Get(key)
				m.GetOrCompute(key, func() int { return i })
				if i%7 == 0 {
					m.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Len(), 50)
}
