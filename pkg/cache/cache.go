// Package cache provides a bounded, concurrency-safe map with TTL expiry.
//
// Entries expire either a fixed time after they were written or, when
// ExpireAfterAccess is set, a fixed time after they were last read or written.
// When the map holds MaxEntries items, inserting a new key evicts the least
// recently used entry. All single-key operations are atomic.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Config configures a Map.
type Config struct {
	// TTL is the entry lifetime. Zero disables expiry.
	TTL time.Duration

	// MaxEntries caps the number of entries. Zero means unbounded.
	MaxEntries int

	// ExpireAfterAccess refreshes an entry's lifetime on every read.
	ExpireAfterAccess bool
}

type entry[K comparable, V any] struct {
	key     K
	value   V
	written time.Time
	touched time.Time
	elem    *list.Element
}

// Map is a bounded TTL map. The zero value is not usable; call New.
type Map[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]*entry[K, V]
	lru   *list.List // front = most recently used
	cfg   Config
	now   func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Map.
func New[K comparable, V any](cfg Config) *Map[K, V] {
	return &Map[K, V]{
		items: make(map[K]*entry[K, V]),
		lru:   list.New(),
		cfg:   cfg,
		now:   time.Now,
	}
}

// Get returns the live value for key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.Lock()
	e, ok := m.lookup(key)
	if !ok {
		m.mu.Unlock()
		var zero V
		return zero, false
	}
	m.touch(e)
	v := e.value
	m.mu.Unlock()
	return v, true
}

// Set stores value under key, replacing any previous value.
func (m *Map[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(key, value)
}

// GetOrCompute returns the live value for key, or stores and returns the
// result of fn when the key is missing or expired. fn runs under the map lock
// and must not call back into the map.
func (m *Map[K, V]) GetOrCompute(key K, fn func() V) V {
	m.mu.Lock()
	if e, ok := m.lookup(key); ok {
		m.touch(e)
		v := e.value
		m.mu.Unlock()
		return v
	}
	v := fn()
	m.store(key, v)
	m.mu.Unlock()
	return v
}

// Compute atomically replaces the value for key with fn(old, found) and
// returns the new value. fn runs under the map lock and must not call back
// into the map.
func (m *Map[K, V]) Compute(key K, fn func(old V, found bool) V) V {
	m.mu.Lock()
	defer m.mu.Unlock()
	var old V
	e, found := m.lookup(key)
	if found {
		old = e.value
	}
	v := fn(old, found)
	m.store(key, v)
	return v
}

// Delete removes key. It reports whether a live entry was removed.
func (m *Map[K, V]) Delete(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookup(key)
	if e, exists := m.items[key]; exists {
		m.remove(e)
	}
	return ok
}

// Len returns the number of entries, including expired entries not yet
// cleaned up.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Cleanup removes expired entries and returns how many were removed.
func (m *Map[K, V]) Cleanup() int {
	if m.cfg.TTL <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for _, e := range m.items {
		if m.expired(e, now) {
			m.remove(e)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine starts a background goroutine that periodically removes
// expired entries. The goroutine is stopped when Close is called.
func (m *Map[K, V]) StartCleanupRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Cleanup()
			}
		}
	}()
}

// Close stops the cleanup goroutine and waits for it to exit.
// It is safe to call Close even if StartCleanupRoutine was never called.
func (m *Map[K, V]) Close() error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
		m.cancel = nil
	}
	return nil
}

// lookup returns the entry for key if present and not expired. Expired
// entries are removed. Caller must hold the lock.
func (m *Map[K, V]) lookup(key K) (*entry[K, V], bool) {
	e, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if m.expired(e, m.now()) {
		m.remove(e)
		return nil, false
	}
	return e, true
}

func (m *Map[K, V]) expired(e *entry[K, V], now time.Time) bool {
	if m.cfg.TTL <= 0 {
		return false
	}
	since := e.written
	if m.cfg.ExpireAfterAccess {
		since = e.touched
	}
	return now.Sub(since) >= m.cfg.TTL
}

func (m *Map[K, V]) touch(e *entry[K, V]) {
	e.touched = m.now()
	m.lru.MoveToFront(e.elem)
}

// store writes the value, evicting least recently used entries beyond
// MaxEntries. Caller must hold the lock.
func (m *Map[K, V]) store(key K, value V) {
	now := m.now()
	if e, ok := m.items[key]; ok {
		e.value = value
		e.written = now
		e.touched = now
		m.lru.MoveToFront(e.elem)
		return
	}

	e := &entry[K, V]{key: key, value: value, written: now, touched: now}
	e.elem = m.lru.PushFront(e)
	m.items[key] = e

	for m.cfg.MaxEntries > 0 && len(m.items) > m.cfg.MaxEntries {
		oldest := m.lru.Back()
		if oldest == nil {
			break
		}
		victim, _ := oldest.Value.(*entry[K, V])
		m.remove(victim)
	}
}

func (m *Map[K, V]) remove(e *entry[K, V]) {
	m.lru.Remove(e.elem)
	delete(m.items, e.key)
}
