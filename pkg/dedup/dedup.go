// Package dedup tracks which items a session has already delivered.
package dedup

import "container/list"

// DefaultCapacity is the number of keys a Set remembers.
const DefaultCapacity = 100

// Set is a bounded set of item keys. When full, adding a new key evicts the
// key that was inserted first. Lookups do not refresh a key's position.
//
// Set is not safe for concurrent use.
type Set struct {
	capacity int
	seq      uint64
	index    map[string]*list.Element
	order    *list.List // front = oldest
}

type item struct {
	key string
	seq uint64
}

// New creates a Set holding at most capacity keys. A capacity below one
// selects DefaultCapacity.
func New(capacity int) *Set {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Set{
		capacity: capacity,
		index:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Add records key and reports true if it was not already present.
// A duplicate leaves the set untouched and returns false.
func (s *Set) Add(key string) bool {
	if _, ok := s.index[key]; ok {
		return false
	}
	s.seq++
	s.index[key] = s.order.PushBack(item{key: key, seq: s.seq})
	for s.order.Len() > s.capacity {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(item).key)
	}
	return true
}

// Contains reports whether key is present.
func (s *Set) Contains(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Len returns the number of keys held.
func (s *Set) Len() int {
	return s.order.Len()
}

// Capacity returns the maximum number of keys held.
func (s *Set) Capacity() int {
	return s.capacity
}

// Reset removes every key. Sequence numbers keep increasing.
func (s *Set) Reset() {
	s.index = make(map[string]*list.Element, s.capacity)
	s.order.Init()
}

// Keys returns the keys oldest first.
func (s *Set) Keys() []string {
	keys := make([]string, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(item).key)
	}
	return keys
}
