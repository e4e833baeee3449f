package session

import (
	"sort"
	"sync"
)

// Registry tracks the actors of connected clients. Several connections may
// share a session id (two tabs with the same cookie), so actors are tracked
// individually.
type Registry struct {
	mu     sync.RWMutex
	actors map[*Actor]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{actors: make(map[*Actor]struct{})}
}

// Add tracks a.
func (r *Registry) Add(a *Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actors[a] = struct{}{}
}

// Remove stops tracking a.
func (r *Registry) Remove(a *Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actors, a)
}

// Len returns the number of connected clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}

// List returns a snapshot of every tracked session, oldest first.
func (r *Registry) List() []Info {
	r.mu.RLock()
	result := make([]Info, 0, len(r.actors))
	for a := range r.actors {
		result = append(result, a.Info())
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Searching returns how many tracked sessions have an active search.
func (r *Registry) Searching() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for a := range r.actors {
		if a.Info().State == StateSearching {
			n++
		}
	}
	return n
}
