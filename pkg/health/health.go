// Package health tracks server readiness and serves the liveness and
// readiness probes.
package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
)

// State constants for the readiness state machine.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// SessionCounter reports live session counts for the readiness body.
type SessionCounter interface {
	// Len returns the number of connected sessions.
	Len() int

	// Searching returns the number of sessions with an active search.
	Searching() int
}

// Checker tracks the readiness state of the server.
// It is safe for concurrent use.
type Checker struct {
	state atomic.Int32

	mu       sync.RWMutex
	sessions SessionCounter
}

// NewChecker creates a Checker in the Starting state.
func NewChecker() *Checker {
	return &Checker{}
}

// SetSessions makes the readiness body report counts from c.
func (c *Checker) SetSessions(sc SessionCounter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = sc
}

// SetReady transitions to the Ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state. New WebSocket connections
// should be refused from here on.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// healthResponse is the JSON body returned by health endpoints.
type healthResponse struct {
	Status    string `json:"status"`
	Sessions  *int   `json:"sessions,omitempty"`
	Searching *int   `json:"searching,omitempty"`
}

// LivenessHandler returns an http.HandlerFunc that always responds 200 OK.
// Use this for K8s livenessProbe (/healthz).
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler returns an http.HandlerFunc that responds 200 when ready
// and 503 when starting or draining. The body carries the session counts
// when a SessionCounter is set.
// Use this for K8s readinessProbe (/readyz).
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: c.State()}

		c.mu.RLock()
		sc := c.sessions
		c.mu.RUnlock()
		if sc != nil {
			n, s := sc.Len(), sc.Searching()
			resp.Sessions, resp.Searching = &n, &s
		}

		code := http.StatusServiceUnavailable
		if c.IsReady() {
			code = http.StatusOK
		}
		writeJSON(w, code, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
