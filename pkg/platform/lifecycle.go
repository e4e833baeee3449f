package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Hook is a named pair of start and stop callbacks. Either may be nil.
type Hook struct {
	Name  string
	Start func(context.Context) error
	Stop  func(context.Context) error
}

// Lifecycle starts components in registration order and stops them in
// reverse.
type Lifecycle struct {
	mu sync.Mutex

	hooks   []Hook
	started bool
}

// NewLifecycle creates a new lifecycle manager.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// Append registers a hook.
func (l *Lifecycle) Append(h Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, h)
}

// OnStart registers a start-only hook.
func (l *Lifecycle) OnStart(name string, fn func(context.Context) error) {
	l.Append(Hook{Name: name, Start: fn})
}

// OnStop registers a stop-only hook.
func (l *Lifecycle) OnStop(name string, fn func(context.Context) error) {
	l.Append(Hook{Name: name, Stop: fn})
}

// RegisterCloser closes c on shutdown.
func (l *Lifecycle) RegisterCloser(name string, c io.Closer) {
	l.OnStop(name, func(context.Context) error {
		return c.Close()
	})
}

// Start runs the start callbacks. If one fails, the hooks already started
// are stopped in reverse order and the error is returned.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return errors.New("lifecycle already started")
	}

	for i, h := range l.hooks {
		if h.Start == nil {
			continue
		}
		if err := h.Start(ctx); err != nil {
			l.rollback(ctx, i)
			return fmt.Errorf("starting %s: %w", h.Name, err)
		}
		slog.Debug("lifecycle: started", "hook", h.Name)
	}

	l.started = true
	return nil
}

// rollback stops the hooks before failedAt in reverse order.
func (l *Lifecycle) rollback(ctx context.Context, failedAt int) {
	for j := failedAt - 1; j >= 0; j-- {
		h := l.hooks[j]
		if h.Stop == nil {
			continue
		}
		if err := h.Stop(ctx); err != nil {
			slog.Warn("lifecycle rollback: stop failed", "hook", h.Name, "error", err)
		}
	}
}

// Stop runs every stop callback in reverse order, collecting failures.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return nil
	}

	var errs []error
	for i := len(l.hooks) - 1; i >= 0; i-- {
		h := l.hooks[i]
		if h.Stop == nil {
			continue
		}
		if err := h.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", h.Name, err))
		}
	}

	l.started = false
	return errors.Join(errs...)
}

// IsStarted returns whether the lifecycle has been started.
func (l *Lifecycle) IsStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}
