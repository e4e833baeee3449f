package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is the number of events buffered by an AsyncLogger.
const DefaultQueueSize = 1024

const writeTimeout = 5 * time.Second

// AsyncLogger buffers events and writes them to another Logger on a single
// background goroutine, so callers never block on storage. Events arriving
// while the queue is full are dropped and counted.
type AsyncLogger struct {
	next    Logger
	logger  *slog.Logger
	queue   chan Event
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncLogger starts the writer goroutine. A queueSize of zero selects
// DefaultQueueSize.
func NewAsyncLogger(next Logger, queueSize int, logger *slog.Logger) *AsyncLogger {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &AsyncLogger{
		next:   next,
		logger: logger.With("component", "audit"),
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncLogger) run() {
	defer close(a.done)
	for e := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := a.next.Log(ctx, e); err != nil {
			a.logger.Warn("failed to write audit event", "id", e.ID, "error", err)
		}
		cancel()
	}
}

// Log enqueues the event. It never blocks and never fails; a full or closed
// queue drops the event.
func (a *AsyncLogger) Log(_ context.Context, e Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return nil
	}
	select {
	case a.queue <- e:
	default:
		if a.dropped.Add(1)%100 == 1 {
			a.logger.Warn("audit queue full, dropping events", "dropped", a.dropped.Load())
		}
	}
	return nil
}

// Query reads through to the underlying logger.
func (a *AsyncLogger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return a.next.Query(ctx, filter)
}

// Dropped returns the number of events dropped so far.
func (a *AsyncLogger) Dropped() int64 {
	return a.dropped.Load()
}

// Close flushes queued events, then closes the underlying logger.
func (a *AsyncLogger) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}

var _ Logger = (*AsyncLogger)(nil)
