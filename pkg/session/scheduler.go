package session

import (
	"sync"
	"time"
)

// Handle controls one armed schedule.
type Handle interface {
	// Cancel stops the schedule. It reports whether this call cancelled it;
	// cancelling an already cancelled handle is a no-op.
	Cancel() bool

	// Cancelled reports whether Cancel has been called.
	Cancelled() bool
}

// Scheduler arms repeating timers. fire must not block.
type Scheduler interface {
	Schedule(interval time.Duration, fire func()) Handle
}

// TickerScheduler arms one ticker goroutine per schedule.
type TickerScheduler struct{}

// Schedule calls fire every interval until the returned handle is cancelled.
func (TickerScheduler) Schedule(interval time.Duration, fire func()) Handle {
	h := &tickerHandle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go h.run(interval, fire)
	return h
}

type tickerHandle struct {
	once      sync.Once
	mu        sync.Mutex
	cancelled bool
	stop      chan struct{}
	done      chan struct{}
}

func (h *tickerHandle) run(interval time.Duration, fire func()) {
	defer close(h.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			select {
			case <-h.stop:
				return
			default:
			}
			fire()
		}
	}
}

// Cancel stops the ticker and waits for its goroutine to exit, so no fire
// happens after Cancel returns.
func (h *tickerHandle) Cancel() bool {
	first := false
	h.once.Do(func() {
		h.mu.Lock()
		h.cancelled = true
		h.mu.Unlock()
		close(h.stop)
		first = true
	})
	<-h.done
	return first
}

func (h *tickerHandle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// Verify interface compliance.
var _ Scheduler = TickerScheduler{}
