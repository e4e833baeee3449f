package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerScheduler_FiresUntilCancelled(t *testing.T) {
	var fired atomic.Int32
	h := TickerScheduler{}.Schedule(5*time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() >= 2 }, time.Second, time.Millisecond)
	assert.False(t, h.Cancelled())

	assert.True(t, h.Cancel())
	assert.True(t, h.Cancelled())
	after := fired.Load()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, fired.Load(), "no fire after Cancel returns")
}

func TestTickerScheduler_CancelIsIdempotent(t *testing.T) {
	h := TickerScheduler{}.Schedule(time.Hour, func() {})
	assert.True(t, h.Cancel())
	assert.False(t, h.Cancel())
	assert.False(t, h.Cancel())
	assert.True(t, h.Cancelled())
}
