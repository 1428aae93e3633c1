// Package discoverytest provides a manually driven clock for scan tests.
package discoverytest

import (
	"sync"
	"time"

	"github.com/micro-ha/ble-scanner/internal/discovery"
)

const tickTimeout = 2 * time.Second

// ManualClock advances only when told to. All tickers it creates share one
// unbuffered channel, so Tick returns once a scan loop has received the tick.
type ManualClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
	c    chan time.Time
}

func NewManualClock(start time.Time, step time.Duration) *ManualClock {
	return &ManualClock{now: start, step: step, c: make(chan time.Time)}
}

func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualClock) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

func (m *ManualClock) NewTicker(time.Duration) discovery.Ticker {
	return manualTicker{c: m.c}
}

// Tick advances the clock by one step and delivers it to a waiting ticker.
// It reports false when no scan loop picked the tick up in time.
func (m *ManualClock) Tick() bool {
	now := m.Advance(m.step)
	select {
	case m.c <- now:
		return true
	case <-time.After(tickTimeout):
		return false
	}
}

type manualTicker struct {
	c chan time.Time
}

func (t manualTicker) C() <-chan time.Time { return t.c }
func (t manualTicker) Stop()               {}
