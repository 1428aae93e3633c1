// Package discovery produces BLE sightings from the host adapter or a simulator.
package discovery

import (
	"context"
	"time"

	"github.com/micro-ha/ble-scanner/internal/domain/scan"
	"github.com/micro-ha/ble-scanner/internal/model"
)

// Emitter receives sightings in emission order. It must not block for long.
type Emitter func(model.Sighting)

// Source is a producer of discovery events.
type Source interface {
	Mode() scan.Mode
	// Scan blocks until ctx is cancelled or the source has nothing more to emit.
	Scan(ctx context.Context, emit Emitter) error
}

// Ticker is the subset of time.Ticker used by sources.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock abstracts wall time and periodic scheduling.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// SystemClock is the real-time Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }
