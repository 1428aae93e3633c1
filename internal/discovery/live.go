package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/micro-ha/ble-scanner/internal/domain/scan"
	"github.com/micro-ha/ble-scanner/internal/model"
	"github.com/micro-ha/ble-scanner/internal/oui"
)

const unknownDeviceType = "BLE Peripheral"

// Adapter is the part of *bluetooth.Adapter used for passive scanning.
type Adapter interface {
	Enable() error
	Scan(callback func(*bluetooth.Adapter, bluetooth.ScanResult)) error
	StopScan() error
}

// LiveSource relays advertisements from the host Bluetooth stack.
type LiveSource struct {
	adapter Adapter
	clock   Clock

	mu      sync.Mutex
	enabled bool
}

func NewLiveSource(adapter Adapter, clock Clock) *LiveSource {
	if clock == nil {
		clock = SystemClock{}
	}
	return &LiveSource{adapter: adapter, clock: clock}
}

func (s *LiveSource) Mode() scan.Mode {
	return scan.ModeLive
}

// Available enables the adapter and reports ErrCapabilityAbsent on failure.
// Only success is remembered, so an adapter that appears later is picked up
// by the next probe.
func (s *LiveSource) Available() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled {
		return nil
	}
	if s.adapter == nil {
		return scan.ErrCapabilityAbsent
	}
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("%w: %v", scan.ErrCapabilityAbsent, err)
	}
	s.enabled = true
	return nil
}

func (s *LiveSource) Scan(ctx context.Context, emit Emitter) error {
	if err := s.Available(); err != nil {
		return err
	}

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.adapter.StopScan()
		case <-finished:
		}
	}()

	err := s.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		if ctx.Err() != nil {
			return
		}
		emit(s.sighting(result.Address.String(), result.LocalName(), result.RSSI))
	})
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("bluetooth scan: %w", err)
	}
	return nil
}

func (s *LiveSource) sighting(address, localName string, rssi int16) model.Sighting {
	mac := oui.NormalizeMAC(address)
	name := strings.TrimSpace(localName)
	if name == "" {
		name = "Unknown Device"
	}
	return model.Sighting{
		MACAddress: mac,
		Name:       name,
		DeviceType: unknownDeviceType,
		RSSI:       int(rssi),
		ObservedAt: s.clock.Now(),
	}
}
