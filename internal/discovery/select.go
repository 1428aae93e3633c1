package discovery

import (
	"fmt"

	"github.com/micro-ha/ble-scanner/internal/domain/scan"
)

const (
	demoAdvisory      = "Using demo mode - Bluetooth adapter not available"
	simulatedAdvisory = "Simulated scanning enabled by configuration"
)

// Probe is a source that can report whether it is usable on this host.
type Probe interface {
	Source
	Available() error
}

// Selection describes which source was picked and why.
type Selection struct {
	Mode     scan.Mode `json:"mode"`
	Demo     bool      `json:"demoMode"`
	Advisory string    `json:"advisory,omitempty"`
}

// Select resolves the configured mode to a concrete source. In auto mode a missing
// adapter degrades to the simulator instead of failing.
func Select(mode scan.Mode, live Probe, simulated Source) (Source, Selection, error) {
	switch mode {
	case scan.ModeSimulated:
		return simulated, Selection{Mode: scan.ModeSimulated, Demo: true, Advisory: simulatedAdvisory}, nil
	case scan.ModeLive:
		if err := probe(live); err != nil {
			return nil, Selection{Mode: scan.ModeLive}, err
		}
		return live, Selection{Mode: scan.ModeLive}, nil
	default:
		if err := probe(live); err != nil {
			return simulated, Selection{Mode: scan.ModeSimulated, Demo: true, Advisory: demoAdvisory}, nil
		}
		return live, Selection{Mode: scan.ModeLive}, nil
	}
}

func probe(live Probe) error {
	if live == nil {
		return scan.ErrCapabilityAbsent
	}
	if err := live.Available(); err != nil {
		return fmt.Errorf("probe live source: %w", err)
	}
	return nil
}
