package model

import "time"

// StatusThresholds defines transitions between Connected, Scanning and Disconnected.
type StatusThresholds struct {
	ConnectedWithin time.Duration `yaml:"connected_within"`
	ScanningWithin  time.Duration `yaml:"scanning_within"`
}

func DefaultStatusThresholds() StatusThresholds {
	return StatusThresholds{
		ConnectedWithin: 5 * time.Second,
		ScanningWithin:  30 * time.Second,
	}
}

func (t StatusThresholds) Normalize() StatusThresholds {
	defaults := DefaultStatusThresholds()
	if t.ConnectedWithin <= 0 {
		t.ConnectedWithin = defaults.ConnectedWithin
	}
	if t.ScanningWithin <= 0 {
		t.ScanningWithin = defaults.ScanningWithin
	}
	if t.ScanningWithin < t.ConnectedWithin {
		t.ScanningWithin = t.ConnectedWithin
	}
	return t
}

// ScanConfig holds scan engine settings.
type ScanConfig struct {
	Mode              string           `yaml:"mode"`
	TargetPrefix      string           `yaml:"target_prefix"`
	SimulatedInterval time.Duration    `yaml:"simulated_interval"`
	Thresholds        StatusThresholds `yaml:"thresholds"`
	BroadcastInterval time.Duration    `yaml:"broadcast_interval"`
}

func (c ScanConfig) TickInterval() time.Duration {
	if c.SimulatedInterval <= 0 {
		return 2 * time.Second
	}
	return c.SimulatedInterval
}
