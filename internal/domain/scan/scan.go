package scan

import (
	"errors"
	"strings"
)

var (
	// ErrAlreadyActive is returned when a scan is started twice.
	ErrAlreadyActive = errors.New("scan already active")
	// ErrCapabilityAbsent indicates the host has no usable Bluetooth adapter.
	ErrCapabilityAbsent = errors.New("bluetooth capability not available")
)

// Mode selects where discovery events come from.
type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeLive      Mode = "live"
	ModeSimulated Mode = "simulated"
)

// ParseMode maps a config value onto a Mode, defaulting to auto.
func ParseMode(raw string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeLive:
		return ModeLive
	case ModeSimulated, "demo", "mock":
		return ModeSimulated
	default:
		return ModeAuto
	}
}
