package device

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound indicates missing device by id or MAC.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDeviceConflict indicates a MAC address already owned by another row.
	ErrDeviceConflict = errors.New("device mac address already exists")
)

// ValidationError describes a rejected input field at the persistence boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "validation error"
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
