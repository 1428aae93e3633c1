// Package signal turns raw RSSI readings and last-seen timestamps into display tiers.
package signal

import (
	"fmt"
	"time"

	"github.com/micro-ha/ble-scanner/internal/model"
)

// Tier is a signal strength bucket from 1 (weakest) to 5.
type Tier int

const (
	TierMin Tier = 1
	TierMax Tier = 5
)

// scanWindow is the duration at which scan progress reads 100%.
const scanWindow = 60

// ClassifyStrength maps dBm onto a tier using inclusive lower bounds.
func ClassifyStrength(rssi int) Tier {
	switch {
	case rssi >= -50:
		return 5
	case rssi >= -60:
		return 4
	case rssi >= -70:
		return 3
	case rssi >= -80:
		return 2
	default:
		return 1
	}
}

// Classifier derives connection status from recency.
type Classifier struct {
	thresholds model.StatusThresholds
}

func NewClassifier(thresholds model.StatusThresholds) *Classifier {
	return &Classifier{thresholds: thresholds.Normalize()}
}

var defaultClassifier = NewClassifier(model.DefaultStatusThresholds())

// ClassifyStatus uses the default 5s/30s windows.
func ClassifyStatus(lastSeen, now time.Time) model.ConnectionStatus {
	return defaultClassifier.Status(lastSeen, now)
}

func (c *Classifier) Status(lastSeen, now time.Time) model.ConnectionStatus {
	age := now.Sub(lastSeen)
	switch {
	case age < c.thresholds.ConnectedWithin:
		return model.StatusConnected
	case age < c.thresholds.ScanningWithin:
		return model.StatusScanning
	default:
		return model.StatusDisconnected
	}
}

// Decorate fills display-only fields of a merged device.
func (c *Classifier) Decorate(d *model.MergedDevice, now time.Time) {
	if d.RSSI != nil {
		d.SignalTier = int(ClassifyStrength(*d.RSSI))
	} else {
		d.SignalTier = int(TierMin)
	}
	d.Status = c.Status(d.LastSeen, now)
	d.LastSeenLabel = LastSeenLabel(d.LastSeen, now)
}

// LastSeenLabel renders age as "12s ago", "3m ago" or "2h ago".
func LastSeenLabel(lastSeen, now time.Time) string {
	seconds := int64(now.Sub(lastSeen) / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds ago", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	default:
		return fmt.Sprintf("%dh ago", seconds/3600)
	}
}

// FormatDuration renders whole seconds as m:ss.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// ScanProgress reports elapsed time as a percentage of a one minute scan.
func ScanProgress(elapsedSeconds int64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	if elapsedSeconds >= scanWindow {
		return 100
	}
	return float64(elapsedSeconds) / scanWindow * 100
}
