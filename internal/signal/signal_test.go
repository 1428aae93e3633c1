package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/micro-ha/ble-scanner/internal/model"
)

func TestClassifyStrength(t *testing.T) {
	tests := []struct {
		rssi int
		want Tier
	}{
		{-20, 5},
		{-45, 5},
		{-50, 5},
		{-51, 4},
		{-60, 4},
		{-61, 3},
		{-70, 3},
		{-71, 2},
		{-80, 2},
		{-81, 1},
		{-95, 1},
		{-1000, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyStrength(tt.rssi), "rssi %d", tt.rssi)
	}
}

func TestClassifyStatusBoundaries(t *testing.T) {
	seen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		age  time.Duration
		want model.ConnectionStatus
	}{
		{0, model.StatusConnected},
		{4999 * time.Millisecond, model.StatusConnected},
		{5000 * time.Millisecond, model.StatusScanning},
		{29999 * time.Millisecond, model.StatusScanning},
		{30000 * time.Millisecond, model.StatusDisconnected},
		{time.Hour, model.StatusDisconnected},
		{-time.Second, model.StatusConnected},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyStatus(seen, seen.Add(tt.age)), "age %s", tt.age)
	}
}

func TestClassifierCustomThresholds(t *testing.T) {
	c := NewClassifier(model.StatusThresholds{ConnectedWithin: time.Second, ScanningWithin: 10 * time.Second})
	seen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, model.StatusScanning, c.Status(seen, seen.Add(2*time.Second)))
	assert.Equal(t, model.StatusDisconnected, c.Status(seen, seen.Add(10*time.Second)))

	normalized := NewClassifier(model.StatusThresholds{})
	assert.Equal(t, model.StatusScanning, normalized.Status(seen, seen.Add(5*time.Second)))
}

func TestDecorate(t *testing.T) {
	seen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rssi := -65
	d := model.MergedDevice{RSSI: &rssi, LastSeen: seen}

	defaultClassifier.Decorate(&d, seen.Add(12*time.Second))

	assert.Equal(t, 3, d.SignalTier)
	assert.Equal(t, model.StatusScanning, d.Status)
	assert.Equal(t, "12s ago", d.LastSeenLabel)

	stored := model.MergedDevice{LastSeen: seen}
	defaultClassifier.Decorate(&stored, seen.Add(2*time.Hour))
	assert.Equal(t, 1, stored.SignalTier)
	assert.Equal(t, "2h ago", stored.LastSeenLabel)
}

func TestDisplayHelpers(t *testing.T) {
	seen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "59s ago", LastSeenLabel(seen, seen.Add(59*time.Second)))
	assert.Equal(t, "1m ago", LastSeenLabel(seen, seen.Add(60*time.Second)))
	assert.Equal(t, "59m ago", LastSeenLabel(seen, seen.Add(3599*time.Second)))
	assert.Equal(t, "1h ago", LastSeenLabel(seen, seen.Add(time.Hour)))

	assert.Equal(t, "0:00", FormatDuration(0))
	assert.Equal(t, "0:09", FormatDuration(9))
	assert.Equal(t, "2:05", FormatDuration(125))

	assert.Equal(t, 0.0, ScanProgress(0))
	assert.InDelta(t, 50.0, ScanProgress(30), 0.001)
	assert.Equal(t, 100.0, ScanProgress(90))
}
