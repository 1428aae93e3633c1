package model

import "time"

// Sighting is one raw discovery event produced by a scan source.
type Sighting struct {
	MACAddress string
	Name       string
	DeviceType string
	RSSI       int
	ObservedAt time.Time
}

// LiveDevice is the per-session record of a MAC seen during the active scan.
type LiveDevice struct {
	ID                   string    `json:"id"`
	MACAddress           string    `json:"macAddress"`
	Name                 string    `json:"name"`
	DeviceType           string    `json:"deviceType"`
	RSSI                 int       `json:"rssi"`
	LastSeen             time.Time `json:"lastSeen"`
	FirstSeenThisSession time.Time `json:"firstSeenThisSession"`
	IsTarget             bool      `json:"isTargetDevice"`
}

type Origin string

const (
	OriginLive   Origin = "live"
	OriginStored Origin = "stored"
)

type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "Connected"
	StatusScanning     ConnectionStatus = "Scanning"
	StatusDisconnected ConnectionStatus = "Disconnected"
)

// MergedDevice is one row of the display list built from live and stored devices.
type MergedDevice struct {
	ID         string    `json:"id"`
	StoredID   *int64    `json:"storedId,omitempty"`
	MACAddress string    `json:"macAddress"`
	Name       string    `json:"name"`
	DeviceType string    `json:"deviceType"`
	RSSI       *int      `json:"rssi"`
	LastSeen   time.Time `json:"lastSeen"`
	IsTarget   bool      `json:"isTargetDevice"`
	Origin     Origin    `json:"origin"`
	ScanCount  *int      `json:"scanCount,omitempty"`

	SignalTier    int              `json:"signalTier,omitempty"`
	Status        ConnectionStatus `json:"status,omitempty"`
	LastSeenLabel string           `json:"lastSeenLabel,omitempty"`
}

// SessionMetrics are the counters of one scan session.
type SessionMetrics struct {
	StartedAt          *time.Time `json:"startedAt"`
	IsActive           bool       `json:"isActive"`
	TotalSightingCount int        `json:"totalSightingCount"`
	TargetDeviceCount  int        `json:"targetDeviceCount"`
}
