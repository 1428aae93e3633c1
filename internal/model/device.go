package model

import "time"

// Device is a persisted BLE device row. JSON names are the public API contract.
type Device struct {
	ID             int64     `json:"id"`
	Name           *string   `json:"name"`
	MACAddress     string    `json:"macAddress"`
	RSSI           *int      `json:"rssi"`
	LastSeen       time.Time `json:"lastSeen"`
	DeviceType     *string   `json:"deviceType"`
	IsTargetDevice bool      `json:"isTargetDevice"`
	FirstSeen      time.Time `json:"firstSeen"`
	ScanCount      int       `json:"scanCount"`
}

// DeviceUpsert carries the fields written by an insert-or-increment upsert.
type DeviceUpsert struct {
	MACAddress     string
	Name           *string
	RSSI           *int
	DeviceType     *string
	// IsTargetDevice is the caller-supplied flag; nil keeps the stored value.
	IsTargetDevice *bool
	// DefaultTarget is written on insert when IsTargetDevice is nil.
	DefaultTarget  bool
	SeenAt         time.Time
}

// InsertTarget is the flag a newly inserted row gets.
func (u DeviceUpsert) InsertTarget() bool {
	if u.IsTargetDevice != nil {
		return *u.IsTargetDevice
	}
	return u.DefaultTarget
}

// DevicePatch is a partial update; nil fields keep their stored value.
type DevicePatch struct {
	Name           *string
	MACAddress     *string
	RSSI           *int
	DeviceType     *string
	IsTargetDevice *bool
	LastSeen       *time.Time
	ScanCount      *int
}

// Empty reports whether the patch changes nothing.
func (p DevicePatch) Empty() bool {
	return p.Name == nil && p.MACAddress == nil && p.RSSI == nil && p.DeviceType == nil &&
		p.IsTargetDevice == nil && p.LastSeen == nil && p.ScanCount == nil
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
