package device

import (
	"time"

	"github.com/micro-ha/ble-scanner/internal/model"
)

// Device is a persisted BLE device.
type Device = model.Device

// Upsert carries insert-or-increment fields.
type Upsert = model.DeviceUpsert

// Patch is a partial device update.
type Patch = model.DevicePatch

// UpsertInput is API payload for POST /ble-devices.
type UpsertInput struct {
	Name           *string `json:"name"`
	MACAddress     string  `json:"macAddress"`
	RSSI           *int    `json:"rssi"`
	DeviceType     *string `json:"deviceType"`
	IsTargetDevice *bool   `json:"isTargetDevice"`
}

// UpdateInput is API payload for PUT /ble-devices/{id}.
type UpdateInput struct {
	Name           *string    `json:"name"`
	MACAddress     *string    `json:"macAddress"`
	RSSI           *int       `json:"rssi"`
	DeviceType     *string    `json:"deviceType"`
	IsTargetDevice *bool      `json:"isTargetDevice"`
	LastSeen       *time.Time `json:"lastSeen"`
	ScanCount      *int       `json:"scanCount"`
}
