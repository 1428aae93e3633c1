// Package merge combines the live scan set with persisted devices and
// serializes background persistence per MAC.
package merge

import (
	"strconv"

	"github.com/micro-ha/ble-scanner/internal/model"
	"github.com/micro-ha/ble-scanner/internal/oui"
)

const unknownName = "Unknown Device"

// Merge returns live devices in session order followed by persisted devices
// whose MAC is not live, in store order. A live entry always shadows the
// stored row for the same MAC; fields are never reconciled.
func Merge(live []model.LiveDevice, persisted []model.Device) []model.MergedDevice {
	result := make([]model.MergedDevice, 0, len(live)+len(persisted))
	seen := make(map[string]struct{}, len(live))

	for _, d := range live {
		mac := oui.NormalizeMAC(d.MACAddress)
		seen[mac] = struct{}{}
		rssi := d.RSSI
		result = append(result, model.MergedDevice{
			ID:         d.ID,
			MACAddress: mac,
			Name:       d.Name,
			DeviceType: d.DeviceType,
			RSSI:       &rssi,
			LastSeen:   d.LastSeen,
			IsTarget:   d.IsTarget,
			Origin:     model.OriginLive,
		})
	}

	for _, d := range persisted {
		mac := oui.NormalizeMAC(d.MACAddress)
		if _, ok := seen[mac]; ok {
			continue
		}
		// duplicate stored rows for one MAC collapse to the first
		seen[mac] = struct{}{}
		id := d.ID
		count := d.ScanCount
		result = append(result, model.MergedDevice{
			ID:         strconv.FormatInt(d.ID, 10),
			StoredID:   &id,
			MACAddress: mac,
			Name:       deref(d.Name, unknownName),
			DeviceType: deref(d.DeviceType, ""),
			RSSI:       copyInt(d.RSSI),
			LastSeen:   d.LastSeen,
			IsTarget:   d.IsTargetDevice,
			Origin:     model.OriginStored,
			ScanCount:  &count,
		})
	}
	return result
}

// Targets keeps only target devices, preserving order.
func Targets(devices []model.MergedDevice) []model.MergedDevice {
	out := make([]model.MergedDevice, 0, len(devices))
	for _, d := range devices {
		if d.IsTarget {
			out = append(out, d)
		}
	}
	return out
}

func deref(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
