package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	devicedomain "github.com/micro-ha/ble-scanner/internal/domain/device"
)

// ListDevices returns every stored device.
func (a *API) ListDevices(w http.ResponseWriter, r *http.Request) {
	items, err := a.devices.ListDevices(r.Context())
	if err != nil {
		a.logger.Error("list devices failed", "err", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ListTargetDevices returns stored target devices.
func (a *API) ListTargetDevices(w http.ResponseWriter, r *http.Request) {
	items, err := a.devices.ListTargets(r.Context())
	if err != nil {
		a.logger.Error("list target devices failed", "err", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// UpsertDevice creates a device or increments the existing row for its MAC.
func (a *API) UpsertDevice(w http.ResponseWriter, r *http.Request) {
	var payload devicedomain.UpsertInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	device, err := a.devices.UpsertDevice(r.Context(), payload)
	if err != nil {
		a.writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// GetDevice returns one device by id.
func (a *API) GetDevice(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}
	device, err := a.devices.GetDevice(r.Context(), id)
	if err != nil {
		a.writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// UpdateDevice partially updates a device.
func (a *API) UpdateDevice(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}
	var payload devicedomain.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	device, err := a.devices.UpdateDevice(r.Context(), id, payload)
	if err != nil {
		a.writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// DeleteDevice removes a device by id.
func (a *API) DeleteDevice(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}
	if err := a.devices.DeleteDevice(r.Context(), id); err != nil {
		a.writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Device deleted successfully"})
}

func (a *API) writeDeviceError(w http.ResponseWriter, err error) {
	var vErr *devicedomain.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "invalid_device", vErr.Error())
	case errors.Is(err, devicedomain.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Device not found")
	case errors.Is(err, devicedomain.ErrDeviceConflict):
		writeError(w, http.StatusConflict, "device_conflict", err.Error())
	default:
		a.logger.Error("device request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "device_failed", "Internal server error")
	}
}

func parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
