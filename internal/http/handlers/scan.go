package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/micro-ha/ble-scanner/internal/domain/scan"
)

// ScanStatus returns the scan session snapshot.
func (a *API) ScanStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.scan.Status())
}

// StartScan begins a scan in the configured mode.
func (a *API) StartScan(w http.ResponseWriter, _ *http.Request) {
	status, err := a.scan.Start()
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, status)
	case errors.Is(err, scan.ErrAlreadyActive):
		writeError(w, http.StatusConflict, "scan_active", "Scan already in progress")
	case errors.Is(err, scan.ErrCapabilityAbsent):
		writeError(w, http.StatusServiceUnavailable, "bluetooth_unavailable", "Bluetooth adapter not available")
	default:
		a.logger.Error("start scan failed", "err", err)
		writeError(w, http.StatusInternalServerError, "scan_failed", "Internal server error")
	}
}

// StopScan ends the running scan; it succeeds when idle too.
func (a *API) StopScan(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.scan.Stop())
}

// ClearScan empties the live device list.
func (a *API) ClearScan(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.scan.Clear())
}

// ScanDevices returns the merged live and stored view.
func (a *API) ScanDevices(w http.ResponseWriter, r *http.Request) {
	targetsOnly := false
	if raw := strings.TrimSpace(r.URL.Query().Get("target")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_target_filter", "target must be true or false")
			return
		}
		targetsOnly = value
	}
	writeJSON(w, http.StatusOK, a.scan.View(r.Context(), targetsOnly))
}

// ScanStream upgrades to a websocket carrying status and discovery events.
func (a *API) ScanStream(w http.ResponseWriter, r *http.Request) {
	if a.stream == nil {
		writeError(w, http.StatusNotFound, "stream_unavailable", "Event stream not configured")
		return
	}
	a.stream.ServeWS(w, r)
}
