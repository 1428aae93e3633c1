package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	devicedomain "github.com/micro-ha/ble-scanner/internal/domain/device"
	userdomain "github.com/micro-ha/ble-scanner/internal/domain/user"
	"github.com/micro-ha/ble-scanner/internal/model"
	"github.com/micro-ha/ble-scanner/internal/services/scanner"
)

// ScanService controls the scan session and builds the merged view.
type ScanService interface {
	Start() (scanner.Status, error)
	Stop() scanner.Status
	Clear() scanner.Status
	Status() scanner.Status
	View(ctx context.Context, targetsOnly bool) []model.MergedDevice
}

// StreamServer upgrades websocket requests for live scan events.
type StreamServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// StorePinger reports whether the device store is reachable.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// API groups HTTP handlers and dependencies.
type API struct {
	devices   devicedomain.Service
	users     userdomain.Service
	scan      ScanService
	stream    StreamServer
	store     StorePinger
	logger    *slog.Logger
	staticDir string
}

// New creates HTTP handlers with explicit dependencies.
func New(
	devices devicedomain.Service,
	users userdomain.Service,
	scan ScanService,
	stream StreamServer,
	store StorePinger,
	logger *slog.Logger,
	staticDir string,
) *API {
	return &API{
		devices:   devices,
		users:     users,
		scan:      scan,
		stream:    stream,
		store:     store,
		logger:    logger,
		staticDir: staticDir,
	}
}

// Logger returns request logger used by HTTP middleware.
func (a *API) Logger() *slog.Logger {
	return a.logger
}

// Health reports liveness, store reachability and whether a scan is running.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"service":   "ble-scanner",
	}
	if a.scan != nil {
		body["scanActive"] = a.scan.Status().IsActive
	}
	if a.store != nil {
		if err := a.store.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["store"] = err.Error()
		}
	}
	writeJSON(w, status, body)
}

// Static serves frontend assets and SPA fallback.
func (a *API) Static(w http.ResponseWriter, r *http.Request) {
	if a.staticDir == "" {
		writeError(w, http.StatusNotFound, "frontend_missing", "Frontend dist not found")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}
	cleanPath := strings.TrimPrefix(filepath.Clean("/"+path), "/")
	fullPath := filepath.Join(a.staticDir, cleanPath)
	if info, err := os.Stat(fullPath); err == nil && !info.IsDir() {
		http.ServeFile(w, r, fullPath)
		return
	}
	index := filepath.Join(a.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		writeError(w, http.StatusNotFound, "frontend_missing", "Frontend dist not found")
		return
	}
	http.ServeFile(w, r, index)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
