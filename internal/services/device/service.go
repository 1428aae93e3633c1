package device

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	devicedomain "github.com/micro-ha/ble-scanner/internal/domain/device"
	"github.com/micro-ha/ble-scanner/internal/model"
	"github.com/micro-ha/ble-scanner/internal/oui"
	"github.com/micro-ha/ble-scanner/internal/pkg/utils"
)

const (
	maxNameLength = 255
	minRSSI       = -127
	maxRSSI       = 20
)

// TargetClassifier decides target membership when a caller does not supply it.
type TargetClassifier interface {
	IsTarget(mac string) bool
}

// Service implements device.Service use-cases.
type Service struct {
	repo    devicedomain.Repository
	targets TargetClassifier
	logger  *slog.Logger
	now     func() time.Time
}

// New creates device service.
func New(repo devicedomain.Repository, targets TargetClassifier, logger *slog.Logger) *Service {
	if targets == nil {
		targets = oui.NewPrefixMatcher(oui.DefaultTargetPrefix)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, targets: targets, logger: logger, now: utils.NowUTC}
}

// ListDevices returns all stored devices in store order.
func (s *Service) ListDevices(ctx context.Context) ([]devicedomain.Device, error) {
	return s.repo.FetchAll(ctx)
}

// ListTargets returns stored target devices.
func (s *Service) ListTargets(ctx context.Context) ([]devicedomain.Device, error) {
	return s.repo.FetchTargets(ctx)
}

func (s *Service) GetDevice(ctx context.Context, id int64) (devicedomain.Device, error) {
	return s.repo.FindByID(ctx, id)
}

// UpsertDevice validates input and inserts or increments the row for its MAC.
func (s *Service) UpsertDevice(ctx context.Context, in devicedomain.UpsertInput) (devicedomain.Device, error) {
	mac := normalizeMAC(in.MACAddress)
	if mac == "" {
		return devicedomain.Device{}, &devicedomain.ValidationError{Field: "macAddress", Reason: "is required"}
	}
	if !oui.ValidMAC(mac) {
		return devicedomain.Device{}, &devicedomain.ValidationError{Field: "macAddress", Reason: "must have 6 hex octets"}
	}
	if err := validateName(in.Name); err != nil {
		return devicedomain.Device{}, err
	}
	if err := validateRSSI(in.RSSI); err != nil {
		return devicedomain.Device{}, err
	}

	return s.repo.Upsert(ctx, devicedomain.Upsert{
		MACAddress:     mac,
		Name:           trimmedOrNil(in.Name),
		RSSI:           in.RSSI,
		DeviceType:     trimmedOrNil(in.DeviceType),
		IsTargetDevice: in.IsTargetDevice,
		DefaultTarget:  s.targets.IsTarget(mac),
		SeenAt:         s.now(),
	})
}

// RecordSighting persists one newly discovered live device.
func (s *Service) RecordSighting(ctx context.Context, d model.LiveDevice) (devicedomain.Device, error) {
	name := d.Name
	deviceType := d.DeviceType
	rssi := d.RSSI
	seenAt := d.LastSeen
	if seenAt.IsZero() {
		seenAt = s.now()
	}
	return s.repo.Upsert(ctx, devicedomain.Upsert{
		MACAddress:    oui.NormalizeMAC(d.MACAddress),
		Name:          trimmedOrNil(&name),
		RSSI:          &rssi,
		DeviceType:    trimmedOrNil(&deviceType),
		DefaultTarget: d.IsTarget,
		SeenAt:        seenAt,
	})
}

// UpdateDevice applies a partial update.
func (s *Service) UpdateDevice(ctx context.Context, id int64, in devicedomain.UpdateInput) (devicedomain.Device, error) {
	patch := devicedomain.Patch{
		Name:           trimmedOrNil(in.Name),
		RSSI:           in.RSSI,
		DeviceType:     trimmedOrNil(in.DeviceType),
		IsTargetDevice: in.IsTargetDevice,
		LastSeen:       in.LastSeen,
		ScanCount:      in.ScanCount,
	}
	if in.MACAddress != nil {
		mac := normalizeMAC(*in.MACAddress)
		if !oui.ValidMAC(mac) {
			return devicedomain.Device{}, &devicedomain.ValidationError{Field: "macAddress", Reason: "must have 6 hex octets"}
		}
		patch.MACAddress = &mac
	}
	if err := validateName(in.Name); err != nil {
		return devicedomain.Device{}, err
	}
	if err := validateRSSI(in.RSSI); err != nil {
		return devicedomain.Device{}, err
	}
	if in.ScanCount != nil && *in.ScanCount < 1 {
		return devicedomain.Device{}, &devicedomain.ValidationError{Field: "scanCount", Reason: "must be at least 1"}
	}
	if in.LastSeen != nil {
		t := in.LastSeen.UTC()
		patch.LastSeen = &t
	}
	return s.repo.Update(ctx, id, patch)
}

func (s *Service) DeleteDevice(ctx context.Context, id int64) error {
	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return devicedomain.ErrDeviceNotFound
	}
	s.logger.Info("device deleted", "id", id)
	return nil
}

func validateName(name *string) error {
	if name == nil {
		return nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(*name)) > maxNameLength {
		return &devicedomain.ValidationError{Field: "name", Reason: "must be at most 255 characters"}
	}
	return nil
}

func validateRSSI(rssi *int) error {
	if rssi == nil {
		return nil
	}
	if *rssi < minRSSI || *rssi > maxRSSI {
		return &devicedomain.ValidationError{Field: "rssi", Reason: "must be between -127 and 20 dBm"}
	}
	return nil
}

func normalizeMAC(mac string) string {
	mac = strings.TrimSpace(mac)
	if mac == "" {
		return ""
	}
	return oui.NormalizeMAC(mac)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	normalized := strings.TrimSpace(*value)
	if normalized == "" {
		return nil
	}
	return &normalized
}
