package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	devicedomain "github.com/micro-ha/ble-scanner/internal/domain/device"
	"github.com/micro-ha/ble-scanner/internal/pkg/utils"
)

const deviceColumns = `id, name, mac_address, rssi, last_seen, device_type, is_target_device, first_seen, scan_count`

// DeviceRepository is sqlite implementation of device.Repository.
type DeviceRepository struct {
	db *DB
}

// NewDeviceRepository creates sqlite-backed device repository.
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// FetchAll returns every stored device in insertion order.
func (r *DeviceRepository) FetchAll(ctx context.Context) ([]devicedomain.Device, error) {
	return r.query(ctx, `SELECT `+deviceColumns+` FROM ble_devices ORDER BY id`)
}

// FetchTargets returns stored devices flagged as targets.
func (r *DeviceRepository) FetchTargets(ctx context.Context) ([]devicedomain.Device, error) {
	return r.query(ctx, `SELECT `+deviceColumns+` FROM ble_devices WHERE is_target_device = 1 ORDER BY id`)
}

func (r *DeviceRepository) FindByID(ctx context.Context, id int64) (devicedomain.Device, error) {
	row := r.db.SQLDB().QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM ble_devices WHERE id = ?`, id)
	return scanDeviceRow(row)
}

func (r *DeviceRepository) FindByMAC(ctx context.Context, mac string) (devicedomain.Device, error) {
	row := r.db.SQLDB().QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM ble_devices WHERE mac_address = ?`, mac)
	return scanDeviceRow(row)
}

// Upsert inserts a device or, when the MAC exists, refreshes it and increments
// scan_count in the same statement.
func (r *DeviceRepository) Upsert(ctx context.Context, in devicedomain.Upsert) (devicedomain.Device, error) {
	seenAt := in.SeenAt
	if seenAt.IsZero() {
		seenAt = utils.NowUTC()
	}
	row := r.db.SQLDB().QueryRowContext(ctx, `
		INSERT INTO ble_devices(name, mac_address, rssi, last_seen, device_type, is_target_device, first_seen, scan_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(mac_address) DO UPDATE SET
			name = COALESCE(excluded.name, ble_devices.name),
			rssi = COALESCE(excluded.rssi, ble_devices.rssi),
			last_seen = excluded.last_seen,
			device_type = COALESCE(excluded.device_type, ble_devices.device_type),
			is_target_device = COALESCE(?, ble_devices.is_target_device),
			scan_count = ble_devices.scan_count + 1
		RETURNING `+deviceColumns,
		fromStringPtr(in.Name),
		in.MACAddress,
		fromIntPtr(in.RSSI),
		formatTime(seenAt),
		fromStringPtr(in.DeviceType),
		in.InsertTarget(),
		formatTime(seenAt),
		fromBoolPtr(in.IsTargetDevice),
	)
	d, err := scanDeviceRow(row)
	if err != nil {
		return devicedomain.Device{}, fmt.Errorf("upsert device %s: %w", in.MACAddress, err)
	}
	return d, nil
}

// Update applies a partial patch; nil fields keep their stored value.
func (r *DeviceRepository) Update(ctx context.Context, id int64, patch devicedomain.Patch) (devicedomain.Device, error) {
	if patch.Empty() {
		return r.FindByID(ctx, id)
	}
	row := r.db.SQLDB().QueryRowContext(ctx, `
		UPDATE ble_devices SET
			name = COALESCE(?, name),
			mac_address = COALESCE(?, mac_address),
			rssi = COALESCE(?, rssi),
			device_type = COALESCE(?, device_type),
			is_target_device = COALESCE(?, is_target_device),
			last_seen = COALESCE(?, last_seen),
			scan_count = COALESCE(?, scan_count)
		WHERE id = ?
		RETURNING `+deviceColumns,
		fromStringPtr(patch.Name),
		fromStringPtr(patch.MACAddress),
		fromIntPtr(patch.RSSI),
		fromStringPtr(patch.DeviceType),
		fromBoolPtr(patch.IsTargetDevice),
		fromTimePtr(patch.LastSeen),
		fromIntPtr(patch.ScanCount),
		id,
	)
	d, err := scanDeviceRow(row)
	if err != nil {
		if utils.IsUniqueConstraintError(err) {
			return devicedomain.Device{}, devicedomain.ErrDeviceConflict
		}
		return devicedomain.Device{}, err
	}
	return d, nil
}

// DeleteByID removes one device and reports whether a row existed.
func (r *DeviceRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.SQLDB().ExecContext(ctx, `DELETE FROM ble_devices WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete device %d: %w", id, err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

func (r *DeviceRepository) query(ctx context.Context, stmt string) ([]devicedomain.Device, error) {
	rows, err := r.db.SQLDB().QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	items := make([]devicedomain.Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeviceRow(row rowScanner) (devicedomain.Device, error) {
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return devicedomain.Device{}, devicedomain.ErrDeviceNotFound
	}
	return d, err
}

func scanDevice(row rowScanner) (devicedomain.Device, error) {
	var (
		d          devicedomain.Device
		name       sql.NullString
		rssi       sql.NullInt64
		lastSeen   string
		deviceType sql.NullString
		firstSeen  string
	)
	if err := row.Scan(&d.ID, &name, &d.MACAddress, &rssi, &lastSeen, &deviceType, &d.IsTargetDevice, &firstSeen, &d.ScanCount); err != nil {
		return devicedomain.Device{}, err
	}
	d.Name = strPtr(name)
	d.RSSI = intPtr(rssi)
	d.DeviceType = strPtr(deviceType)
	d.LastSeen = parseTime(lastSeen)
	d.FirstSeen = parseTime(firstSeen)
	return d, nil
}
