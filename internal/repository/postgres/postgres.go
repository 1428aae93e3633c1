// Package postgres stores devices and users in PostgreSQL through a pgx pool.
// It is selected instead of sqlite when DATABASE_URL is set.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	devicedomain "github.com/micro-ha/ble-scanner/internal/domain/device"
	userdomain "github.com/micro-ha/ble-scanner/internal/domain/user"
	"github.com/micro-ha/ble-scanner/internal/pkg/utils"
)

const uniqueViolation = "23505"

// NewDB opens a pgx pool with small defaults and verifies connectivity.
func NewDB(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the device and user tables if they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS ble_devices (
  id BIGSERIAL PRIMARY KEY,
  name TEXT,
  mac_address TEXT NOT NULL UNIQUE,
  rssi INTEGER,
  last_seen TIMESTAMPTZ NOT NULL,
  device_type TEXT,
  is_target_device BOOLEAN NOT NULL DEFAULT FALSE,
  first_seen TIMESTAMPTZ NOT NULL,
  scan_count INTEGER NOT NULL DEFAULT 1
);`,
		`CREATE INDEX IF NOT EXISTS idx_ble_devices_target ON ble_devices(is_target_device);`,
		`CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);`,
	}
	for _, stmt := range ddl {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return utils.IsUniqueConstraintError(err)
}

const deviceColumns = `id, name, mac_address, rssi, last_seen, device_type, is_target_device, first_seen, scan_count`

// DeviceRepository is the postgres implementation of device.Repository.
type DeviceRepository struct {
	pool *pgxpool.Pool
}

func NewDeviceRepository(pool *pgxpool.Pool) *DeviceRepository {
	return &DeviceRepository{pool: pool}
}

func (r *DeviceRepository) FetchAll(ctx context.Context) ([]devicedomain.Device, error) {
	return r.query(ctx, `SELECT `+deviceColumns+` FROM ble_devices ORDER BY id`)
}

func (r *DeviceRepository) FetchTargets(ctx context.Context) ([]devicedomain.Device, error) {
	return r.query(ctx, `SELECT `+deviceColumns+` FROM ble_devices WHERE is_target_device ORDER BY id`)
}

func (r *DeviceRepository) FindByID(ctx context.Context, id int64) (devicedomain.Device, error) {
	return scanDeviceRow(r.pool.QueryRow(ctx, `SELECT `+deviceColumns+` FROM ble_devices WHERE id = $1`, id))
}

func (r *DeviceRepository) FindByMAC(ctx context.Context, mac string) (devicedomain.Device, error) {
	return scanDeviceRow(r.pool.QueryRow(ctx, `SELECT `+deviceColumns+` FROM ble_devices WHERE mac_address = $1`, mac))
}

// Upsert inserts a device or refreshes the existing row and increments
// scan_count atomically.
func (r *DeviceRepository) Upsert(ctx context.Context, in devicedomain.Upsert) (devicedomain.Device, error) {
	seenAt := in.SeenAt
	if seenAt.IsZero() {
		seenAt = utils.NowUTC()
	}
	const query = `
INSERT INTO ble_devices (name, mac_address, rssi, last_seen, device_type, is_target_device, first_seen, scan_count)
VALUES ($1, $2, $3, $4, $5, $6, $4, 1)
ON CONFLICT (mac_address)
DO UPDATE SET
  name = COALESCE(EXCLUDED.name, ble_devices.name),
  rssi = COALESCE(EXCLUDED.rssi, ble_devices.rssi),
  last_seen = EXCLUDED.last_seen,
  device_type = COALESCE(EXCLUDED.device_type, ble_devices.device_type),
  is_target_device = COALESCE($7::boolean, ble_devices.is_target_device),
  scan_count = ble_devices.scan_count + 1
RETURNING ` + deviceColumns
	d, err := scanDeviceRow(r.pool.QueryRow(ctx, query,
		in.Name,
		in.MACAddress,
		in.RSSI,
		seenAt.UTC(),
		in.DeviceType,
		in.InsertTarget(),
		in.IsTargetDevice,
	))
	if err != nil {
		return devicedomain.Device{}, fmt.Errorf("upsert device %s: %w", in.MACAddress, err)
	}
	return d, nil
}

func (r *DeviceRepository) Update(ctx context.Context, id int64, patch devicedomain.Patch) (devicedomain.Device, error) {
	if patch.Empty() {
		return r.FindByID(ctx, id)
	}
	const query = `
UPDATE ble_devices SET
  name = COALESCE($1::text, name),
  mac_address = COALESCE($2::text, mac_address),
  rssi = COALESCE($3::integer, rssi),
  device_type = COALESCE($4::text, device_type),
  is_target_device = COALESCE($5::boolean, is_target_device),
  last_seen = COALESCE($6::timestamptz, last_seen),
  scan_count = COALESCE($7::integer, scan_count)
WHERE id = $8
RETURNING ` + deviceColumns
	d, err := scanDeviceRow(r.pool.QueryRow(ctx, query,
		patch.Name,
		patch.MACAddress,
		patch.RSSI,
		patch.DeviceType,
		patch.IsTargetDevice,
		patch.LastSeen,
		patch.ScanCount,
		id,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return devicedomain.Device{}, devicedomain.ErrDeviceConflict
		}
		return devicedomain.Device{}, err
	}
	return d, nil
}

func (r *DeviceRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ble_devices WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete device %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *DeviceRepository) query(ctx context.Context, stmt string) ([]devicedomain.Device, error) {
	rows, err := r.pool.Query(ctx, stmt)
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
	return items, rows.Err()
}

func scanDeviceRow(row pgx.Row) (devicedomain.Device, error) {
	d, err := scanDevice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return devicedomain.Device{}, devicedomain.ErrDeviceNotFound
	}
	return d, err
}

func scanDevice(row pgx.Row) (devicedomain.Device, error) {
	var d devicedomain.Device
	err := row.Scan(&d.ID, &d.Name, &d.MACAddress, &d.RSSI, &d.LastSeen, &d.DeviceType, &d.IsTargetDevice, &d.FirstSeen, &d.ScanCount)
	if err != nil {
		return devicedomain.Device{}, err
	}
	d.LastSeen = d.LastSeen.UTC()
	d.FirstSeen = d.FirstSeen.UTC()
	return d, nil
}

// UserRepository is the postgres implementation of user.Repository.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) CreateUser(ctx context.Context, username, passwordHash string) (userdomain.User, error) {
	u := userdomain.User{Username: username, PasswordHash: passwordHash, CreatedAt: utils.NowUTC()}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES ($1, $2, $3) RETURNING id`,
		username, passwordHash, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return userdomain.User{}, userdomain.ErrUsernameTaken
		}
		return userdomain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindUserByID(ctx context.Context, id int64) (userdomain.User, error) {
	return r.findOne(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (r *UserRepository) FindUserByUsername(ctx context.Context, username string) (userdomain.User, error) {
	return r.findOne(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username = $1`, username)
}

func (r *UserRepository) findOne(ctx context.Context, stmt string, arg any) (userdomain.User, error) {
	var u userdomain.User
	err := r.pool.QueryRow(ctx, stmt, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return userdomain.User{}, userdomain.ErrUserNotFound
	}
	if err != nil {
		return userdomain.User{}, fmt.Errorf("find user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}
