package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// DB is root sqlite storage handle for repositories.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open initializes sqlite database and runs migrations.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	d := &DB{db: db, logger: logger}
	if err := d.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes active sqlite connection pool.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// SQLDB returns low-level sql.DB for callers requiring direct access.
func (d *DB) SQLDB() *sql.DB {
	if d == nil {
		return nil
	}
	return d.db
}

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS ble_devices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			mac_address TEXT NOT NULL UNIQUE,
			rssi INTEGER,
			last_seen TEXT NOT NULL,
			device_type TEXT,
			is_target_device INTEGER NOT NULL DEFAULT 0,
			first_seen TEXT NOT NULL,
			scan_count INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
	}

	for _, stmt := range statements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	if _, err := d.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_ble_devices_target ON ble_devices(is_target_device);`); err != nil {
		return err
	}
	return d.normalizeLegacyMACKeys(ctx)
}

// normalizeLegacyMACKeys rewrites rows stored with lower-case or dash separated
// addresses. Rows that would collide with an existing canonical MAC are left.
func (d *DB) normalizeLegacyMACKeys(ctx context.Context) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE OR IGNORE ble_devices SET mac_address = REPLACE(UPPER(TRIM(mac_address)), '-', ':') `+
			`WHERE mac_address LIKE '%-%' OR mac_address != UPPER(mac_address) OR mac_address != TRIM(mac_address);`)
	if err != nil {
		return fmt.Errorf("legacy mac normalization failed: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows > 0 && d.logger != nil {
		d.logger.Info("normalized legacy mac rows", "table", "ble_devices", "rows", rows)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func fromTimePtr(v *time.Time) any {
	if v == nil {
		return nil
	}
	return formatTime(*v)
}

func fromStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromBoolPtr(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
