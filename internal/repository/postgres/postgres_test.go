package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	devicedomain "github.com/micro-ha/ble-scanner/internal/domain/device"
	userdomain "github.com/micro-ha/ble-scanner/internal/domain/user"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewDB(ctx, dsn)
	if err != nil {
		t.Fatalf("database unavailable: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE ble_devices, users RESTART IDENTITY"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

// Integration test for the insert-or-increment upsert.
func TestUpsertIncrementsScanCount(t *testing.T) {
	pool := newTestPool(t)
	repo := NewDeviceRepository(pool)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 1; i <= 3; i++ {
		rssi := -60
		d, err := repo.Upsert(ctx, devicedomain.Upsert{
			MACAddress:    "00:25:DF:12:34:56",
			RSSI:          &rssi,
			DefaultTarget: true,
			SeenAt:        base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
		if d.ScanCount != i {
			t.Fatalf("upsert %d: expected scan_count %d, got %d", i, i, d.ScanCount)
		}
	}

	targets, err := repo.FetchTargets(ctx)
	if err != nil {
		t.Fatalf("fetch targets: %v", err)
	}
	if len(targets) != 1 || !targets[0].FirstSeen.Equal(base.Add(time.Second)) {
		t.Fatalf("unexpected targets: %+v", targets)
	}

	name := "renamed"
	updated, err := repo.Update(ctx, targets[0].ID, devicedomain.Patch{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name == nil || *updated.Name != name || updated.ScanCount != 3 {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if _, err := repo.FindByID(ctx, 4242); !errors.Is(err, devicedomain.ErrDeviceNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateUserRejectsDuplicate(t *testing.T) {
	pool := newTestPool(t)
	repo := NewUserRepository(pool)
	ctx := context.Background()

	if _, err := repo.CreateUser(ctx, "operator", "hash"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.CreateUser(ctx, "operator", "hash"); !errors.Is(err, userdomain.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}
