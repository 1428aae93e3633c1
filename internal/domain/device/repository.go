package device

import "context"

// Repository defines persistent storage operations for BLE devices.
type Repository interface {
	FetchAll(ctx context.Context) ([]Device, error)
	FetchTargets(ctx context.Context) ([]Device, error)
	FindByID(ctx context.Context, id int64) (Device, error)
	FindByMAC(ctx context.Context, mac string) (Device, error)
	Upsert(ctx context.Context, in Upsert) (Device, error)
	Update(ctx context.Context, id int64, patch Patch) (Device, error)
	DeleteByID(ctx context.Context, id int64) (bool, error)
}
