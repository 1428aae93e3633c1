package device

import "context"

// Service exposes device use-cases used by HTTP and scan layers.
type Service interface {
	ListDevices(ctx context.Context) ([]Device, error)
	ListTargets(ctx context.Context) ([]Device, error)
	GetDevice(ctx context.Context, id int64) (Device, error)
	UpsertDevice(ctx context.Context, in UpsertInput) (Device, error)
	UpdateDevice(ctx context.Context, id int64, in UpdateInput) (Device, error)
	DeleteDevice(ctx context.Context, id int64) error
}
