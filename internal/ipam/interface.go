package ipam

import (
	"cidrvend/internal/store/allocation"
	"context"
)

type IpamHandler interface {
	Allocate(ctx context.Context, ownerId string, region string) (*allocation.Record, error)
	Bind(ctx context.Context, blockCidr string, resourceId string, ownerId string) (*allocation.Record, error)
	Release(ctx context.Context, blockCidr string, ownerId string) error
	Lookup(ctx context.Context, blockCidr string, ownerId string) (*allocation.Record, error)
}
