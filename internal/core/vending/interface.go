package vending

import (
	"cidrvend/internal/store/allocation"
	"context"
)

type VendingServiceHandler interface {
	Allocate(ctx context.Context, param ServiceAllocateModel) (*allocation.Record, error)
	Bind(ctx context.Context, param ServiceBindModel) (*allocation.Record, error)
	Release(ctx context.Context, param ServiceReleaseModel) error
	Lookup(ctx context.Context, param ServiceLookupModel) (*allocation.Record, error)
}
