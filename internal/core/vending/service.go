package vending

import (
	"cidrvend/internal/ipam"
	"cidrvend/internal/metrics"
	"cidrvend/internal/store/allocation"
	"context"
	"time"

	"go.uber.org/zap"
)

func NewVendingService(ipamHandler ipam.IpamHandler, m *metrics.Metrics, logs *zap.Logger) *VendingService {
	return &VendingService{
		ipamHandler: ipamHandler,
		metrics:     m,
		logs:        logs,
	}
}

// VendingService is the transport independent entry point of the
// allocation service. Owner identity is resolved by the caller.
type VendingService struct {
	ipamHandler ipam.IpamHandler
	metrics     *metrics.Metrics
	logs        *zap.Logger
}

func (s *VendingService) Allocate(ctx context.Context, param ServiceAllocateModel) (*allocation.Record, error) {
	start := time.Now()
	rec, err := s.ipamHandler.Allocate(ctx, param.OwnerId, param.Region)
	s.observe(opAllocate, param.OwnerId, err, start)
	if err != nil {
		return nil, err
	}
	s.metrics.BlockAllocated()
	return rec, nil
}

func (s *VendingService) Bind(ctx context.Context, param ServiceBindModel) (*allocation.Record, error) {
	start := time.Now()
	rec, err := s.ipamHandler.Bind(ctx, param.BlockCidr, param.ResourceId, param.OwnerId)
	s.observe(opBind, param.OwnerId, err, start)
	return rec, err
}

func (s *VendingService) Release(ctx context.Context, param ServiceReleaseModel) error {
	start := time.Now()
	err := s.ipamHandler.Release(ctx, param.BlockCidr, param.OwnerId)
	s.observe(opRelease, param.OwnerId, err, start)
	if err != nil {
		return err
	}
	s.metrics.BlockReleased()
	return nil
}

func (s *VendingService) Lookup(ctx context.Context, param ServiceLookupModel) (*allocation.Record, error) {
	start := time.Now()
	rec, err := s.ipamHandler.Lookup(ctx, param.BlockCidr, param.OwnerId)
	s.observe(opLookup, param.OwnerId, err, start)
	return rec, err
}

func (s *VendingService) observe(op string, owner string, err error, start time.Time) {
	if err == nil {
		s.metrics.Observe(op, "", start)
		return
	}

	kind := ipam.KindOf(err)
	s.metrics.Observe(op, kind.String(), start)

	fields := []zap.Field{zap.String("op", op), zap.String("owner", owner), zap.Stringer("kind", kind), zap.Error(err)}
	switch kind {
	case ipam.KindTransportFailure, ipam.KindUnknown:
		s.logs.Error("vending operation failed", fields...)
	default:
		s.logs.Info("vending operation rejected", fields...)
	}
}
