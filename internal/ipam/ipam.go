package ipam

import (
	"cidrvend/internal/store/allocation"
	"context"
	"net/netip"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func NewIpamManager(store allocation.AllocationStore, pool Pool, clk clock.Clock, logs *zap.Logger) *IpamManager {
	return &IpamManager{
		store: store,
		pool:  pool,
		clock: clk,
		logs:  logs,
	}
}

// IpamManager hands out blocks of the pool. It keeps no state of its own;
// the store's conditional writes are the only synchronization between
// concurrent callers.
type IpamManager struct {
	store allocation.AllocationStore
	pool  Pool
	clock clock.Clock
	logs  *zap.Logger
}

// Allocate writes a record for the first candidate block without one. A
// candidate lost to a concurrent writer is skipped, never retried.
func (m *IpamManager) Allocate(ctx context.Context, ownerId string, region string) (*allocation.Record, error) {
	if ownerId == "" {
		return nil, newError(KindInvalidRequest, errors.New("owner identity is required"))
	}

	n := m.pool.NumCandidates()
	for i := uint64(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, newError(KindTransportFailure, errors.Wrap(err, "allocation aborted"))
		}

		block := m.pool.Candidate(i)
		rec := &allocation.Record{
			BlockCidr: block.String(),
			CreatedAt: m.clock.Now().UTC(),
			OwnerId:   ownerId,
			Region:    region,
			SubBlocks: prefixStrings(Partition(block, m.pool.SubBits)),
		}

		err := m.store.PutIfAbsent(ctx, rec)
		if err == nil {
			m.logs.Info("block allocated",
				zap.String("block", rec.BlockCidr),
				zap.String("owner", ownerId),
				zap.Uint64("candidate", i))
			return rec, nil
		}
		if errors.Cause(err) == allocation.ErrItemExists {
			continue
		}
		return nil, newError(KindTransportFailure, errors.Wrapf(err, "failed to claim %s", rec.BlockCidr))
	}

	m.logs.Warn("master pool exhausted", zap.String("master", m.pool.Master.String()), zap.Uint64("candidates", n))
	return nil, ErrExhausted
}

// Bind records resourceId on the block if ownerId owns it.
func (m *IpamManager) Bind(ctx context.Context, blockCidr string, resourceId string, ownerId string) (*allocation.Record, error) {
	block, err := m.poolBlock(blockCidr)
	if err != nil {
		return nil, err
	}
	if resourceId == "" {
		return nil, newError(KindInvalidRequest, errors.New("resource id is required"))
	}

	rec, err := m.store.UpdateIfOwner(ctx, block, ownerId, allocation.Update{BoundResourceId: resourceId})
	if err != nil {
		return nil, storeError(err, block)
	}

	m.logs.Info("block bound",
		zap.String("block", block),
		zap.String("owner", ownerId),
		zap.String("resource", resourceId))
	return rec, nil
}

// Release deletes the block's record if ownerId owns it. The block is
// eligible for Allocate again as soon as this returns.
func (m *IpamManager) Release(ctx context.Context, blockCidr string, ownerId string) error {
	block, err := m.poolBlock(blockCidr)
	if err != nil {
		return err
	}

	if err := m.store.DeleteIfOwner(ctx, block, ownerId); err != nil {
		return storeError(err, block)
	}

	m.logs.Info("block released", zap.String("block", block), zap.String("owner", ownerId))
	return nil
}

// Lookup returns the block's record if ownerId owns it.
func (m *IpamManager) Lookup(ctx context.Context, blockCidr string, ownerId string) (*allocation.Record, error) {
	block, err := m.poolBlock(blockCidr)
	if err != nil {
		return nil, err
	}

	rec, err := m.store.Get(ctx, block)
	if err != nil {
		return nil, storeError(err, block)
	}
	if rec.OwnerId != ownerId {
		return nil, storeError(allocation.ErrOwnerMismatch, block)
	}
	return rec, nil
}

// poolBlock canonicalizes blockCidr. A well formed block that is not a
// candidate of the pool can have no record, so it is NotFound without a
// store round trip.
func (m *IpamManager) poolBlock(blockCidr string) (string, error) {
	p, err := netip.ParsePrefix(blockCidr)
	if err != nil {
		return "", newError(KindInvalidRequest, errors.Wrapf(err, "invalid block %q", blockCidr))
	}
	if p.Masked() != p {
		return "", newError(KindInvalidRequest, errors.Errorf("block %s: host bits must be zero", p))
	}
	if !m.pool.Contains(p) {
		return "", newError(KindNotFound, errors.Errorf("no allocation for %s", p))
	}
	return p.String(), nil
}

func storeError(err error, block string) error {
	switch errors.Cause(err) {
	case allocation.ErrItemNotExists:
		return newError(KindNotFound, errors.Errorf("no allocation for %s", block))
	case allocation.ErrOwnerMismatch:
		return newError(KindOwnershipMismatch, errors.Errorf("%s is owned by another identity", block))
	case allocation.ErrConflict:
		return newError(KindTransportFailure, errors.Wrapf(err, "%s changed during the write, retry", block))
	default:
		return newError(KindTransportFailure, errors.Wrapf(err, "store failure on %s", block))
	}
}
