package ipam

import (
	"cidrvend/internal/store/allocation"
	"context"
	"net/netip"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testTime = time.Date(2020, time.September, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, master string, block, sub int) (*IpamManager, allocation.AllocationStore) {
	t.Helper()

	pool, err := NewPool(master, block, sub)
	require.NoError(t, err)

	store, err := allocation.NewBoltStore(filepath.Join(t.TempDir(), "allocations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewIpamManager(store, pool, clock.NewTestClock(testTime), zap.NewNop()), store
}

func TestAllocateFirstBlocks(t *testing.T) {
	m, _ := newTestManager(t, "10.0.0.0/12", 24, 26)
	ctx := context.Background()

	first, err := m.Allocate(ctx, "acct-A", "eu-west-1")
	require.NoError(t, err)
	require.Equal(t, "10.0.0.0/24", first.BlockCidr)
	require.Equal(t, []string{"10.0.0.0/26", "10.0.0.64/26", "10.0.0.128/26", "10.0.0.192/26"}, first.SubBlocks)
	require.Equal(t, "acct-A", first.OwnerId)
	require.Equal(t, "eu-west-1", first.Region)
	require.Equal(t, testTime, first.CreatedAt)

	second, err := m.Allocate(ctx, "acct-B", "us-east-1")
	require.NoError(t, err)
	require.Equal(t, "10.0.1.0/24", second.BlockCidr)
	require.Equal(t, "10.0.1.192/26", second.SubBlocks[3])
}

func TestAllocateRejectsMissingOwner(t *testing.T) {
	m, _ := newTestManager(t, "10.0.0.0/12", 24, 26)

	_, err := m.Allocate(context.Background(), "", "eu-west-1")
	require.Equal(t, KindInvalidRequest, KindOf(err))
}

func TestAllocateDeterministic(t *testing.T) {
	m, store := newTestManager(t, "10.0.0.0/12", 24, 26)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.Allocate(ctx, "acct-A", "eu-west-1")
		require.NoError(t, err)
	}

	// free index 1, then every retry against the same state picks it again
	require.NoError(t, m.Release(ctx, "10.0.1.0/24", "acct-A"))
	for i := 0; i < 3; i++ {
		rec, err := m.Allocate(ctx, "acct-B", "eu-west-1")
		require.NoError(t, err)
		require.Equal(t, "10.0.1.0/24", rec.BlockCidr)
		require.NoError(t, store.DeleteIfOwner(ctx, rec.BlockCidr, "acct-B"))
	}
}

func TestAllocateExhausted(t *testing.T) {
	m, store := newTestManager(t, "10.0.0.0/23", 24, 26)
	ctx := context.Background()

	_, err := m.Allocate(ctx, "acct-A", "eu-west-1")
	require.NoError(t, err)
	_, err = m.Allocate(ctx, "acct-A", "eu-west-1")
	require.NoError(t, err)

	_, err = m.Allocate(ctx, "acct-B", "eu-west-1")
	require.Equal(t, KindExhausted, KindOf(err))

	for _, block := range []string{"10.0.0.0/24", "10.0.1.0/24"} {
		rec, err := store.Get(ctx, block)
		require.NoError(t, err)
		require.Equal(t, "acct-A", rec.OwnerId)
	}
}

func TestAllocateConcurrentDisjoint(t *testing.T) {
	m, _ := newTestManager(t, "10.0.0.0/20", 24, 26)
	ctx := context.Background()

	const workers = 16
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		blocks []netip.Prefix
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := m.Allocate(ctx, "acct-A", "eu-west-1")
			if err != nil {
				t.Errorf("allocate: %v", err)
				return
			}
			mu.Lock()
			blocks = append(blocks, netip.MustParsePrefix(rec.BlockCidr))
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, blocks, workers)
	for i := range blocks {
		for j := i + 1; j < len(blocks); j++ {
			require.False(t, blocks[i].Overlaps(blocks[j]), "%s overlaps %s", blocks[i], blocks[j])
		}
	}

	_, err := m.Allocate(ctx, "acct-A", "eu-west-1")
	require.Equal(t, KindExhausted, KindOf(err))
}

// racingStore loses the first write on each block to a phantom writer.
type racingStore struct {
	allocation.AllocationStore

	mu    sync.Mutex
	calls map[string]int
}

func (s *racingStore) PutIfAbsent(ctx context.Context, rec *allocation.Record) error {
	s.mu.Lock()
	s.calls[rec.BlockCidr]++
	n := s.calls[rec.BlockCidr]
	s.mu.Unlock()

	if rec.BlockCidr == "10.0.0.0/24" && n == 1 {
		return allocation.ErrItemExists
	}
	return s.AllocationStore.PutIfAbsent(ctx, rec)
}

func TestAllocateSkipsLostRace(t *testing.T) {
	pool, err := NewPool("10.0.0.0/12", 24, 26)
	require.NoError(t, err)

	inner, err := allocation.NewBoltStore(filepath.Join(t.TempDir(), "allocations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { inner.Close() })

	store := &racingStore{AllocationStore: inner, calls: map[string]int{}}
	m := NewIpamManager(store, pool, clock.NewTestClock(testTime), zap.NewNop())

	rec, err := m.Allocate(context.Background(), "acct-A", "eu-west-1")
	require.NoError(t, err)
	require.Equal(t, "10.0.1.0/24", rec.BlockCidr)
	require.Equal(t, 1, store.calls["10.0.0.0/24"])
}

func TestBindOwnership(t *testing.T) {
	m, store := newTestManager(t, "10.0.0.0/12", 24, 26)
	ctx := context.Background()

	_, err := m.Allocate(ctx, "acct-A", "eu-west-1")
	require.NoError(t, err)

	rec, err := m.Bind(ctx, "10.0.0.0/24", "vpc-1", "acct-A")
	require.NoError(t, err)
	require.Equal(t, "vpc-1", rec.BoundResourceId)

	_, err = m.Bind(ctx, "10.0.0.0/24", "vpc-2", "acct-B")
	require.Equal(t, KindOwnershipMismatch, KindOf(err))

	stored, err := store.Get(ctx, "10.0.0.0/24")
	require.NoError(t, err)
	require.Equal(t, "vpc-1", stored.BoundResourceId)
	require.Equal(t, "acct-A", stored.OwnerId)

	_, err = m.Bind(ctx, "10.0.9.0/24", "vpc-1", "acct-A")
	require.Equal(t, KindNotFound, KindOf(err))

	_, err = m.Bind(ctx, "10.0.0.1/24", "vpc-1", "acct-A")
	require.Equal(t, KindInvalidRequest, KindOf(err))

	_, err = m.Bind(ctx, "10.0.0.0/24", "", "acct-A")
	require.Equal(t, KindInvalidRequest, KindOf(err))
}

func TestReleaseOwnership(t *testing.T) {
	m, _ := newTestManager(t, "10.0.0.0/12", 24, 26)
	ctx := context.Background()

	_, err := m.Allocate(ctx, "acct-A", "eu-west-1")
	require.NoError(t, err)

	err = m.Release(ctx, "10.0.0.0/24", "acct-B")
	require.Equal(t, KindOwnershipMismatch, KindOf(err))

	_, err = m.Lookup(ctx, "10.0.0.0/24", "acct-A")
	require.NoError(t, err)

	require.NoError(t, m.Release(ctx, "10.0.0.0/24", "acct-A"))

	err = m.Release(ctx, "10.0.0.0/24", "acct-A")
	require.Equal(t, KindNotFound, KindOf(err))

	rec, err := m.Allocate(ctx, "acct-B", "eu-west-1")
	require.NoError(t, err)
	require.Equal(t, "10.0.0.0/24", rec.BlockCidr)
}

// outOfPoolStore fails the test on any access.
type outOfPoolStore struct {
	allocation.AllocationStore
	t *testing.T
}

func (s outOfPoolStore) Get(ctx context.Context, blockCidr string) (*allocation.Record, error) {
	s.t.Fatalf("unexpected store read for %s", blockCidr)
	return nil, nil
}

func (s outOfPoolStore) UpdateIfOwner(ctx context.Context, blockCidr string, ownerId string, u allocation.Update) (*allocation.Record, error) {
	s.t.Fatalf("unexpected store update for %s", blockCidr)
	return nil, nil
}

func (s outOfPoolStore) DeleteIfOwner(ctx context.Context, blockCidr string, ownerId string) error {
	s.t.Fatalf("unexpected store delete for %s", blockCidr)
	return nil
}

func TestOutOfPoolBlocksNotFound(t *testing.T) {
	pool, err := NewPool("10.0.0.0/12", 24, 26)
	require.NoError(t, err)
	m := NewIpamManager(outOfPoolStore{t: t}, pool, clock.NewTestClock(testTime), zap.NewNop())
	ctx := context.Background()

	// outside the master block, then inside it with the wrong netmask
	for _, block := range []string{"192.168.0.0/24", "10.16.0.0/24", "10.0.0.0/25", "10.0.0.0/23"} {
		_, err := m.Bind(ctx, block, "vpc-1", "acct-A")
		require.Equal(t, KindNotFound, KindOf(err), block)

		err = m.Release(ctx, block, "acct-A")
		require.Equal(t, KindNotFound, KindOf(err), block)

		_, err = m.Lookup(ctx, block, "acct-A")
		require.Equal(t, KindNotFound, KindOf(err), block)
	}
}

func TestLookupOwnership(t *testing.T) {
	m, _ := newTestManager(t, "10.0.0.0/12", 24, 26)
	ctx := context.Background()

	_, err := m.Allocate(ctx, "acct-A", "eu-west-1")
	require.NoError(t, err)

	_, err = m.Lookup(ctx, "10.0.0.0/24", "acct-B")
	require.Equal(t, KindOwnershipMismatch, KindOf(err))

	_, err = m.Lookup(ctx, "10.0.5.0/24", "acct-A")
	require.Equal(t, KindNotFound, KindOf(err))
}

type conflictStore struct {
	allocation.AllocationStore
}

func (conflictStore) DeleteIfOwner(ctx context.Context, blockCidr string, ownerId string) error {
	return allocation.ErrConflict
}

func TestReleaseConflictIsRetryable(t *testing.T) {
	pool, err := NewPool("10.0.0.0/12", 24, 26)
	require.NoError(t, err)
	m := NewIpamManager(conflictStore{}, pool, clock.NewTestClock(testTime), zap.NewNop())

	err = m.Release(context.Background(), "10.0.0.0/24", "acct-A")
	require.Equal(t, KindTransportFailure, KindOf(err))
	require.ErrorContains(t, err, "retry")
}
