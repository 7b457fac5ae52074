package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func testRecord(block, owner string) *Record {
	return &Record{
		BlockCidr: block,
		CreatedAt: time.Date(2020, time.September, 1, 12, 0, 0, 0, time.UTC),
		OwnerId:   owner,
		Region:    "eu-west-1",
		SubBlocks: []string{"10.0.0.0/26", "10.0.0.64/26", "10.0.0.128/26", "10.0.0.192/26"},
	}
}

// testStoreContract runs the conditional write contract against a backend.
func testStoreContract(t *testing.T, s AllocationStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "10.0.0.0/24")
	require.Equal(t, ErrItemNotExists, errors.Cause(err))

	rec := testRecord("10.0.0.0/24", "acct-A")
	require.NoError(t, s.PutIfAbsent(ctx, rec))

	err = s.PutIfAbsent(ctx, testRecord("10.0.0.0/24", "acct-B"))
	require.Equal(t, ErrItemExists, errors.Cause(err))

	got, err := s.Get(ctx, "10.0.0.0/24")
	require.NoError(t, err)
	require.Equal(t, "acct-A", got.OwnerId)
	require.Equal(t, rec.SubBlocks, got.SubBlocks)
	require.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	_, err = s.UpdateIfOwner(ctx, "10.0.0.0/24", "acct-B", Update{BoundResourceId: "vpc-1"})
	require.Equal(t, ErrOwnerMismatch, errors.Cause(err))

	got, err = s.Get(ctx, "10.0.0.0/24")
	require.NoError(t, err)
	require.Empty(t, got.BoundResourceId)

	_, err = s.UpdateIfOwner(ctx, "10.0.1.0/24", "acct-A", Update{BoundResourceId: "vpc-1"})
	require.Equal(t, ErrItemNotExists, errors.Cause(err))

	bound, err := s.UpdateIfOwner(ctx, "10.0.0.0/24", "acct-A", Update{BoundResourceId: "vpc-1"})
	require.NoError(t, err)
	require.Equal(t, "vpc-1", bound.BoundResourceId)
	require.Equal(t, rec.SubBlocks, bound.SubBlocks)

	err = s.DeleteIfOwner(ctx, "10.0.0.0/24", "acct-B")
	require.Equal(t, ErrOwnerMismatch, errors.Cause(err))

	require.NoError(t, s.DeleteIfOwner(ctx, "10.0.0.0/24", "acct-A"))

	err = s.DeleteIfOwner(ctx, "10.0.0.0/24", "acct-A")
	require.Equal(t, ErrItemNotExists, errors.Cause(err))

	// released block can be taken again
	require.NoError(t, s.PutIfAbsent(ctx, testRecord("10.0.0.0/24", "acct-B")))
}

func TestRecordAttributes(t *testing.T) {
	rec := testRecord("10.0.0.0/24", "acct-A")
	rec.BoundResourceId = "vpc-1"

	attrs := rec.Attributes()
	require.Equal(t, "10.0.0.0/24", attrs["vpcCidrBlock"])
	require.Equal(t, "acct-A", attrs["accountId"])
	require.Equal(t, "eu-west-1", attrs["vpcRegion"])
	require.Equal(t, "2020-09-01 12:00:00.000000", attrs["createdAt"])
	require.Equal(t, "10.0.0.192/26", attrs["subnet3CidrBlock"])
	require.Equal(t, "vpc-1", attrs["vpcId"])

	back, err := RecordFromAttributes(attrs)
	require.NoError(t, err)
	require.Equal(t, rec.SubBlocks, back.SubBlocks)
	require.Equal(t, rec.BoundResourceId, back.BoundResourceId)

	delete(attrs, "subnet1CidrBlock")
	_, err = RecordFromAttributes(attrs)
	require.Error(t, err)

	_, err = RecordFromAttributes(map[string]string{"accountId": "acct-A"})
	require.Error(t, err)
}
