package allocation

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrItemExists means a record exists while it was expected not to
	ErrItemExists = errors.New("allocation record already exists")

	// ErrItemNotExists means no record was found for the block
	ErrItemNotExists = errors.New("allocation record doesn't exist")

	// ErrOwnerMismatch means the record exists but belongs to another owner
	ErrOwnerMismatch = errors.New("allocation record owned by another identity")

	// ErrConflict means a conditional write failed but the record read back
	// afterwards satisfies the condition, so it changed in between
	ErrConflict = errors.New("allocation record changed concurrently")
)

// AllocationStore is a durable key-value store of allocation records keyed by
// block. Every mutation is a single-record conditional write; the condition
// and the write happen atomically.
type AllocationStore interface {
	Get(ctx context.Context, blockCidr string) (*Record, error)
	PutIfAbsent(ctx context.Context, rec *Record) error
	UpdateIfOwner(ctx context.Context, blockCidr string, ownerId string, upd Update) (*Record, error)
	DeleteIfOwner(ctx context.Context, blockCidr string, ownerId string) error
	Close() error
}
