package allocation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var allocationBucket = []byte("allocations")

// BoltStore keeps one record per key in a bbolt bucket. bbolt serializes
// read-write transactions, so each conditional check and its write commit
// together.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create state directory")
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open bolt db %s", path)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(allocationBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create allocation bucket")
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, blockCidr string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *Record
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		rec, err = getBoltRecord(tx.Bucket(allocationBucket), blockCidr)
		return err
	})
	return rec, err
}

func (s *BoltStore) PutIfAbsent(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(allocationBucket)
		if b.Get([]byte(rec.BlockCidr)) != nil {
			return ErrItemExists
		}
		return putBoltRecord(b, rec)
	})
}

func (s *BoltStore) UpdateIfOwner(ctx context.Context, blockCidr string, ownerId string, upd Update) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *Record
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(allocationBucket)
		r, err := getBoltRecord(b, blockCidr)
		if err != nil {
			return err
		}
		if r.OwnerId != ownerId {
			return ErrOwnerMismatch
		}
		r.BoundResourceId = upd.BoundResourceId
		rec = r
		return putBoltRecord(b, r)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *BoltStore) DeleteIfOwner(ctx context.Context, blockCidr string, ownerId string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(allocationBucket)
		r, err := getBoltRecord(b, blockCidr)
		if err != nil {
			return err
		}
		if r.OwnerId != ownerId {
			return ErrOwnerMismatch
		}
		return b.Delete([]byte(blockCidr))
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func getBoltRecord(b *bolt.Bucket, blockCidr string) (*Record, error) {
	v := b.Get([]byte(blockCidr))
	if v == nil {
		return nil, ErrItemNotExists
	}

	rec := &Record{}
	if err := json.Unmarshal(v, rec); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal record %s", blockCidr)
	}
	return rec, nil
}

func putBoltRecord(b *bolt.Bucket, rec *Record) error {
	v, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal record")
	}
	return b.Put([]byte(rec.BlockCidr), v)
}
