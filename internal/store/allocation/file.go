package allocation

import (
	"cidrvend/internal/utils"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const fileStateVersion = "0.1.0"

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:              path,
		filesystemHandler: utils.NewFilesystemExecutor(),
	}
}

// FileStore keeps all records in one JSON document. Each operation runs
// under an exclusive flock so several processes may share the file.
type FileStore struct {
	path              string
	mu                sync.Mutex
	filesystemHandler utils.FilesystemHandler
}

func (s *FileStore) Get(ctx context.Context, blockCidr string) (*Record, error) {
	var rec *Record
	err := s.withLock(ctx, false, func(st *fileState) error {
		r, ok := st.Records[blockCidr]
		if !ok {
			return ErrItemNotExists
		}
		rec = copyRecord(r)
		return nil
	})
	return rec, err
}

func (s *FileStore) PutIfAbsent(ctx context.Context, rec *Record) error {
	return s.withLock(ctx, true, func(st *fileState) error {
		if _, ok := st.Records[rec.BlockCidr]; ok {
			return ErrItemExists
		}
		st.Records[rec.BlockCidr] = copyRecord(rec)
		return nil
	})
}

func (s *FileStore) UpdateIfOwner(ctx context.Context, blockCidr string, ownerId string, upd Update) (*Record, error) {
	var rec *Record
	err := s.withLock(ctx, true, func(st *fileState) error {
		r, ok := st.Records[blockCidr]
		if !ok {
			return ErrItemNotExists
		}
		if r.OwnerId != ownerId {
			return ErrOwnerMismatch
		}
		r.BoundResourceId = upd.BoundResourceId
		rec = copyRecord(r)
		return nil
	})
	return rec, err
}

func (s *FileStore) DeleteIfOwner(ctx context.Context, blockCidr string, ownerId string) error {
	return s.withLock(ctx, true, func(st *fileState) error {
		r, ok := st.Records[blockCidr]
		if !ok {
			return ErrItemNotExists
		}
		if r.OwnerId != ownerId {
			return ErrOwnerMismatch
		}
		delete(st.Records, blockCidr)
		return nil
	})
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) withLock(ctx context.Context, write bool, fn func(st *fileState) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lockPath := s.path + ".lock"
	if err := s.filesystemHandler.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create state directory")
	}

	lf, err := s.filesystemHandler.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return errors.Wrap(err, "failed to open lock file")
	}
	defer lf.Close()

	if err := s.filesystemHandler.Flock(int(lf.Fd()), unix.LOCK_EX); err != nil {
		return errors.Wrap(err, "failed to lock state file")
	}
	defer s.filesystemHandler.Flock(int(lf.Fd()), unix.LOCK_UN)

	st, err := s.loadOrInit()
	if err != nil {
		return err
	}

	if err := fn(st); err != nil {
		return err
	}

	if !write {
		return nil
	}
	return s.atomicSave(st)
}

func (s *FileStore) loadOrInit() (*fileState, error) {
	b, err := s.filesystemHandler.ReadFile(s.path)
	if err != nil {
		if s.filesystemHandler.IsNotExist(err) {
			// state file not exist
			return &fileState{
				Version: fileStateVersion,
				Records: map[string]*Record{},
			}, nil
		}
		return nil, errors.Wrap(err, "failed to read state file")
	}

	var st fileState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, errors.Wrap(err, "allocation state json broken")
	}
	if st.Records == nil {
		st.Records = map[string]*Record{}
	}
	return &st, nil
}

func (s *FileStore) atomicSave(st *fileState) error {
	tmp := s.path + ".tmp"

	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal state")
	}
	b = append(b, '\n')

	f, err := s.filesystemHandler.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrap(err, "failed to open temporary state file")
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return errors.Wrap(err, "failed to write state")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "failed to sync state")
	}
	if err := f.Close(); err != nil {
		return err
	}
	return s.filesystemHandler.Rename(tmp, s.path)
}

func copyRecord(r *Record) *Record {
	c := *r
	c.SubBlocks = append([]string(nil), r.SubBlocks...)
	return &c
}
