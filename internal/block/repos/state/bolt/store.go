package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/rr-block/internal/block/domain"
)

var (
	bucketEntries = []byte("entries")
	bucketMeta    = []byte("meta")

	keyEnabled = []byte("enabled")
	keyUpdated = []byte("updated")
)

// Store persists domain.State in a bbolt file. Entries are keyed by their
// big-endian position so that cursor order is insertion order; each value
// is one flag byte followed by the site.
type Store struct {
	db *bbolt.DB
}

type bucketCreator interface {
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
}

func ensureBuckets(tx bucketCreator) error {
	for _, b := range [][]byte{bucketEntries, bucketMeta} {
		if _, err := tx.CreateBucketIfNotExists(b); err != nil {
			return err
		}
	}
	return nil
}

// ensureBucketsFn is a seam for tests.
var ensureBucketsFn = func(tx bucketCreator) error { return ensureBuckets(tx) }

// New opens (or creates) the database at path and ensures buckets exist.
func New(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error { return ensureBucketsFn(tx) }); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Load reads the persisted state. A fresh database yields domain.DefaultState.
func (s *Store) Load(ctx context.Context) (domain.State, error) {
	if err := ctx.Err(); err != nil {
		return domain.State{}, err
	}
	st := domain.DefaultState()
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get(keyEnabled); len(v) == 1 {
				st.GlobalEnabled = v[0] == 1
			}
			if v := b.Get(keyUpdated); len(v) == 8 {
				st.UpdatedAt = time.Unix(0, int64(binary.BigEndian.Uint64(v))).UTC()
			}
		}
		b := tx.Bucket(bucketEntries)
		if b == nil {
			return nil
		}
		var entries []domain.BlockEntry
		err := b.ForEach(func(k, v []byte) error {
			if len(v) < 2 {
				return fmt.Errorf("corrupt entry at key %x", k)
			}
			entries = append(entries, domain.BlockEntry{Site: string(v[1:]), Enabled: v[0] == 1})
			return nil
		})
		if err != nil {
			return err
		}
		l, err := domain.NewBlockList(entries...)
		if err != nil {
			return err
		}
		st.BlockList = l
		return nil
	})
	if err != nil {
		return domain.State{}, err
	}
	return st, nil
}

// Save replaces the persisted state in one transaction.
func (s *Store) Save(ctx context.Context, st domain.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketEntries); err != nil && !errors.Is(err, bberrors.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(bucketEntries)
		if err != nil {
			return err
		}
		for i, e := range st.BlockList.Entries() {
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, uint64(i))
			val := make([]byte, 0, 1+len(e.Site))
			val = append(val, flag(e.Enabled))
			val = append(val, e.Site...)
			if err := b.Put(key, val); err != nil {
				return err
			}
		}

		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return fmt.Errorf("bucket %q missing", bucketMeta)
		}
		if err := meta.Put(keyEnabled, []byte{flag(st.GlobalEnabled)}); err != nil {
			return err
		}
		if st.UpdatedAt.IsZero() {
			return meta.Delete(keyUpdated)
		}
		ubuf := make([]byte, 8)
		binary.BigEndian.PutUint64(ubuf, uint64(st.UpdatedAt.UnixNano()))
		return meta.Put(keyUpdated, ubuf)
	})
}

func flag(b bool) byte {
	if b {
		return 1
	}
	return 0
}
