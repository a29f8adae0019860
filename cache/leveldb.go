package cache

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

type levelDBStore struct {
	db        *leveldb.DB
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
}

var _ Store = (*levelDBStore)(nil)

// NewLevelDB returns a new Store backed by a local LevelDB database at path.
// The expiry timestamp is stored in an 8-byte prefix ahead of each value;
// expired entries are removed lazily on Get and by a background sweep.
func NewLevelDB(ctx context.Context, path string, opts ...Option) (Store, error) {
	cfg := applyOptions(opts)
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	childCtx, cancel := context.WithCancel(ctx)
	s := &levelDBStore{
		db:     db,
		ctx:    childCtx,
		cancel: cancel,
		cfg:    cfg,
	}
	s.waitGroup.Add(1)
	go s.run()
	return s, nil
}

func encodeValue(val []byte, expires time.Time) []byte {
	buf := make([]byte, 8+len(val))
	binary.BigEndian.PutUint64(buf, uint64(expires.UnixNano()))
	copy(buf[8:], val)
	return buf
}

func decodeValue(buf []byte) ([]byte, time.Time) {
	if len(buf) < 8 {
		return nil, time.Time{}
	}
	expires := time.Unix(0, int64(binary.BigEndian.Uint64(buf)))
	return buf[8:], expires
}

func (s *levelDBStore) Get(_ context.Context, key string) (bool, []byte, error) {
	buf, err := s.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	val, expires := decodeValue(buf)
	if expires.Before(time.Now()) {
		_ = s.db.Delete([]byte(key), nil)
		return false, nil, nil
	}
	return true, val, nil
}

func (s *levelDBStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.cfg.defaultTTL
	}
	return s.db.Put([]byte(key), encodeValue(val, time.Now().Add(ttl)), nil)
}

func (s *levelDBStore) Delete(_ context.Context, key string) (bool, error) {
	has, err := s.db.Has([]byte(key), nil)
	if err != nil {
		return false, err
	}
	if !has {
		return false, nil
	}
	return true, s.db.Delete([]byte(key), nil)
}

func (s *levelDBStore) Close() error {
	var dbErr error
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
		dbErr = s.db.Close()
	})
	return dbErr
}

func (s *levelDBStore) sweep() {
	now := time.Now()
	batch := new(leveldb.Batch)
	iter := s.db.NewIterator(nil, nil)
	for iter.Next() {
		_, expires := decodeValue(iter.Value())
		if expires.Before(now) {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			batch.Delete(key)
		}
	}
	iter.Release()
	if batch.Len() > 0 {
		_ = s.db.Write(batch, nil)
	}
}

func (s *levelDBStore) run() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.cfg.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}
