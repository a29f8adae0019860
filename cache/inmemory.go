package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	val     []byte
	expires time.Time
}

type inMemoryStore struct {
	ctx       context.Context
	cancel    context.CancelFunc
	entries   map[string]memoryEntry
	mutex     sync.Mutex
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
}

var _ Store = (*inMemoryStore)(nil)

// NewInMemory returns a new in-memory Store implementation.
func NewInMemory(parent context.Context, opts ...Option) Store {
	cfg := applyOptions(opts)
	ctx, cancel := context.WithCancel(parent)
	s := &inMemoryStore{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]memoryEntry),
		cfg:     cfg,
	}
	s.waitGroup.Add(1)
	go s.run()
	return s
}

func (s *inMemoryStore) Get(_ context.Context, key string) (bool, []byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return false, nil, nil
	}
	if entry.expires.Before(time.Now()) {
		delete(s.entries, key)
		return false, nil, nil
	}
	return true, entry.val, nil
}

func (s *inMemoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.cfg.defaultTTL
	}
	buf := make([]byte, len(val))
	copy(buf, val)
	s.mutex.Lock()
	s.entries[key] = memoryEntry{val: buf, expires: time.Now().Add(ttl)}
	s.mutex.Unlock()
	return nil
}

func (s *inMemoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mutex.Lock()
	_, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	s.mutex.Unlock()
	return ok, nil
}

func (s *inMemoryStore) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
	})
	return nil
}

func (s *inMemoryStore) run() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.cfg.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			s.mutex.Lock()
			for key, entry := range s.entries {
				if entry.expires.Before(now) {
					delete(s.entries, key)
				}
			}
			s.mutex.Unlock()
		}
	}
}
