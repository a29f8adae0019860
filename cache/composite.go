package cache

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

type compositeStore struct {
	stores []Store
}

var _ Store = (*compositeStore)(nil)

// NewComposite returns a Store that chains multiple stores together.
// Get checks stores in order and returns the first hit.
// Set writes to all stores concurrently; Delete removes from all.
// At least one store must be provided; panics if empty.
func NewComposite(stores ...Store) Store {
	if len(stores) == 0 {
		panic("cache: NewComposite requires at least one store")
	}
	return &compositeStore{stores: stores}
}

func (s *compositeStore) Get(ctx context.Context, key string) (bool, []byte, error) {
	for _, store := range s.stores {
		found, val, err := store.Get(ctx, key)
		if err != nil {
			return false, nil, err
		}
		if found {
			return true, val, nil
		}
	}
	return false, nil, nil
}

func (s *compositeStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, store := range s.stores {
		store := store
		g.Go(func() error {
			return store.Set(gctx, key, val, ttl)
		})
	}
	return g.Wait()
}

func (s *compositeStore) Delete(ctx context.Context, key string) (bool, error) {
	anyFound := false
	for _, store := range s.stores {
		found, err := store.Delete(ctx, key)
		if err != nil {
			return anyFound, err
		}
		if found {
			anyFound = true
		}
	}
	return anyFound, nil
}

func (s *compositeStore) Close() error {
	var firstErr error
	for _, store := range s.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
