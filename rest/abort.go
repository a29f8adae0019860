package rest

import (
	"context"
	"sync"
)

// controller tracks every request in flight for one client so Abort can
// cancel them all and reject anything dispatched afterwards. Once aborted it
// never recovers.
type controller struct {
	mu       sync.Mutex
	aborted  bool
	seq      uint64
	inflight map[uint64]context.CancelFunc
}

func newController() *controller {
	return &controller{inflight: make(map[uint64]context.CancelFunc)}
}

// register derives a cancellable context for one request and records its
// cancel function. It reports false when the controller is already aborted,
// in which case the request must not start.
func (c *controller) register(ctx context.Context) (context.Context, func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aborted {
		return nil, nil, false
	}
	reqCtx, cancel := context.WithCancel(ctx)
	c.seq++
	id := c.seq
	c.inflight[id] = cancel
	release := func() {
		c.mu.Lock()
		delete(c.inflight, id)
		c.mu.Unlock()
		cancel()
	}
	return reqCtx, release, true
}

func (c *controller) abort() {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		return
	}
	c.aborted = true
	cancels := make([]context.CancelFunc, 0, len(c.inflight))
	for _, cancel := range c.inflight {
		cancels = append(cancels, cancel)
	}
	c.inflight = make(map[uint64]context.CancelFunc)
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (c *controller) isAborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}
