package lunarys

import (
	"context"
	"sync"
)

// Canceler is the handle for one in-flight exchange. It exists before the
// request is issued so the exchange can be aborted at any point.
type Canceler struct {
	cancel context.CancelFunc

	mu       sync.Mutex
	canceled bool
	released bool
}

// NewCanceler derives a cancellable context for one exchange.
func NewCanceler(parent context.Context) (context.Context, *Canceler) {
	ctx, cancel := context.WithCancel(parent)
	return ctx, &Canceler{cancel: cancel}
}

// Cancel aborts the exchange. It is safe to call any number of times and
// after the exchange has finished; only the first call before Release is
// recorded as a user cancellation.
func (c *Canceler) Cancel() {
	c.mu.Lock()
	if !c.released {
		c.canceled = true
	}
	c.mu.Unlock()
	c.cancel()
}

// Release marks the exchange finished and frees the context. A later Cancel
// is a no-op.
func (c *Canceler) Release() {
	c.mu.Lock()
	c.released = true
	c.mu.Unlock()
	c.cancel()
}

// Canceled reports whether Cancel was called while the exchange was live.
func (c *Canceler) Canceled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canceled
}
