package counter

import (
	"context"
	"sync"
)

// MemoryCounter is an in-process counter for tests and single-process setups.
type MemoryCounter struct {
	mu  sync.Mutex
	n   int
	err error
}

// NewMemoryCounter creates a counter at zero.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{}
}

// FailWith makes every subsequent operation return err. Pass nil to recover.
func (c *MemoryCounter) FailWith(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// Increment adds one.
func (c *MemoryCounter) Increment(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.n, c.err
	}
	c.n++
	return c.n, nil
}

// Read returns the current value.
func (c *MemoryCounter) Read(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n, c.err
}

// Reset sets the value to zero.
func (c *MemoryCounter) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.n = 0
	return nil
}

var _ Counter = (*MemoryCounter)(nil)
