package counter

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryCounter keeps counts in process. Increment takes only the read lock
// for codes already seen; DrainAll takes the write lock so no increment can
// slip between the snapshot and the reset.
type MemoryCounter struct {
	mu     sync.RWMutex
	counts map[string]*atomic.Int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]*atomic.Int64)}
}

func (c *MemoryCounter) Increment(_ context.Context, code string) error {
	c.add(code, 1)
	return nil
}

func (c *MemoryCounter) add(code string, n int64) {
	c.mu.RLock()
	v, ok := c.counts[code]
	if ok {
		v.Add(n)
	}
	c.mu.RUnlock()
	if ok {
		return
	}

	c.mu.Lock()
	v, ok = c.counts[code]
	if !ok {
		v = new(atomic.Int64)
		c.counts[code] = v
	}
	v.Add(n)
	c.mu.Unlock()
}

func (c *MemoryCounter) Pending(_ context.Context, code string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if v, ok := c.counts[code]; ok {
		return v.Load(), nil
	}
	return 0, nil
}

func (c *MemoryCounter) DrainAll(_ context.Context) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int64, len(c.counts))
	for code, v := range c.counts {
		if n := v.Load(); n != 0 {
			out[code] = n
		}
	}
	c.counts = make(map[string]*atomic.Int64)
	return out, nil
}

func (c *MemoryCounter) Restore(_ context.Context, deltas map[string]int64) error {
	for code, n := range deltas {
		c.add(code, n)
	}
	return nil
}
