package idempotency

import (
	"context"
	"sync"
)

// MemoryDeduper is an in-memory Deduper for tests and single-process setups.
// References live until released; there is no TTL eviction.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryDeduper creates an empty in-memory deduper.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

func (d *MemoryDeduper) MarkProcessed(_ context.Context, reference string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[reference]; exists {
		return false, nil
	}
	d.seen[reference] = struct{}{}
	return true, nil
}

func (d *MemoryDeduper) Release(_ context.Context, reference string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.seen, reference)
	return nil
}
