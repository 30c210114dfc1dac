package storage

import (
	"context"
	"sync"

	"ttclub/internal/core"
)

// MemoryRepository holds the latest snapshot in process memory. Used for
// local runs and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	snap  *core.Snapshot
	saves int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) LoadSnapshot(_ context.Context) (core.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap == nil {
		return core.Snapshot{}, ErrNoSnapshot
	}
	return *r.snap, nil
}

func (r *MemoryRepository) SaveSnapshot(_ context.Context, snap core.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = &snap
	r.saves++
	return nil
}

// Saves reports how many snapshots have been written.
func (r *MemoryRepository) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}

func (r *MemoryRepository) Close() error { return nil }
