package storage

import (
	"context"
	"sync"

	"BananaBot/internal/domain"
	"BananaBot/internal/ports"
)

// MemoryBackend holds a cloned snapshot in process memory.
type MemoryBackend struct {
	mu       sync.Mutex
	snapshot *domain.Snapshot
	saves    int
}

var _ ports.StateBackend = (*MemoryBackend)(nil)

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Load(_ context.Context) (*domain.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshot == nil {
		return nil, nil
	}
	return b.snapshot.Clone(), nil
}

func (b *MemoryBackend) Save(_ context.Context, snapshot *domain.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = snapshot.Clone()
	b.saves++
	return nil
}

// Saves reports how many snapshots were written.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func (b *MemoryBackend) Close() error {
	return nil
}
