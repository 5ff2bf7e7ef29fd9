package secret

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu     sync.RWMutex
	hashes map[string][]byte
}

// NewMemoryRepository builds an in-memory passcode store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{hashes: make(map[string][]byte)}
}

func (r *memoryRepository) Get(_ context.Context, owner string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hash, ok := r.hashes[owner]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), hash...), nil
}

func (r *memoryRepository) Put(_ context.Context, owner string, hash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hashes[owner] = append([]byte(nil), hash...)
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hashes[owner]; !ok {
		return ErrNotFound
	}
	delete(r.hashes, owner)
	return nil
}
