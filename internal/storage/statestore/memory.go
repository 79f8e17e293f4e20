package statestore

import (
	"sync"

	"github.com/LeJamon/goflashd/internal/types"
)

// memoryBackend keeps everything in a map. Used in tests and for ephemeral
// nodes.
type memoryBackend struct {
	mu     sync.RWMutex
	data   map[types.Hash256][]byte
	closed bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() Backend {
	return &memoryBackend{data: make(map[types.Hash256][]byte)}
}

func (b *memoryBackend) Name() string { return "memory" }

func (b *memoryBackend) Fetch(key types.Hash256) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}

	value, ok := b.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (b *memoryBackend) Store(key types.Hash256, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	b.data[key] = stored
	return nil
}

func (b *memoryBackend) StoreBatch(keys []types.Hash256, values [][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	for i := range keys {
		stored := make([]byte, len(values[i]))
		copy(stored, values[i])
		b.data[keys[i]] = stored
	}
	return nil
}

func (b *memoryBackend) ForEach(fn func(key types.Hash256, value []byte) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	for key, value := range b.data {
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (b *memoryBackend) Sync() error { return nil }

func (b *memoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
