package statestore

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"

	"github.com/LeJamon/goflashd/internal/types"
)

// pebbleBackend stores records in a PebbleDB keyed by content hash. The
// workload is point lookups and append-heavy writes, so every level carries a
// bloom filter and value compression is left to the record layer.
type pebbleBackend struct {
	db   *pebble.DB
	path string
	open atomic.Bool
}

// NewPebbleBackend opens (or creates) a PebbleDB at path.
func NewPebbleBackend(path string) (Backend, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("statestore: create %s: %w", path, err)
	}

	opts := &pebble.Options{
		Cache:                 pebble.NewCache(128 << 20),
		MemTableSize:          32 << 20,
		L0CompactionThreshold: 4,
		MaxConcurrentCompactions: func() int {
			return runtime.NumCPU()
		},
		Levels: make([]pebble.LevelOptions, 7),
	}
	for i := range opts.Levels {
		opts.Levels[i] = pebble.LevelOptions{
			BlockSize:    32 << 10,
			FilterPolicy: bloom.FilterPolicy(10),
			FilterType:   pebble.TableFilter,
			Compression:  pebble.NoCompression,
		}
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("statestore: open pebble at %s: %w", path, err)
	}

	b := &pebbleBackend{db: db, path: path}
	b.open.Store(true)
	return b, nil
}

func (b *pebbleBackend) Name() string { return fmt.Sprintf("pebble(%s)", b.path) }

func (b *pebbleBackend) Fetch(key types.Hash256) ([]byte, error) {
	if !b.open.Load() {
		return nil, ErrClosed
	}

	value, closer, err := b.db.Get(key[:])
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("statestore: pebble get: %w", err)
	}
	defer closer.Close()

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (b *pebbleBackend) Store(key types.Hash256, value []byte) error {
	if !b.open.Load() {
		return ErrClosed
	}
	if err := b.db.Set(key[:], value, pebble.NoSync); err != nil {
		return fmt.Errorf("statestore: pebble set: %w", err)
	}
	return nil
}

func (b *pebbleBackend) StoreBatch(keys []types.Hash256, values [][]byte) error {
	if !b.open.Load() {
		return ErrClosed
	}
	if len(keys) != len(values) {
		return fmt.Errorf("statestore: batch length mismatch: %d keys, %d values", len(keys), len(values))
	}

	batch := b.db.NewBatch()
	defer batch.Close()

	for i := range keys {
		if err := batch.Set(keys[i][:], values[i], nil); err != nil {
			return fmt.Errorf("statestore: pebble batch set: %w", err)
		}
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("statestore: pebble batch commit: %w", err)
	}
	return nil
}

func (b *pebbleBackend) ForEach(fn func(key types.Hash256, value []byte) error) error {
	if !b.open.Load() {
		return ErrClosed
	}

	iter, err := b.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("statestore: pebble iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if len(iter.Key()) != len(types.Hash256{}) {
			continue
		}
		var key types.Hash256
		copy(key[:], iter.Key())

		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())

		if err := fn(key, value); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (b *pebbleBackend) Sync() error {
	if !b.open.Load() {
		return ErrClosed
	}
	return b.db.Flush()
}

func (b *pebbleBackend) Close() error {
	if !b.open.CompareAndSwap(true, false) {
		return nil
	}
	if err := b.db.Flush(); err != nil {
		b.db.Close()
		return err
	}
	return b.db.Close()
}
