package statestore

import (
	"fmt"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/LeJamon/goflashd/internal/types"
)

// leveldbBackend is the lighter-weight persistent backend, suitable for
// development nodes and tools that do not want pebble's memory footprint.
type leveldbBackend struct {
	db   *leveldb.DB
	path string
	open atomic.Bool
}

// NewLevelDBBackend opens (or creates) a LevelDB at path.
func NewLevelDBBackend(path string) (Backend, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("statestore: open leveldb at %s: %w", path, err)
	}
	b := &leveldbBackend{db: db, path: path}
	b.open.Store(true)
	return b, nil
}

func (b *leveldbBackend) Name() string { return fmt.Sprintf("leveldb(%s)", b.path) }

func (b *leveldbBackend) Fetch(key types.Hash256) ([]byte, error) {
	if !b.open.Load() {
		return nil, ErrClosed
	}

	value, err := b.db.Get(key[:], nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: leveldb get: %w", err)
	}
	return value, nil
}

func (b *leveldbBackend) Store(key types.Hash256, value []byte) error {
	if !b.open.Load() {
		return ErrClosed
	}
	if err := b.db.Put(key[:], value, nil); err != nil {
		return fmt.Errorf("statestore: leveldb put: %w", err)
	}
	return nil
}

func (b *leveldbBackend) StoreBatch(keys []types.Hash256, values [][]byte) error {
	if !b.open.Load() {
		return ErrClosed
	}
	if len(keys) != len(values) {
		return fmt.Errorf("statestore: batch length mismatch: %d keys, %d values", len(keys), len(values))
	}

	batch := new(leveldb.Batch)
	for i := range keys {
		batch.Put(keys[i][:], values[i])
	}
	if err := b.db.Write(batch, nil); err != nil {
		return fmt.Errorf("statestore: leveldb batch write: %w", err)
	}
	return nil
}

func (b *leveldbBackend) ForEach(fn func(key types.Hash256, value []byte) error) error {
	if !b.open.Load() {
		return ErrClosed
	}

	iter := b.db.NewIterator(nil, nil)
	defer iter.Release()

	for iter.Next() {
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

func (b *leveldbBackend) Sync() error {
	if !b.open.Load() {
		return ErrClosed
	}
	// LevelDB has no explicit flush; writes already hit the WAL.
	return nil
}

func (b *leveldbBackend) Close() error {
	if !b.open.CompareAndSwap(true, false) {
		return nil
	}
	return b.db.Close()
}
