package statestore

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/LeJamon/goflashd/internal/storage/statestore/compression"
	"github.com/LeJamon/goflashd/internal/types"
)

// Store is the record store: a backend fronted by an LRU cache, with payload
// compression applied on the way down.
type Store struct {
	backend    Backend
	cache      *lru.Cache[types.Hash256, *Record]
	compressor compression.Compressor

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Open builds a store from config.
func Open(cfg Config) (*Store, error) {
	cfg.normalize()

	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "pebble":
		backend, err = NewPebbleBackend(cfg.Path)
	case "leveldb":
		backend, err = NewLevelDBBackend(cfg.Path)
	case "memory":
		backend = NewMemoryBackend()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	store, err := NewStore(backend, cfg)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an already-open backend.
func NewStore(backend Backend, cfg Config) (*Store, error) {
	cfg.normalize()

	cache, err := lru.New[types.Hash256, *Record](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("statestore: cache: %w", err)
	}
	compressor, err := compression.Get(cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("statestore: %w", err)
	}

	return &Store{
		backend:    backend,
		cache:      cache,
		compressor: compressor,
	}, nil
}

// Put persists a record under its content hash.
func (s *Store) Put(r *Record) error {
	if !r.Valid() {
		return fmt.Errorf("%w: refusing to store", ErrCorrupt)
	}
	return s.putAt(r.Hash, r)
}

// PutAt persists a record under an explicit key. Used for pointer records
// whose key is derived rather than content-addressed.
func (s *Store) PutAt(key types.Hash256, r *Record) error {
	return s.putAt(key, r)
}

func (s *Store) putAt(key types.Hash256, r *Record) error {
	payload := []byte(r.Data)
	compressed := false
	if s.compressor.Name() != "none" && len(payload) > 64 {
		packed, err := s.compressor.Compress(payload)
		if err == nil && len(packed) < len(payload) {
			payload = packed
			compressed = true
		}
	}

	if err := s.backend.Store(key, encodeRecord(r, compressed, payload)); err != nil {
		return err
	}
	s.cache.Add(key, r)
	return nil
}

// Get returns the record stored under key.
func (s *Store) Get(key types.Hash256) (*Record, error) {
	if r, ok := s.cache.Get(key); ok {
		s.hits.Add(1)
		return r, nil
	}
	s.misses.Add(1)

	value, err := s.backend.Fetch(key)
	if err != nil {
		return nil, err
	}

	r, compressed, err := decodeRecord(key, value)
	if err != nil {
		return nil, err
	}
	if compressed {
		data, err := s.compressor.Decompress(r.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		r.Data = data
	}
	if r.Kind != KindPointer && !r.Valid() {
		return nil, fmt.Errorf("%w: hash mismatch for %s", ErrCorrupt, key)
	}

	s.cache.Add(key, r)
	return r, nil
}

// Stats reports cache effectiveness and the backend in use.
type Stats struct {
	Backend   string
	CacheLen  int
	CacheHits uint64
	CacheMiss uint64
}

func (s *Store) Stats() Stats {
	return Stats{
		Backend:   s.backend.Name(),
		CacheLen:  s.cache.Len(),
		CacheHits: s.hits.Load(),
		CacheMiss: s.misses.Load(),
	}
}

// Sync flushes the backend.
func (s *Store) Sync() error { return s.backend.Sync() }

// Close flushes and closes the backend.
func (s *Store) Close() error {
	if err := s.backend.Sync(); err != nil && err != ErrClosed {
		s.backend.Close()
		return err
	}
	return s.backend.Close()
}
