// Package statestore persists ledger checkpoints and settled loan receipts as
// content-addressed records. Records are keyed by the SHA-256 hash of their
// payload, cached in memory, and optionally compressed before they reach the
// storage backend.
package statestore

import (
	"errors"
	"fmt"
	"time"

	"github.com/LeJamon/goflashd/internal/types"
)

// RecordKind identifies what a stored record contains.
type RecordKind uint32

const (
	// KindUnknown marks an unreadable or unset record.
	KindUnknown RecordKind = 0
	// KindCheckpoint is a serialized ledger snapshot.
	KindCheckpoint RecordKind = 1
	// KindReceipt is a settled flash-loan receipt.
	KindReceipt RecordKind = 2
	// KindPointer is a small mutable reference to another record, such as the
	// latest checkpoint of an instance.
	KindPointer RecordKind = 3
)

func (k RecordKind) String() string {
	switch k {
	case KindCheckpoint:
		return "checkpoint"
	case KindReceipt:
		return "receipt"
	case KindPointer:
		return "pointer"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Record is the unit of storage.
type Record struct {
	Kind      RecordKind
	Hash      types.Hash256
	Seq       uint64
	Data      types.Blob
	CreatedAt time.Time
}

// NewRecord builds a content-addressed record; the hash is derived from the
// payload.
func NewRecord(kind RecordKind, seq uint64, data types.Blob) *Record {
	return &Record{
		Kind:      kind,
		Hash:      types.Hash256FromData(data),
		Seq:       seq,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// Valid reports whether the record's hash matches its payload. Pointer
// records are exempt since they are stored under a derived key, not their
// content hash.
func (r *Record) Valid() bool {
	if r == nil || r.Kind == KindUnknown || len(r.Data) == 0 {
		return false
	}
	if r.Kind == KindPointer {
		return true
	}
	return r.Hash == types.Hash256FromData(r.Data)
}

var (
	// ErrNotFound is returned when no record exists under the given key.
	ErrNotFound = errors.New("statestore: record not found")

	// ErrClosed is returned when the store or backend has been closed.
	ErrClosed = errors.New("statestore: closed")

	// ErrCorrupt is returned when a stored record fails to decode or its
	// content hash does not match its payload.
	ErrCorrupt = errors.New("statestore: corrupt record")

	// ErrUnknownBackend is returned by Open for an unrecognized backend name.
	ErrUnknownBackend = errors.New("statestore: unknown backend")
)

// Backend is the minimal key-value contract the store runs on.
type Backend interface {
	// Name identifies the backend in logs and stats.
	Name() string

	// Fetch returns the raw value stored under key.
	Fetch(key types.Hash256) ([]byte, error)

	// Store writes value under key, overwriting any previous value.
	Store(key types.Hash256, value []byte) error

	// StoreBatch writes several key-value pairs in one operation.
	StoreBatch(keys []types.Hash256, values [][]byte) error

	// ForEach visits every stored pair. Iteration stops on the first error.
	ForEach(fn func(key types.Hash256, value []byte) error) error

	// Sync flushes pending writes to stable storage.
	Sync() error

	// Close releases backend resources.
	Close() error
}

// Config selects and tunes a backend.
type Config struct {
	// Backend is one of "pebble", "leveldb" or "memory".
	Backend string

	// Path is the on-disk location for persistent backends.
	Path string

	// CacheSize is the number of records kept in the in-memory cache.
	CacheSize int

	// Compression is "lz4" or "none".
	Compression string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Backend:     "pebble",
		CacheSize:   4096,
		Compression: "lz4",
	}
}

func (c *Config) normalize() {
	if c.Backend == "" {
		c.Backend = "pebble"
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 4096
	}
	if c.Compression == "" {
		c.Compression = "lz4"
	}
}
