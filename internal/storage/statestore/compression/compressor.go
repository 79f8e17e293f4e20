// Package compression provides the pluggable payload compressors used by the
// state store.
package compression

import (
	"fmt"
	"sync"
)

// Compressor compresses and decompresses record payloads.
type Compressor interface {
	// Name identifies the algorithm in stored records and logs.
	Name() string

	// Compress returns the compressed form of data.
	Compress(data []byte) ([]byte, error)

	// Decompress reverses Compress.
	Decompress(data []byte) ([]byte, error)
}

var (
	mu       sync.RWMutex
	registry = make(map[string]func() Compressor)
)

// Register makes a compressor constructor available under name.
func Register(name string, factory func() Compressor) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = factory
}

// Get returns a new compressor for name.
func Get(name string) (Compressor, error) {
	mu.RLock()
	factory, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown compressor: %s", name)
	}
	return factory(), nil
}

func init() {
	Register("none", func() Compressor { return noop{} })
	Register("lz4", func() Compressor { return lz4Compressor{} })
}

type noop struct{}

func (noop) Name() string { return "none" }

func (noop) Compress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (noop) Decompress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
