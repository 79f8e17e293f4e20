package compression

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4"
)

// lz4Compressor frames each block with the uncompressed length so decoding
// can allocate the exact output buffer.
type lz4Compressor struct{}

func (lz4Compressor) Name() string { return "lz4" }

func (lz4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, 4+lz4.CompressBlockBound(len(data)))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(data)))

	n, err := lz4.CompressBlock(data, buf[4:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if n == 0 {
		// Incompressible input; CompressBlock reports zero. Store it raw with
		// a zero length marker.
		raw := make([]byte, 4+len(data))
		copy(raw[4:], data)
		return raw, nil
	}
	return buf[:4+n], nil
}

func (lz4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("lz4 decompress: truncated frame")
	}

	size := binary.LittleEndian.Uint32(data[:4])
	if size == 0 {
		out := make([]byte, len(data)-4)
		copy(out, data[4:])
		return out, nil
	}

	out := make([]byte, size)
	n, err := lz4.UncompressBlock(data[4:], out)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return out[:n], nil
}
