package statestore

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/LeJamon/goflashd/internal/types"
)

// Stored record layout, little endian:
//
//	kind       uint32
//	seq        uint64
//	createdAt  int64 (unix nanoseconds)
//	compressed uint8 (0 or 1)
//	dataLen    uint32
//	data       dataLen bytes
const recordHeaderSize = 4 + 8 + 8 + 1 + 4

func encodeRecord(r *Record, compressed bool, payload []byte) []byte {
	buf := make([]byte, recordHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Kind))
	binary.LittleEndian.PutUint64(buf[4:12], r.Seq)
	binary.LittleEndian.PutUint64(buf[12:20], uint64(r.CreatedAt.UnixNano()))
	if compressed {
		buf[20] = 1
	}
	binary.LittleEndian.PutUint32(buf[21:25], uint32(len(payload)))
	copy(buf[recordHeaderSize:], payload)
	return buf
}

func decodeRecord(key types.Hash256, value []byte) (*Record, bool, error) {
	if len(value) < recordHeaderSize {
		return nil, false, fmt.Errorf("%w: short record (%d bytes)", ErrCorrupt, len(value))
	}

	kind := RecordKind(binary.LittleEndian.Uint32(value[0:4]))
	seq := binary.LittleEndian.Uint64(value[4:12])
	created := int64(binary.LittleEndian.Uint64(value[12:20]))
	compressed := value[20] == 1
	dataLen := int(binary.LittleEndian.Uint32(value[21:25]))

	if recordHeaderSize+dataLen != len(value) {
		return nil, false, fmt.Errorf("%w: bad payload length %d", ErrCorrupt, dataLen)
	}

	data := make(types.Blob, dataLen)
	copy(data, value[recordHeaderSize:])

	return &Record{
		Kind:      kind,
		Hash:      key,
		Seq:       seq,
		Data:      data,
		CreatedAt: time.Unix(0, created).UTC(),
	}, compressed, nil
}
