package statestore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/types"
)

// Receipt is one settled flash loan, persisted alongside the checkpoint the
// settlement committed.
type Receipt struct {
	Instance  types.AccountID
	Initiator types.AccountID
	Borrower  types.AccountID
	Asset     types.AssetID
	Amount    amount.Quantity
	Fee       amount.Quantity
	Seq       uint64
}

const receiptVersion uint32 = 1

// EncodeReceipt serializes r with a fixed layout so identical receipts hash
// identically.
func EncodeReceipt(r *Receipt) types.Blob {
	var buf bytes.Buffer

	var scratch8 [8]byte
	var scratch4 [4]byte

	binary.LittleEndian.PutUint32(scratch4[:], receiptVersion)
	buf.Write(scratch4[:])
	buf.Write(r.Instance[:])
	buf.Write(r.Initiator[:])
	buf.Write(r.Borrower[:])
	buf.Write(r.Asset[:])
	binary.LittleEndian.PutUint64(scratch8[:], uint64(r.Amount))
	buf.Write(scratch8[:])
	binary.LittleEndian.PutUint64(scratch8[:], uint64(r.Fee))
	buf.Write(scratch8[:])
	binary.LittleEndian.PutUint64(scratch8[:], r.Seq)
	buf.Write(scratch8[:])

	return buf.Bytes()
}

// DecodeReceipt reverses EncodeReceipt.
func DecodeReceipt(data types.Blob) (*Receipt, error) {
	r := bytes.NewReader(data)

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: receipt header", ErrCorrupt)
	}
	if version != receiptVersion {
		return nil, fmt.Errorf("%w: receipt version %d", ErrCorrupt, version)
	}

	rec := &Receipt{}
	for _, field := range [][]byte{rec.Instance[:], rec.Initiator[:], rec.Borrower[:], rec.Asset[:]} {
		if _, err := io.ReadFull(r, field); err != nil {
			return nil, fmt.Errorf("%w: receipt identity", ErrCorrupt)
		}
	}

	var qty, fee uint64
	if err := binary.Read(r, binary.LittleEndian, &qty); err != nil {
		return nil, fmt.Errorf("%w: receipt amount", ErrCorrupt)
	}
	if err := binary.Read(r, binary.LittleEndian, &fee); err != nil {
		return nil, fmt.Errorf("%w: receipt fee", ErrCorrupt)
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.Seq); err != nil {
		return nil, fmt.Errorf("%w: receipt seq", ErrCorrupt)
	}
	rec.Amount = amount.Quantity(qty)
	rec.Fee = amount.Quantity(fee)
	return rec, nil
}

// SaveReceipt stores r as a content-addressed receipt record.
func (s *Store) SaveReceipt(r *Receipt) (types.Hash256, error) {
	record := NewRecord(KindReceipt, r.Seq, EncodeReceipt(r))
	if err := s.Put(record); err != nil {
		return types.Hash256{}, err
	}
	return record.Hash, nil
}

// LoadReceipt fetches a receipt by its content hash.
func (s *Store) LoadReceipt(hash types.Hash256) (*Receipt, error) {
	record, err := s.Get(hash)
	if err != nil {
		return nil, err
	}
	if record.Kind != KindReceipt {
		return nil, fmt.Errorf("%w: %s is a %s", ErrCorrupt, hash, record.Kind)
	}
	return DecodeReceipt(record.Data)
}
