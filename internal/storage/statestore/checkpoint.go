package statestore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/crypto"
	"github.com/LeJamon/goflashd/internal/types"
)

// Checkpoint is a point-in-time copy of one ledger instance's tracked state.
type Checkpoint struct {
	Instance types.AccountID
	Seq      uint64
	Balances map[types.AssetID]map[types.AccountID]amount.Quantity
	Reserves map[types.AssetID]amount.Quantity
}

const checkpointVersion uint32 = 1

// EncodeCheckpoint serializes cp deterministically: assets and accounts are
// written in byte order so identical state always produces identical bytes,
// and therefore an identical content hash.
func EncodeCheckpoint(cp *Checkpoint) types.Blob {
	var buf bytes.Buffer

	var scratch8 [8]byte
	var scratch4 [4]byte

	binary.LittleEndian.PutUint32(scratch4[:], checkpointVersion)
	buf.Write(scratch4[:])
	buf.Write(cp.Instance[:])
	binary.LittleEndian.PutUint64(scratch8[:], cp.Seq)
	buf.Write(scratch8[:])

	assets := make([]types.AssetID, 0, len(cp.Reserves))
	for assetID := range cp.Reserves {
		assets = append(assets, assetID)
	}
	sort.Slice(assets, func(i, j int) bool {
		return bytes.Compare(assets[i][:], assets[j][:]) < 0
	})

	binary.LittleEndian.PutUint32(scratch4[:], uint32(len(assets)))
	buf.Write(scratch4[:])

	for _, assetID := range assets {
		buf.Write(assetID[:])
		binary.LittleEndian.PutUint64(scratch8[:], uint64(cp.Reserves[assetID]))
		buf.Write(scratch8[:])

		holders := cp.Balances[assetID]
		accounts := make([]types.AccountID, 0, len(holders))
		for account := range holders {
			accounts = append(accounts, account)
		}
		sort.Slice(accounts, func(i, j int) bool {
			return bytes.Compare(accounts[i][:], accounts[j][:]) < 0
		})

		binary.LittleEndian.PutUint32(scratch4[:], uint32(len(accounts)))
		buf.Write(scratch4[:])
		for _, account := range accounts {
			buf.Write(account[:])
			binary.LittleEndian.PutUint64(scratch8[:], uint64(holders[account]))
			buf.Write(scratch8[:])
		}
	}

	return buf.Bytes()
}

// DecodeCheckpoint reverses EncodeCheckpoint.
func DecodeCheckpoint(data types.Blob) (*Checkpoint, error) {
	r := bytes.NewReader(data)

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: checkpoint header", ErrCorrupt)
	}
	if version != checkpointVersion {
		return nil, fmt.Errorf("%w: checkpoint version %d", ErrCorrupt, version)
	}

	cp := &Checkpoint{
		Balances: make(map[types.AssetID]map[types.AccountID]amount.Quantity),
		Reserves: make(map[types.AssetID]amount.Quantity),
	}
	if _, err := io.ReadFull(r, cp.Instance[:]); err != nil {
		return nil, fmt.Errorf("%w: checkpoint instance", ErrCorrupt)
	}
	if err := binary.Read(r, binary.LittleEndian, &cp.Seq); err != nil {
		return nil, fmt.Errorf("%w: checkpoint seq", ErrCorrupt)
	}

	var assetCount uint32
	if err := binary.Read(r, binary.LittleEndian, &assetCount); err != nil {
		return nil, fmt.Errorf("%w: checkpoint asset count", ErrCorrupt)
	}

	for i := uint32(0); i < assetCount; i++ {
		var assetID types.AssetID
		if _, err := io.ReadFull(r, assetID[:]); err != nil {
			return nil, fmt.Errorf("%w: checkpoint asset", ErrCorrupt)
		}
		var reserve uint64
		if err := binary.Read(r, binary.LittleEndian, &reserve); err != nil {
			return nil, fmt.Errorf("%w: checkpoint reserve", ErrCorrupt)
		}
		cp.Reserves[assetID] = amount.Quantity(reserve)

		var holderCount uint32
		if err := binary.Read(r, binary.LittleEndian, &holderCount); err != nil {
			return nil, fmt.Errorf("%w: checkpoint holder count", ErrCorrupt)
		}
		holders := make(map[types.AccountID]amount.Quantity, holderCount)
		for j := uint32(0); j < holderCount; j++ {
			var account types.AccountID
			if _, err := io.ReadFull(r, account[:]); err != nil {
				return nil, fmt.Errorf("%w: checkpoint account", ErrCorrupt)
			}
			var qty uint64
			if err := binary.Read(r, binary.LittleEndian, &qty); err != nil {
				return nil, fmt.Errorf("%w: checkpoint balance", ErrCorrupt)
			}
			holders[account] = amount.Quantity(qty)
		}
		cp.Balances[assetID] = holders
	}

	return cp, nil
}

// latestKey derives the pointer key holding an instance's most recent
// checkpoint hash.
func latestKey(instance types.AccountID) types.Hash256 {
	return crypto.Sha512Half(append([]byte("goflashd/checkpoint/latest/"), instance[:]...))
}

// SaveCheckpoint stores cp and advances the instance's latest pointer.
func (s *Store) SaveCheckpoint(cp *Checkpoint) (types.Hash256, error) {
	record := NewRecord(KindCheckpoint, cp.Seq, EncodeCheckpoint(cp))
	if err := s.Put(record); err != nil {
		return types.Hash256{}, err
	}

	pointer := &Record{
		Kind:      KindPointer,
		Hash:      latestKey(cp.Instance),
		Seq:       cp.Seq,
		Data:      record.Hash[:],
		CreatedAt: record.CreatedAt,
	}
	if err := s.PutAt(pointer.Hash, pointer); err != nil {
		return types.Hash256{}, err
	}
	return record.Hash, nil
}

// LoadCheckpoint fetches a checkpoint by its content hash.
func (s *Store) LoadCheckpoint(hash types.Hash256) (*Checkpoint, error) {
	record, err := s.Get(hash)
	if err != nil {
		return nil, err
	}
	if record.Kind != KindCheckpoint {
		return nil, fmt.Errorf("%w: %s is a %s", ErrCorrupt, hash, record.Kind)
	}
	return DecodeCheckpoint(record.Data)
}

// LatestCheckpoint fetches the most recent checkpoint saved for instance.
func (s *Store) LatestCheckpoint(instance types.AccountID) (*Checkpoint, error) {
	pointer, err := s.Get(latestKey(instance))
	if err != nil {
		return nil, err
	}
	if len(pointer.Data) != len(types.Hash256{}) {
		return nil, fmt.Errorf("%w: malformed checkpoint pointer", ErrCorrupt)
	}
	var hash types.Hash256
	copy(hash[:], pointer.Data)
	return s.LoadCheckpoint(hash)
}
