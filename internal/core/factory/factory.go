// Package factory deploys custodial ledger instances at deterministic
// addresses. An instance's identity is a function of its construction
// parameters alone, so anyone can predict where a given configuration will
// live and a configuration can only ever be deployed once.
package factory

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/core/asset"
	"github.com/LeJamon/goflashd/internal/core/ledger"
	"github.com/LeJamon/goflashd/internal/crypto"
	"github.com/LeJamon/goflashd/internal/types"
)

// instanceTag is the domain separator for ledger instance IDs.
const instanceTag = "goflashd/ledger/v1"

var (
	// ErrInstanceExists is returned when the derived instance ID is already
	// occupied.
	ErrInstanceExists = errors.New("factory: instance already deployed")

	// ErrInstanceNotFound is returned by Instance for unknown IDs.
	ErrInstanceNotFound = errors.New("factory: instance not found")
)

// Factory tracks deployed ledger instances.
type Factory struct {
	mover asset.Mover

	mu        sync.RWMutex
	instances map[types.AccountID]*ledger.Ledger
}

// New creates a factory whose instances settle against mover.
func New(mover asset.Mover) *Factory {
	return &Factory{
		mover:     mover,
		instances: make(map[types.AccountID]*ledger.Ledger),
	}
}

// InstanceID derives the address a deployment with these parameters will
// receive. The derivation commits to every parameter, so distinct
// configurations get distinct addresses.
func InstanceID(deployer, feeRecipient types.AccountID, feeRate amount.FeeRate) types.AccountID {
	var rate [4]byte
	binary.BigEndian.PutUint32(rate[:], uint32(feeRate))
	return crypto.CalcInstanceID(instanceTag, deployer[:], feeRecipient[:], rate[:])
}

// Deploy creates a ledger instance for deployer with the given fee
// configuration. Deploying the same parameters twice fails with
// ErrInstanceExists.
func (f *Factory) Deploy(deployer, feeRecipient types.AccountID, feeRate amount.FeeRate) (*ledger.Ledger, error) {
	id := InstanceID(deployer, feeRecipient, feeRate)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.instances[id]; ok {
		return nil, ErrInstanceExists
	}
	inst, err := ledger.New(id, feeRecipient, feeRate, f.mover)
	if err != nil {
		return nil, err
	}
	f.instances[id] = inst
	return inst, nil
}

// Instance returns the deployed ledger with the given ID.
func (f *Factory) Instance(id types.AccountID) (*ledger.Ledger, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	inst, ok := f.instances[id]
	if !ok {
		return nil, ErrInstanceNotFound
	}
	return inst, nil
}

// Instances returns the IDs of every deployed instance.
func (f *Factory) Instances() []types.AccountID {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ids := make([]types.AccountID, 0, len(f.instances))
	for id := range f.instances {
		ids = append(ids, id)
	}
	return ids
}
