package asset

import (
	"fmt"
	"sync"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/types"
)

// Bank is the in-process reference implementation of the asset-transfer
// collaborator: a registry of fungible assets with per-account held balances.
// Every mutation is journaled so callers holding a Snapshot revision can
// unwind to it, which gives the settlement engine true whole-operation
// rollback semantics.
type Bank struct {
	mu       sync.Mutex
	balances map[types.AssetID]map[types.AccountID]amount.Quantity
	journal  []journalEntry
}

// journalEntry records the previous value of one balance slot.
type journalEntry struct {
	asset   types.AssetID
	account types.AccountID
	prev    amount.Quantity
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{
		balances: make(map[types.AssetID]map[types.AccountID]amount.Quantity),
	}
}

// Register creates an asset with no supply. Registering an existing asset is
// a no-op.
func (b *Bank) Register(asset types.AssetID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.balances[asset]; !ok {
		b.balances[asset] = make(map[types.AccountID]amount.Quantity)
	}
}

// Mint credits qty of asset to account, creating the asset if needed.
func (b *Bank) Mint(asset types.AssetID, account types.AccountID, qty amount.Quantity) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	holders, ok := b.balances[asset]
	if !ok {
		holders = make(map[types.AccountID]amount.Quantity)
		b.balances[asset] = holders
	}
	next, err := holders[account].Add(qty)
	if err != nil {
		return fmt.Errorf("mint %s to %s: %w", qty, account, err)
	}
	b.record(asset, account, holders[account])
	holders[account] = next
	return nil
}

// HeldBalance reports the balance of account for asset. Unknown assets and
// unknown accounts hold zero.
func (b *Bank) HeldBalance(asset types.AssetID, account types.AccountID) amount.Quantity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[asset][account]
}

// Move transfers qty of asset between accounts atomically. It fails without
// state change when the asset is unknown or the sender's balance is short.
func (b *Bank) Move(asset types.AssetID, from, to types.AccountID, qty amount.Quantity) error {
	if qty.IsZero() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	holders, ok := b.balances[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	fromNext, err := holders[from].Sub(qty)
	if err != nil {
		return fmt.Errorf("%w: insufficient held balance", ErrTransferFailed)
	}
	if from == to {
		return nil
	}
	toNext, err := holders[to].Add(qty)
	if err != nil {
		return fmt.Errorf("%w: recipient balance overflow", ErrTransferFailed)
	}

	b.record(asset, from, holders[from])
	b.record(asset, to, holders[to])
	holders[from] = fromNext
	holders[to] = toNext
	return nil
}

// Snapshot returns a revision token for the current state.
func (b *Bank) Snapshot() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.journal)
}

// RevertTo discards every mutation made after rev, restoring balances to the
// values they held when Snapshot returned it.
func (b *Bank) RevertTo(rev int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if rev < 0 || rev > len(b.journal) {
		return
	}
	for i := len(b.journal) - 1; i >= rev; i-- {
		e := b.journal[i]
		holders := b.balances[e.asset]
		if e.prev.IsZero() {
			delete(holders, e.account)
		} else {
			holders[e.account] = e.prev
		}
	}
	b.journal = b.journal[:rev]
}

// DiscardJournal drops journal history once no caller can revert past it.
// Long-lived processes call this after each committed operation to keep the
// journal from growing without bound.
func (b *Bank) DiscardJournal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.journal = b.journal[:0]
}

func (b *Bank) record(asset types.AssetID, account types.AccountID, prev amount.Quantity) {
	b.journal = append(b.journal, journalEntry{asset: asset, account: account, prev: prev})
}
