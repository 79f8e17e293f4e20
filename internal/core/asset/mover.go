// Package asset defines the asset-transfer capability the ledger consumes and
// provides the in-process Bank reference implementation of it. The ledger and
// the flash-loan engine never touch token state directly; everything goes
// through the Mover boundary.
package asset

import (
	"errors"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/types"
)

var (
	// ErrTransferFailed is the propagated failure of the asset-transfer
	// collaborator. It is reported, never interpreted.
	ErrTransferFailed = errors.New("asset transfer failed")

	// ErrUnknownAsset is returned for an asset the collaborator has never seen.
	ErrUnknownAsset = errors.New("unknown asset")
)

// Mover is the capability to move a fungible unit between two addresses and
// to report an address's held quantity. Implementations must be atomic per
// call: a Move either fully succeeds or leaves balances untouched.
type Mover interface {
	// HeldBalance reports how much of asset the account currently holds.
	HeldBalance(asset types.AssetID, account types.AccountID) amount.Quantity

	// Move transfers qty of asset from one account to another. The usual
	// convention applies: return nil on full success, an error otherwise.
	Move(asset types.AssetID, from, to types.AccountID, qty amount.Quantity) error
}

// Reverter is the optional rollback capability of a Mover. The settlement
// engine uses it to unwind disbursed funds when a flash loan aborts after the
// borrower callback already ran.
type Reverter interface {
	// Snapshot returns a revision token for the current token state.
	Snapshot() int

	// RevertTo discards every mutation made after the given revision.
	RevertTo(rev int)
}

// SafeMove performs a move and verifies the recipient's held balance actually
// increased by qty, treating partial or no-op transfers as failures. This is
// the standard wrapper around collaborators that only follow the
// return-boolean-or-fail convention loosely.
func SafeMove(m Mover, asset types.AssetID, from, to types.AccountID, qty amount.Quantity) error {
	if qty.IsZero() {
		return nil
	}
	before := m.HeldBalance(asset, to)
	if err := m.Move(asset, from, to, qty); err != nil {
		return errors.Join(ErrTransferFailed, err)
	}
	after := m.HeldBalance(asset, to)
	delta, err := after.Sub(before)
	if err != nil || delta != qty {
		return ErrTransferFailed
	}
	return nil
}
