// Package ledger implements the custodial pooled ledger: per-account balances
// and per-asset reserve totals for funds physically held by the instance's
// pool account. Deposits are reconciled against observed holdings rather than
// taken from a caller-supplied amount, so the ledger can never be credited
// with funds it does not actually hold.
package ledger

import (
	"fmt"
	"sync"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/core/asset"
	"github.com/LeJamon/goflashd/internal/types"
)

// Ledger owns the (asset, account) balance map and the per-asset reserve
// totals of one instance. The fee configuration is immutable after New.
type Ledger struct {
	id           types.AccountID
	feeRate      amount.FeeRate
	feeRecipient types.AccountID
	mover        asset.Mover

	guard Guard

	// mu protects the two maps below. It is held only across map access,
	// never across a call into the asset-transfer collaborator, so an
	// unguarded Transfer issued from inside a collaborator callback observes
	// consistent, already-mutated state.
	mu       sync.Mutex
	balances map[types.AssetID]map[types.AccountID]amount.Quantity
	reserves map[types.AssetID]amount.Quantity
}

// New creates a ledger instance. The id doubles as the pool account under
// which the instance holds custody of deposited assets.
func New(id types.AccountID, feeRecipient types.AccountID, feeRate amount.FeeRate, mover asset.Mover) (*Ledger, error) {
	if mover == nil {
		return nil, ErrNilMover
	}
	if !feeRate.Valid() {
		return nil, ErrInvalidFeeRate
	}
	return &Ledger{
		id:           id,
		feeRate:      feeRate,
		feeRecipient: feeRecipient,
		mover:        mover,
		balances:     make(map[types.AssetID]map[types.AccountID]amount.Quantity),
		reserves:     make(map[types.AssetID]amount.Quantity),
	}, nil
}

// Identity returns the instance's identity, which is also its pool account.
func (l *Ledger) Identity() types.AccountID { return l.id }

// FeeRate returns the immutable flash-loan fee rate.
func (l *Ledger) FeeRate() amount.FeeRate { return l.feeRate }

// FeeRecipient returns the immutable fee recipient.
func (l *Ledger) FeeRecipient() types.AccountID { return l.feeRecipient }

// Mover returns the asset-transfer collaborator.
func (l *Ledger) Mover() asset.Mover { return l.mover }

// Guard returns the re-entrancy barrier shared with the settlement engine.
func (l *Ledger) Guard() *Guard { return &l.guard }

// BalanceOf returns the tracked balance of account for asset. Absent entries
// hold zero; the read never fails.
func (l *Ledger) BalanceOf(assetID types.AssetID, account types.AccountID) amount.Quantity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[assetID][account]
}

// ReserveTotal returns the recorded reserve for asset: the ledger's belief of
// how much of it the pool holds that has been accounted for.
func (l *Ledger) ReserveTotal(assetID types.AssetID) amount.Quantity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserves[assetID]
}

// HeldByPool returns the pool account's actual holdings of asset as reported
// by the asset-transfer collaborator.
func (l *Ledger) HeldByPool(assetID types.AssetID) amount.Quantity {
	return l.mover.HeldBalance(assetID, l.id)
}

// Deposit reconciles externally received funds: it credits account with the
// difference between the pool's observed holdings and the recorded reserve.
// The caller must have moved funds into the pool beforehand; a zero delta
// fails with ErrInvalidDeposit. Donations received since the last
// reconciliation are credited to whoever deposits next.
func (l *Ledger) Deposit(assetID types.AssetID, account types.AccountID) (amount.Quantity, error) {
	if err := l.guard.Enter(); err != nil {
		return 0, err
	}
	defer l.guard.Exit()

	held := l.mover.HeldBalance(assetID, l.id)

	l.mu.Lock()
	defer l.mu.Unlock()

	credited, err := held.Sub(l.reserves[assetID])
	if err != nil {
		// Reserves above observed holdings cannot happen outside a flash-loan
		// window; treat it as the zero-delta case.
		return 0, ErrInvalidDeposit
	}
	if credited.IsZero() {
		return 0, ErrInvalidDeposit
	}

	balNext, err := l.balances[assetID][account].Add(credited)
	if err != nil {
		return 0, fmt.Errorf("deposit credit: %w", err)
	}
	resNext, err := l.reserves[assetID].Add(credited)
	if err != nil {
		return 0, fmt.Errorf("deposit reserve: %w", err)
	}

	l.creditLocked(assetID, account, balNext)
	l.reserves[assetID] = resNext
	return credited, nil
}

// Transfer moves qty of asset from one tracked balance to another without
// touching reserves or moving any pooled asset. This is the cheap internal
// path and is intentionally outside the re-entrancy barrier.
func (l *Ledger) Transfer(assetID types.AssetID, from, to types.AccountID, qty amount.Quantity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	fromNext, err := l.balances[assetID][from].Sub(qty)
	if err != nil {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toNext, err := l.balances[assetID][to].Add(qty)
	if err != nil {
		return fmt.Errorf("transfer credit: %w", err)
	}

	l.creditLocked(assetID, from, fromNext)
	l.creditLocked(assetID, to, toNext)
	return nil
}

// Withdraw debits owner's tracked balance and the asset's reserve, then moves
// qty out of the pool to recipient. Ledger state is mutated before the
// external transfer so a re-entrant observer sees already-decremented
// balances; if the collaborator fails, the mutation is unwound and the error
// is propagated.
func (l *Ledger) Withdraw(assetID types.AssetID, owner, recipient types.AccountID, qty amount.Quantity) error {
	if err := l.guard.Enter(); err != nil {
		return err
	}
	defer l.guard.Exit()

	l.mu.Lock()
	balPrev := l.balances[assetID][owner]
	resPrev := l.reserves[assetID]

	balNext, err := balPrev.Sub(qty)
	if err != nil {
		l.mu.Unlock()
		return ErrInsufficientBalance
	}
	resNext, err := resPrev.Sub(qty)
	if err != nil {
		l.mu.Unlock()
		return ErrReserveInconsistent
	}

	l.creditLocked(assetID, owner, balNext)
	l.reserves[assetID] = resNext
	l.mu.Unlock()

	if err := asset.SafeMove(l.mover, assetID, l.id, recipient, qty); err != nil {
		l.mu.Lock()
		l.creditLocked(assetID, owner, balPrev)
		l.reserves[assetID] = resPrev
		l.mu.Unlock()
		return err
	}
	return nil
}

// Snapshot returns a deep copy of the balance and reserve maps for
// checkpointing. The copy is taken under the map lock and is safe to retain.
func (l *Ledger) Snapshot() (map[types.AssetID]map[types.AccountID]amount.Quantity, map[types.AssetID]amount.Quantity) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balances := make(map[types.AssetID]map[types.AccountID]amount.Quantity, len(l.balances))
	for assetID, holders := range l.balances {
		m := make(map[types.AccountID]amount.Quantity, len(holders))
		for account, qty := range holders {
			m[account] = qty
		}
		balances[assetID] = m
	}
	reserves := make(map[types.AssetID]amount.Quantity, len(l.reserves))
	for assetID, qty := range l.reserves {
		reserves[assetID] = qty
	}
	return balances, reserves
}

// Restore replaces the ledger state with a previously checkpointed snapshot.
// Used at daemon startup; never called on a live instance.
func (l *Ledger) Restore(balances map[types.AssetID]map[types.AccountID]amount.Quantity, reserves map[types.AssetID]amount.Quantity) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = make(map[types.AssetID]map[types.AccountID]amount.Quantity, len(balances))
	for assetID, holders := range balances {
		m := make(map[types.AccountID]amount.Quantity, len(holders))
		for account, qty := range holders {
			m[account] = qty
		}
		l.balances[assetID] = m
	}
	l.reserves = make(map[types.AssetID]amount.Quantity, len(reserves))
	for assetID, qty := range reserves {
		l.reserves[assetID] = qty
	}
}

// creditLocked writes a balance entry, creating the per-asset map on first
// credit. Callers hold l.mu.
func (l *Ledger) creditLocked(assetID types.AssetID, account types.AccountID, qty amount.Quantity) {
	holders, ok := l.balances[assetID]
	if !ok {
		holders = make(map[types.AccountID]amount.Quantity)
		l.balances[assetID] = holders
	}
	holders[account] = qty
}
