// Package flashloan implements uncollateralized same-call loans against a
// custodial pool. A loan disburses pooled funds to a borrower, invokes the
// borrower's callback, and verifies that the pool's holdings grew by at least
// the quoted fee before the call returns. Any failure unwinds every transfer
// made during the loan window.
package flashloan

import (
	"fmt"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/core/asset"
	"github.com/LeJamon/goflashd/internal/core/ledger"
	"github.com/LeJamon/goflashd/internal/crypto"
	"github.com/LeJamon/goflashd/internal/types"
)

// Acknowledgment is the constant a borrower callback must return to accept
// the loan terms. Returning anything else aborts the loan.
var Acknowledgment = crypto.Sha512Half([]byte("goflashd.Borrower.OnFlashLoan"))

// Pool is the lender's view of a custodial ledger. *ledger.Ledger satisfies
// it.
type Pool interface {
	Identity() types.AccountID
	FeeRate() amount.FeeRate
	FeeRecipient() types.AccountID
	Mover() asset.Mover
	ReserveTotal(assetID types.AssetID) amount.Quantity
	Guard() *ledger.Guard
}

// Borrower receives loan proceeds and must return them, plus the fee, to the
// pool before OnFlashLoan returns. The returned hash must equal
// Acknowledgment or the loan is rejected and unwound.
type Borrower interface {
	// Account is the address loan proceeds are paid to.
	Account() types.AccountID

	// OnFlashLoan is invoked after qty has been moved to Account. initiator
	// identifies who requested the loan; data is passed through opaquely.
	OnFlashLoan(initiator types.AccountID, assetID types.AssetID, qty, fee amount.Quantity, data []byte) (types.Hash256, error)
}

// Receipt records a settled loan.
type Receipt struct {
	Borrower types.AccountID
	Asset    types.AssetID
	Amount   amount.Quantity
	Fee      amount.Quantity
}

// Lender runs flash loans against a single pool.
type Lender struct {
	pool     Pool
	reverter asset.Reverter
}

// NewLender binds a lender to pool. The pool's mover must support snapshot
// and revert so a failed loan can be unwound.
func NewLender(pool Pool) (*Lender, error) {
	rev, ok := pool.Mover().(asset.Reverter)
	if !ok {
		return nil, ErrPoolNotRevertible
	}
	return &Lender{pool: pool, reverter: rev}, nil
}

// MaxFlashLoan reports the largest amount lendable for asset: the pool's
// current actual holdings, unreconciled donations included.
func (ln *Lender) MaxFlashLoan(assetID types.AssetID) amount.Quantity {
	return ln.pool.Mover().HeldBalance(assetID, ln.pool.Identity())
}

// FlashFee quotes the fee for borrowing qty of asset.
func (ln *Lender) FlashFee(assetID types.AssetID, qty amount.Quantity) (amount.Quantity, error) {
	if ln.pool.ReserveTotal(assetID).IsZero() {
		return 0, ErrUnsupportedAsset
	}
	return ln.pool.FeeRate().Apply(qty), nil
}

// FlashLoan disburses qty of asset to borrower, runs its callback, and
// verifies repayment. The pool's holdings after the callback must cover the
// amount disbursed plus the quoted fee; everything received above the
// disbursed amount is swept to the pool's fee recipient. Any failure restores
// asset state to what it was when the call began.
func (ln *Lender) FlashLoan(initiator types.AccountID, borrower Borrower, assetID types.AssetID, qty amount.Quantity, data []byte) (*Receipt, error) {
	if err := ln.pool.Guard().Enter(); err != nil {
		return nil, err
	}
	defer ln.pool.Guard().Exit()

	mover := ln.pool.Mover()
	poolID := ln.pool.Identity()
	before := mover.HeldBalance(assetID, poolID)

	// The loan is capped by what the pool actually holds, not by the tracked
	// reserve, so donated funds are lendable too.
	if qty > before {
		return nil, ErrInvalidLoanAmount
	}

	fee := ln.pool.FeeRate().Apply(qty)
	owed, err := before.Add(fee)
	if err != nil {
		return nil, fmt.Errorf("flashloan owed: %w", err)
	}

	rev := ln.reverter.Snapshot()

	if err := asset.SafeMove(mover, assetID, poolID, borrower.Account(), qty); err != nil {
		ln.reverter.RevertTo(rev)
		return nil, err
	}

	ack, err := borrower.OnFlashLoan(initiator, assetID, qty, fee, data)
	if err != nil {
		ln.reverter.RevertTo(rev)
		return nil, fmt.Errorf("%w: %v", ErrCallbackRejected, err)
	}
	if ack != Acknowledgment {
		ln.reverter.RevertTo(rev)
		return nil, ErrCallbackRejected
	}

	after := mover.HeldBalance(assetID, poolID)
	if after < owed {
		ln.reverter.RevertTo(rev)
		return nil, ErrRepaymentShortfall
	}

	// Sweep the whole surplus, not just the quoted fee, so overpayment cannot
	// inflate the pool's unaccounted holdings.
	surplus, err := after.Sub(before)
	if err != nil {
		ln.reverter.RevertTo(rev)
		return nil, fmt.Errorf("flashloan surplus: %w", err)
	}
	if !surplus.IsZero() {
		if err := asset.SafeMove(mover, assetID, poolID, ln.pool.FeeRecipient(), surplus); err != nil {
			ln.reverter.RevertTo(rev)
			return nil, err
		}
	}

	return &Receipt{
		Borrower: borrower.Account(),
		Asset:    assetID,
		Amount:   qty,
		Fee:      surplus,
	}, nil
}
