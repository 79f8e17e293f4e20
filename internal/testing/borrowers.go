package testing

import (
	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/core/asset"
	"github.com/LeJamon/goflashd/internal/core/flashloan"
	"github.com/LeJamon/goflashd/internal/types"
)

// RepayingBorrower repays the loan plus fee plus Extra back to the pool from
// its own bank holdings. It must hold enough units to cover the fee and any
// extra before the loan runs.
type RepayingBorrower struct {
	Owner *Account
	Bank  *asset.Bank
	Pool  types.AccountID

	// Extra is repaid on top of the owed amount, exercising surplus sweep.
	Extra uint64

	// LastFee records the fee quoted on the most recent callback.
	LastFee uint64
}

func (b *RepayingBorrower) Account() types.AccountID { return b.Owner.ID }

func (b *RepayingBorrower) OnFlashLoan(initiator types.AccountID, assetID types.AssetID, qty, fee amount.Quantity, data []byte) (types.Hash256, error) {
	b.LastFee = uint64(fee)
	repay := qty + fee + amount.Quantity(b.Extra)
	if err := b.Bank.Move(assetID, b.Owner.ID, b.Pool, repay); err != nil {
		return types.Hash256{}, err
	}
	return flashloan.Acknowledgment, nil
}

// DefaultingBorrower keeps the proceeds and repays Shortfall less than owed.
type DefaultingBorrower struct {
	Owner *Account
	Bank  *asset.Bank
	Pool  types.AccountID

	// Shortfall is how many units short of the owed amount the repayment is.
	Shortfall uint64
}

func (b *DefaultingBorrower) Account() types.AccountID { return b.Owner.ID }

func (b *DefaultingBorrower) OnFlashLoan(initiator types.AccountID, assetID types.AssetID, qty, fee amount.Quantity, data []byte) (types.Hash256, error) {
	owed := qty + fee
	repay := owed - amount.Quantity(b.Shortfall)
	if err := b.Bank.Move(assetID, b.Owner.ID, b.Pool, repay); err != nil {
		return types.Hash256{}, err
	}
	return flashloan.Acknowledgment, nil
}

// RejectingBorrower repays in full but returns the wrong acknowledgment,
// so the loan must still unwind.
type RejectingBorrower struct {
	Owner *Account
	Bank  *asset.Bank
	Pool  types.AccountID
}

func (b *RejectingBorrower) Account() types.AccountID { return b.Owner.ID }

func (b *RejectingBorrower) OnFlashLoan(initiator types.AccountID, assetID types.AssetID, qty, fee amount.Quantity, data []byte) (types.Hash256, error) {
	if err := b.Bank.Move(assetID, b.Owner.ID, b.Pool, qty+fee); err != nil {
		return types.Hash256{}, err
	}
	return types.Hash256{0xBA, 0xD0}, nil
}
