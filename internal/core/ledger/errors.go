package ledger

import (
	"errors"

	"github.com/LeJamon/goflashd/internal/core/asset"
)

var (
	// ErrInvalidDeposit is returned when deposit reconciliation finds no new
	// funds: the observed pooled holdings equal the recorded reserve.
	ErrInvalidDeposit = errors.New("invalid deposit: no unaccounted funds in pool")

	// ErrInsufficientBalance is returned when a transfer or withdrawal exceeds
	// the caller's tracked balance (unsigned-underflow guard).
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrReentrant is returned when a guarded operation is invoked while
	// another guarded operation on the same instance is in progress.
	ErrReentrant = errors.New("reentrant call")

	// ErrReserveInconsistent signals internal corruption: a reserve decrement
	// underflowed even though the balance decrement succeeded. It is
	// unreachable while the ledger invariants hold.
	ErrReserveInconsistent = errors.New("reserve total inconsistent with tracked balances")

	// ErrAssetTransferFailed is the asset-transfer collaborator's failure,
	// propagated unchanged.
	ErrAssetTransferFailed = asset.ErrTransferFailed

	// ErrInvalidFeeRate is returned at construction for a rate above 100%.
	ErrInvalidFeeRate = errors.New("fee rate exceeds fixed-point denominator")

	// ErrNilMover is returned at construction when no asset-transfer
	// collaborator is supplied.
	ErrNilMover = errors.New("asset mover is required")
)
