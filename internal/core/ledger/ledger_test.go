package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/core/asset"
	"github.com/LeJamon/goflashd/internal/types"
)

var (
	poolID   = types.AccountID{0xFD}
	feeSink  = types.AccountID{0xFE}
	tokenT   = types.AssetID{0x01}
	alice    = types.AccountID{0xA1}
	bob      = types.AccountID{0xB0}
	carol    = types.AccountID{0xC0}
	feeRate  = amount.FeeRate(500) // 0.0005
	supplyT  = amount.Quantity(1_000_000)
)

func newTestLedger(t *testing.T) (*Ledger, *asset.Bank) {
	t.Helper()
	bank := asset.NewBank()
	require.NoError(t, bank.Mint(tokenT, alice, supplyT))
	l, err := New(poolID, feeSink, feeRate, bank)
	require.NoError(t, err)
	return l, bank
}

// fund moves qty into the pool and reconciles it to account.
func fund(t *testing.T, l *Ledger, bank *asset.Bank, from types.AccountID, qty amount.Quantity) {
	t.Helper()
	require.NoError(t, bank.Move(tokenT, from, poolID, qty))
	credited, err := l.Deposit(tokenT, from)
	require.NoError(t, err)
	require.Equal(t, qty, credited)
}

func requireInvariants(t *testing.T, l *Ledger, bank *asset.Bank) {
	t.Helper()
	balances, reserves := l.Snapshot()
	for assetID, holders := range balances {
		var sum amount.Quantity
		for _, qty := range holders {
			next, err := sum.Add(qty)
			require.NoError(t, err)
			sum = next
		}
		require.LessOrEqual(t, uint64(sum), uint64(reserves[assetID]),
			"tracked balances exceed reserve for %s", assetID)
	}
	for assetID, reserve := range reserves {
		require.LessOrEqual(t, uint64(reserve), uint64(bank.HeldBalance(assetID, poolID)),
			"reserve exceeds pooled holdings for %s", assetID)
	}
}

func TestNewValidation(t *testing.T) {
	bank := asset.NewBank()

	_, err := New(poolID, feeSink, feeRate, nil)
	require.ErrorIs(t, err, ErrNilMover)

	_, err = New(poolID, feeSink, amount.FeeRate(amount.RateDenominator+1), bank)
	require.ErrorIs(t, err, ErrInvalidFeeRate)
}

func TestDepositReconciliation(t *testing.T) {
	l, bank := newTestLedger(t)

	// Funds must be moved in before reconciling.
	require.NoError(t, bank.Move(tokenT, alice, poolID, 400))
	credited, err := l.Deposit(tokenT, alice)
	require.NoError(t, err)
	require.Equal(t, amount.Quantity(400), credited)
	require.Equal(t, amount.Quantity(400), l.BalanceOf(tokenT, alice))
	require.Equal(t, amount.Quantity(400), l.ReserveTotal(tokenT))

	// Reconciling again with no new transfer is a no-op call.
	_, err = l.Deposit(tokenT, alice)
	require.ErrorIs(t, err, ErrInvalidDeposit)
	requireInvariants(t, l, bank)
}

func TestDepositCreditsDonations(t *testing.T) {
	l, bank := newTestLedger(t)

	// A donation sits unaccounted until whoever deposits next claims it.
	require.NoError(t, bank.Move(tokenT, alice, poolID, 100))
	require.NoError(t, bank.Move(tokenT, alice, poolID, 30))

	credited, err := l.Deposit(tokenT, bob)
	require.NoError(t, err)
	require.Equal(t, amount.Quantity(130), credited)
	require.Equal(t, amount.Quantity(130), l.BalanceOf(tokenT, bob))
	requireInvariants(t, l, bank)
}

func TestTransferConservation(t *testing.T) {
	l, bank := newTestLedger(t)
	fund(t, l, bank, alice, 500)

	require.NoError(t, l.Transfer(tokenT, alice, bob, 200))
	require.Equal(t, amount.Quantity(300), l.BalanceOf(tokenT, alice))
	require.Equal(t, amount.Quantity(200), l.BalanceOf(tokenT, bob))
	require.Equal(t, amount.Quantity(500), l.ReserveTotal(tokenT))

	// Held pool balance untouched by internal transfers.
	require.Equal(t, amount.Quantity(500), bank.HeldBalance(tokenT, poolID))
	requireInvariants(t, l, bank)
}

func TestTransferInsufficientBalance(t *testing.T) {
	l, bank := newTestLedger(t)
	fund(t, l, bank, alice, 100)

	err := l.Transfer(tokenT, alice, bob, 101)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, amount.Quantity(100), l.BalanceOf(tokenT, alice))
	require.Equal(t, amount.Quantity(0), l.BalanceOf(tokenT, bob))
}

func TestTransferToSelf(t *testing.T) {
	l, bank := newTestLedger(t)
	fund(t, l, bank, alice, 100)

	require.NoError(t, l.Transfer(tokenT, alice, alice, 60))
	require.Equal(t, amount.Quantity(100), l.BalanceOf(tokenT, alice))
}

func TestWithdrawRoundTrip(t *testing.T) {
	l, bank := newTestLedger(t)
	before := bank.HeldBalance(tokenT, alice)

	fund(t, l, bank, alice, 250)
	require.NoError(t, l.Withdraw(tokenT, alice, alice, 250))

	require.Equal(t, before, bank.HeldBalance(tokenT, alice))
	require.Equal(t, amount.Quantity(0), l.BalanceOf(tokenT, alice))
	require.Equal(t, amount.Quantity(0), l.ReserveTotal(tokenT))
	requireInvariants(t, l, bank)
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	l, bank := newTestLedger(t)
	fund(t, l, bank, alice, 100)

	err := l.Withdraw(tokenT, alice, alice, 101)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, amount.Quantity(100), l.BalanceOf(tokenT, alice))
	require.Equal(t, amount.Quantity(100), l.ReserveTotal(tokenT))
	requireInvariants(t, l, bank)
}

func TestWithdrawToThirdParty(t *testing.T) {
	l, bank := newTestLedger(t)
	fund(t, l, bank, alice, 100)

	require.NoError(t, l.Withdraw(tokenT, alice, carol, 40))
	require.Equal(t, amount.Quantity(40), bank.HeldBalance(tokenT, carol))
	require.Equal(t, amount.Quantity(60), l.BalanceOf(tokenT, alice))
	require.Equal(t, amount.Quantity(60), l.ReserveTotal(tokenT))
	requireInvariants(t, l, bank)
}

// failingMover wraps the bank but fails every Move.
type failingMover struct{ *asset.Bank }

func (f *failingMover) Move(assetID types.AssetID, from, to types.AccountID, qty amount.Quantity) error {
	return asset.ErrTransferFailed
}

func TestWithdrawUnwindsOnTransferFailure(t *testing.T) {
	bank := asset.NewBank()
	require.NoError(t, bank.Mint(tokenT, alice, supplyT))
	fm := &failingMover{bank}
	l, err := New(poolID, feeSink, feeRate, fm)
	require.NoError(t, err)

	// Seed the pool directly; Deposit only reads through the mover.
	require.NoError(t, bank.Move(tokenT, alice, poolID, 100))
	_, err = l.Deposit(tokenT, alice)
	require.NoError(t, err)

	err = l.Withdraw(tokenT, alice, alice, 50)
	require.ErrorIs(t, err, ErrAssetTransferFailed)
	require.Equal(t, amount.Quantity(100), l.BalanceOf(tokenT, alice))
	require.Equal(t, amount.Quantity(100), l.ReserveTotal(tokenT))
}

func TestSnapshotRestore(t *testing.T) {
	l, bank := newTestLedger(t)
	fund(t, l, bank, alice, 300)
	require.NoError(t, l.Transfer(tokenT, alice, bob, 120))

	balances, reserves := l.Snapshot()

	restored, err := New(poolID, feeSink, feeRate, bank)
	require.NoError(t, err)
	restored.Restore(balances, reserves)

	require.Equal(t, amount.Quantity(180), restored.BalanceOf(tokenT, alice))
	require.Equal(t, amount.Quantity(120), restored.BalanceOf(tokenT, bob))
	require.Equal(t, amount.Quantity(300), restored.ReserveTotal(tokenT))
}
