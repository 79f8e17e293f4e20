package flashloan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/core/asset"
	"github.com/LeJamon/goflashd/internal/core/ledger"
	"github.com/LeJamon/goflashd/internal/types"
)

var (
	poolID  = types.AccountID{0xFD}
	feeSink = types.AccountID{0xFE}
	tokenT  = types.AssetID{0x01}
	alice   = types.AccountID{0xA1}
	trader  = types.AccountID{0xB0}
	feeRate = amount.FeeRate(500) // 0.0005
)

type env struct {
	bank   *asset.Bank
	pool   *ledger.Ledger
	lender *Lender
}

func newEnv(t *testing.T, reserve amount.Quantity) *env {
	t.Helper()
	bank := asset.NewBank()
	require.NoError(t, bank.Mint(tokenT, alice, 2_000_000))

	pool, err := ledger.New(poolID, feeSink, feeRate, bank)
	require.NoError(t, err)

	if !reserve.IsZero() {
		require.NoError(t, bank.Move(tokenT, alice, poolID, reserve))
		_, err = pool.Deposit(tokenT, alice)
		require.NoError(t, err)
	}

	lender, err := NewLender(pool)
	require.NoError(t, err)
	return &env{bank: bank, pool: pool, lender: lender}
}

// snapshotBalances captures the held balances the tests care about so failed
// loans can be checked for exact restoration.
func (e *env) snapshotBalances() map[types.AccountID]amount.Quantity {
	out := make(map[types.AccountID]amount.Quantity)
	for _, acct := range []types.AccountID{poolID, feeSink, alice, trader} {
		out[acct] = e.bank.HeldBalance(tokenT, acct)
	}
	return out
}

func (e *env) requireBalances(t *testing.T, want map[types.AccountID]amount.Quantity) {
	t.Helper()
	for acct, qty := range want {
		require.Equal(t, qty, e.bank.HeldBalance(tokenT, acct), "held balance of %s", acct)
	}
}

// scriptedBorrower repays repay units out of its own float and returns ack.
type scriptedBorrower struct {
	bank    *asset.Bank
	account types.AccountID
	repay   amount.Quantity
	ack     types.Hash256
	err     error

	gotInitiator types.AccountID
	gotAmount    amount.Quantity
	gotFee       amount.Quantity
	gotData      []byte
}

func (b *scriptedBorrower) Account() types.AccountID { return b.account }

func (b *scriptedBorrower) OnFlashLoan(initiator types.AccountID, assetID types.AssetID, qty, fee amount.Quantity, data []byte) (types.Hash256, error) {
	b.gotInitiator = initiator
	b.gotAmount = qty
	b.gotFee = fee
	b.gotData = data
	if b.err != nil {
		return types.Hash256{}, b.err
	}
	if !b.repay.IsZero() {
		if err := b.bank.Move(tokenT, b.account, poolID, b.repay); err != nil {
			return types.Hash256{}, err
		}
	}
	return b.ack, nil
}

func TestMaxFlashLoan(t *testing.T) {
	e := newEnv(t, 500_000)
	require.Equal(t, amount.Quantity(500_000), e.lender.MaxFlashLoan(tokenT))
	require.Equal(t, amount.Quantity(0), e.lender.MaxFlashLoan(types.AssetID{0x99}))

	// Donations the pool holds but has not reconciled are lendable too.
	require.NoError(t, e.bank.Move(tokenT, alice, poolID, 100_000))
	require.Equal(t, amount.Quantity(600_000), e.lender.MaxFlashLoan(tokenT))
}

func TestFlashFee(t *testing.T) {
	e := newEnv(t, 500_000)

	fee, err := e.lender.FlashFee(tokenT, 1_000_000)
	require.NoError(t, err)
	require.Equal(t, amount.Quantity(500), fee)

	_, err = e.lender.FlashFee(types.AssetID{0x99}, 100)
	require.ErrorIs(t, err, ErrUnsupportedAsset)
}

func TestFlashLoanSettles(t *testing.T) {
	e := newEnv(t, 1_000_000)

	// Give the trader a float to pay the fee plus a small surplus from.
	require.NoError(t, e.bank.Move(tokenT, alice, trader, 10_000))

	loan := amount.Quantity(400_000)
	fee := feeRate.Apply(loan) // 200
	borrower := &scriptedBorrower{
		bank:    e.bank,
		account: trader,
		repay:   loan + fee + 100, // overpay by 100
		ack:     Acknowledgment,
	}

	receipt, err := e.lender.FlashLoan(alice, borrower, tokenT, loan, []byte("arb"))
	require.NoError(t, err)
	require.Equal(t, trader, receipt.Borrower)
	require.Equal(t, tokenT, receipt.Asset)
	require.Equal(t, loan, receipt.Amount)

	// The entire surplus, overpayment included, goes to the fee recipient.
	require.Equal(t, fee+100, receipt.Fee)
	require.Equal(t, fee+100, e.bank.HeldBalance(tokenT, feeSink))

	// Pool holdings and reserves end exactly where they started.
	require.Equal(t, amount.Quantity(1_000_000), e.bank.HeldBalance(tokenT, poolID))
	require.Equal(t, amount.Quantity(1_000_000), e.pool.ReserveTotal(tokenT))
	require.Equal(t, amount.Quantity(10_000)-fee-100, e.bank.HeldBalance(tokenT, trader))

	require.Equal(t, alice, borrower.gotInitiator)
	require.Equal(t, loan, borrower.gotAmount)
	require.Equal(t, fee, borrower.gotFee)
	require.Equal(t, []byte("arb"), borrower.gotData)
}

func TestFlashLoanInvalidAmount(t *testing.T) {
	e := newEnv(t, 1_000_000)
	borrower := &scriptedBorrower{bank: e.bank, account: trader, ack: Acknowledgment}

	_, err := e.lender.FlashLoan(alice, borrower, tokenT, 1_000_001, nil)
	require.ErrorIs(t, err, ErrInvalidLoanAmount)

	// An asset the pool holds none of has zero lendable, so any positive
	// amount is over the limit.
	_, err = e.lender.FlashLoan(alice, borrower, types.AssetID{0x99}, 100, nil)
	require.ErrorIs(t, err, ErrInvalidLoanAmount)
}

func TestFlashLoanZeroAmount(t *testing.T) {
	e := newEnv(t, 1_000_000)
	borrower := &scriptedBorrower{bank: e.bank, account: trader, ack: Acknowledgment}

	before := e.snapshotBalances()
	receipt, err := e.lender.FlashLoan(alice, borrower, tokenT, 0, nil)
	require.NoError(t, err)
	require.Equal(t, amount.Quantity(0), receipt.Amount)
	require.Equal(t, amount.Quantity(0), receipt.Fee)
	require.Equal(t, amount.Quantity(0), borrower.gotFee)
	e.requireBalances(t, before)
}

func TestFlashLoanLendsDonatedHoldings(t *testing.T) {
	e := newEnv(t, 0)

	// Fund the pool without Deposit so nothing is tracked in reserves.
	require.NoError(t, e.bank.Move(tokenT, alice, poolID, 100_000))
	require.NoError(t, e.bank.Move(tokenT, alice, trader, 1_000))
	require.Equal(t, amount.Quantity(100_000), e.lender.MaxFlashLoan(tokenT))
	require.Equal(t, amount.Quantity(0), e.pool.ReserveTotal(tokenT))

	loan := amount.Quantity(100_000)
	fee := feeRate.Apply(loan) // 50
	borrower := &scriptedBorrower{
		bank:    e.bank,
		account: trader,
		repay:   loan + fee,
		ack:     Acknowledgment,
	}

	receipt, err := e.lender.FlashLoan(alice, borrower, tokenT, loan, nil)
	require.NoError(t, err)
	require.Equal(t, fee, receipt.Fee)
	require.Equal(t, amount.Quantity(100_000), e.bank.HeldBalance(tokenT, poolID))
	require.Equal(t, fee, e.bank.HeldBalance(tokenT, feeSink))
}

func TestFlashLoanWrongAckUnwinds(t *testing.T) {
	e := newEnv(t, 1_000_000)
	require.NoError(t, e.bank.Move(tokenT, alice, trader, 10_000))
	before := e.snapshotBalances()

	borrower := &scriptedBorrower{
		bank:    e.bank,
		account: trader,
		repay:   500_250,
		ack:     types.Hash256{0xBA, 0xD0},
	}

	_, err := e.lender.FlashLoan(alice, borrower, tokenT, 500_000, nil)
	require.ErrorIs(t, err, ErrCallbackRejected)
	e.requireBalances(t, before)
}

func TestFlashLoanCallbackErrorUnwinds(t *testing.T) {
	e := newEnv(t, 1_000_000)
	before := e.snapshotBalances()

	borrower := &scriptedBorrower{
		bank:    e.bank,
		account: trader,
		err:     errors.New("strategy failed"),
	}

	_, err := e.lender.FlashLoan(alice, borrower, tokenT, 500_000, nil)
	require.ErrorIs(t, err, ErrCallbackRejected)
	e.requireBalances(t, before)
}

func TestFlashLoanShortfallUnwinds(t *testing.T) {
	e := newEnv(t, 1_000_000)
	require.NoError(t, e.bank.Move(tokenT, alice, trader, 10_000))
	before := e.snapshotBalances()

	loan := amount.Quantity(500_000)
	fee := feeRate.Apply(loan)
	borrower := &scriptedBorrower{
		bank:    e.bank,
		account: trader,
		repay:   loan + fee - 1, // one unit short
		ack:     Acknowledgment,
	}

	_, err := e.lender.FlashLoan(alice, borrower, tokenT, loan, nil)
	require.ErrorIs(t, err, ErrRepaymentShortfall)
	e.requireBalances(t, before)
}

// reentrantBorrower tries to take a second loan from inside the callback.
type reentrantBorrower struct {
	bank    *asset.Bank
	lender  *Lender
	account types.AccountID
	repay   amount.Quantity

	nestedErr error
}

func (b *reentrantBorrower) Account() types.AccountID { return b.account }

func (b *reentrantBorrower) OnFlashLoan(initiator types.AccountID, assetID types.AssetID, qty, fee amount.Quantity, data []byte) (types.Hash256, error) {
	_, b.nestedErr = b.lender.FlashLoan(initiator, b, assetID, 1, nil)
	if err := b.bank.Move(tokenT, b.account, poolID, b.repay); err != nil {
		return types.Hash256{}, err
	}
	return Acknowledgment, nil
}

func TestFlashLoanRejectsNestedLoan(t *testing.T) {
	e := newEnv(t, 1_000_000)
	require.NoError(t, e.bank.Move(tokenT, alice, trader, 10_000))

	loan := amount.Quantity(100_000)
	fee := feeRate.Apply(loan)
	borrower := &reentrantBorrower{
		bank:    e.bank,
		lender:  e.lender,
		account: trader,
		repay:   loan + fee,
	}

	receipt, err := e.lender.FlashLoan(alice, borrower, tokenT, loan, nil)
	require.NoError(t, err)
	require.Equal(t, fee, receipt.Fee)
	require.ErrorIs(t, borrower.nestedErr, ledger.ErrReentrant)
}

func TestNewLenderRequiresRevertibleMover(t *testing.T) {
	bank := asset.NewBank()
	require.NoError(t, bank.Mint(tokenT, alice, 1_000))

	// Wrap the bank so the Reverter methods are hidden.
	pool, err := ledger.New(poolID, feeSink, feeRate, moverOnly{bank})
	require.NoError(t, err)

	_, err = NewLender(pool)
	require.ErrorIs(t, err, ErrPoolNotRevertible)
}

type moverOnly struct{ bank *asset.Bank }

func (m moverOnly) HeldBalance(assetID types.AssetID, account types.AccountID) amount.Quantity {
	return m.bank.HeldBalance(assetID, account)
}

func (m moverOnly) Move(assetID types.AssetID, from, to types.AccountID, qty amount.Quantity) error {
	return m.bank.Move(assetID, from, to, qty)
}
