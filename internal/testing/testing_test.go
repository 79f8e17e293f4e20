package testing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/core/flashloan"
	"github.com/LeJamon/goflashd/internal/core/ledger"
	"github.com/LeJamon/goflashd/internal/service"
	"github.com/LeJamon/goflashd/internal/types"
)

func TestAccountDeterminism(t *testing.T) {
	a1 := NewAccount("alice")
	a2 := NewAccount("alice")
	b := NewAccount("bob")

	require.Equal(t, a1.ID, a2.ID)
	require.Equal(t, a1.PublicKey, a2.PublicKey)
	require.NotEqual(t, a1.ID, b.ID)
	require.False(t, a1.ID.IsZero())
}

func TestAssetDeterminism(t *testing.T) {
	require.Equal(t, NewAsset("token-a"), TokenA)
	require.NotEqual(t, TokenA, TokenB)
}

func TestCustodyLifecycle(t *testing.T) {
	env := New(t)
	alice := NewAccount("alice")
	bob := NewAccount("bob")

	pool := env.Deploy(500)
	credited := env.Fund(pool, TokenA, alice, 10_000)
	require.Equal(t, uint64(10_000), credited)

	env.Transfer(pool, TokenA, alice, bob, 4_000)
	RequireBalance(t, env, pool, TokenA, alice, 6_000)
	RequireBalance(t, env, pool, TokenA, bob, 4_000)
	RequireConservation(t, env, pool, TokenA, alice, bob)

	env.Withdraw(pool, TokenA, bob, 4_000)
	RequireBalance(t, env, pool, TokenA, bob, 0)
	RequireReserves(t, env, pool, TokenA, 6_000)
	require.Equal(t, uint64(4_000), env.Held(TokenA, bob))
	RequireConservation(t, env, pool, TokenA, alice, bob)
}

func TestTwoAssetsStayIndependent(t *testing.T) {
	env := New(t)
	alice := NewAccount("alice")

	pool := env.Deploy(500)
	env.Fund(pool, TokenA, alice, 1_000)
	env.Fund(pool, TokenB, alice, 2_000)

	RequireReserves(t, env, pool, TokenA, 1_000)
	RequireReserves(t, env, pool, TokenB, 2_000)

	env.Withdraw(pool, TokenA, alice, 1_000)
	RequireReserves(t, env, pool, TokenA, 0)
	RequireReserves(t, env, pool, TokenB, 2_000)
}

func TestFlashLoanSettles(t *testing.T) {
	env := New(t)
	alice := NewAccount("alice")
	borrowerAcct := NewAccount("borrower")

	pool := env.Deploy(500)
	env.Fund(pool, TokenA, alice, 1_000_000)

	// The borrower holds its own funds to cover the fee.
	env.Mint(TokenA, borrowerAcct, 10_000)

	borrower := &RepayingBorrower{Owner: borrowerAcct, Bank: env.Bank, Pool: pool}
	receipt, err := env.FlashLoan(pool, borrower, TokenA, 200_000, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(100), uint64(receipt.Fee))
	require.Equal(t, uint64(100), borrower.LastFee)

	// Pool is whole, the fee landed with the sink outside the pool.
	require.Equal(t, uint64(1_000_000), env.Holdings(pool, TokenA))
	require.Equal(t, uint64(100), env.Held(TokenA, env.FeeSink))
	require.Equal(t, uint64(9_900), env.Held(TokenA, borrowerAcct))
	RequireConservation(t, env, pool, TokenA, alice)
}

func TestFlashLoanSweepsOverpayment(t *testing.T) {
	env := New(t)
	alice := NewAccount("alice")
	borrowerAcct := NewAccount("borrower")

	pool := env.Deploy(500)
	env.Fund(pool, TokenA, alice, 1_000_000)
	env.Mint(TokenA, borrowerAcct, 10_000)

	borrower := &RepayingBorrower{Owner: borrowerAcct, Bank: env.Bank, Pool: pool, Extra: 250}
	receipt, err := env.FlashLoan(pool, borrower, TokenA, 200_000, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(350), uint64(receipt.Fee))

	require.Equal(t, uint64(1_000_000), env.Holdings(pool, TokenA))
	require.Equal(t, uint64(350), env.Held(TokenA, env.FeeSink))
}

func TestFlashLoanShortfallUnwinds(t *testing.T) {
	env := New(t)
	alice := NewAccount("alice")
	borrowerAcct := NewAccount("borrower")

	pool := env.Deploy(500)
	env.Fund(pool, TokenA, alice, 1_000_000)
	env.Mint(TokenA, borrowerAcct, 10_000)

	borrower := &DefaultingBorrower{Owner: borrowerAcct, Bank: env.Bank, Pool: pool, Shortfall: 1}
	_, err := env.FlashLoan(pool, borrower, TokenA, 200_000, nil)
	require.ErrorIs(t, err, flashloan.ErrRepaymentShortfall)

	// Everything restored, including the borrower's own repayment.
	require.Equal(t, uint64(1_000_000), env.Holdings(pool, TokenA))
	require.Equal(t, uint64(10_000), env.Held(TokenA, borrowerAcct))
	require.Equal(t, uint64(0), env.Held(TokenA, env.FeeSink))
	RequireConservation(t, env, pool, TokenA, alice)
}

func TestFlashLoanWrongAckUnwinds(t *testing.T) {
	env := New(t)
	alice := NewAccount("alice")
	borrowerAcct := NewAccount("borrower")

	pool := env.Deploy(500)
	env.Fund(pool, TokenA, alice, 1_000_000)
	env.Mint(TokenA, borrowerAcct, 10_000)

	borrower := &RejectingBorrower{Owner: borrowerAcct, Bank: env.Bank, Pool: pool}
	_, err := env.FlashLoan(pool, borrower, TokenA, 200_000, nil)
	require.ErrorIs(t, err, flashloan.ErrCallbackRejected)

	require.Equal(t, uint64(1_000_000), env.Holdings(pool, TokenA))
	require.Equal(t, uint64(10_000), env.Held(TokenA, borrowerAcct))
}

func TestDonationCreditsNextDepositor(t *testing.T) {
	env := New(t)
	alice := NewAccount("alice")
	donor := NewAccount("donor")

	pool := env.Deploy(500)
	env.Fund(pool, TokenA, alice, 1_000)

	// Donated units sit in the pool untracked until someone deposits.
	env.Mint(TokenA, donor, 500)
	require.NoError(t, env.Bank.Move(TokenA, donor.ID, pool, 500))
	require.Equal(t, uint64(1_500), env.Holdings(pool, TokenA))
	RequireReserves(t, env, pool, TokenA, 1_000)

	bob := NewAccount("bob")
	credited := env.Fund(pool, TokenA, bob, 200)
	require.Equal(t, uint64(700), credited)
	RequireBalance(t, env, pool, TokenA, bob, 700)
	RequireConservation(t, env, pool, TokenA, alice, bob)
}

func TestReentrantDepositRejected(t *testing.T) {
	env := New(t)
	alice := NewAccount("alice")
	borrowerAcct := NewAccount("borrower")

	pool := env.Deploy(500)
	env.Fund(pool, TokenA, alice, 1_000_000)
	env.Mint(TokenA, borrowerAcct, 10_000)

	inst, err := env.Service.Instance(pool)
	require.NoError(t, err)

	borrower := &reenteringBorrower{
		RepayingBorrower: RepayingBorrower{Owner: borrowerAcct, Bank: env.Bank, Pool: pool},
		inst:             inst,
	}
	_, err = env.FlashLoan(pool, borrower, TokenA, 100_000, nil)
	require.NoError(t, err)
	require.ErrorIs(t, borrower.nestedErr, ledger.ErrReentrant)
}

// reenteringBorrower attempts a deposit from inside its callback, then
// repays normally so only the nested call fails.
type reenteringBorrower struct {
	RepayingBorrower
	inst      *ledger.Ledger
	nestedErr error
}

func (b *reenteringBorrower) OnFlashLoan(initiator types.AccountID, assetID types.AssetID, qty, fee amount.Quantity, data []byte) (types.Hash256, error) {
	_, b.nestedErr = b.inst.Deposit(assetID, b.Owner.ID)
	return b.RepayingBorrower.OnFlashLoan(initiator, assetID, qty, fee, data)
}

func TestCheckpointRestoreAcrossServices(t *testing.T) {
	env := New(t)
	alice := NewAccount("alice")
	bob := NewAccount("bob")

	pool := env.Deploy(500)
	env.Fund(pool, TokenA, alice, 10_000)
	env.Transfer(pool, TokenA, alice, bob, 3_000)
	seqBefore := env.Service.Info().Seq

	// A new service over the same checkpoint store picks up where the
	// first left off. The bank state is reconstructed from the checkpoint.
	bank2 := env.Bank
	svc2 := service.New(bank2, service.Options{Checkpoints: env.Checkpoints})
	restored, err := svc2.RestoreInstance(env.Deployer.ID, env.FeeSink.ID, 500)
	require.NoError(t, err)
	require.Equal(t, pool, restored)

	inst, err := svc2.Instance(pool)
	require.NoError(t, err)
	require.Equal(t, uint64(7_000), uint64(inst.BalanceOf(TokenA, alice.ID)))
	require.Equal(t, uint64(3_000), uint64(inst.BalanceOf(TokenA, bob.ID)))
	require.Equal(t, uint64(10_000), uint64(inst.ReserveTotal(TokenA)))
	require.GreaterOrEqual(t, svc2.Info().Seq, seqBefore)
}

func TestEventsRecordedInOrder(t *testing.T) {
	env := New(t)
	alice := NewAccount("alice")
	bob := NewAccount("bob")

	pool := env.Deploy(500)
	env.Fund(pool, TokenA, alice, 1_000)
	env.Transfer(pool, TokenA, alice, bob, 400)

	events := env.Events()
	require.Len(t, events, 3)

	_, ok := events[0].(*service.InstanceDeployedEvent)
	require.True(t, ok, "first event should be the deploy, got %T", events[0])

	deposit, ok := events[1].(*service.TransferEvent)
	require.True(t, ok)
	require.Equal(t, "deposit", deposit.Kind)

	transfer, ok := events[2].(*service.TransferEvent)
	require.True(t, ok)
	require.Equal(t, "transfer", transfer.Kind)
}
