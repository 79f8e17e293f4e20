package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/core/asset"
	"github.com/LeJamon/goflashd/internal/core/factory"
	"github.com/LeJamon/goflashd/internal/core/flashloan"
	"github.com/LeJamon/goflashd/internal/core/ledger"
	"github.com/LeJamon/goflashd/internal/storage/statestore"
	"github.com/LeJamon/goflashd/internal/types"
)

var (
	deployer = types.AccountID{0xD0}
	feeSink  = types.AccountID{0xFE}
	tokenT   = types.AssetID{0x01}
	alice    = types.AccountID{0xA1}
	bob      = types.AccountID{0xB0}
)

type capturingPublisher struct {
	deployed  []*InstanceDeployedEvent
	loans     []*LoanSettledEvent
	transfers []*TransferEvent
}

func (p *capturingPublisher) PublishInstanceDeployed(e *InstanceDeployedEvent) {
	p.deployed = append(p.deployed, e)
}
func (p *capturingPublisher) PublishLoanSettled(e *LoanSettledEvent) { p.loans = append(p.loans, e) }
func (p *capturingPublisher) PublishTransfer(e *TransferEvent)       { p.transfers = append(p.transfers, e) }

func newTestService(t *testing.T) (*Service, *capturingPublisher, *statestore.Store) {
	t.Helper()

	store, err := statestore.NewStore(statestore.NewMemoryBackend(), statestore.Config{
		Compression: "none",
		CacheSize:   64,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bank := asset.NewBank()
	require.NoError(t, bank.Mint(tokenT, alice, 1_000_000))

	pub := &capturingPublisher{}
	svc := New(bank, Options{Checkpoints: store, Publisher: pub})
	return svc, pub, store
}

func deployFunded(t *testing.T, svc *Service, reserve amount.Quantity) types.AccountID {
	t.Helper()
	id, err := svc.DeployInstance(deployer, feeSink, 500)
	require.NoError(t, err)

	require.NoError(t, svc.Bank().Move(tokenT, alice, id, reserve))
	credited, err := svc.Deposit(id, tokenT, alice)
	require.NoError(t, err)
	require.Equal(t, reserve, credited)
	return id
}

func TestDeployInstance(t *testing.T) {
	svc, pub, _ := newTestService(t)

	id, err := svc.DeployInstance(deployer, feeSink, 500)
	require.NoError(t, err)
	require.Equal(t, factory.InstanceID(deployer, feeSink, 500), id)

	_, err = svc.DeployInstance(deployer, feeSink, 500)
	require.ErrorIs(t, err, factory.ErrInstanceExists)

	require.Len(t, pub.deployed, 1)
	require.Equal(t, id.String(), pub.deployed[0].Instance)
}

func TestDepositTransferWithdraw(t *testing.T) {
	svc, pub, _ := newTestService(t)
	id := deployFunded(t, svc, 500)

	require.NoError(t, svc.Transfer(id, tokenT, alice, bob, 200))
	require.NoError(t, svc.Withdraw(id, tokenT, bob, bob, 150))

	inst, err := svc.Instance(id)
	require.NoError(t, err)
	require.Equal(t, amount.Quantity(300), inst.BalanceOf(tokenT, alice))
	require.Equal(t, amount.Quantity(50), inst.BalanceOf(tokenT, bob))
	require.Equal(t, amount.Quantity(150), svc.Bank().HeldBalance(tokenT, bob))

	// deposit + transfer + withdraw
	require.Len(t, pub.transfers, 3)
	require.Equal(t, "deposit", pub.transfers[0].Kind)
	require.Equal(t, "transfer", pub.transfers[1].Kind)
	require.Equal(t, "withdraw", pub.transfers[2].Kind)
}

type repayingBorrower struct {
	svc     *Service
	account types.AccountID
	repay   amount.Quantity
}

func (b *repayingBorrower) Account() types.AccountID { return b.account }

func (b *repayingBorrower) OnFlashLoan(initiator types.AccountID, assetID types.AssetID, qty, fee amount.Quantity, data []byte) (types.Hash256, error) {
	// The pool to repay is passed through the opaque data argument.
	var poolID types.AccountID
	copy(poolID[:], data)
	if err := b.svc.Bank().Move(assetID, b.account, poolID, b.repay); err != nil {
		return types.Hash256{}, err
	}
	return flashloan.Acknowledgment, nil
}

func TestFlashLoanThroughService(t *testing.T) {
	svc, pub, store := newTestService(t)
	id := deployFunded(t, svc, 400_000)

	// Give bob a float for the fee.
	require.NoError(t, svc.Bank().Move(tokenT, alice, bob, 1_000))

	loan := amount.Quantity(100_000)
	fee, err := svc.FlashFee(id, tokenT, loan)
	require.NoError(t, err)
	require.Equal(t, amount.Quantity(50), fee)

	borrower := &repayingBorrower{svc: svc, account: bob, repay: loan + fee}
	receipt, err := svc.FlashLoan(id, bob, borrower, tokenT, loan, id[:])
	require.NoError(t, err)
	require.Equal(t, fee, receipt.Fee)

	maxLoan, err := svc.MaxFlashLoan(id, tokenT)
	require.NoError(t, err)
	require.Equal(t, amount.Quantity(400_000), maxLoan)

	require.Len(t, pub.loans, 1)
	require.Equal(t, uint64(loan), pub.loans[0].Amount)

	// The settled receipt is persisted as a content-addressed record:
	// deploy=1, deposit=2, loan commit=3.
	wantReceipt := &statestore.Receipt{
		Instance:  id,
		Initiator: bob,
		Borrower:  bob,
		Asset:     tokenT,
		Amount:    loan,
		Fee:       fee,
		Seq:       3,
	}
	saved, err := store.LoadReceipt(types.Hash256FromData(statestore.EncodeReceipt(wantReceipt)))
	require.NoError(t, err)
	require.Equal(t, wantReceipt, saved)
}

// nestedCallBorrower drives service calls from inside the loan window:
// Transfer is unguarded and must go through, Deposit must fail fast.
type nestedCallBorrower struct {
	svc     *Service
	pool    types.AccountID
	account types.AccountID
	repay   amount.Quantity

	transferErr error
	depositErr  error
}

func (b *nestedCallBorrower) Account() types.AccountID { return b.account }

func (b *nestedCallBorrower) OnFlashLoan(initiator types.AccountID, assetID types.AssetID, qty, fee amount.Quantity, data []byte) (types.Hash256, error) {
	b.transferErr = b.svc.Transfer(b.pool, assetID, alice, bob, 10)
	_, b.depositErr = b.svc.Deposit(b.pool, assetID, b.account)
	if err := b.svc.Bank().Move(assetID, b.account, b.pool, b.repay); err != nil {
		return types.Hash256{}, err
	}
	return flashloan.Acknowledgment, nil
}

func TestServiceCallsDuringLoanWindow(t *testing.T) {
	svc, _, _ := newTestService(t)
	id := deployFunded(t, svc, 400_000)
	require.NoError(t, svc.Bank().Move(tokenT, alice, bob, 1_000))

	loan := amount.Quantity(100_000)
	fee, err := svc.FlashFee(id, tokenT, loan)
	require.NoError(t, err)

	borrower := &nestedCallBorrower{svc: svc, pool: id, account: bob, repay: loan + fee}
	receipt, err := svc.FlashLoan(id, bob, borrower, tokenT, loan, nil)
	require.NoError(t, err)
	require.Equal(t, fee, receipt.Fee)

	require.NoError(t, borrower.transferErr)
	require.ErrorIs(t, borrower.depositErr, ledger.ErrReentrant)

	inst, err := svc.Instance(id)
	require.NoError(t, err)
	require.Equal(t, amount.Quantity(399_990), inst.BalanceOf(tokenT, alice))
	require.Equal(t, amount.Quantity(10), inst.BalanceOf(tokenT, bob))
	require.Equal(t, amount.Quantity(400_000), inst.ReserveTotal(tokenT))
	require.Equal(t, amount.Quantity(400_000), svc.Bank().HeldBalance(tokenT, id))
}

func TestRestoreInstanceFromCheckpoint(t *testing.T) {
	svc, _, store := newTestService(t)
	id := deployFunded(t, svc, 500)
	require.NoError(t, svc.Transfer(id, tokenT, alice, bob, 123))

	// A fresh service over the same store resumes the instance state. Held
	// balances live in the bank, so mirror the pool funding there.
	bank := asset.NewBank()
	require.NoError(t, bank.Mint(tokenT, id, 500))
	revived := New(bank, Options{Checkpoints: store})

	restoredID, err := revived.RestoreInstance(deployer, feeSink, 500)
	require.NoError(t, err)
	require.Equal(t, id, restoredID)

	inst, err := revived.Instance(restoredID)
	require.NoError(t, err)
	require.Equal(t, amount.Quantity(377), inst.BalanceOf(tokenT, alice))
	require.Equal(t, amount.Quantity(123), inst.BalanceOf(tokenT, bob))
	require.Equal(t, amount.Quantity(500), inst.ReserveTotal(tokenT))

	info := revived.Info()
	require.Equal(t, uint64(3), info.Seq) // deploy + deposit + transfer
	require.Equal(t, 1, info.Instances)
}

func TestUnknownInstance(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Deposit(types.AccountID{0x99}, tokenT, alice)
	require.ErrorIs(t, err, factory.ErrInstanceNotFound)

	_, err = svc.MaxFlashLoan(types.AccountID{0x99}, tokenT)
	require.ErrorIs(t, err, factory.ErrInstanceNotFound)
}
