// Package service orchestrates the settlement core for the daemon: it owns
// the asset bank, the instance factory and one lender per instance, and feeds
// the optional checkpoint store, history archive and event subscribers after
// each committed operation.
package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/core/asset"
	"github.com/LeJamon/goflashd/internal/core/factory"
	"github.com/LeJamon/goflashd/internal/core/flashloan"
	"github.com/LeJamon/goflashd/internal/core/ledger"
	"github.com/LeJamon/goflashd/internal/storage/history"
	"github.com/LeJamon/goflashd/internal/storage/statestore"
	"github.com/LeJamon/goflashd/internal/types"
)

// Options configures optional collaborators. Zero values disable them.
type Options struct {
	// Checkpoints receives a snapshot of an instance after every state
	// changing operation on it.
	Checkpoints *statestore.Store

	// History archives loans and transfers. Failures are logged, never
	// propagated; the archive is advisory.
	History history.Store

	// Publisher fans events out to subscribers.
	Publisher EventPublisher
}

// Service is the daemon's settlement facade.
type Service struct {
	mu      sync.Mutex
	bank    *asset.Bank
	factory *factory.Factory
	lenders map[types.AccountID]*flashloan.Lender
	seq     uint64

	startedAt   time.Time
	checkpoints *statestore.Store
	history     history.Store
	publisher   EventPublisher
}

// New builds a service around bank.
func New(bank *asset.Bank, opts Options) *Service {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Service{
		bank:        bank,
		factory:     factory.New(bank),
		lenders:     make(map[types.AccountID]*flashloan.Lender),
		startedAt:   time.Now().UTC(),
		checkpoints: opts.Checkpoints,
		history:     opts.History,
		publisher:   publisher,
	}
}

// Bank exposes the underlying asset bank, used by tooling to seed balances.
func (s *Service) Bank() *asset.Bank { return s.bank }

// DeployInstance creates a ledger instance and its lender.
func (s *Service) DeployInstance(deployer, feeRecipient types.AccountID, feeRate amount.FeeRate) (types.AccountID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.factory.Deploy(deployer, feeRecipient, feeRate)
	if err != nil {
		return types.AccountID{}, err
	}
	lender, err := flashloan.NewLender(inst)
	if err != nil {
		return types.AccountID{}, err
	}

	id := inst.Identity()
	s.lenders[id] = lender
	seq := s.nextSeqLocked()

	s.publisher.PublishInstanceDeployed(&InstanceDeployedEvent{
		Type:         "instanceDeployed",
		Instance:     id.String(),
		Deployer:     deployer.String(),
		FeeRecipient: feeRecipient.String(),
		FeeRate:      uint32(feeRate),
		Seq:          seq,
	})
	return id, nil
}

// Instance returns the ledger deployed under id.
func (s *Service) Instance(id types.AccountID) (*ledger.Ledger, error) {
	return s.factory.Instance(id)
}

// Instances lists deployed instance IDs.
func (s *Service) Instances() []types.AccountID {
	return s.factory.Instances()
}

// Deposit reconciles funds moved into the instance's pool and credits
// account.
func (s *Service) Deposit(instanceID types.AccountID, assetID types.AssetID, account types.AccountID) (amount.Quantity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.factory.Instance(instanceID)
	if err != nil {
		return 0, err
	}
	credited, err := inst.Deposit(assetID, account)
	if err != nil {
		return 0, err
	}

	seq := s.commitLocked(inst)
	s.publisher.PublishTransfer(&TransferEvent{
		Type:     "transfer",
		Kind:     "deposit",
		Instance: instanceID.String(),
		Asset:    assetID.String(),
		To:       account.String(),
		Amount:   uint64(credited),
		Seq:      seq,
	})
	return credited, nil
}

// Transfer moves a tracked balance inside an instance.
func (s *Service) Transfer(instanceID types.AccountID, assetID types.AssetID, from, to types.AccountID, qty amount.Quantity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.factory.Instance(instanceID)
	if err != nil {
		return err
	}
	if err := inst.Transfer(assetID, from, to, qty); err != nil {
		return err
	}

	seq := s.commitLocked(inst)
	s.archiveTransfer(&history.TransferRecord{
		Instance:   instanceID,
		Asset:      assetID,
		From:       from,
		To:         to,
		Amount:     qty,
		Seq:        seq,
		ExecutedAt: time.Now().UTC(),
	})
	s.publisher.PublishTransfer(&TransferEvent{
		Type:     "transfer",
		Kind:     "transfer",
		Instance: instanceID.String(),
		Asset:    assetID.String(),
		From:     from.String(),
		To:       to.String(),
		Amount:   uint64(qty),
		Seq:      seq,
	})
	return nil
}

// Withdraw debits owner and pays recipient out of the pool.
func (s *Service) Withdraw(instanceID types.AccountID, assetID types.AssetID, owner, recipient types.AccountID, qty amount.Quantity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.factory.Instance(instanceID)
	if err != nil {
		return err
	}
	if err := inst.Withdraw(assetID, owner, recipient, qty); err != nil {
		return err
	}

	seq := s.commitLocked(inst)
	s.publisher.PublishTransfer(&TransferEvent{
		Type:     "transfer",
		Kind:     "withdraw",
		Instance: instanceID.String(),
		Asset:    assetID.String(),
		From:     owner.String(),
		To:       recipient.String(),
		Amount:   uint64(qty),
		Seq:      seq,
	})
	return nil
}

// FlashLoan runs a loan against an instance and archives the receipt.
//
// s.mu is not held across the borrower callback: the instance's guard and
// the bank's own locking serialize the settlement window, and a callback
// that calls back into the service must not block on the facade's lock.
func (s *Service) FlashLoan(instanceID, initiator types.AccountID, borrower flashloan.Borrower, assetID types.AssetID, qty amount.Quantity, data []byte) (*flashloan.Receipt, error) {
	s.mu.Lock()
	inst, err := s.factory.Instance(instanceID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	lender, ok := s.lenders[instanceID]
	s.mu.Unlock()
	if !ok {
		return nil, factory.ErrInstanceNotFound
	}

	receipt, err := lender.FlashLoan(initiator, borrower, assetID, qty, data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	seq := s.commitLocked(inst)
	s.mu.Unlock()

	s.saveReceipt(instanceID, initiator, receipt, seq)

	settledAt := time.Now().UTC()
	s.archiveLoan(&history.LoanRecord{
		Instance:  instanceID,
		Initiator: initiator,
		Borrower:  receipt.Borrower,
		Asset:     receipt.Asset,
		Amount:    receipt.Amount,
		Fee:       receipt.Fee,
		Seq:       seq,
		SettledAt: settledAt,
	})
	s.publisher.PublishLoanSettled(&LoanSettledEvent{
		Type:      "loanSettled",
		Instance:  instanceID.String(),
		Initiator: initiator.String(),
		Borrower:  receipt.Borrower.String(),
		Asset:     receipt.Asset.String(),
		Amount:    uint64(receipt.Amount),
		Fee:       uint64(receipt.Fee),
		Seq:       seq,
		SettledAt: settledAt,
	})
	return receipt, nil
}

// MaxFlashLoan reports the largest lendable amount on an instance.
func (s *Service) MaxFlashLoan(instanceID types.AccountID, assetID types.AssetID) (amount.Quantity, error) {
	s.mu.Lock()
	lender, ok := s.lenders[instanceID]
	s.mu.Unlock()
	if !ok {
		return 0, factory.ErrInstanceNotFound
	}
	return lender.MaxFlashLoan(assetID), nil
}

// FlashFee quotes the fee for a loan on an instance.
func (s *Service) FlashFee(instanceID types.AccountID, assetID types.AssetID, qty amount.Quantity) (amount.Quantity, error) {
	s.mu.Lock()
	lender, ok := s.lenders[instanceID]
	s.mu.Unlock()
	if !ok {
		return 0, factory.ErrInstanceNotFound
	}
	return lender.FlashFee(assetID, qty)
}

// ErrHistoryDisabled reports an archive query against a service configured
// without a history store.
var ErrHistoryDisabled = errors.New("history archive not configured")

// LoanHistory returns archived loans matching q.
func (s *Service) LoanHistory(ctx context.Context, q history.LoanQuery) ([]history.LoanRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Loans(ctx, q)
}

// AccountTransfers returns the most recent archived transfers touching account.
func (s *Service) AccountTransfers(ctx context.Context, account types.AccountID, limit uint32) ([]history.TransferRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.TransfersByAccount(ctx, account, limit)
}

// Info summarizes the running service.
type Info struct {
	Instances int
	Seq       uint64
	Uptime    time.Duration
}

func (s *Service) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		Instances: len(s.lenders),
		Seq:       s.seq,
		Uptime:    time.Since(s.startedAt),
	}
}

// RestoreInstance redeploys an instance and loads its latest checkpoint from
// the store. Used at startup to resume from persisted state.
func (s *Service) RestoreInstance(deployer, feeRecipient types.AccountID, feeRate amount.FeeRate) (types.AccountID, error) {
	id, err := s.DeployInstance(deployer, feeRecipient, feeRate)
	if err != nil {
		return types.AccountID{}, err
	}
	if s.checkpoints == nil {
		return id, nil
	}

	cp, err := s.checkpoints.LatestCheckpoint(id)
	if err == statestore.ErrNotFound {
		return id, nil
	}
	if err != nil {
		return types.AccountID{}, err
	}

	inst, err := s.factory.Instance(id)
	if err != nil {
		return types.AccountID{}, err
	}
	inst.Restore(cp.Balances, cp.Reserves)

	s.mu.Lock()
	if cp.Seq > s.seq {
		s.seq = cp.Seq
	}
	s.mu.Unlock()
	return id, nil
}

// commitLocked finalizes a successful operation: the rollback journal is no
// longer needed, the sequence advances, and a checkpoint is saved.
func (s *Service) commitLocked(inst *ledger.Ledger) uint64 {
	s.bank.DiscardJournal()
	seq := s.nextSeqLocked()

	if s.checkpoints != nil {
		balances, reserves := inst.Snapshot()
		_, err := s.checkpoints.SaveCheckpoint(&statestore.Checkpoint{
			Instance: inst.Identity(),
			Seq:      seq,
			Balances: balances,
			Reserves: reserves,
		})
		if err != nil {
			log.Printf("checkpoint save failed for %s: %v", inst.Identity(), err)
		}
	}
	return seq
}

func (s *Service) nextSeqLocked() uint64 {
	s.seq++
	return s.seq
}

func (s *Service) saveReceipt(instanceID, initiator types.AccountID, rec *flashloan.Receipt, seq uint64) {
	if s.checkpoints == nil {
		return
	}
	_, err := s.checkpoints.SaveReceipt(&statestore.Receipt{
		Instance:  instanceID,
		Initiator: initiator,
		Borrower:  rec.Borrower,
		Asset:     rec.Asset,
		Amount:    rec.Amount,
		Fee:       rec.Fee,
		Seq:       seq,
	})
	if err != nil {
		log.Printf("receipt save failed for %s: %v", instanceID, err)
	}
}

func (s *Service) archiveLoan(rec *history.LoanRecord) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.RecordLoan(ctx, rec); err != nil {
		log.Printf("history: loan archive failed: %v", err)
	}
}

func (s *Service) archiveTransfer(rec *history.TransferRecord) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.RecordTransfer(ctx, rec); err != nil {
		log.Printf("history: transfer archive failed: %v", err)
	}
}
