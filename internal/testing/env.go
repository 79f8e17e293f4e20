package testing

import (
	"crypto/sha512"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/core/asset"
	"github.com/LeJamon/goflashd/internal/core/flashloan"
	"github.com/LeJamon/goflashd/internal/service"
	"github.com/LeJamon/goflashd/internal/storage/statestore"
	"github.com/LeJamon/goflashd/internal/types"
)

// NewAsset derives a deterministic asset identifier from a name.
func NewAsset(name string) types.AssetID {
	hash := sha512.Sum512([]byte("asset/" + name))
	var id types.AssetID
	copy(id[:], hash[:types.AssetIDSize])
	return id
}

// Well-known test assets.
var (
	TokenA = NewAsset("token-a")
	TokenB = NewAsset("token-b")
)

// TestEnv manages a settlement test environment. It wires a fresh bank, an
// in-memory checkpoint store and an event-capturing publisher into a service
// and provides helpers that fail the test on unexpected errors.
type TestEnv struct {
	t *testing.T

	// Bank is the asset bank backing the service.
	Bank *asset.Bank

	// Service is the settlement service under test.
	Service *service.Service

	// Checkpoints is the in-memory state store the service commits to.
	Checkpoints *statestore.Store

	// Deployer is the account instances are deployed from.
	Deployer *Account

	// FeeSink is the fee recipient used by Deploy.
	FeeSink *Account

	events *EventRecorder
}

// New creates a test environment with an in-memory state store.
func New(t *testing.T) *TestEnv {
	t.Helper()

	store, err := statestore.Open(statestore.Config{Backend: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	recorder := &EventRecorder{}
	bank := asset.NewBank()
	svc := service.New(bank, service.Options{
		Checkpoints: store,
		Publisher:   recorder,
	})

	return &TestEnv{
		t:           t,
		Bank:        bank,
		Service:     svc,
		Checkpoints: store,
		Deployer:    NewAccount("deployer"),
		FeeSink:     NewAccount("fee-sink"),
		events:      recorder,
	}
}

// Deploy deploys an instance with the given fee rate using the environment's
// deployer and fee sink.
func (env *TestEnv) Deploy(feeRate uint32) types.AccountID {
	env.t.Helper()
	id, err := env.Service.DeployInstance(env.Deployer.ID, env.FeeSink.ID, amount.FeeRate(feeRate))
	require.NoError(env.t, err)
	return id
}

// Mint creates new units of an asset held directly by an account.
func (env *TestEnv) Mint(assetID types.AssetID, acct *Account, qty uint64) {
	env.t.Helper()
	require.NoError(env.t, env.Bank.Mint(assetID, acct.ID, amount.Quantity(qty)))
}

// Fund mints qty units to the account, moves them into the pool and credits
// them through a deposit. It returns the credited amount.
func (env *TestEnv) Fund(pool types.AccountID, assetID types.AssetID, acct *Account, qty uint64) uint64 {
	env.t.Helper()
	env.Mint(assetID, acct, qty)
	require.NoError(env.t, env.Bank.Move(assetID, acct.ID, pool, amount.Quantity(qty)))
	credited, err := env.Service.Deposit(pool, assetID, acct.ID)
	require.NoError(env.t, err)
	return uint64(credited)
}

// Transfer moves a credited balance between accounts, failing the test on error.
func (env *TestEnv) Transfer(pool types.AccountID, assetID types.AssetID, from, to *Account, qty uint64) {
	env.t.Helper()
	require.NoError(env.t, env.Service.Transfer(pool, assetID, from.ID, to.ID, amount.Quantity(qty)))
}

// Withdraw pays out a credited balance to its owner, failing the test on error.
func (env *TestEnv) Withdraw(pool types.AccountID, assetID types.AssetID, owner *Account, qty uint64) {
	env.t.Helper()
	require.NoError(env.t, env.Service.Withdraw(pool, assetID, owner.ID, owner.ID, amount.Quantity(qty)))
}

// FlashLoan runs a flash loan against the pool with the given borrower.
func (env *TestEnv) FlashLoan(pool types.AccountID, borrower flashloan.Borrower, assetID types.AssetID, qty uint64, data []byte) (*flashloan.Receipt, error) {
	env.t.Helper()
	return env.Service.FlashLoan(pool, borrower.Account(), borrower, assetID, amount.Quantity(qty), data)
}

// Balance returns the credited balance of an account in a pool.
func (env *TestEnv) Balance(pool types.AccountID, assetID types.AssetID, acct *Account) uint64 {
	env.t.Helper()
	inst, err := env.Service.Instance(pool)
	require.NoError(env.t, err)
	return uint64(inst.BalanceOf(assetID, acct.ID))
}

// Reserves returns the tracked reserve total for an asset in a pool.
func (env *TestEnv) Reserves(pool types.AccountID, assetID types.AssetID) uint64 {
	env.t.Helper()
	inst, err := env.Service.Instance(pool)
	require.NoError(env.t, err)
	return uint64(inst.ReserveTotal(assetID))
}

// Holdings returns the asset units the pool actually holds in the bank.
func (env *TestEnv) Holdings(pool types.AccountID, assetID types.AssetID) uint64 {
	return uint64(env.Bank.HeldBalance(assetID, pool))
}

// Held returns the asset units an account holds directly in the bank,
// outside any pool.
func (env *TestEnv) Held(assetID types.AssetID, acct *Account) uint64 {
	return uint64(env.Bank.HeldBalance(assetID, acct.ID))
}

// Events returns all events captured so far.
func (env *TestEnv) Events() []interface{} {
	return env.events.All()
}

// EventRecorder captures published events for inspection.
type EventRecorder struct {
	mu     sync.Mutex
	events []interface{}
}

func (r *EventRecorder) PublishInstanceDeployed(event *service.InstanceDeployedEvent) {
	r.record(event)
}

func (r *EventRecorder) PublishLoanSettled(event *service.LoanSettledEvent) {
	r.record(event)
}

func (r *EventRecorder) PublishTransfer(event *service.TransferEvent) {
	r.record(event)
}

func (r *EventRecorder) record(event interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// All returns a copy of the captured events in publication order.
func (r *EventRecorder) All() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]interface{}, len(r.events))
	copy(out, r.events)
	return out
}

var _ service.EventPublisher = (*EventRecorder)(nil)
