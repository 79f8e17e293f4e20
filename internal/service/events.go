package service

import "time"

// InstanceDeployedEvent is emitted when the factory creates a new ledger
// instance.
type InstanceDeployedEvent struct {
	Type         string `json:"type"` // always "instanceDeployed"
	Instance     string `json:"instance"`
	Deployer     string `json:"deployer"`
	FeeRecipient string `json:"fee_recipient"`
	FeeRate      uint32 `json:"fee_rate"`
	Seq          uint64 `json:"seq"`
}

// LoanSettledEvent is emitted after a flash loan settles.
type LoanSettledEvent struct {
	Type      string    `json:"type"` // always "loanSettled"
	Instance  string    `json:"instance"`
	Initiator string    `json:"initiator"`
	Borrower  string    `json:"borrower"`
	Asset     string    `json:"asset"`
	Amount    uint64    `json:"amount"`
	Fee       uint64    `json:"fee"`
	Seq       uint64    `json:"seq"`
	SettledAt time.Time `json:"settled_at"`
}

// TransferEvent is emitted after an internal transfer, deposit or withdrawal.
type TransferEvent struct {
	Type     string `json:"type"` // always "transfer"
	Kind     string `json:"kind"` // "deposit", "transfer" or "withdraw"
	Instance string `json:"instance"`
	Asset    string `json:"asset"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Amount   uint64 `json:"amount"`
	Seq      uint64 `json:"seq"`
}

// EventPublisher receives settlement events for fan-out to subscribers. The
// rpc package provides the WebSocket-backed implementation; the service only
// depends on this interface.
type EventPublisher interface {
	PublishInstanceDeployed(event *InstanceDeployedEvent)
	PublishLoanSettled(event *LoanSettledEvent)
	PublishTransfer(event *TransferEvent)
}

// NopPublisher drops every event. Used when no subscription surface is
// configured.
type NopPublisher struct{}

func (NopPublisher) PublishInstanceDeployed(*InstanceDeployedEvent) {}
func (NopPublisher) PublishLoanSettled(*LoanSettledEvent)           {}
func (NopPublisher) PublishTransfer(*TransferEvent)                 {}
