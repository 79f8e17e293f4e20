package rpc

import (
	"encoding/json"
	"log"

	"github.com/LeJamon/goflashd/internal/service"
)

// Publisher fans service events out to WebSocket subscribers. It implements
// service.EventPublisher.
type Publisher struct {
	manager *SubscriptionManager
}

func NewPublisher(manager *SubscriptionManager) *Publisher {
	return &Publisher{manager: manager}
}

func (p *Publisher) PublishInstanceDeployed(event *service.InstanceDeployedEvent) {
	p.broadcast(StreamLedger, event)
}

func (p *Publisher) PublishLoanSettled(event *service.LoanSettledEvent) {
	p.broadcast(StreamLoans, event)
}

func (p *Publisher) PublishTransfer(event *service.TransferEvent) {
	p.broadcast(StreamTransfers, event)
}

func (p *Publisher) broadcast(stream StreamType, event interface{}) {
	if p.manager == nil || event == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("rpc: marshal %s event: %v", stream, err)
		return
	}
	p.manager.Broadcast(stream, data)
}

var _ service.EventPublisher = (*Publisher)(nil)
