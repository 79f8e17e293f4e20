package rpc

import (
	"sync"
)

// StreamType names a subscription stream.
type StreamType string

const (
	// StreamLoans carries loanSettled events.
	StreamLoans StreamType = "loans"
	// StreamLedger carries instanceDeployed events and checkpoint summaries.
	StreamLedger StreamType = "ledger"
	// StreamTransfers carries deposit, transfer and withdraw events.
	StreamTransfers StreamType = "transfers"
)

func validStream(s StreamType) bool {
	switch s {
	case StreamLoans, StreamLedger, StreamTransfers:
		return true
	}
	return false
}

// Connection is the subscription manager's view of one subscriber.
type Connection struct {
	ID      string
	Send    chan []byte
	streams map[StreamType]bool
	mu      sync.Mutex
}

func newConnection(id string, buffer int) *Connection {
	return &Connection{
		ID:      id,
		Send:    make(chan []byte, buffer),
		streams: make(map[StreamType]bool),
	}
}

func (c *Connection) subscribe(stream StreamType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streams[stream] = true
}

func (c *Connection) unsubscribe(stream StreamType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.streams, stream)
}

func (c *Connection) subscribed(stream StreamType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams[stream]
}

// SubscriptionManager tracks connections and fans stream messages out to
// them. Slow subscribers are skipped, not waited on.
type SubscriptionManager struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{connections: make(map[string]*Connection)}
}

func (sm *SubscriptionManager) AddConnection(conn *Connection) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.connections[conn.ID] = conn
}

func (sm *SubscriptionManager) RemoveConnection(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.connections, id)
}

// Broadcast sends message to every connection subscribed to stream.
func (sm *SubscriptionManager) Broadcast(stream StreamType, message []byte) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, conn := range sm.connections {
		if !conn.subscribed(stream) {
			continue
		}
		select {
		case conn.Send <- message:
		default:
			// Drop for subscribers that cannot keep up.
		}
	}
}

// SubscriberCount reports how many connections follow stream.
func (sm *SubscriptionManager) SubscriberCount(stream StreamType) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	count := 0
	for _, conn := range sm.connections {
		if conn.subscribed(stream) {
			count++
		}
	}
	return count
}
