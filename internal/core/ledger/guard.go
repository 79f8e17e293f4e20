package ledger

import "sync/atomic"

// Guard is the mutual-exclusion flag shared by every operation that performs
// an external control transfer: Deposit, Withdraw and FlashLoan. It is scoped
// to the whole ledger instance, not per asset. While one guarded operation is
// executing, any nested call into a guarded operation fails immediately with
// ErrReentrant instead of blocking; release happens via defer on every exit
// path, normal or failing.
//
// Transfer is deliberately outside the guard: it touches no external call and
// no pooled-asset movement.
type Guard struct {
	busy atomic.Bool
}

// Enter acquires the guard or fails with ErrReentrant if it is already held.
func (g *Guard) Enter() error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrReentrant
	}
	return nil
}

// Exit releases the guard.
func (g *Guard) Exit() {
	g.busy.Store(false)
}

// Held reports whether a guarded operation is currently executing.
func (g *Guard) Held() bool {
	return g.busy.Load()
}
