// Package guard provides a one-shot idempotency latch for finalize
// sequences. A finalize routine (reward grant + persistence + ranking
// update) can be triggered from several places at once: a countdown
// hitting zero, an explicit user action, or a visibility change. The
// latch guarantees at most one of them proceeds.
package guard

import "sync/atomic"

// Guard is a one-shot latch scoped to a single unit of work (one match or
// one session). The zero value is ready to use. Guards are never shared
// across units of work.
type Guard struct {
	latched atomic.Bool
}

// TryEnter attempts to claim the latch. The first caller gets true and may
// run the finalize sequence; every later caller gets false and must no-op.
// The check-and-set is a single compare-and-swap, so racing callers cannot
// both proceed.
func (g *Guard) TryEnter() bool {
	return g.latched.CompareAndSwap(false, true)
}

// Reset clears the latch. It is used only when a finalize attempt failed
// partway (for example the reward call errored) so that a retry is possible.
func (g *Guard) Reset() {
	g.latched.Store(false)
}

// Latched reports whether the latch has been claimed.
func (g *Guard) Latched() bool {
	return g.latched.Load()
}
