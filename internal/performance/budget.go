package performance

import "sync/atomic"

// IterationBudget is the shared iteration counter of a run.
//
// VUs Claim a slot before starting an iteration, then either Complete it or
// Release it back to the pool. Claims never exceed the total, so
// completed <= claimed <= total holds at every instant. A total of zero
// means unlimited (duration-bound runs).
type IterationBudget struct {
	total     int64
	claimed   atomic.Int64
	completed atomic.Int64
}

// NewIterationBudget creates a budget of total iterations.
func NewIterationBudget(total int64) *IterationBudget {
	if total < 0 {
		total = 0
	}
	return &IterationBudget{total: total}
}

// Claim reserves the next iteration slot. It returns ErrBudgetExhausted
// when none is left.
func (b *IterationBudget) Claim() error {
	for {
		cur := b.claimed.Load()
		if b.total > 0 && cur >= b.total {
			return ErrBudgetExhausted
		}
		if b.claimed.CompareAndSwap(cur, cur+1) {
			return nil
		}
	}
}

// Release gives a claimed slot back so another iteration can use it.
func (b *IterationBudget) Release() {
	b.claimed.Add(-1)
}

// Complete records that a claimed iteration ran to the end.
func (b *IterationBudget) Complete() {
	b.completed.Add(1)
}

// Total returns the configured budget, zero when unlimited.
func (b *IterationBudget) Total() int64 { return b.total }

// Claimed returns the number of slots currently held or used.
func (b *IterationBudget) Claimed() int64 { return b.claimed.Load() }

// Completed returns the number of finished iterations.
func (b *IterationBudget) Completed() int64 { return b.completed.Load() }
