package sched

import "sync"

// WaitQueue is spec.md §4.6's wait queue: a single pointer to the most
// recent sleeper, not a list. This reproduces original_source/kernel/
// sched.c's sleep_on family verbatim, including the head-nulling behavior
// interruptible_sleep_on relies on (see DESIGN.md's open-question
// decision: reproduced faithfully, LIFO wake with truncation of any
// waiters queued while the caller slept).
type WaitQueue struct {
	mu   sync.Mutex
	Head *Task
}

// SleepOn puts caller into UNINTERRUPTIBLE, chains the previous head
// behind it, and calls Schedule. Once caller becomes RUNNING again (via
// WakeUp and a later Schedule pick), the chained predecessor is restored
// to RUNNING.
func (tb *Table) SleepOn(wq *WaitQueue, caller *Task) {
	wq.mu.Lock()
	prev := wq.Head
	wq.Head = caller
	wq.mu.Unlock()

	caller.setState(Uninterruptible)
	tb.Schedule()

	if prev != nil {
		prev.setState(Running)
	}
}

// InterruptibleSleepOn is SleepOn's INTERRUPTIBLE sibling. If a later
// sleeper has supplanted caller at the head by the time caller wakes, that
// supplanting task is forced to RUNNING and caller goes back to sleep —
// the original's LIFO-forcing loop (spec.md §4.6, §8).
func (tb *Table) InterruptibleSleepOn(wq *WaitQueue, caller *Task) {
	wq.mu.Lock()
	prev := wq.Head
	wq.Head = caller
	wq.mu.Unlock()

	for {
		caller.setState(Interruptible)
		tb.Schedule()

		wq.mu.Lock()
		head := wq.Head
		wq.mu.Unlock()
		if head != nil && head != caller {
			head.setState(Running)
			continue
		}
		break
	}

	wq.mu.Lock()
	wq.Head = nil
	wq.mu.Unlock()
	if prev != nil {
		prev.setState(Running)
	}
}

// WakeUp transitions the head waiter to RUNNING and clears the head
// pointer (spec.md §4.6 wake_up). A queue with no sleeper is a silent
// no-op.
func WakeUp(wq *WaitQueue) {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	if wq.Head != nil {
		wq.Head.setState(Running)
		wq.Head = nil
	}
}
