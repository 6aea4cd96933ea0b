// Package sched implements the task scheduler and wait/wakeup primitives
// (spec.md §4.6, C6): a fixed-size task table, the counter-based
// scheduling algorithm, sleep/wake queues, and the clock-tick handler.
//
// Grounded on spec.md §4.6 and original_source/kernel/sched.c
// (schedule/sleep_on/interruptible_sleep_on/wake_up/do_timer). Task
// identity and credentials live here since the scheduler's rebucket and
// selection rules operate directly on them; internal/proc builds
// fork/exec/exit/wait on top of the same Task value.
package sched

import "sync"

// State is one of the five task states spec.md §3 names.
type State int

const (
	Unused State = iota
	Running
	Interruptible
	Uninterruptible
	Stopped
	Zombie
)

// NR_OPEN-equivalent is owned by the file-descriptor table in internal/proc;
// Task only carries what the scheduler itself reads.

// Task is one task-table slot (spec.md §3 "Task").
type Task struct {
	mu sync.Mutex

	Slot int
	Pid  int

	State State

	// Counter is the remaining time-slice; Priority is added back to it
	// on rebucket (spec.md §4.6 step 3).
	Counter  int
	Priority int

	UID, EUID, SUID   uint16
	GID, EGID, SGID   uint8
	PGroup            int
	Session           int
	Leader            bool
	TTY               int
	ParentPid         int

	Blocked uint32 // signal mask
	Signal  uint32 // pending-signal bitmask

	AlarmTick int64 // absolute tick deadline; 0 == disarmed

	Utime, Stime, Cutime, Cstime int64
	StartTime                    int64

	// ExitCode is recorded by do_exit and consumed by waitpid.
	ExitCode int
}

func (t *Task) lockedState() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.State
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.State = s
	t.mu.Unlock()
}

// SetState transitions t's state. Exported for internal/proc, which
// drives state changes that don't belong to the scheduler itself (e.g.
// RUNNING after fork completes, ZOMBIE after exit).
func (t *Task) SetState(s State) { t.setState(s) }

// GetState is the exported read side of lockedState.
func (t *Task) GetState() State { return t.lockedState() }

// HasDeliverableSignal reports whether any unblocked bit is set in Signal
// (spec.md §8 "cancellation": an interruptible sleeper with a deliverable
// signal is resurrected as RUNNING by schedule()).
func (t *Task) HasDeliverableSignal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Signal&^t.Blocked != 0
}
