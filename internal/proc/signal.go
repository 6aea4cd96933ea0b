package proc

import "github.com/go-minix/kernel/internal/tty"

var _ tty.SignalPoster = (*Manager)(nil)

// PostToGroup implements tty.SignalPoster: every task sharing pgrp gets
// mask OR'd into its pending-signal bitmask (spec.md §4.8 tty_intr).
func (m *Manager) PostToGroup(pgrp int, mask uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.procs {
		if p.PGroup == pgrp {
			p.Signal |= mask
		}
	}
}

// DeliverPending runs spec.md §4.7's "signal delivery" step for pid: the
// work done on the return path from every syscall or interrupt, before
// control reaches user mode. For each pending, unblocked signal
// (lowest-numbered first): SIG_IGN clears the bit and moves on; default
// disposition clears the bit and, unless the signal is SIGCHLD, exits the
// task with code 1<<(sig-1) (do_exit); a caught signal clears the bit,
// ORs its sa_mask into blocked (masking out SIGKILL/SIGSTOP, which may
// never be blocked), and resets the disposition to default if
// SA_ONESHOT. There is no user-mode register/stack image in this
// simulator to redirect into the handler, so "catch" is recorded as
// disposition bookkeeping rather than an actual frame push.
//
// Returns true once delivery has exited the task; the caller should not
// dispatch further syscalls against it without an intervening waitpid.
func (m *Manager) DeliverPending(pid int) (bool, error) {
	p := m.ByPid(pid)
	if p == nil {
		return false, errNoSuchProcess(pid)
	}
	for {
		deliverable := p.Signal &^ p.Blocked
		if deliverable == 0 {
			return false, nil
		}
		sig := lowestSignal(deliverable)
		p.Signal &^= 1 << uint(sig-1)

		act := p.SigActions[sig-1]
		switch {
		case act.Handler == sigIgn:
			continue
		case act.Handler == 0:
			if sig == sigChld {
				continue
			}
			if err := m.Exit(pid, 1<<uint(sig-1)); err != nil {
				return true, err
			}
			return true, nil
		default:
			p.Blocked = (p.Blocked | act.Mask) &^ UnblockableSignals
			if act.OneShot {
				p.SigActions[sig-1] = SigAction{}
			}
		}
	}
}

// lowestSignal returns the 1-based signal number of the lowest set bit
// in a pending-signal bitmask, matching do_signal's "signr=1 ...; while
// !(mask&1) signr++" scan order.
func lowestSignal(bits uint32) int {
	for i := 0; i < 32; i++ {
		if bits&(1<<uint(i)) != 0 {
			return i + 1
		}
	}
	return 0
}
