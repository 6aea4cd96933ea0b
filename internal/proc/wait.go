package proc

import "github.com/go-minix/kernel/internal/sched"

const (
	// WNOHANG and WUNTRACED mirror the original's sys/wait.h flags.
	WNOHANG   = 1
	WUNTRACED = 2
)

// stoppedStatus is the magic 0x7f status waitpid reports for a STOPPED
// child when WUNTRACED is set (spec.md §4.7 waitpid).
const stoppedStatus = 0x7f

// Waitpid implements spec.md §4.7 waitpid(pid, &status, opts): pid > 0
// matches that child only; pid == 0 matches any child sharing the
// caller's process group; pid == -1 matches any child; pid < -1 matches
// any child in group -pid. Returns (childPid, status, error); a returned
// pid of 0 with a nil error means WNOHANG found nothing ready.
func (m *Manager) Waitpid(callerPid, pid int, opts int) (int, int, error) {
	for {
		parent := m.ByPid(callerPid)
		if parent == nil {
			return -1, 0, errNoSuchProcess(callerPid)
		}

		m.mu.Lock()
		var matched []*Process
		for _, c := range m.procs {
			if c.ParentPid != callerPid {
				continue
			}
			if !matchesWaitPid(c, parent, pid) {
				continue
			}
			matched = append(matched, c)
		}
		m.mu.Unlock()

		if len(matched) == 0 {
			return -1, 0, errNoChild(callerPid)
		}

		for _, c := range matched {
			switch c.GetState() {
			case sched.Stopped:
				if opts&WUNTRACED != 0 {
					return c.Pid, stoppedStatus, nil
				}
			case sched.Zombie:
				parent.Cutime += c.Utime + c.Cutime
				parent.Cstime += c.Stime + c.Cstime
				status := c.ExitCode
				m.reapChild(c)
				return c.Pid, status, nil
			}
		}

		if opts&WNOHANG != 0 {
			return 0, 0, nil
		}
		m.Sched.InterruptibleSleepOn(&parent.ChildWait, parent.Task)
	}
}

func matchesWaitPid(c, parent *Process, pid int) bool {
	switch {
	case pid > 0:
		return c.Pid == pid
	case pid == 0:
		return c.PGroup == parent.PGroup
	case pid == -1:
		return true
	default:
		return c.PGroup == -pid
	}
}

func (m *Manager) reapChild(c *Process) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sched.FreeSlot(c.Slot)
	delete(m.procs, c.Pid)
}
