package proc

import "github.com/go-minix/kernel/internal/sched"

// initPid is pid 1, the orphan reaper (spec.md §4.7 exit: "reparents
// every child to pid 1").
const initPid = 1

// Exit implements spec.md §4.7 exit: frees both page-table ranges,
// reparents every child to pid 1 (emitting SIGCHLD to pid 1 for any
// already-ZOMBIE child), closes every open fd, releases pwd/root/
// executable, flips state to ZOMBIE, records the exit code, and notifies
// the parent via SIGCHLD. Never calls Schedule itself — the caller (the
// syscall dispatch loop) does that once do_exit returns, matching
// spec.md's "calls schedule() (never returns)" from the dispatcher's
// point of view rather than this function's.
func (m *Manager) Exit(pid int, code int) error {
	m.mu.Lock()
	p, ok := m.procs[pid]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if err := m.VM.FreeRange(p.AS, addrSpaceBytes); err != nil {
		return err
	}
	m.VM.Unregister(p.AS)

	m.reparentChildren(pid)

	for _, f := range p.Files {
		releaseFile(m, f)
	}
	m.FS.Iput(p.Cwd)
	m.FS.Iput(p.Root)
	m.FS.Iput(p.Executable)

	p.SetState(sched.Zombie)
	p.ExitCode = code

	if parent := m.ByPid(p.ParentPid); parent != nil {
		parent.Signal |= 1 << (sigChld - 1)
		sched.WakeUp(&parent.ChildWait)
	}
	return nil
}

func (m *Manager) reparentChildren(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	initProc := m.procs[initPid]
	for _, c := range m.procs {
		if c.ParentPid != pid {
			continue
		}
		c.ParentPid = initPid
		if c.GetState() == sched.Zombie && initProc != nil {
			initProc.Signal |= 1 << (sigChld - 1)
			sched.WakeUp(&initProc.ChildWait)
		}
	}
}

func releaseFile(m *Manager, f *FileObject) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.refs--
	refs := f.refs
	f.mu.Unlock()
	if refs <= 0 {
		m.FS.Iput(f.Inode)
	}
}
