package proc

// Kill posts sigMask to the process(es) pid selects, per sys_kill's
// classic selection rule (original_source/kernel/exit.c sys_kill):
// pid>0 one process, pid==0 the caller's own group, pid==-1 every
// process except init, pid<-1 the group -pid. Reuses PostToGroup (built
// for tty_intr) for the group cases.
func (m *Manager) Kill(callerPid, pid int, sigMask uint32) error {
	caller := m.ByPid(callerPid)
	if caller == nil {
		return errNoSuchProcess(callerPid)
	}

	switch {
	case pid > 0:
		target := m.ByPid(pid)
		if target == nil {
			return errNoSuchProcess(pid)
		}
		target.Signal |= sigMask
	case pid == 0:
		m.PostToGroup(caller.PGroup, sigMask)
	case pid == -1:
		m.mu.Lock()
		for _, p := range m.procs {
			if p.Pid != initPid {
				p.Signal |= sigMask
			}
		}
		m.mu.Unlock()
	default:
		m.PostToGroup(-pid, sigMask)
	}
	return nil
}
