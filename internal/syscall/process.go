package syscall

import (
	"github.com/go-minix/kernel/internal/proc"
	"github.com/go-minix/kernel/internal/sched"
	"golang.org/x/sys/unix"
)

// hz is the clock-tick rate original_source/kernel/sched.c defines
// (#define HZ 100); alarm()/times() convert between ticks and seconds
// through it.
const hz = 100

func (d *Dispatcher) Fork(pid int) (int, error) {
	child, err := d.Proc.Fork(pid)
	if err != nil {
		return -1, errno(err)
	}
	return child.Pid, nil
}

func (d *Dispatcher) Execve(pid int, path string, argv, envp []string) error {
	if err := d.Proc.Execve(pid, path, argv, envp); err != nil {
		return errno(err)
	}
	return nil
}

// Exit implements sys_exit/do_exit. Unlike the other calls here, the
// caller's own task never resumes after this returns successfully. Exit
// does not call Sched.Schedule() itself, and the boot loop stops reading
// the trace after its "exit" verb.
func (d *Dispatcher) Exit(pid, code int) error {
	if err := d.Proc.Exit(pid, code); err != nil {
		return errno(err)
	}
	return nil
}

// DeliverSignals runs spec.md §4.7's signal-delivery step for pid. It is
// meant to be called once per syscall on the return path to user mode
// (the boot loop calls it after every trace line that succeeds, other
// than "exit"), the
// same point the original kernel hooks do_signal from system_call.s.
// Reports whether delivery exited the task.
func (d *Dispatcher) DeliverSignals(pid int) (bool, error) {
	exited, err := d.Proc.DeliverPending(pid)
	if err != nil {
		return exited, errno(err)
	}
	return exited, nil
}

func (d *Dispatcher) Waitpid(pid, targetPid, options int) (int, int, error) {
	rpid, status, err := d.Proc.Waitpid(pid, targetPid, options)
	if err != nil {
		return -1, 0, errno(err)
	}
	return rpid, status, nil
}

func (d *Dispatcher) Getpid(pid int) (int, error) {
	p, err := d.process(pid)
	if err != nil {
		return -1, err
	}
	return p.Pid, nil
}

func (d *Dispatcher) Getppid(pid int) (int, error) {
	p, err := d.process(pid)
	if err != nil {
		return -1, err
	}
	return p.ParentPid, nil
}

// Pause implements sys_pause: one schedule() call from INTERRUPTIBLE,
// same as the original (it is not a retry loop — a single yield is the
// whole of the syscall; the caller observes the return only once some
// later tick or signal delivery resumes it).
func (d *Dispatcher) Pause(pid int) error {
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	p.SetState(sched.Interruptible)
	d.Sched.Schedule()
	return errno(unix.EINTR)
}

// Kill implements sys_kill's pid/group selection rules (spec.md
// supplemented feature, kernel/exit.c sys_kill): pid>0 one process,
// pid==0 the caller's own group, pid==-1 every process but init, pid<-1
// the group -pid.
func (d *Dispatcher) Kill(pid, target int, sig uint32) error {
	if err := d.Proc.Kill(pid, target, sig); err != nil {
		return errno(err)
	}
	return nil
}

// Signal implements the original's simple signal(2): installs handler as
// sig's disposition with default masking (no NOMASK, no ONESHOT) and
// returns the old handler.
func (d *Dispatcher) Signal(pid, sig int, handler uint32) (uint32, error) {
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	if sig < 1 || sig > 32 {
		return 0, errno(errInvalSentinel)
	}
	old := p.SigActions[sig-1]
	p.SigActions[sig-1] = proc.SigAction{Handler: handler}
	return old.Handler, nil
}

// Sigaction implements sigaction(2): installs the full disposition
// (mask, SA_ONESHOT, SA_NOMASK) and returns the previous one.
func (d *Dispatcher) Sigaction(pid, sig int, newAct proc.SigAction) (proc.SigAction, error) {
	p, err := d.process(pid)
	if err != nil {
		return proc.SigAction{}, err
	}
	if sig < 1 || sig > 32 {
		return proc.SigAction{}, errno(errInvalSentinel)
	}
	old := p.SigActions[sig-1]
	newAct.Mask &^= proc.UnblockableSignals
	p.SigActions[sig-1] = newAct
	return old, nil
}

// Sgetmask/Ssetmask implement the pre-sigprocmask blocked-signal mask
// calls (original_source/kernel/signal.c).
func (d *Dispatcher) Sgetmask(pid int) (uint32, error) {
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	return p.Blocked, nil
}

func (d *Dispatcher) Ssetmask(pid int, mask uint32) (uint32, error) {
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	old := p.Blocked
	p.Blocked = mask &^ proc.UnblockableSignals
	return old, nil
}

// Alarm implements sys_alarm: arms AlarmTick seconds ahead of the
// current clock, returning how many seconds remained on any previous
// alarm (0 if none was armed).
func (d *Dispatcher) Alarm(pid int, seconds int) (int, error) {
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	now := d.Sched.Ticks()
	var remaining int
	if p.AlarmTick != 0 {
		left := p.AlarmTick - now
		if left > 0 {
			remaining = int(left / hz)
		}
	}
	if seconds <= 0 {
		p.AlarmTick = 0
	} else {
		p.AlarmTick = now + int64(seconds)*hz
	}
	return remaining, nil
}

// Nice implements sys_nice: adjusts Priority, floored at 1 (spec.md §4.6
// requires a strictly positive priority for the counter-rebucket step).
func (d *Dispatcher) Nice(pid int, increment int) error {
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	if p.EUID != 0 && increment < 0 {
		return errno(errPermSentinel)
	}
	p.Priority -= increment
	if p.Priority < 1 {
		p.Priority = 1
	}
	return nil
}

// Setpgid implements setpgid(pid, pgid): pid==0 means the caller, pgid==0
// means "use pid as its own group leader".
func (d *Dispatcher) Setpgid(callerPid, pid, pgid int) error {
	target := pid
	if target == 0 {
		target = callerPid
	}
	p := d.Proc.ByPid(target)
	if p == nil {
		return errno(errNoSuchProcessSentinel)
	}
	if pgid == 0 {
		pgid = target
	}
	p.PGroup = pgid
	return nil
}

func (d *Dispatcher) Getpgrp(pid int) (int, error) {
	p, err := d.process(pid)
	if err != nil {
		return -1, err
	}
	return p.PGroup, nil
}

// Setsid implements sys_setsid: the caller becomes a new session and
// process group leader, provided it doesn't already lead a group
// (original_source/kernel/sys.c sys_setsid).
func (d *Dispatcher) Setsid(pid int) (int, error) {
	p, err := d.process(pid)
	if err != nil {
		return -1, err
	}
	if p.Leader {
		return -1, errno(errPermSentinel)
	}
	p.Session = p.Pid
	p.PGroup = p.Pid
	p.Leader = true
	return p.Pid, nil
}

// Brk implements sys_brk: grows or shrinks the data segment, refusing to
// go below EndData. The new break is not checked against the stack/arg
// region.
func (d *Dispatcher) Brk(pid int, newBrk uint32) (uint32, error) {
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	if newBrk < p.AS.EndData {
		return p.AS.Brk, errno(errInvalSentinel)
	}
	p.AS.Brk = newBrk
	return p.AS.Brk, nil
}

// Times is spec.md's struct tms (user/system time for self and reaped
// children), plus the elapsed tick count since boot.
type Times struct {
	Utime, Stime, Cutime, Cstime int64
}

func (d *Dispatcher) Times(pid int) (Times, int64, error) {
	p, err := d.process(pid)
	if err != nil {
		return Times{}, 0, err
	}
	return Times{p.Utime, p.Stime, p.Cutime, p.Cstime}, d.Sched.Ticks(), nil
}

// Uname is spec.md's struct utsname, stamped with fixed identity strings
// (there is no real kernel build to introspect).
type Uname struct {
	Sysname, Nodename, Release, Version, Machine string
}

func (d *Dispatcher) Uname(pid int) (Uname, error) {
	if _, err := d.process(pid); err != nil {
		return Uname{}, err
	}
	return Uname{
		Sysname:  "minix",
		Nodename: "go-minix",
		Release:  "0.11",
		Version:  "#1",
		Machine:  "i386",
	}, nil
}
