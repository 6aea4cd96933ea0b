// Package proc implements process lifecycle: fork, execve, exit, waitpid
// and signal delivery on return to user mode (spec.md §4.7, C7).
//
// Grounded on spec.md §4.7 and original_source/kernel/{fork,exit,signal}.c,
// fs/exec.c. Built on internal/sched.Task for scheduling state and wires
// internal/vm (address spaces) and internal/minixfs (inode references,
// the executable backing for demand paging) together per task.
package proc

import (
	"sync"

	"github.com/go-minix/kernel/internal/minixfs"
	"github.com/go-minix/kernel/internal/sched"
	"github.com/go-minix/kernel/internal/vm"
)

// FileObject is spec.md §3's "File object": a shared handle an fd table
// slot points at, created by open/pipe, duplicated by dup/dup2/fork.
type FileObject struct {
	mu    sync.Mutex
	Inode *minixfs.Inode
	Pos   int64
	Flags int
	refs  int
}

func (f *FileObject) incRef() {
	f.mu.Lock()
	f.refs++
	f.mu.Unlock()
}

// IncRefForDup is incRef exported for internal/syscall's pipe/dup2,
// which install a second descriptor pointing at the same FileObject.
func (f *FileObject) IncRefForDup() { f.incRef() }

// SigAction is one entry of a task's per-signal disposition table.
type SigAction struct {
	Handler  uint32 // 0 = default, 1 = SIG_IGN, else a user handler address
	Mask     uint32
	OneShot  bool // SA_ONESHOT
	NoMask   bool // SA_NOMASK
}

const sigIgn = 1

// SIGKILL and SIGSTOP's bit positions, per spec.md §3's glossary signal
// numbering (SIGKILL=9, SIGSTOP=19, both matching the classic Unix
// assignment original_source/kernel/signal.c also uses).
const (
	sigKillBit = 1 << 8
	sigStopBit = 1 << 18
)

// UnblockableSignals is the bitmask sys_ssetmask/sys_sigaction must never
// add to a task's blocked mask (spec.md §3: "SIGKILL and SIGSTOP cannot
// be blocked or caught").
const UnblockableSignals = sigKillBit | sigStopBit

// Process wraps a scheduler task with everything C7 owns on top of it:
// credentials already live on *sched.Task; this adds filesystem and
// address-space state.
type Process struct {
	*sched.Task

	mu sync.Mutex

	Cwd, Root, Executable *minixfs.Inode
	AS                    *vm.AddressSpace

	Files       []*FileObject
	CloseOnExec uint64
	Umask       uint16

	SigActions [32]SigAction

	// ChildWait is where a parent blocks inside waitpid until a child's
	// SIGCHLD arrives (spec.md §4.7 waitpid "else sleeps interruptibly
	// until SIGCHLD").
	ChildWait sched.WaitQueue
}

const sigChld = 17

// Manager owns every live process and the subsystems fork/execve/exit
// need to reach: the scheduler's task table, the paging engine, and the
// filesystem engine.
type Manager struct {
	mu sync.Mutex

	Sched *sched.Table
	VM    *vm.Engine
	FS    *minixfs.FileSystem

	nrOpen  int
	procs   map[int]*Process
	nextPid int
}

// NewManager wires a process manager over already-constructed scheduler,
// VM and filesystem engines.
func NewManager(schedTable *sched.Table, vmEngine *vm.Engine, fs *minixfs.FileSystem, nrOpen int) *Manager {
	return &Manager{
		Sched:   schedTable,
		VM:      vmEngine,
		FS:      fs,
		nrOpen:  nrOpen,
		procs:   make(map[int]*Process),
		nextPid: 1,
	}
}

// allocPid returns the next pid. Per this engine's open-question
// resolution, pids are unique for the life of the boot session: a
// monotonic counter, never recycled (see DESIGN.md), rather than the
// original's rotating last_pid scan that reuses low numbers.
func (m *Manager) allocPid() int {
	pid := m.nextPid
	m.nextPid++
	return pid
}

// ByPid returns the live process for pid, or nil.
func (m *Manager) ByPid(pid int) *Process {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.procs[pid]
}

// InitProcess installs the very first process (pid 1) directly, without
// going through Fork (there is no parent to fork from). Cwd and Root both
// point at root, sharing the one reference the caller passes in; the
// executable inode and the NR_OPEN-sized fd table start empty.
func (m *Manager) InitProcess(root *minixfs.Inode) *Process {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := &sched.Task{Pid: m.allocPid(), State: sched.Running, Counter: 15, Priority: 15}
	if !m.Sched.AllocSlot(task) {
		return nil
	}
	p := &Process{
		Task:  task,
		Cwd:   root,
		Root:  root,
		AS:    vm.NewAddressSpace(),
		Files: make([]*FileObject, m.nrOpen),
	}
	m.VM.Register(p.AS)
	m.procs[task.Pid] = p
	return p
}
