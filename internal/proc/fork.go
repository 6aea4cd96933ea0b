package proc

import (
	"fmt"

	"github.com/go-minix/kernel/internal/minixfs"
	"github.com/go-minix/kernel/internal/sched"
	"github.com/go-minix/kernel/internal/vm"
)

// addrSpaceBytes is the 64 MiB span spec.md §4.7 assigns to every task's
// code+data region ("both set to the same 64 MiB base offset derived from
// slot index"); the simulator doesn't model per-slot segment base offsets
// (no real segmentation registers), so every address space simply spans
// this much linear range starting at 0.
const addrSpaceBytes = 64 << 20

// Fork implements spec.md §4.7 fork: allocates a task slot, copies the
// parent's credentials/record, resets accounting and signals, copies the
// address space via internal/vm.CopyRange, bumps reference counts on
// pwd/root/executable and every open file, then makes the child RUNNABLE.
func (m *Manager) Fork(parentPid int) (*Process, error) {
	m.mu.Lock()
	parent, ok := m.procs[parentPid]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("proc: fork: no such process %d", parentPid)
	}

	childTask := &sched.Task{
		Pid:       0, // assigned below
		State:     sched.Uninterruptible,
		Priority:  parent.Priority,
		Counter:   parent.Priority,
		UID:       parent.UID,
		EUID:      parent.EUID,
		SUID:      parent.SUID,
		GID:       parent.GID,
		EGID:      parent.EGID,
		SGID:      parent.SGID,
		PGroup:    parent.PGroup,
		Session:   parent.Session,
		TTY:       parent.TTY,
		ParentPid: parent.Pid,
	}

	m.mu.Lock()
	childTask.Pid = m.allocPid()
	if !m.Sched.AllocSlot(childTask) {
		m.mu.Unlock()
		return nil, fmt.Errorf("proc: fork: task table full")
	}
	m.mu.Unlock()

	child := &Process{
		Task:        childTask,
		Cwd:         parent.Cwd,
		Root:        parent.Root,
		Executable:  parent.Executable,
		AS:          vm.NewAddressSpace(),
		Files:       make([]*FileObject, len(parent.Files)),
		CloseOnExec: parent.CloseOnExec,
		SigActions:  parent.SigActions,
	}

	if err := m.VM.CopyRange(parent.AS, child.AS, addrSpaceBytes); err != nil {
		m.Sched.FreeSlot(childTask.Slot)
		return nil, err
	}
	child.AS.StartCode, child.AS.EndCode, child.AS.EndData, child.AS.Brk =
		parent.AS.StartCode, parent.AS.EndCode, parent.AS.EndData, parent.AS.Brk
	child.AS.Executable = parent.AS.Executable
	m.VM.Register(child.AS)

	incInodeRef(child.Cwd)
	incInodeRef(child.Root)
	incInodeRef(child.Executable)
	for i, f := range parent.Files {
		if f == nil {
			continue
		}
		f.incRef()
		child.Files[i] = f
	}

	m.mu.Lock()
	m.procs[childTask.Pid] = child
	m.mu.Unlock()

	childTask.SetState(sched.Running)
	return child, nil
}

func incInodeRef(ino *minixfs.Inode) {
	if ino == nil {
		return
	}
	ino.IncRef()
}
