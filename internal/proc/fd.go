package proc

import (
	"fmt"

	"github.com/go-minix/kernel/internal/minixfs"
)

// NewFileObject wraps a freshly opened inode as a one-reference file
// object — the handle open/creat/pipe install into a descriptor slot.
func NewFileObject(ino *minixfs.Inode, flags int) *FileObject {
	return &FileObject{Inode: ino, Flags: flags, refs: 1}
}

// AllocFd installs f at the lowest unused descriptor in p's table
// (spec.md §6's shared "lowest available fd" convention for open/dup/pipe).
func (m *Manager) AllocFd(p *Process, f *FileObject) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for fd, existing := range p.Files {
		if existing == nil {
			p.Files[fd] = f
			return fd, nil
		}
	}
	return -1, fmt.Errorf("proc: no free file descriptors")
}

// FdAt returns the file object installed at fd, or nil if fd is unopen
// or out of range.
func (p *Process) FdAt(fd int) *FileObject {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fd < 0 || fd >= len(p.Files) {
		return nil
	}
	return p.Files[fd]
}

// SetFd installs f at the exact slot fd, closing whatever was already
// there (dup2's "or clobber" semantics).
func (m *Manager) SetFd(p *Process, fd int, f *FileObject) error {
	if fd < 0 || fd >= len(p.Files) {
		return fmt.Errorf("proc: fd %d out of range", fd)
	}
	p.mu.Lock()
	old := p.Files[fd]
	p.Files[fd] = f
	p.mu.Unlock()
	if old != nil {
		releaseFile(m, old)
	}
	return nil
}

// CloseFd releases fd: decrements the underlying file object's refcount
// and Iputs its inode once that reaches zero (spec.md §4.7 sys_close).
func (m *Manager) CloseFd(p *Process, fd int) error {
	if fd < 0 || fd >= len(p.Files) {
		return fmt.Errorf("proc: fd %d out of range", fd)
	}
	p.mu.Lock()
	f := p.Files[fd]
	p.Files[fd] = nil
	p.CloseOnExec &^= 1 << uint(fd)
	p.mu.Unlock()
	if f == nil {
		return fmt.Errorf("proc: fd %d not open", fd)
	}
	releaseFile(m, f)
	return nil
}

// CloseOnExecBit reports whether fd is flagged FD_CLOEXEC.
func (p *Process) CloseOnExecBit(fd int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CloseOnExec&(1<<uint(fd)) != 0
}

// SetCloseOnExecBit sets or clears fd's FD_CLOEXEC flag.
func (p *Process) SetCloseOnExecBit(fd int, set bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if set {
		p.CloseOnExec |= 1 << uint(fd)
	} else {
		p.CloseOnExec &^= 1 << uint(fd)
	}
}

// DupFd installs a second reference to fd's file object at the lowest
// free descriptor >= atLeast (dup/dup2/fcntl F_DUPFD share this rule).
func (m *Manager) DupFd(p *Process, fd, atLeast int) (int, error) {
	f := p.FdAt(fd)
	if f == nil {
		return -1, fmt.Errorf("proc: fd %d not open", fd)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := atLeast; i < len(p.Files); i++ {
		if p.Files[i] == nil {
			f.incRef()
			p.Files[i] = f
			return i, nil
		}
	}
	return -1, fmt.Errorf("proc: no free file descriptors")
}
