package proc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/go-minix/kernel/internal/minixfs"
	"github.com/go-minix/kernel/internal/sched"
	"github.com/go-minix/kernel/internal/vm"
)

const (
	// zmagic is the a.out "demand paged, read-only text" magic spec.md
	// §4.7 requires (original_source/include/a.out.h ZMAGIC).
	zmagic = 0o413

	// aoutHeaderOffset is spec.md §6's "header offset == BLOCK_SIZE".
	aoutHeaderOffset = 1024
	aoutHeaderSize   = 32

	maxImageSize    = 48 << 20 // "text+data+bss ≤ 48 MiB"
	argStagingBytes = 128 << 10
	maxArgPages     = 32
	argPageSize     = 4096

	maxShebangRetries = 4
)

// aoutHeader mirrors original_source/include/a.out.h's struct exec.
type aoutHeader struct {
	Magic  uint32
	Text   uint32
	Data   uint32
	Bss    uint32
	Syms   uint32
	Entry  uint32
	TrSize uint32
	DrSize uint32
}

// Execve implements spec.md §4.7 execve. argv/envp are already-decoded
// strings (the syscall layer owns reading them out of the caller's
// address space before point of no return, same as original_source's
// copy from user space in sys_execve/do_execve).
func (m *Manager) Execve(pid int, path string, argv, envp []string) error {
	for retry := 0; ; retry++ {
		if retry > maxShebangRetries {
			return fmt.Errorf("proc: execve: %s: too many interpreter indirections", path)
		}

		p := m.ByPid(pid)
		if p == nil {
			return errNoSuchProcess(pid)
		}

		ino, err := m.FS.OpenNamei(path, minixfs.OpenFlags{}, p.EUID, p.EGID, p.Root, p.Cwd)
		if err != nil {
			return fmt.Errorf("proc: execve: %s: %w", path, err)
		}
		if !ino.IsReg() {
			m.FS.Iput(ino)
			return fmt.Errorf("proc: execve: %s: not a regular file", path)
		}
		if !execPermitted(ino, p) {
			m.FS.Iput(ino)
			return fmt.Errorf("proc: execve: %s: permission denied", path)
		}

		head := make([]byte, aoutHeaderOffset)
		if _, err := m.FS.Read(ino, 0, head); err != nil {
			m.FS.Iput(ino)
			return err
		}

		if bytes.HasPrefix(head, []byte("#!")) {
			interp, interpArg, ok := parseShebang(head)
			m.FS.Iput(ino)
			if !ok {
				return fmt.Errorf("proc: execve: %s: malformed interpreter directive", path)
			}
			newArgv := []string{interp}
			if interpArg != "" {
				newArgv = append(newArgv, interpArg)
			}
			newArgv = append(newArgv, path)
			if len(argv) > 1 {
				newArgv = append(newArgv, argv[1:]...)
			}
			path, argv = interp, newArgv
			continue
		}

		var hdr aoutHeader
		if err := binary.Read(bytes.NewReader(head[:aoutHeaderSize]), binary.LittleEndian, &hdr); err != nil {
			m.FS.Iput(ino)
			return err
		}
		if hdr.Magic != zmagic {
			m.FS.Iput(ino)
			return fmt.Errorf("proc: execve: %s: not ZMAGIC", path)
		}
		if hdr.TrSize != 0 || hdr.DrSize != 0 || hdr.Syms != 0 {
			m.FS.Iput(ino)
			return fmt.Errorf("proc: execve: %s: relocations or symbol table present", path)
		}
		if uint64(hdr.Text)+uint64(hdr.Data)+uint64(hdr.Bss) > maxImageSize {
			m.FS.Iput(ino)
			return fmt.Errorf("proc: execve: %s: image exceeds size cap", path)
		}

		staged := stageArgs(argv, envp)
		if len(staged) > argStagingBytes {
			m.FS.Iput(ino)
			return fmt.Errorf("proc: execve: %s: argv/envp exceed staging area", path)
		}

		return m.completeExec(p, ino, hdr, staged)
	}
}

func execPermitted(ino *minixfs.Inode, p *Process) bool {
	if p.EUID == 0 {
		return true
	}
	const execBitOther = 0111
	return ino.Mode&execBitOther != 0
}

// parseShebang reads one interpreter path and one optional argument from
// a "#!interpreter [arg]\n" line (spec.md §4.7: "parses up to one
// interpreter path and one argument").
func parseShebang(head []byte) (interp, arg string, ok bool) {
	nl := bytes.IndexByte(head, '\n')
	if nl < 0 {
		nl = len(head)
	}
	line := strings.TrimSpace(string(head[2:nl]))
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", "", false
	}
	interp = fields[0]
	if len(fields) > 1 {
		arg = fields[1]
	}
	return interp, arg, true
}

// stageArgs lays out argv then envp as NUL-terminated strings, matching
// the byte layout execve eventually copies onto the new user stack.
func stageArgs(argv, envp []string) []byte {
	var buf bytes.Buffer
	for _, s := range argv {
		buf.WriteString(s)
		buf.WriteByte(0)
	}
	for _, s := range envp {
		buf.WriteString(s)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func roundUpPage(n uint32) uint32 {
	return (n + argPageSize - 1) &^ (argPageSize - 1)
}

// completeExec is the point of no return: nothing after this can fail
// back into the old image (spec.md §4.7).
func (m *Manager) completeExec(p *Process, ino *minixfs.Inode, hdr aoutHeader, staged []byte) error {
	oldAS := p.AS

	m.FS.Iput(p.Executable)
	p.SigActions = [32]SigAction{}
	m.closeOnExecFds(p)

	if err := m.VM.FreeRange(oldAS, addrSpaceBytes); err != nil {
		return err
	}
	m.VM.Unregister(oldAS)

	newAS := vm.NewAddressSpace()
	newAS.StartCode = 0
	newAS.EndCode = roundUpPage(hdr.Text)
	newAS.EndData = newAS.EndCode + hdr.Data + hdr.Bss
	newAS.Brk = newAS.EndData
	newAS.Executable = &vm.Executable{
		Key:     vm.InodeKey{Dev: ino.Dev, Inum: ino.Num},
		Backing: m.FS.NewExecBacking(ino),
	}
	m.VM.Register(newAS)

	stackBase := addrSpaceBytes - uint32(((len(staged)+argPageSize-1)/argPageSize)*argPageSize)
	if err := spliceStagingPages(m.VM, newAS, stackBase, staged); err != nil {
		return err
	}

	p.AS = newAS
	p.Executable = ino
	p.Task.SetState(sched.Running)
	return nil
}

// spliceStagingPages writes the staged argv/envp bytes onto newly
// allocated anonymous pages at the top of the data segment (spec.md
// §4.7 "splice the staging pages at the top of the new data segment"),
// capped at maxArgPages (128 KiB / 4 KiB).
func spliceStagingPages(e *vm.Engine, as *vm.AddressSpace, base uint32, staged []byte) error {
	pages := (len(staged) + argPageSize - 1) / argPageSize
	if pages > maxArgPages {
		return fmt.Errorf("proc: execve: argv/envp span more than %d pages", maxArgPages)
	}
	for i := 0; i < pages; i++ {
		va := base + uint32(i*argPageSize)
		if err := e.AllocUserPage(as, va); err != nil {
			return err
		}
		start := i * argPageSize
		end := start + argPageSize
		if end > len(staged) {
			end = len(staged)
		}
		if err := e.WriteUser(as, va, staged[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) closeOnExecFds(p *Process) {
	for fd := 0; fd < len(p.Files) && fd < 64; fd++ {
		if p.CloseOnExec&(1<<uint(fd)) == 0 {
			continue
		}
		releaseFile(m, p.Files[fd])
		p.Files[fd] = nil
	}
	p.CloseOnExec = 0
}
