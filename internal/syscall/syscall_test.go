package syscall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/go-minix/kernel/internal/blockio"
	"github.com/go-minix/kernel/internal/frame"
	"github.com/go-minix/kernel/internal/minixfs"
	"github.com/go-minix/kernel/internal/proc"
	"github.com/go-minix/kernel/internal/sched"
	"github.com/go-minix/kernel/internal/tty"
	"github.com/go-minix/kernel/internal/vm"
)

type nullWriter struct{}

func (nullWriter) WriteByte(byte) error { return nil }

type nullSignals struct{}

func (nullSignals) PostToGroup(int, uint32) {}

func newTestDispatcher(t *testing.T) (*Dispatcher, int) {
	t.Helper()

	drv := minixfs.Mkfs(128, 1024)
	q := blockio.NewQueue(32)
	const dev = uint32(1)
	q.Attach(dev, drv)
	fs := minixfs.New(q, 64, 64, 4, false)
	root, err := fs.MountRoot(dev, false)
	require.NoError(t, err)
	root.IncRef() // InitProcess aliases Cwd and Root onto one reference

	alloc := frame.NewAllocator(0, 256*frame.PageSize)
	vmEngine := vm.NewEngine(alloc)
	schedTable := sched.NewTable(8)
	pm := proc.NewManager(schedTable, vmEngine, fs, 16)
	init := pm.InitProcess(root)
	require.NotNil(t, init)
	init.EUID, init.UID = 0, 0

	drivers := [tty.NumTTYs]tty.Writer{nullWriter{}, nullWriter{}, nullWriter{}}
	ttyTable := tty.NewTable(drivers, nullSignals{})

	return New(pm, fs, schedTable, ttyTable), init.Pid
}

func TestOpenCreateWriteReadRoundTrip(t *testing.T) {
	d, pid := newTestDispatcher(t)

	fd, err := d.Open(pid, "/hello.txt", unix.O_CREAT|unix.O_RDWR, 0o644)
	require.NoError(t, err)

	n, err := d.Write(pid, fd, []byte("hi there"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	require.NoError(t, d.Close(pid, fd))

	fd2, err := d.Open(pid, "/hello.txt", unix.O_RDONLY, 0)
	require.NoError(t, err)
	buf := make([]byte, 32)
	n, err = d.Read(pid, fd2, buf)
	require.NoError(t, err)
	assert.Equal(t, "hi there", string(buf[:n]))
}

func TestOpenMissingFileWithoutCreateFails(t *testing.T) {
	d, pid := newTestDispatcher(t)
	_, err := d.Open(pid, "/nope", unix.O_RDONLY, 0)
	assert.ErrorIs(t, err, unix.ENOENT)
}

func TestMkdirThenStatReportsDirectoryMode(t *testing.T) {
	d, pid := newTestDispatcher(t)
	require.NoError(t, d.Mkdir(pid, "/sub", 0o755))

	st, err := d.Stat(pid, "/sub")
	require.NoError(t, err)
	assert.Equal(t, minixfs.ModeDir, st.Mode&minixfs.ModeFmt)
}

func TestUnlinkRemovesDirectoryEntry(t *testing.T) {
	d, pid := newTestDispatcher(t)
	fd, err := d.Open(pid, "/f", unix.O_CREAT|unix.O_RDWR, 0o644)
	require.NoError(t, err)
	require.NoError(t, d.Close(pid, fd))

	require.NoError(t, d.Unlink(pid, "/f"))
	_, err = d.Stat(pid, "/f")
	assert.ErrorIs(t, err, unix.ENOENT)
}

func TestDupSharesSameFileOffsetAcrossBothDescriptors(t *testing.T) {
	d, pid := newTestDispatcher(t)
	fd, err := d.Open(pid, "/dupme", unix.O_CREAT|unix.O_RDWR, 0o644)
	require.NoError(t, err)

	dupFd, err := d.Dup(pid, fd)
	require.NoError(t, err)
	assert.NotEqual(t, fd, dupFd)

	_, err = d.Write(pid, fd, []byte("ab"))
	require.NoError(t, err)
	_, err = d.Write(pid, dupFd, []byte("cd"))
	require.NoError(t, err)
	require.NoError(t, d.Close(pid, fd))
	require.NoError(t, d.Close(pid, dupFd))

	readFd, err := d.Open(pid, "/dupme", unix.O_RDONLY, 0)
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := d.Read(pid, readFd, buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf[:n]))
}

func TestDup2ClosesWhateverWasAtTheTargetSlot(t *testing.T) {
	d, pid := newTestDispatcher(t)
	fdA, err := d.Open(pid, "/a", unix.O_CREAT|unix.O_RDWR, 0o644)
	require.NoError(t, err)
	fdB, err := d.Open(pid, "/b", unix.O_CREAT|unix.O_RDWR, 0o644)
	require.NoError(t, err)

	got, err := d.Dup2(pid, fdA, fdB)
	require.NoError(t, err)
	assert.Equal(t, fdB, got)

	n, err := d.Write(pid, fdB, []byte("xyz"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	stA, err := d.Fstat(pid, fdA)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), stA.Size)
}

func TestPipeWriteEndFeedsReadEnd(t *testing.T) {
	d, pid := newTestDispatcher(t)
	rfd, wfd, err := d.Pipe(pid)
	require.NoError(t, err)

	n, err := d.Write(pid, wfd, []byte("pipe-data"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	buf := make([]byte, 32)
	n, err = d.Read(pid, rfd, buf)
	require.NoError(t, err)
	assert.Equal(t, "pipe-data", string(buf[:n]))
}

func TestAccessDeniedForUnreadableFileByOtherUser(t *testing.T) {
	d, pid := newTestDispatcher(t)
	fd, err := d.Open(pid, "/private", unix.O_CREAT|unix.O_RDWR, 0o600)
	require.NoError(t, err)
	require.NoError(t, d.Close(pid, fd))

	require.NoError(t, d.Setuid(pid, 7))
	require.NoError(t, d.Setgid(pid, 7))

	err = d.Access(pid, "/private", 0o4)
	assert.ErrorIs(t, err, unix.EPERM)
}

func TestChmodRequiresOwnershipOrRoot(t *testing.T) {
	d, pid := newTestDispatcher(t)
	fd, err := d.Open(pid, "/f2", unix.O_CREAT|unix.O_RDWR, 0o644)
	require.NoError(t, err)
	require.NoError(t, d.Close(pid, fd))

	require.NoError(t, d.Chmod(pid, "/f2", 0o600))
	st, err := d.Stat(pid, "/f2")
	require.NoError(t, err)
	assert.Equal(t, uint16(0o600), st.Mode&0o777)
}

func TestGetpidGetppidAfterFork(t *testing.T) {
	d, pid := newTestDispatcher(t)
	childPid, err := d.Fork(pid)
	require.NoError(t, err)

	got, err := d.Getpid(childPid)
	require.NoError(t, err)
	assert.Equal(t, childPid, got)

	parent, err := d.Getppid(childPid)
	require.NoError(t, err)
	assert.Equal(t, pid, parent)
}

func TestKillPidZeroPostsToCallersGroup(t *testing.T) {
	d, pid := newTestDispatcher(t)
	const sigIntBit = 1 << 1
	require.NoError(t, d.Kill(pid, 0, sigIntBit))

	p := d.Proc.ByPid(pid)
	assert.NotZero(t, p.Signal&sigIntBit)
}

func TestSsetmaskNeverBlocksSigkillOrSigstop(t *testing.T) {
	d, pid := newTestDispatcher(t)
	_, err := d.Ssetmask(pid, ^uint32(0))
	require.NoError(t, err)

	mask, err := d.Sgetmask(pid)
	require.NoError(t, err)
	assert.Zero(t, mask&proc.UnblockableSignals)
}

func TestSigactionNeverBlocksSigkillOrSigstopViaMask(t *testing.T) {
	d, pid := newTestDispatcher(t)
	const sigUsr1 = 10
	_, err := d.Sigaction(pid, sigUsr1, proc.SigAction{Handler: 0x1000, Mask: ^uint32(0)})
	require.NoError(t, err)

	p := d.Proc.ByPid(pid)
	assert.Zero(t, p.SigActions[sigUsr1-1].Mask&proc.UnblockableSignals)
}

func TestDeliverSignalsDefaultDispositionExitsProcessWithSignalExitCode(t *testing.T) {
	d, pid := newTestDispatcher(t)
	child, err := d.Fork(pid)
	require.NoError(t, err)

	const sigAlrmBit = 1 << 13 // SIGALRM, signal 14
	d.Proc.ByPid(child).Signal |= sigAlrmBit

	exited, err := d.DeliverSignals(child)
	require.NoError(t, err)
	assert.True(t, exited)

	_, status, err := d.Waitpid(pid, child, 0)
	require.NoError(t, err)
	assert.Equal(t, sigAlrmBit, status)
}

func TestDeliverSignalsIgnoresSigchldByDefault(t *testing.T) {
	d, pid := newTestDispatcher(t)
	const sigChldBit = 1 << 16 // SIGCHLD, signal 17
	d.Proc.ByPid(pid).Signal |= sigChldBit

	exited, err := d.DeliverSignals(pid)
	require.NoError(t, err)
	assert.False(t, exited)
	assert.Zero(t, d.Proc.ByPid(pid).Signal&sigChldBit)
}

func TestDeliverSignalsCatchClearsBitAndAppliesOneshotWithoutExiting(t *testing.T) {
	d, pid := newTestDispatcher(t)
	const sigUsr1 = 10
	const sigUsr1Bit = 1 << (sigUsr1 - 1)
	_, err := d.Sigaction(pid, sigUsr1, proc.SigAction{Handler: 0x4000, OneShot: true})
	require.NoError(t, err)
	d.Proc.ByPid(pid).Signal |= sigUsr1Bit

	exited, err := d.DeliverSignals(pid)
	require.NoError(t, err)
	assert.False(t, exited)

	p := d.Proc.ByPid(pid)
	assert.Zero(t, p.Signal&sigUsr1Bit)
	assert.Equal(t, proc.SigAction{}, p.SigActions[sigUsr1-1])
}

func TestKillNineForciblyExitsAFullyBlockedTask(t *testing.T) {
	d, pid := newTestDispatcher(t)
	child, err := d.Fork(pid)
	require.NoError(t, err)
	_, err = d.Ssetmask(child, ^uint32(0))
	require.NoError(t, err)

	const sigKillBit = 1 << 8 // SIGKILL, signal 9
	require.NoError(t, d.Kill(pid, child, sigKillBit))

	exited, err := d.DeliverSignals(child)
	require.NoError(t, err)
	assert.True(t, exited)

	gotPid, _, err := d.Waitpid(pid, child, 0)
	require.NoError(t, err)
	assert.Equal(t, child, gotPid)
}

func TestSetsidRefusesAnExistingGroupLeader(t *testing.T) {
	d, pid := newTestDispatcher(t)
	_, err := d.Setsid(pid)
	require.NoError(t, err)
	_, err = d.Setsid(pid)
	assert.ErrorIs(t, err, unix.EPERM)
}

func TestBrkRejectsShrinkingBelowEndData(t *testing.T) {
	d, pid := newTestDispatcher(t)
	p := d.Proc.ByPid(pid)
	p.AS.EndData = 0x10000

	_, err := d.Brk(pid, 0x100)
	assert.ErrorIs(t, err, unix.EINVAL)

	got, err := d.Brk(pid, 0x20000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x20000), got)
}

func TestUmaskReturnsThePreviousValue(t *testing.T) {
	d, pid := newTestDispatcher(t)
	old, err := d.Umask(pid, 0o022)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), old)

	old, err = d.Umask(pid, 0o077)
	require.NoError(t, err)
	assert.Equal(t, uint16(0o022), old)
}

func TestIoctlRejectsOutOfRangeChannel(t *testing.T) {
	d, pid := newTestDispatcher(t)
	_, err := d.Ioctl(pid, 99, unix.TCGETS, nil)
	assert.ErrorIs(t, err, unix.ENOTTY)
}
