package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-minix/kernel/internal/frame"
	"github.com/go-minix/kernel/internal/sched"
	"github.com/go-minix/kernel/internal/vm"
)

func newTestManager(t *testing.T, nrTasks, nrOpen int) *Manager {
	t.Helper()
	alloc := frame.NewAllocator(0, 64*frame.PageSize)
	m := NewManager(sched.NewTable(nrTasks), vm.NewEngine(alloc), nil, nrOpen)
	init := m.InitProcess(nil)
	require.NotNil(t, init)
	return m
}

func TestForkCopiesCredentialsAndAllocatesFreshPid(t *testing.T) {
	m := newTestManager(t, 8, 4)
	m.ByPid(1).UID = 42
	m.ByPid(1).GID = 7

	child, err := m.Fork(1)
	require.NoError(t, err)
	assert.NotEqual(t, 1, child.Pid)
	assert.Equal(t, uint16(42), child.UID)
	assert.Equal(t, uint8(7), child.GID)
	assert.Equal(t, 1, child.ParentPid)
	assert.Equal(t, sched.Running, child.GetState())
}

func TestForkAssignsUniqueMonotonicPids(t *testing.T) {
	m := newTestManager(t, 8, 4)
	a, err := m.Fork(1)
	require.NoError(t, err)
	b, err := m.Fork(1)
	require.NoError(t, err)
	assert.Less(t, a.Pid, b.Pid)
}

func TestForkFailsWhenTaskTableFull(t *testing.T) {
	m := newTestManager(t, 2, 4) // slot 0 idle, slot 1 for init, no room left
	_, err := m.Fork(1)
	assert.Error(t, err)
}

func TestForkDuplicatesOpenFileReferences(t *testing.T) {
	m := newTestManager(t, 8, 4)
	parent := m.ByPid(1)
	f := &FileObject{refs: 1}
	parent.Files[0] = f

	child, err := m.Fork(1)
	require.NoError(t, err)
	assert.Same(t, f, child.Files[0])
	assert.Equal(t, 2, f.refs)
}

func TestExitReparentsLiveChildrenToInit(t *testing.T) {
	m := newTestManager(t, 8, 4)
	child, err := m.Fork(1)
	require.NoError(t, err)
	grandchild, err := m.Fork(child.Pid)
	require.NoError(t, err)

	require.NoError(t, m.Exit(child.Pid, 0))

	assert.Equal(t, 1, grandchild.ParentPid)
}

func TestExitNotifiesParentViaSigchld(t *testing.T) {
	m := newTestManager(t, 8, 4)
	child, err := m.Fork(1)
	require.NoError(t, err)

	require.NoError(t, m.Exit(child.Pid, 7))

	parent := m.ByPid(1)
	assert.NotZero(t, parent.Signal&(1<<(sigChld-1)))
	assert.Equal(t, sched.Zombie, child.GetState())
	assert.Equal(t, 7, child.ExitCode)
}

func TestWaitpidReturnsZombieChildAndRollsUpTimes(t *testing.T) {
	m := newTestManager(t, 8, 4)
	child, err := m.Fork(1)
	require.NoError(t, err)
	child.Utime, child.Stime = 10, 3

	require.NoError(t, m.Exit(child.Pid, 5))

	gotPid, status, err := m.Waitpid(1, -1, WNOHANG)
	require.NoError(t, err)
	assert.Equal(t, child.Pid, gotPid)
	assert.Equal(t, 5, status)

	parent := m.ByPid(1)
	assert.Equal(t, int64(10), parent.Cutime)
	assert.Equal(t, int64(3), parent.Cstime)
	assert.Nil(t, m.ByPid(child.Pid))
}

func TestWaitpidWnohangReturnsZeroWhenNoZombieChild(t *testing.T) {
	m := newTestManager(t, 8, 4)
	_, err := m.Fork(1)
	require.NoError(t, err)

	pid, status, err := m.Waitpid(1, -1, WNOHANG)
	require.NoError(t, err)
	assert.Equal(t, 0, pid)
	assert.Equal(t, 0, status)
}

func TestWaitpidSpecificPidIgnoresOtherChildren(t *testing.T) {
	m := newTestManager(t, 8, 4)
	a, err := m.Fork(1)
	require.NoError(t, err)
	b, err := m.Fork(1)
	require.NoError(t, err)
	require.NoError(t, m.Exit(b.Pid, 0))

	pid, _, err := m.Waitpid(1, a.Pid, WNOHANG)
	require.NoError(t, err)
	assert.Equal(t, 0, pid, "waiting on a's pid must not reap b")
}

func TestParseShebangExtractsInterpreterAndArg(t *testing.T) {
	interp, arg, ok := parseShebang([]byte("#!/bin/sh -e\nrest of file"))
	require.True(t, ok)
	assert.Equal(t, "/bin/sh", interp)
	assert.Equal(t, "-e", arg)
}

func TestParseShebangWithoutArg(t *testing.T) {
	interp, arg, ok := parseShebang([]byte("#!/bin/sh\n"))
	require.True(t, ok)
	assert.Equal(t, "/bin/sh", interp)
	assert.Equal(t, "", arg)
}

func TestStageArgsNulTerminatesEachString(t *testing.T) {
	buf := stageArgs([]string{"a", "bb"}, []string{"X=1"})
	assert.Equal(t, "a\x00bb\x00X=1\x00", string(buf))
}

func TestExecPermittedRootBypassesModeBits(t *testing.T) {
	m := newTestManager(t, 8, 4)
	p := m.ByPid(1)
	p.EUID = 0
	assert.True(t, execPermitted(nil, p), "root must not need to consult the inode's mode bits")
}
