package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-minix/kernel/internal/frame"
)

func newTestEngine(nFrames int) (*Engine, *frame.Allocator) {
	a := frame.NewAllocator(0, uint32(nFrames)*frame.PageSize)
	return NewEngine(a), a
}

func TestMapFrameRequiresUniqueOwner(t *testing.T) {
	e, a := newTestEngine(2)
	as := NewAddressSpace()
	pa := a.AllocFrame()
	require.NoError(t, a.IncRef(pa)) // refcount now 2
	_, err := e.MapFrame(as, pa, 0)
	assert.Error(t, err)
}

func TestCopyRangeClearsWritableAndBumpsRefcount(t *testing.T) {
	e, a := newTestEngine(4)
	parent := NewAddressSpace()
	pa := a.AllocFrame()
	_, err := e.MapFrame(parent, pa, 0)
	require.NoError(t, err)

	child := NewAddressSpace()
	require.NoError(t, e.CopyRange(parent, child, dirCoverage))

	childPTE, err := child.lockedPTE(0, false)
	require.NoError(t, err)
	assert.True(t, childPTE.Present)
	assert.False(t, childPTE.Writable)

	parentPTE, err := parent.lockedPTE(0, false)
	require.NoError(t, err)
	assert.False(t, parentPTE.Writable)

	assert.Equal(t, 2, a.RefCount(pa))
}

func TestUnshareWithUniqueOwnerJustMarksWritable(t *testing.T) {
	e, a := newTestEngine(2)
	as := NewAddressSpace()
	pa := a.AllocFrame()
	_, err := e.MapFrame(as, pa, 0)
	require.NoError(t, err)

	pte, _ := as.lockedPTE(0, false)
	pte.Writable = false // simulate the write-protect state after fork

	require.NoError(t, e.DoWritableFault(as, 0))
	pte, _ = as.lockedPTE(0, false)
	assert.Equal(t, pa, pte.Frame, "unique owner keeps the same frame")
	assert.True(t, pte.Writable)
}

func TestUnshareWithSharedFrameCopies(t *testing.T) {
	e, a := newTestEngine(4)
	parent := NewAddressSpace()
	pa := a.AllocFrame()
	_, err := e.MapFrame(parent, pa, 0)
	require.NoError(t, err)

	child := NewAddressSpace()
	require.NoError(t, e.CopyRange(parent, child, dirCoverage))
	require.Equal(t, 2, a.RefCount(pa))

	require.NoError(t, e.DoWritableFault(child, 0))

	childPTE, _ := child.lockedPTE(0, false)
	assert.NotEqual(t, pa, childPTE.Frame, "child now owns a private copy")
	assert.True(t, childPTE.Writable)
	assert.Equal(t, 1, a.RefCount(pa), "parent's frame refcount drops back to 1")
}

func TestDoNoPageFaultZeroFillsBSS(t *testing.T) {
	e, _ := newTestEngine(4)
	as := NewAddressSpace()
	as.StartCode = 0
	as.EndData = 0 // every offset is BSS/stack

	require.NoError(t, e.DoNoPageFault(as, 0x2000))
	pte, err := as.lockedPTE(0x2000, false)
	require.NoError(t, err)
	assert.True(t, pte.Present)

	data, err := e.ReadUser(as, 0x2000, 16)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), data)
}

type fakeBacking struct {
	blocks map[int]uint32
	disk   map[uint32][]byte
}

func (f *fakeBacking) Bmap(block int) (uint32, error) { return f.blocks[block], nil }
func (f *fakeBacking) ReadBlock(blockNum uint32, buf []byte) error {
	copy(buf, f.disk[blockNum])
	return nil
}

func TestDoNoPageFaultReadsFromDiskWhenNoShare(t *testing.T) {
	e, _ := newTestEngine(4)
	as := NewAddressSpace()
	as.StartCode = 0
	as.EndData = frame.PageSize
	backing := &fakeBacking{
		blocks: map[int]uint32{1: 10, 2: 11, 3: 12, 4: 13},
		disk:   map[uint32][]byte{10: bytesOf('A'), 11: bytesOf('B'), 12: bytesOf('C'), 13: bytesOf('D')},
	}
	as.Executable = &Executable{Key: InodeKey{Dev: 1, Inum: 2}, Backing: backing}

	require.NoError(t, e.DoNoPageFault(as, 0))
	data, err := e.ReadUser(as, 0, 4096)
	require.NoError(t, err)
	assert.Equal(t, byte('A'), data[0])
	assert.Equal(t, byte('B'), data[1024])
	assert.Equal(t, byte('D'), data[3072])
}

func bytesOf(b byte) []byte {
	out := make([]byte, 1024)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestSharePageAvoidsDiskReadForSecondTask(t *testing.T) {
	e, _ := newTestEngine(4)
	backing := &fakeBacking{
		blocks: map[int]uint32{1: 10, 2: 11, 3: 12, 4: 13},
		disk:   map[uint32][]byte{10: bytesOf('A'), 11: bytesOf('B'), 12: bytesOf('C'), 13: bytesOf('D')},
	}
	key := InodeKey{Dev: 1, Inum: 2}

	a1 := NewAddressSpace()
	a1.EndData = frame.PageSize
	a1.Executable = &Executable{Key: key, Backing: backing}
	e.Register(a1)
	require.NoError(t, e.DoNoPageFault(a1, 0))

	a2 := NewAddressSpace()
	a2.EndData = frame.PageSize
	a2.Executable = &Executable{Key: key, Backing: backing}
	e.Register(a2)
	require.NoError(t, e.DoNoPageFault(a2, 0))

	p1, _ := a1.lockedPTE(0, false)
	p2, _ := a2.lockedPTE(0, false)
	assert.Equal(t, p1.Frame, p2.Frame, "second task shares the first task's frame")
	assert.False(t, p2.Writable)
}
