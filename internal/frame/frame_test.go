package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	a := NewAllocator(0, 4*PageSize)
	pa := a.AllocFrame()
	require.NotZero(t, pa)
	assert.Equal(t, 1, a.RefCount(pa))
	require.NoError(t, a.FreeFrame(pa))
	assert.Equal(t, 0, a.RefCount(pa))
}

func TestAllocScansBackwardFromTop(t *testing.T) {
	a := NewAllocator(0, 2*PageSize)
	first := a.AllocFrame()
	assert.Equal(t, uint32(PageSize), first)
	second := a.AllocFrame()
	assert.Equal(t, uint32(0), second)
	assert.Equal(t, uint32(0), a.AllocFrame())
}

func TestDoubleFreeIsError(t *testing.T) {
	a := NewAllocator(0, PageSize)
	pa := a.AllocFrame()
	require.NoError(t, a.FreeFrame(pa))
	assert.Error(t, a.FreeFrame(pa))
}

func TestFreeOutsideRegionIsError(t *testing.T) {
	a := NewAllocator(0, PageSize)
	assert.Error(t, a.FreeFrame(10*PageSize))
}

func TestReserveExcludesFramesFromAllocation(t *testing.T) {
	a := NewAllocator(0, 2*PageSize)
	a.Reserve(0, PageSize)
	assert.Equal(t, used, byte(a.RefCount(0)))
	pa := a.AllocFrame()
	assert.Equal(t, uint32(PageSize), pa)
	assert.Zero(t, a.AllocFrame())
}

func TestIncRefAccountsForCOWSharers(t *testing.T) {
	a := NewAllocator(0, PageSize)
	pa := a.AllocFrame()
	require.NoError(t, a.IncRef(pa))
	require.NoError(t, a.IncRef(pa))
	assert.Equal(t, 3, a.RefCount(pa))
	require.NoError(t, a.FreeFrame(pa))
	require.NoError(t, a.FreeFrame(pa))
	assert.Equal(t, 1, a.RefCount(pa))
}

func TestFreeCountTracksLiveFrames(t *testing.T) {
	a := NewAllocator(0, 4*PageSize)
	assert.Equal(t, 4, a.Free())
	a.AllocFrame()
	assert.Equal(t, 3, a.Free())
}
