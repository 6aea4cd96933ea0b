package minixfs

import (
	"fmt"
	"io"
	"sync"

	"github.com/go-minix/kernel/internal/blockio"
	"github.com/go-minix/kernel/internal/bufcache"
)

// MemDriver is an in-memory block device: spec.md scopes real disk-register
// programming out ("floppy/hard-disk/console/serial device register
// programming" — external collaborator), so the simulator's own driver is
// a plain byte slice behind the same blockio.Driver interface a real
// hardware driver would implement.
type MemDriver struct {
	mu   sync.Mutex
	data []byte
}

// NewMemDriver creates a zero-filled device of the given size in blocks.
func NewMemDriver(blocks int) *MemDriver {
	return &MemDriver{data: make([]byte, blocks*BlockSize)}
}

// NewMemDriverFromImage copies an existing disk image (e.g. one produced
// offline by the out-of-scope image-builder tooling spec.md §6 describes).
func NewMemDriverFromImage(img []byte) *MemDriver {
	d := &MemDriver{data: make([]byte, len(img))}
	copy(d.data, img)
	return d
}

func (m *MemDriver) Perform(dev uint32, cmd blockio.Command, sector uint32, data *[bufcache.BlockSize]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// One block == 2 sectors of 512 bytes == BlockSize bytes; the sector
	// field is already block# * 2 (spec.md §4.4 step 4), so the byte
	// offset is sector * 512.
	off := int(sector) * 512
	if off+BlockSize > len(m.data) {
		return fmt.Errorf("minixfs: device: access past end of device at sector %d", sector)
	}
	switch cmd {
	case blockio.READ:
		copy(data[:], m.data[off:off+BlockSize])
	case blockio.WRITE:
		copy(m.data[off:off+BlockSize], data[:])
	}
	return nil
}

// WriteAt/ReadAt let callers (mkfs-style test setup) poke the raw image
// directly, e.g. to write the initial superblock and bitmaps before the
// filesystem has been mounted.
func (m *MemDriver) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(off)+len(p) > len(m.data) {
		return 0, io.ErrShortWrite
	}
	copy(m.data[off:], p)
	return len(p), nil
}

func (m *MemDriver) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(off) >= len(m.data) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	return n, nil
}
