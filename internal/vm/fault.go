package vm

import "github.com/go-minix/kernel/internal/frame"

// DoNoPageFault handles a not-present fault at va (spec.md §4.2
// do_no_page): zero-fill-on-demand for BSS/stack, otherwise an attempt to
// share a live mapping from another task running the same executable
// before falling back to a disk read.
func (e *Engine) DoNoPageFault(as *AddressSpace, va uint32) error {
	va -= va % frame.PageSize
	offset := va - as.StartCode

	if as.Executable == nil || offset >= as.EndData {
		pa := e.alloc.AllocFrame()
		if pa == 0 {
			return ErrOutOfMemory
		}
		e.mem.zero(pa)
		_, err := e.MapFrame(as, pa, va)
		return err
	}

	if e.sharePage(as, va, offset) {
		return nil
	}

	pa := e.alloc.AllocFrame()
	if pa == 0 {
		return ErrOutOfMemory
	}

	block := 1 + int(offset)/1024
	var buf [frame.PageSize]byte
	for i := 0; i < 4; i++ {
		blockNum, err := as.Executable.Backing.Bmap(block + i)
		if err != nil {
			e.alloc.FreeFrame(pa)
			return err
		}
		if blockNum == 0 {
			continue // hole: leave this quarter zero
		}
		var chunk [1024]byte
		if err := as.Executable.Backing.ReadBlock(blockNum, chunk[:]); err != nil {
			e.alloc.FreeFrame(pa)
			return err
		}
		copy(buf[i*1024:(i+1)*1024], chunk[:])
	}

	if limit := as.EndData; limit < offset+frame.PageSize {
		tailStart := 0
		if limit > offset {
			tailStart = int(limit - offset)
		}
		for i := tailStart; i < frame.PageSize; i++ {
			buf[i] = 0
		}
	}

	e.mem.write(pa, 0, buf[:])
	_, err := e.MapFrame(as, pa, va)
	return err
}

// sharePage scans every other registered address space for one mapping
// the same executable inode and a clean, present PTE at va, installing
// that frame into `as` read-only on success (spec.md's share_page /
// try_to_share).
func (e *Engine) sharePage(as *AddressSpace, va uint32, offset uint32) bool {
	e.mu.Lock()
	candidates := make([]*AddressSpace, 0, len(e.spaces))
	for other := range e.spaces {
		if other == as || other.Executable == nil {
			continue
		}
		if other.Executable.Key != as.Executable.Key {
			continue
		}
		candidates = append(candidates, other)
	}
	e.mu.Unlock()

	for _, other := range candidates {
		if e.tryToShare(as, va, other) {
			return true
		}
	}
	return false
}

// tryToShare requires other's PTE at va to be present and clean (not
// writable); on success it installs the same frame into as's PTE, marks
// both read-only, and bumps the frame's refcount.
func (e *Engine) tryToShare(as *AddressSpace, va uint32, other *AddressSpace) bool {
	otherPTE, err := other.lockedPTE(va, false)
	if err != nil {
		return false
	}
	other.mu.Lock()
	present := otherPTE.Present
	writable := otherPTE.Writable
	pa := otherPTE.Frame
	other.mu.Unlock()
	if !present || writable {
		return false
	}

	if err := e.alloc.IncRef(pa); err != nil {
		return false
	}

	pte, err := as.lockedPTE(va, true)
	if err != nil {
		e.alloc.FreeFrame(pa)
		return false
	}
	as.mu.Lock()
	*pte = PTE{Frame: pa, Present: true, Writable: false, User: true}
	as.mu.Unlock()

	other.mu.Lock()
	otherPTE.Writable = false
	other.mu.Unlock()
	return true
}
