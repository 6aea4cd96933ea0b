// Package vm implements the virtual-memory engine (spec.md §4.2, C2):
// two-level page tables, fork-time table copy, copy-on-write, demand
// loading and page sharing between tasks executing the same file.
//
// Grounded on original_source/mm/memory.c (copy_page_tables, un_wp_page,
// do_wp_page, do_no_page, share_page, try_to_share) and spec.md §4.2.
package vm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-minix/kernel/internal/frame"
)

const (
	entriesPerTable = 1024
	dirCoverage     = entriesPerTable * frame.PageSize // 4 MiB per directory entry

	// kernelForkTableCap is the "cap of 160 entries when from==0" of
	// spec.md §4.2: the first fork shares the kernel's low 640 KiB
	// (160 * 4 KiB) without allocating new page-table frames for it.
	kernelForkTableCap = 160
)

// ErrOutOfMemory is returned when the frame allocator is exhausted. No
// caller treats it specially: it reaches the caller like any other error.
var ErrOutOfMemory = errors.New("vm: out of memory")

// PTE is one page-table entry.
type PTE struct {
	Frame    uint32 // physical frame number (address, frame-aligned)
	Present  bool
	Writable bool
	User     bool
}

type pageTable struct {
	entries [entriesPerTable]PTE
}

type pageDirectory struct {
	tables [entriesPerTable]*pageTable
}

// InodeKey identifies the on-disk file backing an AddressSpace's text
// segment, for page-sharing comparisons (spec.md: "if one shares our
// executable inode").
type InodeKey struct {
	Dev  uint32
	Inum uint32
}

// FileBacking is the subset of the filesystem engine (internal/minixfs)
// that demand-paging needs: block-map translation and single-block reads.
// Kept as an interface here so vm never imports minixfs.
type FileBacking interface {
	// Bmap returns the absolute disk block number for the block'th block
	// of the file (0-based), or 0 if the block is a hole. create is
	// always false for demand-load (spec.md §4.2 do_no_page never
	// allocates new blocks).
	Bmap(block int) (uint32, error)
	// ReadBlock reads exactly one BLOCK_SIZE (1024 byte) block into buf.
	ReadBlock(blockNum uint32, buf []byte) error
}

// Executable describes the file an AddressSpace's code segment is mapped
// from, enabling share_page/try_to_share (spec.md §4.2).
type Executable struct {
	Key     InodeKey
	Backing FileBacking
}

// AddressSpace is one task's page directory plus the bookkeeping
// do_no_page needs (start_code/end_data/executable).
type AddressSpace struct {
	mu  sync.Mutex
	dir *pageDirectory

	StartCode  uint32
	EndCode    uint32
	EndData    uint32
	Brk        uint32
	Executable *Executable
}

// NewAddressSpace returns an address space with an empty page directory.
func NewAddressSpace() *AddressSpace {
	return &AddressSpace{dir: &pageDirectory{}}
}

func (as *AddressSpace) dirIndex(va uint32) int { return int(va / dirCoverage) }
func (as *AddressSpace) pageIndex(va uint32) int {
	return int((va / frame.PageSize) % entriesPerTable)
}

// lockedPTE returns the PTE for va, creating intermediate page tables on
// demand only when create is true (used by map_frame; do_wp_page/do_no_page
// expect the table to already exist and return an error otherwise, since a
// fault can only occur on a mapped table).
func (as *AddressSpace) lockedPTE(va uint32, create bool) (*PTE, error) {
	di := as.dirIndex(va)
	if di >= entriesPerTable {
		return nil, fmt.Errorf("vm: va %#x outside address space", va)
	}
	pt := as.dir.tables[di]
	if pt == nil {
		if !create {
			return nil, fmt.Errorf("vm: va %#x has no page table mapped", va)
		}
		pt = &pageTable{}
		as.dir.tables[di] = pt
	}
	return &pt.entries[as.pageIndex(va)], nil
}

// Engine ties together the frame allocator, simulated physical memory and
// the registry of live address spaces that share_page scans.
type Engine struct {
	mu     sync.Mutex
	alloc  *frame.Allocator
	mem    *physMem
	spaces map[*AddressSpace]struct{}
}

// NewEngine builds a VM engine over the given frame allocator.
func NewEngine(alloc *frame.Allocator) *Engine {
	return &Engine{alloc: alloc, mem: newPhysMem(), spaces: make(map[*AddressSpace]struct{})}
}

// Register adds an address space to the share_page scan set. Called once a
// task is runnable (fork's child, or the initial task).
func (e *Engine) Register(as *AddressSpace) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spaces[as] = struct{}{}
}

// Unregister removes an address space, called from exit.
func (e *Engine) Unregister(as *AddressSpace) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.spaces, as)
}

// CopyRange copies page directory and page-table entries from `from` to
// `to` for sizeBytes at 4 MiB granularity (spec.md §4.2 copy_range).
// from == nil models "from==0" (the first fork sharing the kernel's low
// 640 KiB): only kernelForkTableCap entries of the first table are copied,
// and no new page-table frame is allocated for it since the kernel range is
// identity-mapped and immutable. Every copied PTE has its writable bit
// cleared in both source and destination (so subsequent writes trap), and
// any PTE above the paging region's low boundary has its frame refcount
// incremented.
func (e *Engine) CopyRange(from, to *AddressSpace, sizeBytes uint32) error {
	dirCount := (sizeBytes + dirCoverage - 1) / dirCoverage

	kernelFork := from == nil
	var fromDir *pageDirectory
	if !kernelFork {
		from.mu.Lock()
		defer from.mu.Unlock()
		fromDir = from.dir
	}

	to.mu.Lock()
	defer to.mu.Unlock()

	for d := uint32(0); d < dirCount && int(d) < entriesPerTable; d++ {
		var srcTable *pageTable
		if !kernelFork {
			srcTable = fromDir.tables[d]
			if srcTable == nil {
				continue
			}
		} else if d > 0 {
			// The kernel-fork special case only covers the first
			// directory entry (the low 640 KiB).
			break
		}

		dstTable := &pageTable{}
		to.dir.tables[d] = dstTable

		tableCap := entriesPerTable
		if kernelFork {
			tableCap = kernelForkTableCap
		}
		for i := 0; i < tableCap; i++ {
			var src *PTE
			if kernelFork {
				// Identity-shared kernel page: synthesize a
				// present, read-only, non-user entry, frame
				// number == its own low-memory frame index.
				dstTable.entries[i] = PTE{
					Frame:    uint32(i) * frame.PageSize,
					Present:  true,
					Writable: false,
					User:     false,
				}
				continue
			}
			src = &srcTable.entries[i]
			if !src.Present {
				continue
			}
			src.Writable = false
			dst := *src
			dst.Writable = false
			dstTable.entries[i] = dst
			if dst.Frame >= e.alloc.LowMem() {
				if err := e.alloc.IncRef(dst.Frame); err != nil {
					return err
				}
			}
		}
	}
	// TLB invalidation has no effect in a simulator with no cached
	// translations; noted here because spec.md calls it out explicitly.
	return nil
}

// FreeRange walks every present directory entry of as, frees every present
// PTE's frame, frees the page-table frame itself, and zeroes the directory
// entries. Refuses from==0 (nil), matching spec.md's "would unmap the
// kernel" refusal.
func (e *Engine) FreeRange(as *AddressSpace, sizeBytes uint32) error {
	if as == nil {
		return fmt.Errorf("vm: free_range: refusing to unmap the kernel address space")
	}
	as.mu.Lock()
	defer as.mu.Unlock()

	dirCount := (sizeBytes + dirCoverage - 1) / dirCoverage
	for d := uint32(0); d < dirCount && int(d) < entriesPerTable; d++ {
		pt := as.dir.tables[d]
		if pt == nil {
			continue
		}
		for i := range pt.entries {
			pte := &pt.entries[i]
			if !pte.Present {
				continue
			}
			if pte.Frame >= e.alloc.LowMem() {
				if err := e.alloc.FreeFrame(pte.Frame); err != nil {
					return err
				}
				if e.alloc.RefCount(pte.Frame) == 0 {
					e.mem.free(pte.Frame)
				}
			}
			pt.entries[i] = PTE{}
		}
		as.dir.tables[d] = nil
	}
	return nil
}

// MapFrame installs pa at va, creating the page table on demand, setting
// user/RW/present bits. Refuses frames with refcount != 1 (a page being
// newly mapped must be exclusively owned by the mapper).
func (e *Engine) MapFrame(as *AddressSpace, pa, va uint32) (uint32, error) {
	if rc := e.alloc.RefCount(pa); rc != 1 {
		return 0, fmt.Errorf("vm: map_frame: frame %#x has refcount %d, want 1", pa, rc)
	}
	pte, err := as.lockedPTE(va, true)
	if err != nil {
		return 0, err
	}
	as.mu.Lock()
	*pte = PTE{Frame: pa, Present: true, Writable: true, User: true}
	as.mu.Unlock()
	return pa, nil
}

// AllocUserPage allocates a fresh frame and maps it present/writable/user
// at va, for callers that need anonymous memory outside the fault path —
// execve's argv/envp page staging (original_source/fs/exec.c
// get_free_page/put_page), which builds the new stack before the task
// ever takes a fault against it.
func (e *Engine) AllocUserPage(as *AddressSpace, va uint32) error {
	pa := e.alloc.AllocFrame()
	if pa == 0 {
		return ErrOutOfMemory
	}
	_, err := e.MapFrame(as, pa, va)
	return err
}

// unshare is the COW primitive (spec.md §4.2): if the current frame is
// uniquely owned, just make it writable in place; otherwise copy it.
func (e *Engine) unshare(as *AddressSpace, va uint32) error {
	pte, err := as.lockedPTE(va, false)
	if err != nil {
		return err
	}
	as.mu.Lock()
	old := pte.Frame
	as.mu.Unlock()

	if old >= e.alloc.LowMem() && e.alloc.RefCount(old) == 1 {
		as.mu.Lock()
		pte.Writable = true
		as.mu.Unlock()
		return nil
	}

	fresh := e.alloc.AllocFrame()
	if fresh == 0 {
		return ErrOutOfMemory
	}
	if old >= e.alloc.LowMem() {
		if err := e.alloc.FreeFrame(old); err != nil {
			return err
		}
	}
	e.mem.copyFrame(old, fresh)

	as.mu.Lock()
	*pte = PTE{Frame: fresh, Present: true, Writable: true, User: true}
	as.mu.Unlock()
	return nil
}

// DoWritableFault handles a write-protect fault at va: the standard
// two-level walk followed by unshare.
func (e *Engine) DoWritableFault(as *AddressSpace, va uint32) error {
	return e.unshare(as, va)
}

// WriteVerify eagerly forces COW before the kernel writes into user space
// (e.g. right after fork, or before copying argv/envp in execve), so a
// write-protect fault can never happen while already inside a syscall.
func (e *Engine) WriteVerify(as *AddressSpace, va uint32) error {
	pte, err := as.lockedPTE(va, false)
	if err != nil {
		return err
	}
	as.mu.Lock()
	writable := pte.Writable
	as.mu.Unlock()
	if writable {
		return nil
	}
	return e.unshare(as, va)
}

// ReadUser copies n bytes starting at va out of as's address space. Used by
// tests and by syscall bodies that stage data (argv/envp) through user
// memory.
func (e *Engine) ReadUser(as *AddressSpace, va uint32, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		pte, err := as.lockedPTE(va, false)
		if err != nil {
			return nil, err
		}
		if !pte.Present {
			return nil, fmt.Errorf("vm: read_user: va %#x not mapped", va)
		}
		off := int(va % frame.PageSize)
		page := e.mem.read(pte.Frame)
		take := n - len(out)
		if take > frame.PageSize-off {
			take = frame.PageSize - off
		}
		out = append(out, page[off:off+take]...)
		va += uint32(take)
	}
	return out, nil
}

// WriteUser writes data into as's address space starting at va, forcing
// COW (WriteVerify) on each page first.
func (e *Engine) WriteUser(as *AddressSpace, va uint32, data []byte) error {
	for len(data) > 0 {
		if err := e.WriteVerify(as, va); err != nil {
			return err
		}
		pte, err := as.lockedPTE(va, false)
		if err != nil {
			return err
		}
		off := int(va % frame.PageSize)
		take := len(data)
		if take > frame.PageSize-off {
			take = frame.PageSize - off
		}
		e.mem.write(pte.Frame, off, data[:take])
		data = data[take:]
		va += uint32(take)
	}
	return nil
}
