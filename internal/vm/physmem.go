package vm

import (
	"sync"

	"github.com/go-minix/kernel/internal/frame"
)

// physMem is the simulator's stand-in for actual DRAM: a sparse map from
// frame-aligned physical address to page contents. Real kernels address
// physical memory directly; this simulator has no byte-addressable RAM of
// its own; it only models the frame accounting (internal/frame) and PTE
// bookkeeping (this package), so a page's "contents" exist only here, and
// only when something has actually written to it.
type physMem struct {
	mu    sync.Mutex
	pages map[uint32]*[frame.PageSize]byte
}

func newPhysMem() *physMem {
	return &physMem{pages: make(map[uint32]*[frame.PageSize]byte)}
}

func (p *physMem) page(pa uint32) *[frame.PageSize]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	pg, ok := p.pages[pa]
	if !ok {
		pg = &[frame.PageSize]byte{}
		p.pages[pa] = pg
	}
	return pg
}

func (p *physMem) zero(pa uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pages, pa)
}

func (p *physMem) read(pa uint32) []byte {
	pg := p.page(pa)
	out := make([]byte, frame.PageSize)
	copy(out, pg[:])
	return out
}

func (p *physMem) write(pa uint32, off int, data []byte) {
	pg := p.page(pa)
	p.mu.Lock()
	defer p.mu.Unlock()
	copy(pg[off:], data)
}

func (p *physMem) copyFrame(src, dst uint32) {
	s := p.page(src)
	p.mu.Lock()
	d := p.pages[dst]
	if d == nil {
		d = &[frame.PageSize]byte{}
		p.pages[dst] = d
	}
	*d = *s
	p.mu.Unlock()
}

// free drops a frame's backing contents once its last reference is gone;
// harmless to call on an already-absent frame.
func (p *physMem) free(pa uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pages, pa)
}
