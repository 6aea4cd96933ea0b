package minixfs

import (
	"fmt"
	"sync"

	"github.com/go-minix/kernel/internal/bufcache"
)

// Superblock is the in-memory representation of a mounted filesystem
// (spec.md §3 "Superblock (in-memory)").
type Superblock struct {
	mu sync.Mutex

	Dev uint32

	NInodes       uint32
	NZones        uint32
	IMapBlocks    uint32
	ZMapBlocks    uint32
	FirstDataZone uint32
	MaxSize       uint32

	imap [][]byte // one []byte per imap block, BlockSize each
	zmap [][]byte

	MountedOn *Inode // the host directory inode this FS is mounted on, if any
	RootInum  uint32

	ReadOnly bool
	Dirty    bool
}

// superTable holds every currently-mounted filesystem (spec.md's
// NR_SUPER-slot table).
type superTable struct {
	mu    sync.Mutex
	slots map[uint32]*Superblock
	max   int
}

func newSuperTable(max int) *superTable {
	return &superTable{slots: make(map[uint32]*Superblock), max: max}
}

// getSuper returns the live slot for dev, or nil if dev isn't mounted.
func (t *superTable) getSuper(dev uint32) *Superblock {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots[dev]
}

// readSuper reads block 1 of dev, validates the magic number, loads the
// inode- and zone-bitmap blocks contiguously, and forces bit 0 of each
// first bitmap block to 1 (spec.md §4.5 read_super / §8 bitmap sentinel).
func (t *superTable) readSuper(dev uint32, cache *bufcache.Cache, readOnly bool) (*Superblock, error) {
	t.mu.Lock()
	if existing, ok := t.slots[dev]; ok {
		t.mu.Unlock()
		return existing, nil
	}
	if len(t.slots) >= t.max {
		t.mu.Unlock()
		return nil, fmt.Errorf("minixfs: superblock table full (NR_SUPER=%d)", t.max)
	}
	t.mu.Unlock()

	b, err := cache.Bread(dev, 1)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("minixfs: read_super: I/O error reading block 1 of device %d", dev)
	}
	raw := unmarshalSuper(b.Data[:])
	cache.Brelse(b)

	if raw.Magic != SuperMagic {
		return nil, fmt.Errorf("minixfs: read_super: bad magic %#x on device %d", raw.Magic, dev)
	}

	sb := &Superblock{
		Dev:           dev,
		NInodes:       uint32(raw.NInodes),
		NZones:        uint32(raw.NZones),
		IMapBlocks:    uint32(raw.IMapBlocks),
		ZMapBlocks:    uint32(raw.ZMapBlocks),
		FirstDataZone: uint32(raw.FirstDataZone),
		MaxSize:       raw.MaxSize,
		ReadOnly:      readOnly,
	}

	block := uint32(2)
	for i := uint32(0); i < sb.IMapBlocks; i++ {
		bb, err := cache.Bread(dev, block)
		if err != nil || bb == nil {
			return nil, fmt.Errorf("minixfs: read_super: failed reading inode bitmap block %d", block)
		}
		buf := make([]byte, BlockSize)
		copy(buf, bb.Data[:])
		cache.Brelse(bb)
		sb.imap = append(sb.imap, buf)
		block++
	}
	for i := uint32(0); i < sb.ZMapBlocks; i++ {
		bb, err := cache.Bread(dev, block)
		if err != nil || bb == nil {
			return nil, fmt.Errorf("minixfs: read_super: failed reading zone bitmap block %d", block)
		}
		buf := make([]byte, BlockSize)
		copy(buf, bb.Data[:])
		cache.Brelse(bb)
		sb.zmap = append(sb.zmap, buf)
		block++
	}

	// Bit 0 of both bitmaps is permanently set: sentinel for inode 0 /
	// zone 0 (spec.md §3, §8).
	if len(sb.imap) > 0 {
		sb.imap[0][0] |= 1
	}
	if len(sb.zmap) > 0 {
		sb.zmap[0][0] |= 1
	}

	t.mu.Lock()
	t.slots[dev] = sb
	t.mu.Unlock()
	return sb, nil
}

// putSuper releases a superblock slot. Refuses to touch a superblock that
// still has a mount-point cross-link (must umount first).
func (t *superTable) putSuper(dev uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	sb, ok := t.slots[dev]
	if !ok {
		return fmt.Errorf("minixfs: put_super: device %d not mounted", dev)
	}
	if sb.MountedOn != nil {
		return fmt.Errorf("minixfs: put_super: device %d is a mount target, umount first", dev)
	}
	delete(t.slots, dev)
	return nil
}

// bitAlloc finds and sets the first clear bit across the given bitmap
// blocks, returning its 1-based index, or 0 if the bitmap is full (spec.md
// §7 ENOSPC path).
func bitAlloc(bitmap [][]byte, limit uint32) uint32 {
	for bit := uint32(1); bit <= limit; bit++ {
		blk, off := bit/8/BlockSize, (bit/8)%BlockSize
		mask := byte(1) << (bit % 8)
		if blk >= uint32(len(bitmap)) {
			break
		}
		if bitmap[blk][off]&mask == 0 {
			bitmap[blk][off] |= mask
			return bit
		}
	}
	return 0
}

// bitFree clears bit in the bitmap. Freeing an already-free bit, or bit 0,
// is an internal-invariant violation (spec.md §8 sentinel invariant).
func bitFree(bitmap [][]byte, bit uint32) error {
	if bit == 0 {
		return fmt.Errorf("minixfs: bitmap: refusing to free sentinel bit 0")
	}
	blk, off := bit/8/BlockSize, (bit/8)%BlockSize
	mask := byte(1) << (bit % 8)
	if blk >= uint32(len(bitmap)) {
		return fmt.Errorf("minixfs: bitmap: bit %d out of range", bit)
	}
	if bitmap[blk][off]&mask == 0 {
		return fmt.Errorf("minixfs: bitmap: double free of bit %d", bit)
	}
	bitmap[blk][off] &^= mask
	return nil
}

// syncBitmaps writes every in-memory bitmap block back through the buffer
// cache (spec.md's bitmaps are "in-memory bitmap-buffer arrays"; this is
// their writeback path, called from Umount).
func (sb *Superblock) syncBitmaps(cache *bufcache.Cache) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	block := uint32(2)
	for _, m := range sb.imap {
		if err := writeRawBlock(cache, sb.Dev, block, m); err != nil {
			return err
		}
		block++
	}
	for _, m := range sb.zmap {
		if err := writeRawBlock(cache, sb.Dev, block, m); err != nil {
			return err
		}
		block++
	}
	return nil
}

func writeRawBlock(cache *bufcache.Cache, dev, block uint32, data []byte) error {
	b, err := cache.Getblk(dev, block)
	if err != nil {
		return err
	}
	copy(b.Data[:], data)
	b.Uptodate = true
	cache.MarkDirty(b)
	b.Unlock()
	cache.Brelse(b)
	return nil
}

// bitTest reports whether bit is set.
func bitTest(bitmap [][]byte, bit uint32) bool {
	blk, off := bit/8/BlockSize, (bit/8)%BlockSize
	if blk >= uint32(len(bitmap)) {
		return false
	}
	mask := byte(1) << (bit % 8)
	return bitmap[blk][off]&mask != 0
}
