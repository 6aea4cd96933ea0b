package minixfs

import "encoding/binary"

// Bmap translates a file-relative block number to an absolute disk block
// number (spec.md §4.5 "Block map"). Direct zones cover blocks 0..6;
// single indirect covers 7..518; the rest goes through double indirect.
// When create is false, a zero anywhere in the chain is a hole and Bmap
// returns 0 without allocating. When create is true, missing indirect
// blocks and the final data block are allocated.
func (fs *FileSystem) Bmap(ino *Inode, block int, create bool) (uint32, error) {
	sb := fs.supers.getSuper(ino.Dev)
	if sb == nil {
		return 0, errDeviceNotMounted(ino.Dev)
	}

	if block < MaxDirectBlocks {
		ino.mu.Lock()
		defer ino.mu.Unlock()
		if ino.Zones[block] == 0 && create {
			z := sb.AllocZone()
			if z == 0 {
				return 0, ErrNoSpace
			}
			ino.Zones[block] = z
			ino.dirty = true
		}
		return ino.Zones[block], nil
	}

	block -= MaxDirectBlocks
	if block < MaxSingleIndirectBlocks {
		return fs.bmapIndirect(sb, ino, ZoneSingleIndir, block, create)
	}

	block -= MaxSingleIndirectBlocks
	outer := block / PointersPerBlock
	inner := block % PointersPerBlock
	return fs.bmapDoubleIndirect(sb, ino, outer, inner, create)
}

// bmapIndirect resolves slot `idx` of the single-indirect block referenced
// by ino.Zones[zoneSlot], allocating the indirect block itself if absent
// and create is set.
func (fs *FileSystem) bmapIndirect(sb *Superblock, ino *Inode, zoneSlot int, idx int, create bool) (uint32, error) {
	ino.mu.Lock()
	indirZone := ino.Zones[zoneSlot]
	ino.mu.Unlock()

	if indirZone == 0 {
		if !create {
			return 0, nil
		}
		z := sb.AllocZone()
		if z == 0 {
			return 0, ErrNoSpace
		}
		if err := fs.zeroBlock(ino.Dev, z); err != nil {
			return 0, err
		}
		ino.mu.Lock()
		ino.Zones[zoneSlot] = z
		ino.dirty = true
		ino.mu.Unlock()
		indirZone = z
	}

	return fs.readOrAllocPointer(ino.Dev, indirZone, idx, sb, create)
}

// bmapDoubleIndirect resolves ino.Zones[8] -> outer pointer block -> inner
// data block.
func (fs *FileSystem) bmapDoubleIndirect(sb *Superblock, ino *Inode, outer, inner int, create bool) (uint32, error) {
	ino.mu.Lock()
	dindirZone := ino.Zones[ZoneDoubleIndir]
	ino.mu.Unlock()

	if dindirZone == 0 {
		if !create {
			return 0, nil
		}
		z := sb.AllocZone()
		if z == 0 {
			return 0, ErrNoSpace
		}
		if err := fs.zeroBlock(ino.Dev, z); err != nil {
			return 0, err
		}
		ino.mu.Lock()
		ino.Zones[ZoneDoubleIndir] = z
		ino.dirty = true
		ino.mu.Unlock()
		dindirZone = z
	}

	outerZone, err := fs.readOrAllocPointer(ino.Dev, dindirZone, outer, sb, create)
	if err != nil || outerZone == 0 {
		return 0, err
	}
	return fs.readOrAllocPointer(ino.Dev, outerZone, inner, sb, create)
}

// readOrAllocPointer reads pointer `idx` out of the indirect block `zone`,
// allocating and writing back a fresh data zone there if it's a hole and
// create is set.
func (fs *FileSystem) readOrAllocPointer(dev, zone uint32, idx int, sb *Superblock, create bool) (uint32, error) {
	b, err := fs.cache.Bread(dev, zone)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, errIOError(dev, zone)
	}
	off := idx * 2
	ptr := uint32(binary.LittleEndian.Uint16(b.Data[off : off+2]))
	if ptr == 0 && create {
		ptr = sb.AllocZone()
		if ptr == 0 {
			fs.cache.Brelse(b)
			return 0, ErrNoSpace
		}
		binary.LittleEndian.PutUint16(b.Data[off:off+2], uint16(ptr))
		fs.cache.MarkDirty(b)
	}
	fs.cache.Brelse(b)
	return ptr, nil
}

func (fs *FileSystem) zeroBlock(dev, block uint32) error {
	b, err := fs.cache.Getblk(dev, block)
	if err != nil {
		return err
	}
	b.Data = [BlockSize]byte{}
	b.Uptodate = true
	fs.cache.MarkDirty(b)
	b.Unlock()
	fs.cache.Brelse(b)
	return nil
}
