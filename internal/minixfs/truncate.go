package minixfs

import "encoding/binary"

// truncate frees every zone an inode owns and zeroes its zone list,
// including walking and freeing single- and double-indirect blocks
// (spec.md §4.5 truncate / original_source/fs/truncate.c). Callers must
// hold ino.Lock() or otherwise guarantee exclusive access; Iput already
// does, since it only truncates an inode with refs dropping to zero.
func (fs *FileSystem) truncate(ino *Inode) error {
	if ino.IsPipe {
		return nil
	}
	sb := fs.supers.getSuper(ino.Dev)
	if sb == nil {
		return errDeviceNotMounted(ino.Dev)
	}

	ino.mu.Lock()
	zones := ino.Zones
	ino.Zones = [NumZones]uint32{}
	ino.Size = 0
	ino.dirty = true
	ino.mu.Unlock()

	for i := 0; i < NumDirectZones; i++ {
		if err := sb.FreeZone(zones[i]); err != nil {
			return err
		}
	}

	if err := fs.freeIndirect(sb, zones[ZoneSingleIndir], 1); err != nil {
		return err
	}
	if err := fs.freeIndirect(sb, zones[ZoneDoubleIndir], 2); err != nil {
		return err
	}
	return nil
}

// freeIndirect frees every zone pointed to by indirect block `zone`
// (recursing one extra level for double indirection), and then zone
// itself. depth==1 means zone's pointers are data zones; depth==2 means
// zone's pointers are themselves single-indirect blocks.
func (fs *FileSystem) freeIndirect(sb *Superblock, zone uint32, depth int) error {
	if zone == 0 {
		return nil
	}
	b, err := fs.cache.Bread(sb.Dev, zone)
	if err != nil {
		return err
	}
	if b == nil {
		return errIOError(sb.Dev, zone)
	}
	var ptrs [PointersPerBlock]uint32
	for i := 0; i < PointersPerBlock; i++ {
		off := i * 2
		ptrs[i] = uint32(binary.LittleEndian.Uint16(b.Data[off : off+2]))
	}
	fs.cache.Brelse(b)

	for _, p := range ptrs {
		if p == 0 {
			continue
		}
		if depth == 2 {
			if err := fs.freeIndirect(sb, p, 1); err != nil {
				return err
			}
			continue
		}
		if err := sb.FreeZone(p); err != nil {
			return err
		}
	}
	return sb.FreeZone(zone)
}
