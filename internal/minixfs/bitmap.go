package minixfs

import "fmt"

// AllocZone reserves a free data zone, returning its absolute zone/block
// number (FirstDataZone-relative bit position + FirstDataZone - 1), or 0 if
// the device is full (ENOSPC).
func (sb *Superblock) AllocZone() uint32 {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	bit := bitAlloc(sb.zmap, sb.NZones)
	if bit == 0 {
		return 0
	}
	sb.Dirty = true
	return sb.FirstDataZone - 1 + bit
}

// FreeZone releases a zone number previously returned by AllocZone.
func (sb *Superblock) FreeZone(zone uint32) error {
	if zone == 0 {
		return nil
	}
	sb.mu.Lock()
	defer sb.mu.Unlock()
	bit := zone - (sb.FirstDataZone - 1)
	if err := bitFree(sb.zmap, bit); err != nil {
		return fmt.Errorf("minixfs: free_zone: %w", err)
	}
	sb.Dirty = true
	return nil
}

// AllocInode reserves a free inode number, or 0 if exhausted (ENOSPC).
func (sb *Superblock) AllocInode() uint32 {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	bit := bitAlloc(sb.imap, sb.NInodes)
	if bit == 0 {
		return 0
	}
	sb.Dirty = true
	return bit
}

// FreeInode releases an inode number previously returned by AllocInode.
func (sb *Superblock) FreeInode(inum uint32) error {
	if inum == 0 {
		return nil
	}
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if err := bitFree(sb.imap, inum); err != nil {
		return fmt.Errorf("minixfs: free_inode: %w", err)
	}
	sb.Dirty = true
	return nil
}
