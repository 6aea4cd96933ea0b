package minixfs

import "strings"

// Root is the process-wide mount anchor: the filesystem's root
// superblock/inode, substituted for "/" during path walks (spec.md §4.5
// "task root" — a process's own root is layered on top of this by C7/C9;
// this engine only knows about the single real root).
type Root struct {
	Dev  uint32
	Inum uint32
}

// findEntry scans dir's data blocks for a 14-byte-or-shorter name match,
// returning the matching directory entry's inode number and its on-disk
// location for callers that want to rewrite or clear it in place.
func (fs *FileSystem) findEntry(dir *Inode, name string) (inum uint32, block uint32, offset int, err error) {
	if !dir.IsDir() {
		return 0, 0, 0, ErrNotDir
	}
	nblocks := (int(dir.Size) + BlockSize - 1) / BlockSize
	for blk := 0; blk < nblocks; blk++ {
		zone, err := fs.Bmap(dir, blk, false)
		if err != nil {
			return 0, 0, 0, err
		}
		if zone == 0 {
			continue
		}
		b, err := fs.cache.Bread(dir.Dev, zone)
		if err != nil {
			return 0, 0, 0, err
		}
		if b == nil {
			return 0, 0, 0, errIOError(dir.Dev, zone)
		}
		for off := 0; off+DirEntrySize <= BlockSize; off += DirEntrySize {
			e := unmarshalDirEntry(b.Data[off : off+DirEntrySize])
			if e.Inum != 0 && e.Name == name {
				fs.cache.Brelse(b)
				return uint32(e.Inum), zone, off, nil
			}
		}
		fs.cache.Brelse(b)
	}
	return 0, 0, 0, ErrNotFound
}

// addEntry writes (name -> inum) into the first free slot of dir,
// allocating and zeroing a new data block and growing dir.Size if no
// free slot exists (spec.md §4.5 add_entry).
func (fs *FileSystem) addEntry(dir *Inode, name string, inum uint32) error {
	if len(name) > NameLen {
		if fs.noTruncateNames {
			return ErrNameTooLong
		}
		name = name[:NameLen]
	}
	nblocks := (int(dir.Size) + BlockSize - 1) / BlockSize
	for blk := 0; blk < nblocks; blk++ {
		zone, err := fs.Bmap(dir, blk, false)
		if err != nil {
			return err
		}
		if zone == 0 {
			continue
		}
		b, err := fs.cache.Bread(dir.Dev, zone)
		if err != nil {
			return err
		}
		if b == nil {
			return errIOError(dir.Dev, zone)
		}
		for off := 0; off+DirEntrySize <= BlockSize; off += DirEntrySize {
			e := unmarshalDirEntry(b.Data[off : off+DirEntrySize])
			if e.Inum == 0 {
				raw := marshalDirEntry(dirEntry{Inum: uint16(inum), Name: name})
				copy(b.Data[off:off+DirEntrySize], raw[:])
				fs.cache.MarkDirty(b)
				fs.cache.Brelse(b)
				return nil
			}
		}
		fs.cache.Brelse(b)
	}

	zone, err := fs.Bmap(dir, nblocks, true)
	if err != nil {
		return err
	}
	b, err := fs.cache.Getblk(dir.Dev, zone)
	if err != nil {
		return err
	}
	b.Data = [BlockSize]byte{}
	raw := marshalDirEntry(dirEntry{Inum: uint16(inum), Name: name})
	copy(b.Data[0:DirEntrySize], raw[:])
	b.Uptodate = true
	fs.cache.MarkDirty(b)
	b.Unlock()
	fs.cache.Brelse(b)

	dir.mu.Lock()
	dir.Size = uint32((nblocks + 1) * BlockSize)
	dir.dirty = true
	dir.mu.Unlock()
	return nil
}

// removeEntry zeroes the directory slot previously returned by findEntry.
func (fs *FileSystem) removeEntry(dev, zone uint32, offset int) error {
	b, err := fs.cache.Bread(dev, zone)
	if err != nil {
		return err
	}
	if b == nil {
		return errIOError(dev, zone)
	}
	for i := 0; i < DirEntrySize; i++ {
		b.Data[offset+i] = 0
	}
	fs.cache.MarkDirty(b)
	fs.cache.Brelse(b)
	return nil
}

// isEmptyDir reports whether dir contains only "." and "..".
func (fs *FileSystem) isEmptyDir(dir *Inode) (bool, error) {
	nblocks := (int(dir.Size) + BlockSize - 1) / BlockSize
	for blk := 0; blk < nblocks; blk++ {
		zone, err := fs.Bmap(dir, blk, false)
		if err != nil {
			return false, err
		}
		if zone == 0 {
			continue
		}
		b, err := fs.cache.Bread(dir.Dev, zone)
		if err != nil {
			return false, err
		}
		if b == nil {
			return false, errIOError(dir.Dev, zone)
		}
		for off := 0; off+DirEntrySize <= BlockSize; off += DirEntrySize {
			e := unmarshalDirEntry(b.Data[off : off+DirEntrySize])
			if e.Inum == 0 || e.Name == "." || e.Name == ".." {
				continue
			}
			fs.cache.Brelse(b)
			return false, nil
		}
		fs.cache.Brelse(b)
	}
	return true, nil
}

// DirNamei exports dirNamei for callers outside this package that need
// the parent-plus-final-component split directly (internal/syscall's
// mkdir/rmdir/unlink/link, which operate on the parent rather than the
// resolved target).
func (fs *FileSystem) DirNamei(path string, root, cwd *Inode) (*Inode, string, error) {
	return fs.dirNamei(path, root, cwd)
}

// dirNamei walks every component of path except the last, returning the
// locked(-by-refcount) parent directory inode and the final component's
// name (spec.md §4.5 dir_namei). root anchors an absolute path; cwd
// anchors a relative one.
func (fs *FileSystem) dirNamei(path string, root, cwd *Inode) (parent *Inode, last string, err error) {
	cur := cwd
	if strings.HasPrefix(path, "/") {
		cur = root
	}
	cur.mu.Lock()
	cur.refs++
	cur.mu.Unlock()

	parts := splitPath(path)
	if len(parts) == 0 {
		return cur, ".", nil
	}
	for _, comp := range parts[:len(parts)-1] {
		next, err := fs.step(cur, comp, root)
		fs.Iput(cur)
		if err != nil {
			return nil, "", err
		}
		cur = next
	}
	return cur, parts[len(parts)-1], nil
}

// step resolves one path component inside dir, crossing ".." at a
// filesystem root back to the mount point's parent (spec.md §4.5's
// mount-crossing rule).
func (fs *FileSystem) step(dir *Inode, name string, root *Inode) (*Inode, error) {
	if !dir.IsDir() {
		return nil, ErrNotDir
	}
	if name == ".." {
		sb := fs.supers.getSuper(dir.Dev)
		if sb != nil && dir.Num == sb.RootInum && sb.MountedOn != nil {
			parent := sb.MountedOn
			parent.mu.Lock()
			parent.refs++
			parent.mu.Unlock()
			return fs.step(parent, "..", root)
		}
	}
	inum, _, _, err := fs.findEntry(dir, name)
	if err != nil {
		return nil, err
	}
	return fs.iget(dir.Dev, inum)
}

// OpenNamei resolves path fully to its target inode (spec.md §4.5
// open_namei), optionally creating it when O_CREAT is requested and it
// doesn't exist.
type OpenFlags struct {
	Create    bool
	Exclusive bool
	Truncate  bool
	Directory bool
	Mode      uint16
}

func (fs *FileSystem) OpenNamei(path string, flags OpenFlags, uid uint16, gid uint8, root, cwd *Inode) (*Inode, error) {
	parent, name, err := fs.dirNamei(path, root, cwd)
	if err != nil {
		return nil, err
	}

	inum, _, _, ferr := fs.findEntry(parent, name)
	if ferr == ErrNotFound {
		if !flags.Create {
			fs.Iput(parent)
			return nil, ErrNotFound
		}
		ino, err := fs.createInode(parent, name, flags.Mode, uid, gid)
		fs.Iput(parent)
		return ino, err
	}
	if ferr != nil {
		fs.Iput(parent)
		return nil, ferr
	}
	if flags.Create && flags.Exclusive {
		fs.Iput(parent)
		return nil, ErrExists
	}

	ino, err := fs.iget(parent.Dev, inum)
	fs.Iput(parent)
	if err != nil {
		return nil, err
	}
	if flags.Truncate && ino.IsReg() {
		if err := fs.truncateOpen(ino); err != nil {
			fs.Iput(ino)
			return nil, err
		}
	}
	return ino, nil
}

// truncateOpen implements O_TRUNC on an already-open file: frees its
// zones but (unlike Iput's Links==0 path) keeps the inode alive.
func (fs *FileSystem) truncateOpen(ino *Inode) error {
	return fs.truncate(ino)
}

// createInode allocates a fresh inode, links it into parent under name,
// and returns it with refs==1 (spec.md §4.5 open_namei's O_CREAT path).
func (fs *FileSystem) createInode(parent *Inode, name string, mode uint16, uid uint16, gid uint8) (*Inode, error) {
	sb := fs.supers.getSuper(parent.Dev)
	if sb == nil {
		return nil, errDeviceNotMounted(parent.Dev)
	}
	num := sb.AllocInode()
	if num == 0 {
		return nil, ErrNoSpace
	}
	ino, err := fs.getEmptyInode()
	if err != nil {
		return nil, err
	}
	ino.Dev, ino.Num, ino.Mode, ino.UID, ino.GID, ino.Links, ino.dirty = parent.Dev, num, mode, uid, gid, 1, true

	fs.inodes.mu.Lock()
	fs.inodes.slots[key{parent.Dev, num}] = ino
	fs.inodes.mu.Unlock()
	ino.refs = 1

	if err := fs.addEntry(parent, name, num); err != nil {
		return nil, err
	}
	return ino, nil
}

// Mkdir creates a new, empty directory named name inside parent,
// pre-populated with "." and ".." entries (spec.md §4.5 sys_mkdir).
func (fs *FileSystem) Mkdir(parent *Inode, name string, mode uint16, uid uint16, gid uint8) error {
	if _, _, _, err := fs.findEntry(parent, name); err == nil {
		return ErrExists
	}
	sb := fs.supers.getSuper(parent.Dev)
	if sb == nil {
		return errDeviceNotMounted(parent.Dev)
	}
	num := sb.AllocInode()
	if num == 0 {
		return ErrNoSpace
	}
	dirInode, err := fs.getEmptyInode()
	if err != nil {
		return err
	}
	dirInode.Dev, dirInode.Num, dirInode.Mode = parent.Dev, num, ModeDir|mode
	dirInode.UID, dirInode.GID, dirInode.Links, dirInode.dirty = uid, gid, 2, true

	if err := fs.addEntry(dirInode, ".", num); err != nil {
		return err
	}
	if err := fs.addEntry(dirInode, "..", parent.Num); err != nil {
		return err
	}
	// addEntry grows Size to a whole block on the first allocation; a
	// fresh directory holds only the two entries just written (spec.md
	// §4.5: new directories start at size 2*DirEntrySize).
	dirInode.mu.Lock()
	dirInode.Size = 2 * DirEntrySize
	dirInode.mu.Unlock()

	fs.inodes.mu.Lock()
	fs.inodes.slots[key{parent.Dev, num}] = dirInode
	fs.inodes.mu.Unlock()
	dirInode.refs = 1

	if err := fs.addEntry(parent, name, num); err != nil {
		return err
	}
	parent.mu.Lock()
	parent.Links++
	parent.dirty = true
	parent.mu.Unlock()

	return fs.Iput(dirInode)
}

// Rmdir removes an empty, unreferenced-by-anyone-else directory (spec.md
// §4.5 sys_rmdir).
func (fs *FileSystem) Rmdir(parent *Inode, name string) error {
	inum, blk, off, err := fs.findEntry(parent, name)
	if err != nil {
		return err
	}
	ino, err := fs.iget(parent.Dev, inum)
	if err != nil {
		return err
	}
	if !ino.IsDir() {
		fs.Iput(ino)
		return ErrNotDir
	}
	empty, err := fs.isEmptyDir(ino)
	if err != nil {
		fs.Iput(ino)
		return err
	}
	if !empty {
		fs.Iput(ino)
		return ErrNotEmpty
	}
	ino.mu.Lock()
	if ino.refs > 1 {
		ino.mu.Unlock()
		fs.Iput(ino)
		return ErrBusy
	}
	ino.Links = 0
	ino.mu.Unlock()

	if err := fs.removeEntry(parent.Dev, blk, off); err != nil {
		fs.Iput(ino)
		return err
	}
	parent.mu.Lock()
	parent.Links--
	parent.dirty = true
	parent.mu.Unlock()

	return fs.Iput(ino)
}

// Link adds a new directory entry pointing at an existing inode (spec.md
// §4.5 sys_link); hard links across devices aren't representable and are
// rejected by the caller before this is reached.
func (fs *FileSystem) Link(target *Inode, parent *Inode, name string) error {
	if target.IsDir() {
		return ErrIsDir
	}
	if _, _, _, err := fs.findEntry(parent, name); err == nil {
		return ErrExists
	}
	if err := fs.addEntry(parent, name, target.Num); err != nil {
		return err
	}
	target.mu.Lock()
	target.Links++
	target.dirty = true
	target.mu.Unlock()
	return nil
}

// Unlink removes a directory entry and drops the target's link count,
// freeing it via Iput once Links reaches zero (spec.md §4.5 sys_unlink).
func (fs *FileSystem) Unlink(parent *Inode, name string) error {
	inum, blk, off, err := fs.findEntry(parent, name)
	if err != nil {
		return err
	}
	ino, err := fs.iget(parent.Dev, inum)
	if err != nil {
		return err
	}
	if ino.IsDir() {
		fs.Iput(ino)
		return ErrIsDir
	}
	if err := fs.removeEntry(parent.Dev, blk, off); err != nil {
		fs.Iput(ino)
		return err
	}
	ino.mu.Lock()
	if ino.Links > 0 {
		ino.Links--
	}
	ino.dirty = true
	ino.mu.Unlock()
	return fs.Iput(ino)
}

func splitPath(p string) []string {
	var out []string
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
