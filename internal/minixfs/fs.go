package minixfs

import (
	"github.com/go-minix/kernel/internal/blockio"
	"github.com/go-minix/kernel/internal/bufcache"
	"github.com/go-minix/kernel/internal/vm"
)

// New builds a filesystem engine with nrBuf cache buffers and an
// nrInode-slot inode cache, fronted by queue (the block elevator layer)
// as its buffer-cache writer. noTruncateNames governs whether over-length
// directory entry names are rejected (ENAMETOOLONG) or silently
// truncated (spec.md §6/§8).
func New(queue *blockio.Queue, nrBuf, nrInode, nrSuper int, noTruncateNames bool) *FileSystem {
	return &FileSystem{
		cache:           bufcache.New(queue, nrBuf),
		supers:          newSuperTable(nrSuper),
		inodes:          newInodeTable(nrInode),
		noTruncateNames: noTruncateNames,
	}
}

// MountRoot reads dev's superblock and loads its root inode, establishing
// it as this engine's single real root (spec.md §4.5 mount_root; the
// multi-filesystem generality is kept via Mount/Umount below).
func (fs *FileSystem) MountRoot(dev uint32, readOnly bool) (*Inode, error) {
	sb, err := fs.supers.readSuper(dev, fs.cache, readOnly)
	if err != nil {
		return nil, err
	}
	sb.RootInum = 1
	root, err := fs.iget(dev, sb.RootInum)
	if err != nil {
		return nil, err
	}
	return root, nil
}

// Mount grafts dev's filesystem onto mountPoint, an existing empty
// directory inode with no filesystem already mounted there (spec.md §4.5
// sys_mount).
func (fs *FileSystem) Mount(dev uint32, mountPoint *Inode, readOnly bool) error {
	if !mountPoint.IsDir() {
		return ErrNotDir
	}
	mountPoint.mu.Lock()
	if mountPoint.MountFlag {
		mountPoint.mu.Unlock()
		return ErrBusy
	}
	if mountPoint.refs > 1 {
		mountPoint.mu.Unlock()
		return ErrBusy
	}
	mountPoint.mu.Unlock()

	sb, err := fs.supers.readSuper(dev, fs.cache, readOnly)
	if err != nil {
		return err
	}
	sb.RootInum = 1
	sb.MountedOn = mountPoint

	mountPoint.mu.Lock()
	mountPoint.MountFlag = true
	mountPoint.Mounted = sb
	mountPoint.mu.Unlock()
	return nil
}

// Umount detaches the filesystem mounted at mountPoint, refusing if any
// of its inodes are still referenced (spec.md §4.5 sys_umount).
func (fs *FileSystem) Umount(mountPoint *Inode) error {
	mountPoint.mu.Lock()
	sb := mountPoint.Mounted
	mountPoint.mu.Unlock()
	if sb == nil {
		return ErrNotFound
	}

	fs.inodes.mu.Lock()
	for k, ino := range fs.inodes.slots {
		if k.dev != sb.Dev {
			continue
		}
		ino.mu.Lock()
		refs := ino.refs
		ino.mu.Unlock()
		if refs > 0 {
			fs.inodes.mu.Unlock()
			return ErrBusy
		}
	}
	fs.inodes.mu.Unlock()

	if err := sb.syncBitmaps(fs.cache); err != nil {
		return err
	}
	if err := fs.cache.SyncDev(sb.Dev); err != nil {
		return err
	}
	sb.mu.Lock()
	sb.MountedOn = nil
	sb.mu.Unlock()
	if err := fs.supers.putSuper(sb.Dev); err != nil {
		return err
	}

	mountPoint.mu.Lock()
	mountPoint.MountFlag = false
	mountPoint.Mounted = nil
	mountPoint.mu.Unlock()
	return nil
}

// ExecBacking adapts a regular file inode to vm.FileBacking, letting the
// paging engine demand-page an executable's text and initialized data
// directly out of the filesystem (spec.md §4.2 do_no_page / §4.5).
type ExecBacking struct {
	fs  *FileSystem
	ino *Inode
}

func (fs *FileSystem) NewExecBacking(ino *Inode) *ExecBacking {
	return &ExecBacking{fs: fs, ino: ino}
}

func (e *ExecBacking) Bmap(block int) (uint32, error) {
	return e.fs.Bmap(e.ino, block, false)
}

func (e *ExecBacking) ReadBlock(blockNum uint32, buf []byte) error {
	b, err := e.fs.cache.Bread(e.ino.Dev, blockNum)
	if err != nil {
		return err
	}
	if b == nil {
		return errIOError(e.ino.Dev, blockNum)
	}
	copy(buf, b.Data[:])
	e.fs.cache.Brelse(b)
	return nil
}

var _ vm.FileBacking = (*ExecBacking)(nil)
