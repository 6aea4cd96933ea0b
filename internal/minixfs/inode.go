package minixfs

import (
	"fmt"
	"sync"

	"github.com/go-minix/kernel/internal/bufcache"
	"github.com/go-minix/kernel/internal/logger"
)

// Inode is the in-memory inode (spec.md §3 "Inode (in-memory)"). Pipe
// inodes repurpose Size as the byte length of buffered pipe data and Zones
// is unused for them; PipeBuf instead holds the one-page circular buffer.
type Inode struct {
	mu sync.Mutex

	Dev, Num uint32

	Mode  uint16
	UID   uint16
	GID   uint8
	Size  uint32
	Time  uint32
	Links uint8
	Zones [NumZones]uint32

	refs   int
	dirty  bool
	locked bool
	waiter chan struct{}

	// MountFlag is set when another filesystem is mounted on this
	// inode; Mounted points at that filesystem's superblock.
	MountFlag bool
	Mounted   *Superblock

	// Pipe state (spec.md §3, §4.5 get_pipe_inode).
	IsPipe   bool
	PipeBuf  []byte // one page
	PipeHead int
	PipeTail int
}

const pipeBufSize = 4096

func (ino *Inode) IsDir() bool { return ino.Mode&ModeFmt == ModeDir }
func (ino *Inode) IsReg() bool { return ino.Mode&ModeFmt == ModeReg }

// IncRef bumps ino's reference count directly, for callers outside this
// package that duplicate an existing reference without going through
// iget (spec.md §4.7 fork: "bumps reference counts on pwd/root/executable
// and on every open file").
func (ino *Inode) IncRef() {
	ino.mu.Lock()
	ino.refs++
	ino.mu.Unlock()
}

// Lock / Unlock implement spec.md's "a locked inode blocks readers until
// unlocked".
func (ino *Inode) Lock() {
	ino.mu.Lock()
	for ino.locked {
		w := make(chan struct{})
		ino.waiter = w
		ino.mu.Unlock()
		<-w
		ino.mu.Lock()
	}
	ino.locked = true
	ino.mu.Unlock()
}

func (ino *Inode) Unlock() {
	ino.mu.Lock()
	ino.locked = false
	w := ino.waiter
	ino.waiter = nil
	ino.mu.Unlock()
	if w != nil {
		close(w)
	}
}

func (ino *Inode) raw() rawInode {
	return rawInode{
		Mode: ino.Mode, UID: ino.UID, Size: ino.Size, Time: ino.Time,
		GID: ino.GID, Links: ino.Links,
		Zones: [NumZones]uint16{
			uint16(ino.Zones[0]), uint16(ino.Zones[1]), uint16(ino.Zones[2]),
			uint16(ino.Zones[3]), uint16(ino.Zones[4]), uint16(ino.Zones[5]),
			uint16(ino.Zones[6]), uint16(ino.Zones[7]), uint16(ino.Zones[8]),
		},
	}
}

func (ino *Inode) fromRaw(r rawInode) {
	ino.Mode, ino.UID, ino.Size, ino.Time, ino.GID, ino.Links = r.Mode, r.UID, r.Size, r.Time, r.GID, r.Links
	for i, z := range r.Zones {
		ino.Zones[i] = uint32(z)
	}
}

// location computes the (block, offset) holding inode num's on-disk
// record: 2 + imap_blocks + zmap_blocks + (num-1)/INODES_PER_BLOCK
// (spec.md §4.5 read_inode/write_inode).
func (sb *Superblock) location(num uint32) (block uint32, offset int) {
	block = 2 + sb.IMapBlocks + sb.ZMapBlocks + (num-1)/InodesPerBlock
	offset = int((num - 1) % InodesPerBlock) * InodeSize
	return
}

// inodeTable is the fixed NR_INODE-slot cache (spec.md §4.5 "Inode cache").
type inodeTable struct {
	mu    sync.Mutex
	slots map[key]*Inode
	max   int
}

type key struct {
	dev, num uint32
}

func newInodeTable(max int) *inodeTable {
	return &inodeTable{slots: make(map[key]*Inode), max: max}
}

// FileSystem ties the superblock table, inode cache and buffer cache
// together; see fs.go for construction.
type FileSystem struct {
	cache  *bufcache.Cache
	supers *superTable
	inodes *inodeTable

	// noTruncateNames mirrors cfg.Config.NoTruncateNames: when set,
	// addEntry/createInode/Mkdir reject over-length names with
	// ErrNameTooLong instead of silently truncating them to NameLen.
	noTruncateNames bool
}

// iget finds or loads inode (dev,num), bumping its reference count. If the
// found inode carries a mount flag, the mounted filesystem's root inode is
// returned instead, crossing the mount point transparently (spec.md §4.5).
func (fs *FileSystem) iget(dev, num uint32) (*Inode, error) {
	for {
		fs.inodes.mu.Lock()
		if ino, ok := fs.inodes.slots[key{dev, num}]; ok {
			fs.inodes.mu.Unlock()
			ino.mu.Lock()
			if ino.MountFlag && ino.Mounted != nil {
				rootDev := ino.Mounted.Dev
				rootNum := ino.Mounted.RootInum
				ino.mu.Unlock()
				return fs.iget(rootDev, rootNum)
			}
			ino.refs++
			ino.mu.Unlock()
			return ino, nil
		}
		fs.inodes.mu.Unlock()

		ino, err := fs.getEmptyInode()
		if err != nil {
			return nil, err
		}
		if err := fs.readInode(ino, dev, num); err != nil {
			return nil, err
		}

		fs.inodes.mu.Lock()
		if _, ok := fs.inodes.slots[key{dev, num}]; ok {
			// Someone loaded it while we were reading from disk.
			fs.inodes.mu.Unlock()
			continue
		}
		ino.Dev, ino.Num, ino.refs = dev, num, 1
		fs.inodes.slots[key{dev, num}] = ino
		fs.inodes.mu.Unlock()
		return ino, nil
	}
}

// getEmptyInode returns a ref-count-0 slot, writing back any dirty inode
// it evicts. Panics (fatal, spec.md §7) if the table is completely full of
// referenced inodes.
func (fs *FileSystem) getEmptyInode() (*Inode, error) {
	fs.inodes.mu.Lock()
	if len(fs.inodes.slots) < fs.inodes.max {
		fs.inodes.mu.Unlock()
		return &Inode{}, nil
	}
	var victim *Inode
	var victimKey key
	for k, ino := range fs.inodes.slots {
		ino.mu.Lock()
		refs := ino.refs
		ino.mu.Unlock()
		if refs == 0 {
			victim, victimKey = ino, k
			break
		}
	}
	fs.inodes.mu.Unlock()

	if victim == nil {
		logger.Fatal("minixfs: inode table exhausted (NR_INODE=%d)", fs.inodes.max)
	}
	if victim.dirty {
		if err := fs.writeInode(victim); err != nil {
			return nil, err
		}
	}
	fs.inodes.mu.Lock()
	delete(fs.inodes.slots, victimKey)
	fs.inodes.mu.Unlock()
	*victim = Inode{}
	return victim, nil
}

func (fs *FileSystem) readInode(ino *Inode, dev, num uint32) error {
	sb := fs.supers.getSuper(dev)
	if sb == nil {
		return fmt.Errorf("minixfs: read_inode: device %d not mounted", dev)
	}
	block, off := sb.location(num)
	b, err := fs.cache.Bread(dev, block)
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("minixfs: read_inode: I/O error reading inode %d", num)
	}
	raw := unmarshalInode(b.Data[off : off+InodeSize])
	fs.cache.Brelse(b)
	ino.fromRaw(raw)
	ino.Dev, ino.Num = dev, num
	return nil
}

// writeInode is idempotent: marshals ino and marks the holding buffer
// dirty for writeback (spec.md §5 "inode writeback is idempotent and safe
// to retry").
func (fs *FileSystem) writeInode(ino *Inode) error {
	sb := fs.supers.getSuper(ino.Dev)
	if sb == nil {
		return fmt.Errorf("minixfs: write_inode: device %d not mounted", ino.Dev)
	}
	block, off := sb.location(ino.Num)
	b, err := fs.cache.Bread(ino.Dev, block)
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("minixfs: write_inode: I/O error reading inode block for %d", ino.Num)
	}
	raw := ino.raw().marshal()
	copy(b.Data[off:off+InodeSize], raw[:])
	fs.cache.MarkDirty(b)
	fs.cache.Brelse(b)
	ino.dirty = false
	return nil
}

// Iput releases a reference. At ref count 1 (about to hit zero) it writes
// back dirt, truncates+frees the inode when Links==0, or releases the
// pipe's page when it was a pipe (spec.md §4.5 iput).
func (fs *FileSystem) Iput(ino *Inode) error {
	if ino == nil {
		return nil
	}
	ino.mu.Lock()
	if ino.refs == 0 {
		ino.mu.Unlock()
		return fmt.Errorf("minixfs: iput: inode %d already has zero references", ino.Num)
	}
	if ino.refs > 1 {
		ino.refs--
		ino.mu.Unlock()
		return nil
	}
	ino.mu.Unlock()

	if ino.IsPipe {
		ino.mu.Lock()
		ino.refs--
		ino.PipeBuf = nil
		ino.mu.Unlock()
		fs.inodes.mu.Lock()
		delete(fs.inodes.slots, key{ino.Dev, ino.Num})
		fs.inodes.mu.Unlock()
		return nil
	}

	if ino.Links == 0 {
		if err := fs.truncate(ino); err != nil {
			return err
		}
		sb := fs.supers.getSuper(ino.Dev)
		if sb != nil {
			if err := sb.FreeInode(ino.Num); err != nil {
				return err
			}
		}
		ino.mu.Lock()
		ino.refs = 0
		ino.mu.Unlock()
		fs.inodes.mu.Lock()
		delete(fs.inodes.slots, key{ino.Dev, ino.Num})
		fs.inodes.mu.Unlock()
		return nil
	}

	if ino.dirty {
		if err := fs.writeInode(ino); err != nil {
			return err
		}
	}
	ino.mu.Lock()
	ino.refs--
	ino.mu.Unlock()
	return nil
}

func (fs *FileSystem) markDirty(ino *Inode) {
	ino.mu.Lock()
	ino.dirty = true
	ino.mu.Unlock()
}

// MarkDirty exports markDirty for callers outside this package that
// mutate inode fields directly (internal/syscall's chmod/chown/utime).
func (fs *FileSystem) MarkDirty(ino *Inode) { fs.markDirty(ino) }
