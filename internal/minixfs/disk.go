// Package minixfs implements the MINIX v1-compatible filesystem engine
// (spec.md §4.5/§6, C5): superblocks, bitmaps, the inode cache, the block
// map (bmap), directory operations, truncate and pipe inodes.
//
// Grounded on spec.md §4.5/§6 and original_source/fs/{super,bitmap,inode,
// namei,truncate,pipe,open}.c. On-disk structures are little-endian per
// spec.md §9.
package minixfs

import "encoding/binary"

const (
	// BlockSize is the on-disk block size (spec.md §6).
	BlockSize = 1024

	// SuperMagic is the only magic number this filesystem recognizes
	// (spec.md §6).
	SuperMagic = 0x137F

	// InodeSize is the on-disk size of one inode record (spec.md §6).
	InodeSize = 32

	// InodesPerBlock follows from BlockSize/InodeSize.
	InodesPerBlock = BlockSize / InodeSize

	// DirEntrySize is 2 bytes inode number + 14 bytes name (spec.md §6).
	DirEntrySize = 16
	NameLen      = 14

	// NumDirectZones/indirect layout (spec.md §3 "Inode").
	NumDirectZones  = 7
	ZoneSingleIndir = 7
	ZoneDoubleIndir = 8
	NumZones        = 9

	// PointersPerBlock: a zone number is 16 bits (2 bytes), so one
	// indirect block holds BlockSize/2 pointers (spec.md §8: "512" per
	// indirect level).
	PointersPerBlock = BlockSize / 2

	// MaxDirectBlocks / MaxSingleIndirectBlocks / MaxDoubleIndirect
	// follow spec.md §8's boundary-behaviour numbers.
	MaxDirectBlocks         = NumDirectZones
	MaxSingleIndirectBlocks = PointersPerBlock
	MaxDoubleIndirectBlocks = PointersPerBlock * PointersPerBlock
)

// Mode bits (the subset this engine cares about).
const (
	ModeFmt    = 0xF000
	ModeDir    = 0x4000
	ModeReg    = 0x8000
	ModeRWXOwn = 0o700
	ModeRWXGrp = 0o070
	ModeRWXOth = 0o007
)

// rawInode is the 32-byte on-disk inode record (spec.md §6).
type rawInode struct {
	Mode  uint16
	UID   uint16
	Size  uint32
	Time  uint32
	GID   uint8
	Links uint8
	Zones [NumZones]uint16
}

func (r *rawInode) marshal() [InodeSize]byte {
	var b [InodeSize]byte
	binary.LittleEndian.PutUint16(b[0:2], r.Mode)
	binary.LittleEndian.PutUint16(b[2:4], r.UID)
	binary.LittleEndian.PutUint32(b[4:8], r.Size)
	binary.LittleEndian.PutUint32(b[8:12], r.Time)
	b[12] = r.GID
	b[13] = r.Links
	for i, z := range r.Zones {
		off := 14 + i*2
		binary.LittleEndian.PutUint16(b[off:off+2], z)
	}
	return b
}

func unmarshalInode(b []byte) rawInode {
	var r rawInode
	r.Mode = binary.LittleEndian.Uint16(b[0:2])
	r.UID = binary.LittleEndian.Uint16(b[2:4])
	r.Size = binary.LittleEndian.Uint32(b[4:8])
	r.Time = binary.LittleEndian.Uint32(b[8:12])
	r.GID = b[12]
	r.Links = b[13]
	for i := range r.Zones {
		off := 14 + i*2
		r.Zones[i] = binary.LittleEndian.Uint16(b[off : off+2])
	}
	return r
}

// rawSuper is the layout of block 1 (spec.md §6).
type rawSuper struct {
	NInodes      uint16
	NZones       uint16
	IMapBlocks   uint16
	ZMapBlocks   uint16
	FirstDataZone uint16
	LogZoneSize  uint16
	MaxSize      uint32
	Magic        uint16
}

const rawSuperSize = 2*6 + 4 + 2

func unmarshalSuper(b []byte) rawSuper {
	var s rawSuper
	s.NInodes = binary.LittleEndian.Uint16(b[0:2])
	s.NZones = binary.LittleEndian.Uint16(b[2:4])
	s.IMapBlocks = binary.LittleEndian.Uint16(b[4:6])
	s.ZMapBlocks = binary.LittleEndian.Uint16(b[6:8])
	s.FirstDataZone = binary.LittleEndian.Uint16(b[8:10])
	s.LogZoneSize = binary.LittleEndian.Uint16(b[10:12])
	s.MaxSize = binary.LittleEndian.Uint32(b[12:16])
	s.Magic = binary.LittleEndian.Uint16(b[16:18])
	return s
}

func (s rawSuper) marshal() [BlockSize]byte {
	var b [BlockSize]byte
	binary.LittleEndian.PutUint16(b[0:2], s.NInodes)
	binary.LittleEndian.PutUint16(b[2:4], s.NZones)
	binary.LittleEndian.PutUint16(b[4:6], s.IMapBlocks)
	binary.LittleEndian.PutUint16(b[6:8], s.ZMapBlocks)
	binary.LittleEndian.PutUint16(b[8:10], s.FirstDataZone)
	binary.LittleEndian.PutUint16(b[10:12], s.LogZoneSize)
	binary.LittleEndian.PutUint32(b[12:16], s.MaxSize)
	binary.LittleEndian.PutUint16(b[16:18], s.Magic)
	return b
}

// dirEntry is one 16-byte directory record.
type dirEntry struct {
	Inum uint16
	Name string
}

func unmarshalDirEntry(b []byte) dirEntry {
	inum := binary.LittleEndian.Uint16(b[0:2])
	nameBytes := b[2:DirEntrySize]
	n := 0
	for n < NameLen && nameBytes[n] != 0 {
		n++
	}
	return dirEntry{Inum: inum, Name: string(nameBytes[:n])}
}

func marshalDirEntry(e dirEntry) [DirEntrySize]byte {
	var b [DirEntrySize]byte
	binary.LittleEndian.PutUint16(b[0:2], e.Inum)
	copy(b[2:DirEntrySize], e.Name)
	return b
}
