package minixfs

// Mkfs lays out a minimal valid MINIX v1 image on a blank in-memory
// device: a superblock, inode/zone bitmaps with the reserved bit-0 and
// root-inode/root-zone bits set, and a root directory inode containing
// only "." and "..". This is what cfg's empty DiskImagePath selects (the
// scratch disk `boot` uses when given no image, and the one the test
// suites build on), and the
// in-process equivalent of the offline mkfs tooling spec.md scopes out.
func Mkfs(nInodes, nZones uint16) *MemDriver {
	imapBlocks := uint16((nInodes/8 + 1 + BlockSize*8 - 1) / (BlockSize * 8))
	if imapBlocks == 0 {
		imapBlocks = 1
	}
	zmapBlocks := uint16((nZones/8 + 1 + BlockSize*8 - 1) / (BlockSize * 8))
	if zmapBlocks == 0 {
		zmapBlocks = 1
	}
	firstDataZone := 2 + imapBlocks + zmapBlocks + (nInodes/InodesPerBlock + 1)

	totalBlocks := int(firstDataZone) + int(nZones) + 16
	drv := NewMemDriver(totalBlocks)

	sup := rawSuper{
		NInodes:       nInodes,
		NZones:        nZones,
		IMapBlocks:    imapBlocks,
		ZMapBlocks:    zmapBlocks,
		FirstDataZone: firstDataZone,
		LogZoneSize:   0,
		MaxSize:       MaxDirectBlocks*BlockSize + MaxSingleIndirectBlocks*BlockSize,
		Magic:         SuperMagic,
	}
	raw := sup.marshal()
	drv.WriteAt(raw[:], BlockSize)

	imapBuf := make([]byte, int(imapBlocks)*BlockSize)
	imapBuf[0] = 0b11
	drv.WriteAt(imapBuf, int64(2*BlockSize))

	zmapBuf := make([]byte, int(zmapBlocks)*BlockSize)
	zmapBuf[0] = 0b11
	drv.WriteAt(zmapBuf, int64((2+int(imapBlocks))*BlockSize))

	rootZone := uint32(firstDataZone)
	rootInode := rawInode{
		Mode:  ModeDir | 0o755,
		Links: 2,
		Size:  2 * DirEntrySize,
		Zones: [NumZones]uint16{uint16(rootZone)},
	}
	inodeBlock := 2 + uint32(imapBlocks) + uint32(zmapBlocks)
	rib := rootInode.marshal()
	drv.WriteAt(rib[:], int64(inodeBlock)*BlockSize)

	var dirBlock [BlockSize]byte
	dot := marshalDirEntry(dirEntry{Inum: 1, Name: "."})
	dotdot := marshalDirEntry(dirEntry{Inum: 1, Name: ".."})
	copy(dirBlock[0:DirEntrySize], dot[:])
	copy(dirBlock[DirEntrySize:2*DirEntrySize], dotdot[:])
	drv.WriteAt(dirBlock[:], int64(rootZone)*BlockSize)

	return drv
}
