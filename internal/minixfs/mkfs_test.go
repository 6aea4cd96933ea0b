package minixfs

import (
	"github.com/go-minix/kernel/internal/blockio"
)

func newTestFS(nInodes, nZones uint16, nrBuf, nrInode, nrSuper int) (*FileSystem, uint32, *Inode) {
	return newTestFSWithOptions(nInodes, nZones, nrBuf, nrInode, nrSuper, false)
}

func newTestFSWithOptions(nInodes, nZones uint16, nrBuf, nrInode, nrSuper int, noTruncateNames bool) (*FileSystem, uint32, *Inode) {
	drv := Mkfs(nInodes, nZones)
	q := blockio.NewQueue(32)
	const dev = uint32(1)
	q.Attach(dev, drv)
	fs := New(q, nrBuf, nrInode, nrSuper, noTruncateNames)
	root, err := fs.MountRoot(dev, false)
	if err != nil {
		panic(err)
	}
	return fs, dev, root
}
