package syscall

import "github.com/go-minix/kernel/internal/minixfs"

// Mount implements sys_mount: dev identifies an already-attached block
// device (spec.md doesn't model a /dev namespace mapping path strings to
// device numbers, so callers pass the number directly, the way the boot
// script wires up devices). The mount-point inode's single reference is
// kept alive by the mount itself — not released on success.
func (d *Dispatcher) Mount(pid int, dev uint32, path string, readOnly bool) error {
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	mp, err := d.FS.OpenNamei(path, minixfs.OpenFlags{}, p.EUID, p.EGID, p.Root, p.Cwd)
	if err != nil {
		return errno(err)
	}
	if err := d.FS.Mount(dev, mp, readOnly); err != nil {
		d.FS.Iput(mp)
		return errno(err)
	}
	return nil
}

// Umount implements sys_umount: refuses while any inode from the
// mounted device is still referenced (spec.md §4.5, already enforced by
// FS.Umount).
func (d *Dispatcher) Umount(pid int, path string) error {
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	mp, err := d.FS.OpenNamei(path, minixfs.OpenFlags{}, p.EUID, p.EGID, p.Root, p.Cwd)
	if err != nil {
		return errno(err)
	}
	defer d.FS.Iput(mp)
	if err := d.FS.Umount(mp); err != nil {
		return errno(err)
	}
	return nil
}
