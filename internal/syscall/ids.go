package syscall

// Credential syscalls (spec.md's syscall list, elaborated per
// SUPPLEMENTED FEATURES from original_source/kernel/sys.c: plain integer
// reads/writes against the task record, privilege-checked where the
// original checks EUID==0).

func (d *Dispatcher) Getuid(pid int) (uint16, error) {
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	return p.UID, nil
}

func (d *Dispatcher) Geteuid(pid int) (uint16, error) {
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	return p.EUID, nil
}

func (d *Dispatcher) Getgid(pid int) (uint8, error) {
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	return p.GID, nil
}

func (d *Dispatcher) Getegid(pid int) (uint8, error) {
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	return p.EGID, nil
}

// Setuid implements sys_setuid: root may set uid/euid/suid all at once;
// an unprivileged caller may only set euid to its real or saved uid.
func (d *Dispatcher) Setuid(pid int, uid uint16) error {
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	if p.EUID == 0 {
		p.UID, p.EUID, p.SUID = uid, uid, uid
		return nil
	}
	if uid != p.UID && uid != p.SUID {
		return errno(errPermSentinel)
	}
	p.EUID = uid
	return nil
}

// Setreuid implements sys_setreuid: -1 for either argument means "leave
// unchanged" (original_source/kernel/sys.c's convention).
func (d *Dispatcher) Setreuid(pid int, ruid, euid int) error {
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	if p.EUID != 0 {
		if ruid >= 0 && uint16(ruid) != p.UID {
			return errno(errPermSentinel)
		}
		if euid >= 0 && uint16(euid) != p.UID && uint16(euid) != p.EUID {
			return errno(errPermSentinel)
		}
	}
	if ruid >= 0 {
		p.UID = uint16(ruid)
	}
	if euid >= 0 {
		p.EUID = uint16(euid)
	}
	return nil
}

func (d *Dispatcher) Setgid(pid int, gid uint8) error {
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	if p.EUID == 0 {
		p.GID, p.EGID, p.SGID = gid, gid, gid
		return nil
	}
	if gid != p.GID && gid != p.SGID {
		return errno(errPermSentinel)
	}
	p.EGID = gid
	return nil
}

func (d *Dispatcher) Setregid(pid int, rgid, egid int) error {
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	if p.EUID != 0 {
		if rgid >= 0 && uint8(rgid) != p.GID {
			return errno(errPermSentinel)
		}
		if egid >= 0 && uint8(egid) != p.GID && uint8(egid) != p.EGID {
			return errno(errPermSentinel)
		}
	}
	if rgid >= 0 {
		p.GID = uint8(rgid)
	}
	if egid >= 0 {
		p.EGID = uint8(egid)
	}
	return nil
}
