package tty

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Ioctl implements the termios/pgrp subset of ioctl (SPEC_FULL.md
// supplemented features, grounded on original_source/kernel/chr_drv/
// tty_ioctl.c): TCGETS/TCSETS/TCSETSW/TCSETSF read or replace the
// termios wholesale (no separate drain/flush queues to distinguish the
// three set variants in this simulator, so all three behave like
// TCSETS), and TIOCGPGRP/TIOCSPGRP read or reassign the controlling
// process group.
func (t *TTY) Ioctl(cmd uintptr, arg interface{}) (interface{}, error) {
	switch cmd {
	case unix.TCGETS:
		return t.Termios, nil
	case unix.TCSETS, unix.TCSETSW, unix.TCSETSF:
		tio, ok := arg.(unix.Termios)
		if !ok {
			return nil, fmt.Errorf("tty: ioctl: TCSETS* requires a Termios argument")
		}
		t.Termios = tio
		return nil, nil
	case unix.TIOCGPGRP:
		return t.Pgrp, nil
	case unix.TIOCSPGRP:
		pgrp, ok := arg.(int)
		if !ok {
			return nil, fmt.Errorf("tty: ioctl: TIOCSPGRP requires an int argument")
		}
		t.Pgrp = pgrp
		return nil, nil
	default:
		return nil, fmt.Errorf("tty: ioctl: unsupported command %#x", cmd)
	}
}
