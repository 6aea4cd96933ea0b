package syscall

import "golang.org/x/sys/unix"

// Ioctl implements the tty termios/pgrp subset of ioctl (spec.md
// supplemented feature, kernel/chr_drv/tty_ioctl.c). This simulator has
// no /dev namespace mapping a generic fd to a tty's minor number (out of
// scope: spec.md never models device-special-file opens), so callers
// name the tty channel directly rather than going through a descriptor.
func (d *Dispatcher) Ioctl(pid int, channel int, cmd uintptr, arg interface{}) (interface{}, error) {
	if _, err := d.process(pid); err != nil {
		return nil, err
	}
	t := d.TTY.ByMinor(channel)
	if t == nil {
		return nil, errno(unix.ENOTTY)
	}
	result, err := t.Ioctl(cmd, arg)
	if err != nil {
		return nil, errno(errInvalSentinel)
	}
	return result, nil
}
