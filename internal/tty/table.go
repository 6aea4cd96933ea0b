package tty

import "golang.org/x/sys/unix"

// Minor device numbers (original_source/kernel/chr_drv/tty_io.c's
// tty_table[0..2]): console, serial port 1, serial port 2.
const (
	Console = 0
	Serial1 = 1
	Serial2 = 2

	NumTTYs = 3
)

// defaultConsoleTermios matches tty_table[0]'s static initializer:
// ICRNL in, OPOST|ONLCR out, ISIG|ICANON|ECHO|ECHOCTL|ECHOKE local.
func defaultConsoleTermios() unix.Termios {
	tio := unix.Termios{
		Iflag: unix.ICRNL,
		Oflag: unix.OPOST | unix.ONLCR,
		Lflag: unix.ISIG | unix.ICANON | unix.ECHO | unix.ECHOCTL | unix.ECHOKE,
	}
	tio.Cc[unix.VINTR] = 3   // ^C
	tio.Cc[unix.VQUIT] = 28  // ^\
	tio.Cc[unix.VERASE] = 127
	tio.Cc[unix.VKILL] = 21  // ^U
	tio.Cc[unix.VEOF] = 4    // ^D
	tio.Cc[unix.VMIN] = 1
	tio.Cc[unix.VTIME] = 0
	tio.Cc[unix.VSTART] = 17 // ^Q
	tio.Cc[unix.VSTOP] = 19  // ^S
	return tio
}

// defaultSerialTermios matches tty_table[1..2]: raw, no local processing.
func defaultSerialTermios() unix.Termios {
	return unix.Termios{}
}

// Table owns every line-discipline instance the simulator exposes.
type Table struct {
	TTYs [NumTTYs]*TTY
}

// NewTable builds the three static TTYs tty_init installs, wiring each
// to its driver and to signal for tty_intr.
func NewTable(drivers [NumTTYs]Writer, signal SignalPoster) *Table {
	tb := &Table{}
	tb.TTYs[Console] = New(defaultConsoleTermios(), drivers[Console], signal)
	tb.TTYs[Serial1] = New(defaultSerialTermios(), drivers[Serial1], signal)
	tb.TTYs[Serial2] = New(defaultSerialTermios(), drivers[Serial2], signal)
	return tb
}

// ByMinor returns the TTY for a channel number, or nil if out of range
// (spec.md §4.8's tty_read/tty_write "channel > 2" check).
func (tb *Table) ByMinor(channel int) *TTY {
	if channel < 0 || channel >= NumTTYs {
		return nil
	}
	return tb.TTYs[channel]
}
