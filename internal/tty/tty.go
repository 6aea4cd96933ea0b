package tty

import (
	"golang.org/x/sys/unix"
)

// Writer is the device-specific backend a TTY drains its write queue
// into (the console or serial driver; spec.md scopes the actual register
// programming out as an external collaborator).
type Writer interface {
	// WriteByte is called once per drained byte, matching the original's
	// con_write/rs_write being invoked from inside tty_write's loop.
	WriteByte(c byte) error
}

// SignalPoster delivers SIGINT/SIGQUIT to every task sharing a process
// group (spec.md §4.8 tty_intr), implemented by internal/proc. Kept as an
// interface so this package never imports internal/proc.
type SignalPoster interface {
	PostToGroup(pgrp int, sigMask uint32)
}

const (
	sigIntMask  = 1 << (2 - 1) // SIGINT
	sigQuitMask = 1 << (3 - 1) // SIGQUIT
)

// TTY is one line-discipline instance: a raw read queue fed by the
// keyboard/serial interrupt handler, a write queue drained to Driver, and
// a cooked secondary queue tty_read actually reads from.
type TTY struct {
	Termios unix.Termios

	Pgrp    int
	Stopped bool

	Driver Writer
	Signal SignalPoster

	readQ     *queue
	writeQ    *queue
	secondary *queue

	crFlag bool // tty_write's static cr_flag, now per-TTY instead of global
}

// New builds a TTY with the given termios already installed (spec.md's
// tty_table static initializers become explicit construction here).
func New(termios unix.Termios, driver Writer, signal SignalPoster) *TTY {
	return &TTY{
		Termios:   termios,
		Driver:    driver,
		Signal:    signal,
		readQ:     newQueue(),
		writeQ:    newQueue(),
		secondary: newQueue(),
	}
}

// PushInput feeds one raw byte into the read queue, as the keyboard/serial
// interrupt handler would, then cooks it into the secondary queue.
func (t *TTY) PushInput(c byte) {
	t.readQ.mu.Lock()
	if !t.readQ.full() {
		t.readQ.putLocked(c)
	}
	t.readQ.mu.Unlock()
	t.readQ.broadcast()
	t.CopyToCooked()
}

func (t *TTY) lflag(bit uint32) bool { return t.Termios.Lflag&bit != 0 }
func (t *TTY) iflag(bit uint32) bool { return t.Termios.Iflag&bit != 0 }
func (t *TTY) oflag(bit uint32) bool { return t.Termios.Oflag&bit != 0 }

func (t *TTY) cc(index int) byte { return t.Termios.Cc[index] }
