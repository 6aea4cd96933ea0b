package tty

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrInterrupted is returned when a caller-pending signal aborts a
// waiting read/write with nothing transferred (spec.md §4.8 "-EINTR").
var ErrInterrupted = errors.New("tty: interrupted")

// Read implements spec.md §4.8 tty_read: canonical mode blocks until the
// secondary queue holds a complete line or EOF, then returns those
// bytes; non-canonical mode honours VMIN, returning once at least VMIN
// bytes are buffered (VTIME's inter-byte timer is not modeled: it needs
// the task's alarm mechanism, which lives in internal/proc and would
// create an import cycle from this package's direction — documented
// simplification, not a silent drop).
func (t *TTY) Read(buf []byte, hasSignal func() bool) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	canon := t.lflag(unix.ICANON)
	minimum := int(t.cc(unix.VMIN))
	if !canon && minimum > len(buf) {
		minimum = len(buf)
	}

	n := 0
	for n < len(buf) {
		if hasSignal != nil && hasSignal() {
			break
		}
		t.secondary.mu.Lock()
		empty := t.secondary.empty()
		t.secondary.mu.Unlock()
		if empty {
			if !t.secondary.waitNotEmpty(hasSignal) {
				break
			}
			continue
		}

		for n < len(buf) {
			t.secondary.mu.Lock()
			if t.secondary.empty() {
				t.secondary.mu.Unlock()
				break
			}
			c := t.secondary.getLocked()
			if c == t.cc(unix.VEOF) || c == 10 {
				t.secondary.data--
			}
			t.secondary.mu.Unlock()

			if c == t.cc(unix.VEOF) && canon {
				return n, nil
			}
			buf[n] = c
			n++
		}

		if canon {
			if n > 0 {
				break
			}
		} else if n >= minimum {
			break
		}
	}

	if hasSignal != nil && hasSignal() && n == 0 {
		return 0, ErrInterrupted
	}
	return n, nil
}

// Write implements spec.md §4.8 tty_write: OPOST translation (CR/NL
// conversion, ONLCR's single coalesced CR before an NL via cr_flag,
// OLCUC), blocking on a full write queue, draining to Driver.
func (t *TTY) Write(buf []byte, hasSignal func() bool) (int, error) {
	n := 0
	for n < len(buf) {
		if !t.writeQ.waitNotFull(hasSignal) {
			break
		}
		if hasSignal != nil && hasSignal() {
			break
		}

		for n < len(buf) {
			t.writeQ.mu.Lock()
			if t.writeQ.full() {
				t.writeQ.mu.Unlock()
				break
			}
			c := buf[n]
			if t.oflag(unix.OPOST) {
				if c == '\r' && t.oflag(unix.OCRNL) {
					c = '\n'
				} else if c == '\n' && t.oflag(unix.ONLRET) {
					c = '\r'
				}
				if c == '\n' && !t.crFlag && t.oflag(unix.ONLCR) {
					t.crFlag = true
					t.writeQ.putLocked('\r')
					t.writeQ.mu.Unlock()
					continue
				}
				if t.oflag(unix.OLCUC) && c >= 'a' && c <= 'z' {
					c -= 'a' - 'A'
				}
			}
			t.crFlag = false
			t.writeQ.putLocked(c)
			t.writeQ.mu.Unlock()
			n++
		}

		t.drainWriteQ()
	}
	return n, nil
}
