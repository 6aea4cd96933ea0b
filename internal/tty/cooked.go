package tty

import (
	"unicode"

	"golang.org/x/sys/unix"
)

const eraseEcho = 127 // DEL, echoed for both ERASE and KILL deletions

// CopyToCooked drains the raw read queue into the secondary queue,
// applying the iflag/lflag transforms (spec.md §4.8 copy_to_cooked):
// CR/NL conversion, case folding, canonical-mode ERASE/KILL editing,
// ISIG interrupt characters, and echo.
func (t *TTY) CopyToCooked() {
	for {
		t.readQ.mu.Lock()
		if t.readQ.empty() || t.secondary.full() {
			t.readQ.mu.Unlock()
			break
		}
		c := t.readQ.getLocked()
		t.readQ.mu.Unlock()

		if c == 13 {
			if t.iflag(unix.ICRNL) {
				c = 10
			} else if t.iflag(unix.IGNCR) {
				continue
			}
		} else if c == 10 && t.iflag(unix.INLCR) {
			c = 13
		}

		if t.iflag(unix.IUCLC) {
			c = byte(unicode.ToLower(rune(c)))
		}

		if t.lflag(unix.ICANON) {
			if c == t.cc(unix.VKILL) {
				t.killLine()
				continue
			}
			if c == t.cc(unix.VERASE) {
				t.eraseOne()
				continue
			}
			if c == t.cc(unix.VSTOP) {
				t.Stopped = true
				continue
			}
			if c == t.cc(unix.VSTART) {
				t.Stopped = false
				continue
			}
		}

		if t.lflag(unix.ISIG) {
			if c == t.cc(unix.VINTR) {
				t.postSignal(sigIntMask)
				continue
			}
			if c == t.cc(unix.VQUIT) {
				t.postSignal(sigQuitMask)
				continue
			}
		}

		t.secondary.mu.Lock()
		if c == 10 || c == t.cc(unix.VEOF) {
			t.secondary.data++
		}
		t.secondary.mu.Unlock()

		if t.lflag(unix.ECHO) {
			t.echo(c)
		}

		t.secondary.mu.Lock()
		t.secondary.putLocked(c)
		t.secondary.mu.Unlock()
	}
	t.secondary.broadcast()
}

// killLine implements KILL: rewind the secondary queue back to the last
// NL or EOF, echoing a backspace-erase for every char removed.
func (t *TTY) killLine() {
	for {
		t.secondary.mu.Lock()
		if t.secondary.empty() {
			t.secondary.mu.Unlock()
			return
		}
		c := t.secondary.lastLocked()
		if c == 10 || c == t.cc(unix.VEOF) {
			t.secondary.mu.Unlock()
			return
		}
		t.secondary.decHeadLocked()
		t.secondary.mu.Unlock()
		t.echoErase(c)
	}
}

// eraseOne implements ERASE: drop the last secondary char, unless the
// line is already empty or ends at NL/EOF.
func (t *TTY) eraseOne() {
	t.secondary.mu.Lock()
	if t.secondary.empty() {
		t.secondary.mu.Unlock()
		return
	}
	c := t.secondary.lastLocked()
	if c == 10 || c == t.cc(unix.VEOF) {
		t.secondary.mu.Unlock()
		return
	}
	t.secondary.decHeadLocked()
	t.secondary.mu.Unlock()
	t.echoErase(c)
}

func (t *TTY) echoErase(c byte) {
	if !t.lflag(unix.ECHO) {
		return
	}
	if c < 32 {
		t.rawEcho(eraseEcho)
	}
	t.rawEcho(eraseEcho)
	t.drainWriteQ()
}

func (t *TTY) echo(c byte) {
	switch {
	case c == 10:
		t.rawEcho(10)
		t.rawEcho(13)
	case c < 32:
		if t.lflag(unix.ECHOCTL) {
			t.rawEcho('^')
			t.rawEcho(c + 64)
		}
	default:
		t.rawEcho(c)
	}
	t.drainWriteQ()
}

func (t *TTY) rawEcho(c byte) {
	t.writeQ.mu.Lock()
	if !t.writeQ.full() {
		t.writeQ.putLocked(c)
	}
	t.writeQ.mu.Unlock()
}

func (t *TTY) drainWriteQ() {
	if t.Driver == nil {
		return
	}
	for {
		t.writeQ.mu.Lock()
		if t.writeQ.empty() {
			t.writeQ.mu.Unlock()
			return
		}
		c := t.writeQ.getLocked()
		t.writeQ.mu.Unlock()
		t.Driver.WriteByte(c)
	}
}

func (t *TTY) postSignal(mask uint32) {
	if t.Signal == nil || t.Pgrp <= 0 {
		return
	}
	t.Signal.PostToGroup(t.Pgrp, mask)
}
