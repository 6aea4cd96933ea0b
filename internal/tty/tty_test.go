package tty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type captureWriter struct {
	out []byte
}

func (c *captureWriter) WriteByte(b byte) error {
	c.out = append(c.out, b)
	return nil
}

type captureSignals struct {
	pgrp int
	mask uint32
}

func (c *captureSignals) PostToGroup(pgrp int, mask uint32) {
	c.pgrp, c.mask = pgrp, mask
}

func newConsole() (*TTY, *captureWriter, *captureSignals) {
	w := &captureWriter{}
	s := &captureSignals{}
	return New(defaultConsoleTermios(), w, s), w, s
}

func feed(t *TTY, s string) {
	for i := 0; i < len(s); i++ {
		t.PushInput(s[i])
	}
}

func TestPushInputBuildsACompleteCanonicalLine(t *testing.T) {
	tty, _, _ := newConsole()
	feed(tty, "hi\n")

	buf := make([]byte, 16)
	n, err := tty.Read(buf, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(buf[:n]))
}

func TestEraseRemovesLastCharBeforeNewline(t *testing.T) {
	tty, _, _ := newConsole()
	feed(tty, "hix")
	tty.PushInput(127) // ERASE
	tty.PushInput('\n')

	buf := make([]byte, 16)
	n, err := tty.Read(buf, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(buf[:n]))
}

func TestKillRewindsToStartOfLine(t *testing.T) {
	tty, _, _ := newConsole()
	feed(tty, "garbage")
	tty.PushInput(21) // KILL
	feed(tty, "ok\n")

	buf := make([]byte, 16)
	n, err := tty.Read(buf, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(buf[:n]))
}

func TestIntrCharPostsSigintToGroupAndIsNotBuffered(t *testing.T) {
	tty, _, sig := newConsole()
	tty.Pgrp = 42
	tty.PushInput(3) // ^C == VINTR

	assert.Equal(t, 42, sig.pgrp)
	assert.Equal(t, uint32(sigIntMask), sig.mask)

	tty.secondary.mu.Lock()
	empty := tty.secondary.empty()
	tty.secondary.mu.Unlock()
	assert.True(t, empty, "the interrupt character itself must not reach the line buffer")
}

func TestEchoWritesThroughDriver(t *testing.T) {
	tty, w, _ := newConsole()
	feed(tty, "a\n")
	assert.Equal(t, []byte{'a', 10, 13}, w.out)
}

func TestWriteCoalescesCROnlyOnceBeforeNewline(t *testing.T) {
	tty, w, _ := newConsole()
	n, err := tty.Write([]byte("a\nb"), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{'a', '\r', '\n', 'b'}, w.out)
}

func TestIoctlRoundTripsTermios(t *testing.T) {
	tty, _, _ := newConsole()
	got, err := tty.Ioctl(unix.TCGETS, nil)
	require.NoError(t, err)
	assert.Equal(t, tty.Termios, got)

	newTio := tty.Termios
	newTio.Lflag &^= unix.ECHO
	_, err = tty.Ioctl(unix.TCSETS, newTio)
	require.NoError(t, err)
	assert.False(t, tty.lflag(unix.ECHO))
}

func TestIoctlSetsAndGetsPgrp(t *testing.T) {
	tty, _, _ := newConsole()
	_, err := tty.Ioctl(unix.TIOCSPGRP, 7)
	require.NoError(t, err)
	got, err := tty.Ioctl(unix.TIOCGPGRP, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestByMinorRejectsOutOfRangeChannel(t *testing.T) {
	tb := NewTable([NumTTYs]Writer{&captureWriter{}, &captureWriter{}, &captureWriter{}}, &captureSignals{})
	assert.NotNil(t, tb.ByMinor(Console))
	assert.Nil(t, tb.ByMinor(3))
	assert.Nil(t, tb.ByMinor(-1))
}
