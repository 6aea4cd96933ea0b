// Package tty implements the line discipline (spec.md §4.8, C8): ring
// queues, termios-driven cooking of raw input into canonical lines, and
// the read/write syscall bodies that sit on top of them.
//
// Grounded on spec.md §4.8 and original_source/kernel/chr_drv/{tty_io,
// tty_ioctl}.c. Termios itself is golang.org/x/sys/unix.Termios rather
// than a hand-rolled struct, reusing the real ICANON/ISIG/ECHO/OPOST/…
// bit constants and VINTR/VERASE/… control-character indices.
package tty

import "sync"

// queueSize mirrors TTY_BUF_SIZE (original_source/include/linux/tty.h).
const queueSize = 1024

// queue is a byte ring buffer with a blocking Get/Put pair, shared by the
// raw read queue, the write queue and the cooked secondary queue. data
// additionally counts complete lines buffered in the secondary queue
// (spec.md §4.8 "NL and EOF are counted... so the reader knows how many
// complete lines exist").
type queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf        [queueSize]byte
	head, tail int
	count      int
	data       int // complete-line count, meaningful only for secondary
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) empty() bool { return q.count == 0 }
func (q *queue) full() bool  { return q.count == queueSize }
func (q *queue) left() int   { return queueSize - q.count }

// putLocked appends c, overwriting nothing: callers must have already
// checked full() or be willing to block via waitNotFull.
func (q *queue) putLocked(c byte) {
	q.buf[q.tail] = c
	q.tail = (q.tail + 1) % queueSize
	q.count++
}

func (q *queue) getLocked() byte {
	c := q.buf[q.head]
	q.head = (q.head + 1) % queueSize
	q.count--
	return c
}

// lastLocked returns the most recently buffered byte; callers must have
// already checked !empty().
func (q *queue) lastLocked() byte {
	idx := (q.tail - 1 + queueSize) % queueSize
	return q.buf[idx]
}

func (q *queue) decHeadLocked() {
	q.tail = (q.tail - 1 + queueSize) % queueSize
	q.count--
}

// waitNotEmpty blocks until the queue holds at least one byte or abort
// returns true (a pending, deliverable signal — spec.md's interruptible
// sleep). Returns false if aborted before data arrived.
func (q *queue) waitNotEmpty(abort func() bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count == 0 {
		if abort != nil && abort() {
			return false
		}
		q.cond.Wait()
	}
	return true
}

func (q *queue) waitNotFull(abort func() bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count == queueSize {
		if abort != nil && abort() {
			return false
		}
		q.cond.Wait()
	}
	return true
}

func (q *queue) broadcast() { q.cond.Broadcast() }
