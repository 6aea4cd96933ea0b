// Package blockio implements the block request layer (spec.md §4.4, C4):
// a per-device elevator-sorted request queue sitting in front of a driver,
// satisfying internal/bufcache.Writer.
//
// Grounded on spec.md §4.4 and original_source/kernel/blk_drv/ll_rw_blk.c
// (make_request/add_request/request[NR_REQUEST]). The driver side is
// modeled as an explicit state machine (spec.md §9's redesign note) rather
// than the original's mutable interrupt-handler function pointer.
package blockio

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-minix/kernel/internal/bufcache"
)

// Command distinguishes reads from writes; read-ahead is folded into READ
// at admission time (spec.md step 1).
type Command int

const (
	READ Command = iota
	WRITE
)

// DriverState names the disk-controller state machine spec.md §9
// prescribes in place of the original's do_hd/do_floppy function-pointer
// trick.
type DriverState int

const (
	IDLE DriverState = iota
	SEEKING
	READING
	WRITING
	RECAL
	RESET
	ERROR
)

// request is one outstanding block I/O (spec.md §3 "Request").
type request struct {
	dev     uint32
	cmd     Command
	sector  uint32 // block# * 2
	count   uint32 // sectors; always 2 for a 1 KiB block
	data    *[bufcache.BlockSize]byte
	errors  int
	done    chan error
	next    *request
}

// maxRetries bounds a request's error loop (spec.md §4.4 "per-request
// retry budget bounds error loops").
const maxRetries = 3

// Driver is the hardware-facing half of one device: spec.md describes a
// capability record {request_fn, interrupt handler, init, media-change
// query} per device (§9); Driver is that record, reduced to what a
// simulator can exercise without real hardware.
type Driver interface {
	// Perform performs req synchronously (a real driver would program
	// registers and wait for an interrupt; the simulator just acts).
	Perform(dev uint32, cmd Command, sector uint32, data *[bufcache.BlockSize]byte) error
}

// Queue is one device's elevator-sorted request queue plus a fixed pool
// shared by every device attached to this Queue's allocator.
type Queue struct {
	mu sync.Mutex

	pool        []*request // nil entries are free slots
	writeFloor  int        // spec.md step 3: writes may only use [0, writeFloor)
	cond        *sync.Cond

	byDev map[uint32]*request // head of each device's elevator-ordered list
	drv   map[uint32]Driver
	state map[uint32]DriverState
}

// NewQueue builds a request pool of size nrRequest. WRITE requests draw
// only from the lower two-thirds of the pool, so the upper third is left
// for reads.
func NewQueue(nrRequest int) *Queue {
	q := &Queue{
		pool:  make([]*request, nrRequest),
		byDev: make(map[uint32]*request),
		drv:   make(map[uint32]Driver),
		state: make(map[uint32]DriverState),
	}
	q.writeFloor = (nrRequest * 2) / 3
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Attach registers the driver for a device major number (here, simply a
// device id).
func (q *Queue) Attach(dev uint32, d Driver) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drv[dev] = d
	q.state[dev] = IDLE
}

// order is the elevator comparison key: (READ < WRITE, device, sector).
// Request a "goes before" request b when order(a) < order(b).
func order(r *request) [3]uint32 {
	cmdRank := uint32(0)
	if r.cmd == WRITE {
		cmdRank = 1
	}
	return [3]uint32{cmdRank, r.dev, r.sector}
}

func less(a, b *request) bool {
	oa, ob := order(a), order(b)
	return oa[0] < ob[0] || (oa[0] == ob[0] && oa[1] < ob[1]) || (oa[0] == ob[0] && oa[1] == ob[1] && oa[2] < ob[2])
}

// allocSlot finds a free pool index honouring the write-floor reservation;
// returns -1 if none is available.
func (q *Queue) allocSlot(cmd Command) int {
	lo, hi := 0, len(q.pool)
	if cmd == WRITE {
		hi = q.writeFloor
	}
	for i := lo; i < hi; i++ {
		if q.pool[i] == nil {
			return i
		}
	}
	return -1
}

// ReadBlock / WriteBlock implement bufcache.Writer: issue one synchronous
// request for a single 1 KiB block (2 sectors).
func (q *Queue) ReadBlock(dev, block uint32, buf *[bufcache.BlockSize]byte) error {
	return q.makeRequest(dev, READ, block, buf)
}

func (q *Queue) WriteBlock(dev, block uint32, buf *[bufcache.BlockSize]byte) error {
	return q.makeRequest(dev, WRITE, block, buf)
}

// makeRequest implements spec.md §4.4 make_request: allocate a slot
// (sleeping on the pool if none is free), fill it, hand it to add_request,
// and wait for completion.
func (q *Queue) makeRequest(dev uint32, cmd Command, block uint32, data *[bufcache.BlockSize]byte) error {
	q.mu.Lock()
	var idx int
	for {
		idx = q.allocSlot(cmd)
		if idx >= 0 {
			break
		}
		q.cond.Wait()
	}
	req := &request{
		dev:    dev,
		cmd:    cmd,
		sector: block * 2,
		count:  2,
		data:   data,
		done:   make(chan error, 1),
	}
	q.pool[idx] = req
	q.addRequest(dev, req)
	q.mu.Unlock()

	err := <-req.done

	q.mu.Lock()
	q.pool[idx] = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	return err
}

// addRequest inserts req into dev's elevator-ordered list; if the list was
// empty, it also runs the driver inline (a real kernel "kicks" the driver
// via an interrupt; the simulator just executes synchronously and resumes
// the queue head on each completion, preserving per-device FIFO-through-
// elevator ordering). Caller holds q.mu.
func (q *Queue) addRequest(dev uint32, req *request) {
	head := q.byDev[dev]
	if head == nil {
		q.byDev[dev] = req
		q.runQueue(dev)
		return
	}

	// A non-nil head is the request runQueue is performing right now, so
	// new requests are always placed after it.
	cur := head
	for cur.next != nil && !less(req, cur.next) {
		cur = cur.next
	}
	req.next = cur.next
	cur.next = req
}

// runQueue drains dev's queue head-first, performing each request via its
// driver and feeding the result back through end_request. Caller holds
// q.mu; unlocks around the actual I/O so other devices/requests can
// proceed concurrently, matching "the block layer delivers completions in
// insertion order per device" (spec.md §5) without serializing unrelated
// devices.
func (q *Queue) runQueue(dev uint32) {
	for {
		req := q.byDev[dev]
		if req == nil {
			return
		}
		drv := q.drv[dev]
		q.state[dev] = stateFor(req.cmd)
		q.mu.Unlock()

		var err error
		if drv == nil {
			err = fmt.Errorf("blockio: no driver attached for device %d", dev)
		} else {
			err = q.runWithRetry(dev, drv, req)
		}

		q.mu.Lock()
		q.state[dev] = IDLE
		q.byDev[dev] = req.next
		req.done <- err
	}
}

func stateFor(cmd Command) DriverState {
	if cmd == WRITE {
		return WRITING
	}
	return READING
}

func (q *Queue) runWithRetry(dev uint32, drv Driver, req *request) error {
	var err error
	for req.errors <= maxRetries {
		err = drv.Perform(dev, req.cmd, req.sector, req.data)
		if err == nil {
			return nil
		}
		req.errors++
	}
	q.mu.Lock()
	q.state[dev] = ERROR
	q.mu.Unlock()
	return err
}

// State reports a device's current driver state, for tests and diagnostics.
func (q *Queue) State(dev uint32) DriverState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state[dev]
}

// sortedByElevatorOrder exposes the elevator order of a device's pending
// queue without racing; test-only helper kept here (not _test.go) because
// runQueue drains synchronously and there is rarely anything left to
// observe once makeRequest returns, so tests build the list directly via
// order/less instead. Present for documentation of the intended ordering
// law: ordering a set of requests by (command, device, sector) must match
// what the elevator would have produced one at a time.
func sortedByElevatorOrder(reqs []*request) []*request {
	out := append([]*request(nil), reqs...)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
