// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package innerqueue provides a concrete, bounded per-class FIFO satisfying
// the host collaborator contract that code.hybscloud.com/qfqrl's core
// assumes but deliberately does not implement: a real kernel host would
// plug in its own classifier-bound queueing discipline
// instance here. This one is a plain ring buffer, good enough to exercise
// and test the scheduler core standalone.
package innerqueue

import (
	"fmt"

	"code.hybscloud.com/qfqrl"
)

// ErrFull is returned by Enqueue when the queue is at capacity. It wraps
// qfqrl.ErrEnqueueRefused.
var ErrFull = fmt.Errorf("innerqueue: full: %w", qfqrl.ErrEnqueueRefused)

// FIFO is a bounded, mutex-free (single accessor at a time, serialized by
// the caller's own lock — see qfqrl's class.queueMu) packet ring buffer.
type FIFO struct {
	buf        []*qfqrl.Packet
	head, tail int
	count      int
}

// New creates a FIFO with room for capacity packets.
func New(capacity int) *FIFO {
	if capacity < 1 {
		capacity = 1
	}
	return &FIFO{buf: make([]*qfqrl.Packet, capacity)}
}

// Enqueue appends pkt, returning ErrFull once capacity is reached.
func (f *FIFO) Enqueue(pkt *qfqrl.Packet) error {
	if f.count == len(f.buf) {
		return ErrFull
	}
	f.buf[f.tail] = pkt
	f.tail = (f.tail + 1) % len(f.buf)
	f.count++
	return nil
}

// PeekLen returns the length of the head packet, or 0 if empty.
func (f *FIFO) PeekLen() int {
	if f.count == 0 {
		return 0
	}
	return f.buf[f.head].Len
}

// Dequeue removes and returns the head packet.
func (f *FIFO) Dequeue() (*qfqrl.Packet, bool) {
	if f.count == 0 {
		return nil, false
	}
	pkt := f.buf[f.head]
	f.buf[f.head] = nil
	f.head = (f.head + 1) % len(f.buf)
	f.count--
	return pkt, true
}

// Len returns the current number of queued packets.
func (f *FIFO) Len() int {
	return f.count
}
