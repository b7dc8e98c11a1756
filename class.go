// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import (
	"errors"
	"sync"

	"code.hybscloud.com/atomix"
)

// ClassID is an opaque identifier for a flow-class, unique within a
// Scheduler. Hosts typically derive it from a classifier handle (e.g. a tc
// classid); the core never interprets its bits.
type ClassID uint32

// Packet is the minimal unit the core schedules. Real deployments will
// usually carry a reference to a host-owned buffer in Data; the core only
// ever looks at Len.
type Packet struct {
	ClassID  ClassID
	Priority uint32
	Len      int
	Data     []byte
}

// InnerQueue is the per-class FIFO the core assumes but does not implement
// itself: it is an external collaborator the core depends on. See
// package innerqueue for a concrete implementation usable standalone or in
// tests.
type InnerQueue interface {
	// Enqueue appends pkt. Returns ErrEnqueueRefused (or an error wrapping
	// it) if the queue is at capacity or otherwise refuses the packet
	// (KindEnqueueDrop).
	Enqueue(pkt *Packet) error
	// PeekLen returns the length of the head packet, or 0 if empty.
	PeekLen() int
	// Dequeue removes and returns the head packet, or (nil, false) if empty.
	Dequeue() (*Packet, bool)
	// Len returns the current queue length in packets.
	Len() int
}

// ErrEnqueueRefused is returned by an InnerQueue implementation that
// refuses a packet (e.g. because it is full).
var ErrEnqueueRefused = errors.New("qfqrl: inner queue refused packet")

// class represents one flow-class's scheduling state. Every field below,
// except the queueMu-guarded queue, the atomic disabledFlag and the atomic
// counters in stats, is owned exclusively by the dispatcher goroutine.
type class struct {
	id ClassID

	weight uint32
	invW   uint64 // ONE_FP / weight, or invWDisabled
	lmax   uint32

	s, f uint64 // virtual start/finish of the head packet

	grpIndex int // fixed while (weight, lmax) are unchanged
	active   bool

	queueMu sync.Mutex
	queue   InnerQueue

	filterCnt int32
	refCount  int32

	// disabledFlag mirrors invW == invWDisabled for producer goroutines:
	// Enqueue must decide whether to post an activation without touching
	// any dispatcher-owned field directly, so the dispatcher publishes
	// this bit every time it changes invW.
	disabledFlag atomix.Bool

	stats ClassStats
}

func newClass(id ClassID, weight uint32, lmax uint32, queue InnerQueue) *class {
	c := &class{
		id:    id,
		queue: queue,
		stats: newClassStats(),
	}
	c.setWeight(weight, lmax)
	return c
}

// setWeight recomputes invW/grpIndex/disabledFlag together. Called only
// from the dispatcher goroutine (at creation time, before the class is
// published, or during an Update command).
func (c *class) setWeight(weight, lmax uint32) {
	c.weight = weight
	c.lmax = lmax
	c.invW = invWFor(weight)
	c.grpIndex = calcIndex(c.invW, uint64(lmax))
	c.disabledFlag.StoreRelease(c.invW == invWDisabled)
}

// disabledForProducer is the producer-safe counterpart to disabled(): an
// acquire load of the published flag rather than a direct read of invW.
func (c *class) disabledForProducer() bool {
	return c.disabledFlag.LoadAcquire()
}

// invWFor converts a weight into its fixed-point reciprocal, with the
// sentinel for weight==0 (disabled).
func invWFor(weight uint32) uint64 {
	if weight == 0 {
		return invWDisabled
	}
	return oneFP / uint64(weight)
}

// disabled reports whether the class's weight has been set to zero.
func (c *class) disabled() bool {
	return c.invW == invWDisabled
}

// calcIndex implements calc_index(inv_w, lmax): it
// maps a class's (inv_w, lmax) pair to the group whose slot granularity
// bounds its L/w to at most 32 slots' worth of drift.
func calcIndex(invW uint64, lmax uint64) int {
	if invW == invWDisabled {
		return 0
	}
	slotSize := lmax * invW
	sizeMap := slotSize >> minSlotShift
	var index int
	if sizeMap == 0 {
		index = 0
	} else {
		index = fls(sizeMap)
		if slotSize == uint64(1)<<uint(index+minSlotShift-1) {
			// exact power-of-two boundary: fls over-counts by one slot
			index--
		}
	}
	if index < 0 {
		index = 0
	}
	if index > maxIndex {
		index = maxIndex
	}
	return index
}
