// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import (
	"math/bits"
	"runtime"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// pad is cache-line padding, keeping hot atomic fields on separate cache
// lines to avoid false sharing between producers and the dispatcher.
type pad [64]byte

// activationRecord is what a producer posts on the 0->1 transition of a
// class's inner queue. It is never executed inline by the producer — only
// the dispatcher calls activate.
type activationRecord struct {
	cls    *class
	length int
}

// activationQueue is a bounded multi-producer single-consumer ring
// specialized to activationRecord. It implements the FAA/SCQ algorithm,
// adapted from a generic Queue[T] library type into a single concrete
// type dedicated to this one call site: a scheduler's per-executor
// activation queue, where any producer goroutine assigned that executor
// pushes and only the dispatcher goroutine pops.
type activationQueue struct {
	_        pad
	head     atomix.Uint64 // consumer index, written only by the dispatcher
	_        pad
	tail     atomix.Uint64 // producer index, FAA
	_        pad
	draining atomix.Bool
	_        pad
	buffer   []activationSlot
	capacity uint64
	size     uint64
	mask     uint64
}

type activationSlot struct {
	cycle atomix.Uint64
	rec   activationRecord
}

func newActivationQueue(capacity int) *activationQueue {
	n := uint64(roundToPow2(capacity))
	size := n * 2
	q := &activationQueue{
		buffer:   make([]activationSlot, size),
		capacity: n,
		size:     size,
		mask:     size - 1,
	}
	for i := uint64(0); i < size; i++ {
		q.buffer[i].cycle.StoreRelaxed(i / n)
	}
	return q
}

// push posts rec onto the queue (multiple producers safe). Returns
// ErrWouldBlock if the queue is full — the caller surfaces this as
// KindActivationOOM: the class is left un-activated and its next enqueue
// retries the activation.
func (q *activationQueue) push(rec activationRecord) error {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		head := q.head.LoadRelaxed()
		if tail >= head+q.capacity {
			return ErrWouldBlock
		}

		myTail := q.tail.AddAcqRel(1) - 1
		slot := &q.buffer[myTail&q.mask]
		expectedCycle := myTail / q.capacity

		slotCycle := slot.cycle.LoadAcquire()
		if slotCycle == expectedCycle {
			slot.rec = rec
			slot.cycle.StoreRelease(expectedCycle + 1)
			return nil
		}
		if int64(slotCycle) < int64(expectedCycle) {
			return ErrWouldBlock
		}
		sw.Once()
	}
}

// pop removes and returns the oldest pending activation (dispatcher only).
func (q *activationQueue) pop() (activationRecord, bool) {
	head := q.head.LoadRelaxed()
	cycle := head / q.capacity
	slot := &q.buffer[head&q.mask]

	slotCycle := slot.cycle.LoadAcquire()
	if slotCycle != cycle+1 {
		return activationRecord{}, false
	}

	rec := slot.rec
	slot.rec = activationRecord{}
	nextEnqCycle := (head + q.size) / q.capacity
	slot.cycle.StoreRelease(nextEnqCycle)
	q.head.StoreRelaxed(head + 1)
	return rec, true
}

// roundToPow2 rounds n up to the next power of 2, minimum 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// activationQueueCapacity is the per-CPU activation queue depth. It bounds
// how many classes can transition 0->1 between two dispatcher polls before
// producers start observing KindActivationOOM.
const activationQueueCapacity = 1024

// activationCenter owns one activationQueue per logical executor (producer
// CPU) plus the shared work_bitmap summarizing which executors have
// pending activations. Go has no per-CPU runtime API, so producers are
// not mapped to the CPU they run on: Scheduler.EnqueueTo picks an
// executor slot round-robin from its executorSeq counter, and post
// reduces it modulo numExecutors.
type activationCenter struct {
	queues      []*activationQueue
	workBitmap  atomix.Uint64
	numExecutors int
}

func newActivationCenter() *activationCenter {
	n := runtime.NumCPU()
	if n > 64 {
		n = 64 // work_bitmap is a single 64-bit word
	}
	if n < 1 {
		n = 1
	}
	ac := &activationCenter{
		queues:       make([]*activationQueue, n),
		numExecutors: n,
	}
	for i := range ac.queues {
		ac.queues[i] = newActivationQueue(activationQueueCapacity)
	}
	return ac
}

// post pushes rec onto executor's queue and sets its bit in work_bitmap,
// so the record's fields are visible before the dispatcher observes the
// bit: push publishes the record with a StoreRelease of the slot cycle,
// which pop reads with LoadAcquire, and setBit's CompareAndSwapAcqRel on
// work_bitmap pairs with the dispatcher's LoadAcquire when it drains.
func (ac *activationCenter) post(executor int, rec activationRecord) error {
	q := ac.queues[executor%ac.numExecutors]
	if err := q.push(rec); err != nil {
		return err
	}
	ac.setBit(executor % ac.numExecutors)
	return nil
}

func (ac *activationCenter) setBit(i int) {
	bit := uint64(1) << uint(i)
	for {
		cur := ac.workBitmap.LoadAcquire()
		if cur&bit != 0 {
			return
		}
		if ac.workBitmap.CompareAndSwapAcqRel(cur, cur|bit) {
			return
		}
	}
}

// drainOne clears executor's work_bitmap bit and pops every activation
// currently queued there, invoking fn for each. It is called only by the
// dispatcher.
func (ac *activationCenter) drainOne(executor int, fn func(activationRecord)) {
	bit := uint64(1) << uint(executor)
	for {
		cur := ac.workBitmap.LoadAcquire()
		if cur&bit == 0 {
			break
		}
		if ac.workBitmap.CompareAndSwapAcqRel(cur, cur&^bit) {
			break
		}
	}
	for {
		rec, ok := ac.queues[executor].pop()
		if !ok {
			return
		}
		fn(rec)
	}
}

// pending reports whether any executor currently has activations queued.
func (ac *activationCenter) pending() bool {
	return ac.workBitmap.LoadAcquire() != 0
}

// drainAll drains every executor with a pending bit. Used by the dispatcher
// main loop.
func (ac *activationCenter) drainAll(fn func(activationRecord)) {
	bm := ac.workBitmap.LoadAcquire()
	for bm != 0 {
		// scan all 64 bits: with more than 32 executors the pending bit
		// may lie above a uint32 ffs. Bits at or above numExecutors are
		// never set by post/setBit.
		i := bits.TrailingZeros64(bm)
		ac.drainOne(i, fn)
		bm = ac.workBitmap.LoadAcquire()
	}
}
