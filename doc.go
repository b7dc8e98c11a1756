// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package qfqrl implements the core of a Quick Fair Queueing scheduler with
// a rate-limited, single-threaded dispatch model (QFQ-RL).
//
// QFQ-RL multiplexes many competing flow-classes onto one output link,
// giving each class a share of bandwidth proportional to its configured
// weight, with O(1) per-packet dispatch cost. It is a Go-native port of the
// classical QFQ algorithm (Checconi, Rizzo, Valente) built around a single
// dedicated dispatcher goroutine rather than the usual "classify, enqueue,
// inline dequeue" model: producers only ever enqueue, and a pinned
// dispatcher goroutine is the sole reader and writer of scheduling state.
//
// # Architecture
//
// Three pieces do the real work:
//
//   - group.go / bitmap.go: a fixed grid of 20 groups, 32 slots each, that
//     lets the dispatcher find the next class to serve with a handful of
//     bit-scan operations instead of a heap.
//   - vtime.go: the system virtual time V, advanced from wall-clock deltas
//     rather than per packet, plus the eligibility promotion and unblock
//     cascade rules that keep the four ER/IR/EB/IB bitmaps consistent.
//   - dispatcher.go / activation.go: the pinned dispatcher loop and the
//     per-CPU activation queues that feed it.
//
// # Usage
//
//	sched := qfqrl.New(qfqrl.Config{
//	    SpinCPU:       2,
//	    LinkSpeedMbps: 9800,
//	}, transmitter)
//	defer sched.Close()
//
//	queue := innerqueue.New(1024)
//	if err := sched.CreateClass(classID, qfqrl.ClassConfig{Weight: 2, Lmax: 1514}, queue); err != nil {
//	    return err
//	}
//
//	if err := sched.EnqueueTo(classID, packet); err != nil {
//	    return err
//	}
//
// The dispatcher goroutine is started by New and runs until Close is
// called; it drives dequeue and transmission on its own, so callers never
// call a dequeue method directly.
package qfqrl
