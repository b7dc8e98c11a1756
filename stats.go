// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import (
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/joeycumines/go-catrate"
)

// classRateWindows are the sliding windows tracked for a class's throughput
// budget. One second for an instantaneous view, ten for smoothing out
// bursty traffic.
var classRateWindows = map[time.Duration]int{
	time.Second:     1 << 20,
	10 * time.Second: 1 << 24,
}

// rateWindow computes a packets/sec and bytes/sec figure over a fixed
// window, resetting once the window elapses. catrate's Limiter has no
// accessor for a computed rate — Allow only ever answers "is this category
// under budget right now" — so the numeric rates Snapshot reports come
// from here, driven by the same counters recordEnqueue already maintains.
type rateWindow struct {
	window time.Duration

	mu          sync.Mutex
	start       time.Time
	bytes       uint64
	pkts        uint64
	bytesPerSec float64
	pktsPerSec  float64
}

func (w *rateWindow) record(now time.Time, length int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.start.IsZero() {
		w.start = now
	}
	if elapsed := now.Sub(w.start); elapsed >= w.window {
		secs := elapsed.Seconds()
		w.bytesPerSec = float64(w.bytes) / secs
		w.pktsPerSec = float64(w.pkts) / secs
		w.start = now
		w.bytes, w.pkts = 0, 0
	}
	w.bytes += uint64(length)
	w.pkts++
}

func (w *rateWindow) rates() (bytesPerSec, pktsPerSec float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bytesPerSec, w.pktsPerSec
}

// ClassStats holds the counters and rate tracking for one class. Counters
// are atomix-backed for lock-free concurrent access from producers; budget
// is catrate's own concurrent Limiter, used here to flag enqueues that
// exceed the configured per-class windows (overBudget counts the refusals
// Allow reports); rate1s/rate10s are this package's own windowed counters,
// since catrate cannot report the rate itself.
type ClassStats struct {
	packetsEnqueued atomix.Uint64
	bytesEnqueued   atomix.Uint64
	packetsServed   atomix.Uint64
	bytesServed     atomix.Uint64
	drops           [numDropKinds]atomix.Uint64

	budget     *catrate.Limiter
	overBudget atomix.Uint64

	rate1s  *rateWindow
	rate10s *rateWindow
}

// numDropKinds bounds the per-kind drop counters. Only classify-drop and
// enqueue-drop are ever attributed to a class; the rest are scheduler-wide.
const numDropKinds = 2

const (
	dropClassify = iota
	dropEnqueue
)

func newClassStats() ClassStats {
	return ClassStats{
		budget:  catrate.NewLimiter(classRateWindows),
		rate1s:  &rateWindow{window: time.Second},
		rate10s: &rateWindow{window: 10 * time.Second},
	}
}

func (s *ClassStats) recordEnqueue(length int) {
	s.packetsEnqueued.AddAcqRel(1)
	s.bytesEnqueued.AddAcqRel(uint64(length))

	if _, ok := s.budget.Allow(struct{}{}); !ok {
		s.overBudget.AddAcqRel(1)
	}

	now := time.Now()
	s.rate1s.record(now, length)
	s.rate10s.record(now, length)
}

func (s *ClassStats) recordServed(length int) {
	s.packetsServed.AddAcqRel(1)
	s.bytesServed.AddAcqRel(uint64(length))
}

func (s *ClassStats) recordDrop(kind int) {
	if kind < 0 || kind >= numDropKinds {
		return
	}
	s.drops[kind].AddAcqRel(1)
}

// Snapshot is a point-in-time copy of a class's counters, safe to read
// without racing the dispatcher.
type Snapshot struct {
	PacketsEnqueued uint64
	BytesEnqueued   uint64
	PacketsServed   uint64
	BytesServed     uint64
	ClassifyDrops   uint64
	EnqueueDrops    uint64
	QueueLen        int

	// BytesPerSec1s/PacketsPerSec1s and the 10s counterparts are the
	// enqueue rate over the last completed 1s/10s window; both read 0
	// until a full window has elapsed.
	BytesPerSec1s    float64
	PacketsPerSec1s  float64
	BytesPerSec10s   float64
	PacketsPerSec10s float64
	// OverBudget counts enqueues catrate's Limiter refused for exceeding
	// one of classRateWindows.
	OverBudget uint64
}

// Snapshot returns a consistent-enough point-in-time view of c's counters.
// Individual fields may be read a few nanoseconds apart under concurrent
// traffic; this is a diagnostics surface, not a transactional one.
func (c *class) Snapshot() Snapshot {
	c.queueMu.Lock()
	qlen := c.queue.Len()
	c.queueMu.Unlock()

	bps1, pps1 := c.stats.rate1s.rates()
	bps10, pps10 := c.stats.rate10s.rates()

	return Snapshot{
		PacketsEnqueued:  c.stats.packetsEnqueued.LoadAcquire(),
		BytesEnqueued:    c.stats.bytesEnqueued.LoadAcquire(),
		PacketsServed:    c.stats.packetsServed.LoadAcquire(),
		BytesServed:      c.stats.bytesServed.LoadAcquire(),
		ClassifyDrops:    c.stats.drops[dropClassify].LoadAcquire(),
		EnqueueDrops:     c.stats.drops[dropEnqueue].LoadAcquire(),
		QueueLen:         qlen,
		BytesPerSec1s:    bps1,
		PacketsPerSec1s:  pps1,
		BytesPerSec10s:   bps10,
		PacketsPerSec10s: pps10,
		OverBudget:       c.stats.overBudget.LoadAcquire(),
	}
}

// SchedulerStats holds the scheduler-wide counters: wsum_active, total
// activations and total drops by kind, none of which belong to any single
// class.
type SchedulerStats struct {
	wsumActive      atomix.Uint64
	activations     atomix.Uint64
	activationDrops atomix.Uint64
	unknownClass    atomix.Uint64
}

func (s *SchedulerStats) recordActivation() {
	s.activations.AddAcqRel(1)
}

func (s *SchedulerStats) recordActivationDrop() {
	s.activationDrops.AddAcqRel(1)
}

func (s *SchedulerStats) recordUnknownClass() {
	s.unknownClass.AddAcqRel(1)
}

// SchedulerSnapshot mirrors Snapshot for scheduler-wide counters.
type SchedulerSnapshot struct {
	WsumActive      uint64
	Activations     uint64
	ActivationDrops uint64
	UnknownClass    uint64
}

// Stats returns the scheduler-wide counters.
func (s *Scheduler) Stats() SchedulerSnapshot {
	return SchedulerSnapshot{
		WsumActive:      s.stats.wsumActive.LoadAcquire(),
		Activations:     s.stats.activations.LoadAcquire(),
		ActivationDrops: s.stats.activationDrops.LoadAcquire(),
		UnknownClass:    s.stats.unknownClass.LoadAcquire(),
	}
}
