// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import (
	"runtime"
	"sync"

	"code.hybscloud.com/atomix"
)

// Scheduler is the host-facing entry point: a QFQ-RL packet scheduler
// bound to one Transmitter. It owns a single dispatcher goroutine and
// exposes the host queueing-discipline contract — enqueue, a no-op
// dequeue, peek, drop, class lifecycle — as ordinary Go methods instead
// of C callback slots.
type Scheduler struct {
	d     *dispatcher
	stats SchedulerStats

	mu      sync.RWMutex // guards wsum and the classes map, not scheduling state
	wsum    uint64
	classes map[ClassID]*class

	executorSeq atomix.Uint64 // round-robins producers across activation queues
}

// New creates a Scheduler bound to tx and starts its dispatcher goroutine.
// Callers must eventually call Close.
func New(cfg Config, tx Transmitter) *Scheduler {
	s := &Scheduler{
		classes: make(map[ClassID]*class),
	}
	s.d = newDispatcher(cfg, tx, &s.stats)
	go s.d.run()
	return s
}

// Close stops the dispatcher goroutine and waits for it to exit.
func (s *Scheduler) Close() {
	s.d.stop()
}

// CreateClass admits a new flow-class. It blocks until the dispatcher has
// applied the creation, since the dispatcher is the sole mutator of
// scheduling state.
func (s *Scheduler) CreateClass(id ClassID, cc ClassConfig, queue InnerQueue) error {
	if err := cc.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.classes[id]; exists {
		s.mu.Unlock()
		return newError(KindWsumExceeded, id)
	}
	delta := uint64(cc.Weight)
	if s.wsum+delta > 2*maxWeight {
		s.mu.Unlock()
		return newError(KindWsumExceeded, id)
	}
	s.wsum += delta
	s.mu.Unlock()

	c := newClass(id, cc.Weight, cc.Lmax, queue)
	reply := make(chan error, 1)
	s.d.cmds <- command{kind: cmdCreateClass, cls: c, reply: reply}
	if err := <-reply; err != nil {
		s.mu.Lock()
		s.wsum -= delta
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.classes[id] = c
	s.mu.Unlock()
	return nil
}

// UpdateClass changes weight and/or lmax for an existing class, applying
// the same Update policy as the dispatcher's control path.
func (s *Scheduler) UpdateClass(id ClassID, cc ClassConfig) error {
	if err := cc.validate(); err != nil {
		return err
	}
	reply := make(chan error, 1)
	s.d.cmds <- command{kind: cmdUpdateClass, id: id, weight: cc.Weight, lmax: cc.Lmax, reply: reply}
	return <-reply
}

// DeleteClass removes a class, failing with KindClassBusy while its
// filter_cnt is non-zero.
func (s *Scheduler) DeleteClass(id ClassID) error {
	reply := make(chan error, 1)
	s.d.cmds <- command{kind: cmdDeleteClass, id: id, reply: reply}
	err := <-reply
	if err == nil {
		s.mu.Lock()
		delete(s.classes, id)
		s.mu.Unlock()
	}
	return err
}

// Enqueue classifies pkt, pushes it onto its class's queue, and on the
// 0->1 transition posts an activation record to the current executor's
// queue.
// Callers that have already resolved pkt's class (e.g. via a classifier's
// own connection cache) should call EnqueueTo directly instead.
func (s *Scheduler) Enqueue(pkt *Packet, classifier Classifier) error {
	id, ok := classifier.Classify(pkt)
	if !ok {
		s.stats.recordUnknownClass()
		return nil
	}
	return s.EnqueueTo(id, pkt)
}

// EnqueueTo pushes pkt directly onto classID's inner queue, bypassing
// classification. Used by hosts that have already resolved the class
// (e.g. the classifier's own connection cache) and by tests.
func (s *Scheduler) EnqueueTo(classID ClassID, pkt *Packet) error {
	s.mu.RLock()
	c, ok := s.classes[classID]
	s.mu.RUnlock()
	if !ok {
		s.stats.recordUnknownClass()
		return newError(KindUnknownClass, classID)
	}

	c.queueMu.Lock()
	wasEmpty := c.queue.PeekLen() == 0
	err := c.queue.Enqueue(pkt)
	c.queueMu.Unlock()
	if err != nil {
		c.stats.recordDrop(dropEnqueue)
		return nil
	}
	c.stats.recordEnqueue(pkt.Len)

	if wasEmpty && !c.disabledForProducer() {
		executor := int(s.executorSeq.AddAcqRel(1) % uint64(runtime.NumCPU()))
		if postErr := s.d.center.post(executor, activationRecord{cls: c, length: pkt.Len}); postErr != nil {
			s.stats.recordActivationDrop()
			logger.Warn().Uint32("class", uint32(classID)).Msg("qfqrl: activation queue full, class not activated")
			return newError(KindActivationOOM, classID)
		}
	}
	return nil
}

// Dequeue is a host-facing no-op: actual dequeue happens inside the
// dispatcher loop, which calls Transmit
// directly. This method only reports whether the scheduler currently has
// any backlog, for hosts that gate a poll loop on it.
func (s *Scheduler) Dequeue() (hasBacklog bool) {
	return s.stats.wsumActive.LoadAcquire() > 0
}

// Peek returns classID's head packet length without removing it, or 0 if
// idle or unknown.
func (s *Scheduler) Peek(classID ClassID) int {
	s.mu.RLock()
	c, ok := s.classes[classID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return c.queue.PeekLen()
}

// Drop discards classID's head packet without serving it, for host-driven
// AQM layered above the core; the core itself implements no AQM policy.
func (s *Scheduler) Drop(classID ClassID) (*Packet, bool) {
	s.mu.RLock()
	c, ok := s.classes[classID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	pkt, ok := c.queue.Dequeue()
	if ok {
		c.stats.recordDrop(dropClassify)
	}
	return pkt, ok
}

// Reset clears every class's inner queue and scheduling state without
// destroying the Scheduler, e.g. for test isolation between scenarios.
func (s *Scheduler) Reset() {
	s.mu.RLock()
	ids := make([]ClassID, 0, len(s.classes))
	for id := range s.classes {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	for _, id := range ids {
		_ = s.DeleteClass(id)
	}
}
