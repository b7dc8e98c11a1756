// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import (
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"code.hybscloud.com/spin"
	"golang.org/x/sys/unix"
)

// Transmitter is the host collaborator that accepts a fully-scheduled
// packet for transmission. It is called only from the dispatcher
// goroutine; implementations must not block indefinitely.
type Transmitter interface {
	Transmit(pkt *Packet)
}

// yieldEvery and idleSpinYield are the busy-poll pacing constants: the
// dispatcher yields cooperatively every ~100k iterations regardless of
// load, and every ~10k spins while fully idle.
const (
	yieldEvery    = 100_000
	idleSpinYield = 10_000
)

// commandKind enumerates the control operations routed through the
// dispatcher's command channel, the sole mutator of scheduling state.
type commandKind int

const (
	cmdCreateClass commandKind = iota
	cmdUpdateClass
	cmdDeleteClass
)

type command struct {
	kind   commandKind
	id     ClassID
	weight uint32
	lmax   uint32
	cls    *class // pre-constructed by the caller for cmdCreateClass
	reply  chan error
}

// dispatcher owns every field of scheduling state exclusively:
// V, the bitmaps, the group array, and (indirectly, through class pointers)
// every class's S/F/grpIndex/invW/lmax. Nothing outside this goroutine ever
// touches them.
type dispatcher struct {
	vt        vtime
	promotedV uint64 // V as of the last eligibility promotion
	bm        groupBitmaps
	groups [numGroups]*group

	classes map[ClassID]*class

	center *activationCenter
	cmds   chan command

	stats *SchedulerStats
	tx    Transmitter

	spinCPU int

	backlog int

	closing chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func newDispatcher(cfg Config, tx Transmitter, stats *SchedulerStats) *dispatcher {
	d := &dispatcher{
		vt:      newVtime(cfg.LinkSpeedMbps),
		classes: make(map[ClassID]*class),
		center:  newActivationCenter(),
		cmds:    make(chan command, 64),
		stats:   stats,
		tx:      tx,
		spinCPU: cfg.SpinCPU,
		closing: make(chan struct{}),
		closed:  make(chan struct{}),
	}
	for i := range d.groups {
		d.groups[i] = newGroup(i)
	}
	return d
}

// run is the dispatcher's entire lifetime: pin to spinCPU, attempt
// real-time priority, then busy-loop until stop is requested.
func (d *dispatcher) run() {
	defer close(d.closed)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if d.spinCPU >= 0 {
		if err := pinToCPU(d.spinCPU); err != nil {
			logger.Warn().Err(err).Int("cpu", d.spinCPU).Msg("qfqrl: failed to pin dispatcher to CPU")
		}
		if err := setRealtimePriority(); err != nil {
			logger.Warn().Err(err).Msg("qfqrl: failed to set dispatcher real-time priority")
		}
	}

	sw := spin.Wait{}
	iterations := uint64(0)
	idleSpins := uint64(0)

	for {
		select {
		case <-d.closing:
			return
		default:
		}

		d.drainCommands()
		d.center.drainAll(d.activate)

		now := time.Now()
		d.vt.update(now, d.bm.er == 0)

		if pkt, ok := d.dequeue(); ok {
			d.tx.Transmit(pkt)
			idleSpins = 0
		} else if d.backlog == 0 && !d.center.pending() {
			idleSpins++
			if idleSpins >= idleSpinYield {
				idleSpins = 0
				runtime.Gosched()
			}
			sw.Once()
		}

		iterations++
		if iterations >= yieldEvery {
			iterations = 0
			runtime.Gosched()
		}
	}
}

func (d *dispatcher) stop() {
	d.once.Do(func() { close(d.closing) })
	<-d.closed
}

func (d *dispatcher) drainCommands() {
	for {
		select {
		case cmd := <-d.cmds:
			cmd.reply <- d.applyCommand(cmd)
		default:
			return
		}
	}
}

func (d *dispatcher) applyCommand(cmd command) error {
	switch cmd.kind {
	case cmdCreateClass:
		return d.createClass(cmd.cls)
	case cmdUpdateClass:
		return d.updateClass(cmd.id, cmd.weight, cmd.lmax)
	case cmdDeleteClass:
		return d.deleteClass(cmd.id)
	default:
		return newError(KindUnknownClass, cmd.id)
	}
}

func (d *dispatcher) createClass(c *class) error {
	if _, exists := d.classes[c.id]; exists {
		return newError(KindWsumExceeded, c.id)
	}
	d.classes[c.id] = c
	return nil
}

// updateClass implements the Update control operation's policy.
func (d *dispatcher) updateClass(id ClassID, weight, lmax uint32) error {
	c, ok := d.classes[id]
	if !ok {
		return newError(KindUnknownClass, id)
	}
	newInvW := invWFor(weight)
	newGrpIndex := calcIndex(newInvW, uint64(lmax))

	wasActive := c.active
	moved := newGrpIndex != c.grpIndex

	if wasActive && moved {
		d.deactivateForMove(c)
	}

	c.setWeight(weight, lmax)

	// activate is a no-op for an already-active class, so it is always
	// safe to attempt here: this covers both a still-active class that
	// moved groups (deactivateForMove above already pulled it out) and a
	// previously disabled, backlogged class that is only now becoming
	// eligible to run.
	if !c.disabled() {
		c.queueMu.Lock()
		l := c.queue.PeekLen()
		c.queueMu.Unlock()
		if l > 0 {
			d.activate(activationRecord{cls: c, length: l})
		}
	}
	return nil
}

// deactivateForMove removes c from its current group without charging for
// the unserved head packet: c.F is simply reset to c.S.
func (d *dispatcher) deactivateForMove(c *class) {
	g := d.groups[c.grpIndex]
	roundedS := roundDown(c.s, g.slotShift)
	g.remove(c, roundedS)
	c.f = c.s
	c.active = false
	if g.empty() {
		d.bm.clearAll(g.index)
	}
	d.stats.wsumActive.AddAcqRel(negU64(oneFP / c.invW))
}

func (d *dispatcher) deleteClass(id ClassID) error {
	c, ok := d.classes[id]
	if !ok {
		return newError(KindUnknownClass, id)
	}
	if c.filterCnt > 0 {
		return newError(KindClassBusy, id)
	}
	if c.active {
		g := d.groups[c.grpIndex]
		roundedS := roundDown(c.s, g.slotShift)
		g.remove(c, roundedS)
		if g.empty() {
			d.bm.clearAll(g.index)
		}
		if !c.disabled() {
			d.stats.wsumActive.AddAcqRel(negU64(oneFP / c.invW))
		}
	}
	c.queueMu.Lock()
	for {
		if _, ok := c.queue.Dequeue(); !ok {
			break
		}
	}
	c.queueMu.Unlock()
	delete(d.classes, id)
	return nil
}

// activate implements Activate(class, len).
func (d *dispatcher) activate(rec activationRecord) {
	c := rec.cls
	if c.disabled() || c.active {
		return
	}
	d.updateStart(c)
	c.f = c.s + uint64(rec.length)*c.invW

	g := d.groups[c.grpIndex]
	roundedS := roundDown(c.s, g.slotShift)

	wasEmpty := g.fullSlots == 0
	rotated := !wasEmpty && gt(g.s, c.s)
	if rotated {
		g.rotate(roundedS)
		d.bm.clear(stateIR, g.index)
		d.bm.clear(stateIB, g.index)
	}
	if wasEmpty || rotated {
		g.s = roundedS
		g.f = roundedS + (2 << g.slotShift)
		state := classifyGroupState(&d.bm, &d.groups, g, d.vt.v)
		d.bm.set(state, g.index)
	}

	g.insert(c, roundedS)
	c.active = true
	d.backlog++
	d.stats.wsumActive.AddAcqRel(oneFP / c.invW)
	d.stats.recordActivation()
}

// updateStart implements update_start(c).
func (d *dispatcher) updateStart(c *class) {
	g := d.groups[c.grpIndex]
	limit := roundDown(d.vt.v, g.slotShift) + (1 << g.slotShift)
	roundedF := roundDown(c.f, g.slotShift)

	if gt(c.f, d.vt.v) && !gt(roundedF, limit) {
		c.s = c.f
		return
	}

	mask := maskFrom(d.bm.er, g.index)
	if mask != 0 {
		nextIdx := ffs(mask) - 1
		next := d.groups[nextIdx]
		switch {
		case gt(roundedF, next.f) && gt(limit, next.f):
			c.s = next.f
			return
		case gt(roundedF, next.f):
			c.s = limit
			return
		}
	}
	c.s = d.vt.v
}

// dequeue implements the core scheduling dequeue operation.
func (d *dispatcher) dequeue() (*Packet, bool) {
	// V advances between dequeues (vtime.update); promote for that advance
	// before looking at ER.
	promoteEligibility(&d.bm, d.promotedV, d.vt.v)
	d.promotedV = d.vt.v
	if d.bm.er == 0 {
		return nil, false
	}
	gi := ffs(d.bm.er) - 1
	g := d.groups[gi]
	c := g.head()
	if c == nil {
		d.bm.clearAll(gi)
		return nil, false
	}

	c.queueMu.Lock()
	pkt, ok := c.queue.Dequeue()
	nextLen := c.queue.PeekLen()
	c.queueMu.Unlock()
	if !ok {
		return nil, false
	}

	length := pkt.Len
	oldV := d.vt.v
	oldF := c.f
	d.vt.chargeDequeue(length, d.stats.wsumActive.LoadAcquire())

	needsGroupUpdate := d.updateClass2(g, c, nextLen)

	if needsGroupUpdate {
		d.refreshGroup(g, gi, oldF)
	}

	newV := d.vt.v
	promoteEligibility(&d.bm, oldV, newV)

	c.stats.recordServed(length)
	d.backlog--
	return pkt, true
}

// updateClass2 implements the internal group/class bookkeeping step that
// runs after every dequeue. Named with a 2 suffix to avoid colliding with
// the public ClassConfig-driven updateClass control operation above; it
// mutates only scheduling state.
func (d *dispatcher) updateClass2(g *group, c *class, nextLen int) bool {
	oldRoundedS := roundDown(c.s, g.slotShift)
	c.s = c.f

	if nextLen == 0 {
		g.remove(c, oldRoundedS)
		c.active = false
		d.stats.wsumActive.AddAcqRel(negU64(oneFP / c.invW))
		return true
	}
	if c.disabled() {
		g.remove(c, oldRoundedS)
		c.active = false
		return true
	}

	c.f = c.s + uint64(nextLen)*c.invW
	roundedS := roundDown(c.s, g.slotShift)
	if roundedS == g.s {
		return false
	}

	g.remove(c, oldRoundedS)
	g.insert(c, roundedS)
	return true
}

// refreshGroup runs after a group-affecting dequeue: rescan for the next
// head, update the group's own S/F or clear it from ER, then run the
// unblock cascade on the old F.
func (d *dispatcher) refreshGroup(g *group, gi int, oldF uint64) {
	next := g.scan()
	d.bm.clearAll(gi)
	if next == nil {
		unblockCascade(&d.bm, &d.groups, gi, oldF)
		return
	}
	roundedS := roundDown(next.s, g.slotShift)
	g.s = roundedS
	g.f = roundedS + (2 << g.slotShift)
	state := classifyGroupState(&d.bm, &d.groups, g, d.vt.v)
	d.bm.set(state, gi)
	unblockCascade(&d.bm, &d.groups, gi, oldF)
}

// pinToCPU binds the calling OS thread's affinity to cpu using
// golang.org/x/sys/unix for low-level scheduler control.
func pinToCPU(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}

// setRealtimePriority attempts SCHED_FIFO at the highest available
// priority — non-fatal on failure since containers and non-root
// operators commonly lack CAP_SYS_NICE.
func setRealtimePriority() error {
	const schedFIFO = 1
	prio, err := unix.SchedGetPriorityMax(schedFIFO)
	if err != nil {
		return err
	}
	param := unix.SchedParam{Priority: int32(prio)}
	_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, uintptr(schedFIFO), uintptr(unsafe.Pointer(&param)))
	if errno != 0 {
		return syscall.Errno(errno)
	}
	return nil
}

// negU64 returns the two's-complement negation of x, letting an
// AddAcqRel on an atomix.Uint64 express a subtraction — wsum_active is
// modeled as unsigned, ONE_FP-scaled fixed point throughout.
func negU64(x uint64) uint64 {
	return ^x + 1
}
