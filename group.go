// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

// numGroups is MAX_INDEX+1: the fixed number of groups a scheduler carries
// for its entire lifetime.
const numGroups = maxIndex + 1

// numSlots is the fixed number of slots per group.
const numSlots = 32

// group is one indexed bin of the fixed grid. Classes whose L/w places them
// in the same coarse timestamp range land in the same group; within a
// group, a 32-slot circular buffer further buckets them by quantized start
// time so the dispatcher can find the earliest with a bit scan.
//
// A group never moves or is reallocated: the scheduler owns all numGroups
// of them in a fixed array, and a class holds only its group's index,
// breaking the class/group cycle without extra GC pressure.
//
// A class's slot is never cached: it is always recomputed from the class's
// own S and the group's current S, recovering the slot from c.S rather
// than caching it. That keeps front
// rotation and slot scanning from ever going stale relative to a class.
type group struct {
	index     int
	slotShift uint

	s, f uint64 // group virtual start/finish, quantized to slotShift

	slots     [numSlots][]*class // logical slot k is slots[(front+k)%numSlots]
	front     int
	fullSlots uint32 // bit k set iff logical slot k is non-empty
}

func newGroup(index int) *group {
	return &group{
		index:     index,
		slotShift: uint(mtuShift + fracBits - (maxIndex - index)),
	}
}

// physicalSlot maps a logical slot index (measured from front) to its
// physical offset in g.slots.
func (g *group) physicalSlot(logical int) int {
	return ((logical+g.front)%numSlots + numSlots) % numSlots
}

// logicalSlot recovers the logical slot a class belongs to from its own
// (already rounded) start time and the group's current S.
func (g *group) logicalSlot(roundedS uint64) int {
	return int((roundedS - g.s) >> g.slotShift)
}

// insert places c into the slot computed from roundedS, prepending it to
// that slot's list. A slot index that lands outside [0, numSlots) is a
// hard invariant violation (SlotOverflow); this is a debug-build
// assertion rather than a silent clamp —
// see DESIGN.md for the Open Question resolution.
func (g *group) insert(c *class, roundedS uint64) {
	slot := g.logicalSlot(roundedS)
	if slot < 0 || slot >= numSlots {
		debugAssertf("qfqrl: group %d: slot %d out of range for class %v (roundedS=%d, g.s=%d)", g.index, slot, c.id, roundedS, g.s)
		logSlotOverflow(g.index)
		slot = numSlots - 1
	}
	phys := g.physicalSlot(slot)
	g.slots[phys] = append([]*class{c}, g.slots[phys]...)
	g.fullSlots |= 1 << uint(slot)
}

// remove unlinks c from the slot recovered from c.S, clearing the logical
// bit if that slot becomes empty. roundedS must be round_down(c.S, slotShift)
// as of the *current* g.S (i.e. computed after any pending rotate).
func (g *group) remove(c *class, roundedS uint64) {
	slot := g.logicalSlot(roundedS)
	if slot < 0 || slot >= numSlots {
		return
	}
	phys := g.physicalSlot(slot)
	list := g.slots[phys]
	for i, other := range list {
		if other == c {
			g.slots[phys] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(g.slots[phys]) == 0 {
		g.fullSlots &^= 1 << uint(slot)
	}
}

// head returns the first class in logical slot 0, or nil.
func (g *group) head() *class {
	list := g.slots[g.front]
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// scan advances the logical origin to the lowest non-empty slot and
// returns its head class, or nil if the group is entirely empty.
func (g *group) scan() *class {
	if g.fullSlots == 0 {
		return nil
	}
	i := ffs(g.fullSlots) - 1
	g.front = (g.front + i) % numSlots
	g.fullSlots >>= uint(i)
	return g.head()
}

// rotate retreats the group's logical origin so that a class with an
// earlier roundedS than the current g.s can be inserted without
// renumbering every slot: used when a class activates with a start time
// that predates the group's current window.
func (g *group) rotate(roundedS uint64) {
	if !gt(g.s, roundedS) {
		return
	}
	i := int((g.s - roundedS) >> g.slotShift)
	if i >= numSlots {
		i = numSlots - 1
	}
	g.fullSlots <<= uint(i)
	g.front = ((g.front-i)%numSlots + numSlots) % numSlots
}

// empty reports whether the group currently holds no backlogged classes.
func (g *group) empty() bool {
	return g.fullSlots == 0
}
