// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import "testing"

func TestGroupInsertHeadRemove(t *testing.T) {
	g := newGroup(10)
	g.s = 0
	c := &class{id: 1}
	roundedS := roundDown(c.s, g.slotShift)
	g.insert(c, roundedS)

	if g.empty() {
		t.Fatal("group should not be empty after insert")
	}
	if got := g.head(); got != c {
		t.Fatalf("head(): got %v, want %v", got, c)
	}

	g.remove(c, roundedS)
	if !g.empty() {
		t.Fatal("group should be empty after removing its only class")
	}
}

func TestGroupScanAdvancesToLowestNonEmptySlot(t *testing.T) {
	g := newGroup(10)
	g.s = 0

	far := &class{id: 2, s: 3 << g.slotShift}
	g.insert(far, roundDown(far.s, g.slotShift))

	// logical slot 0 is empty; scan must advance front by 3 to reach it.
	if got := g.scan(); got != far {
		t.Fatalf("scan(): got %v, want far", got)
	}
	if g.front != 3 {
		t.Fatalf("front: got %d, want 3", g.front)
	}
}

func TestGroupRotateRetreatsOrigin(t *testing.T) {
	g := newGroup(10)
	g.s = 4 << g.slotShift

	earlier := &class{id: 1, s: 1 << g.slotShift}
	roundedS := roundDown(earlier.s, g.slotShift)

	g.rotate(roundedS)
	g.s = roundedS
	g.insert(earlier, roundedS)

	if got := g.head(); got != earlier {
		t.Fatalf("head() after rotate+insert: got %v, want earlier", got)
	}
}

func TestGroup33IdenticalStartsOccupyOneSlot(t *testing.T) {
	g := newGroup(10)
	g.s = 0

	classes := make([]*class, 33)
	for i := range classes {
		classes[i] = &class{id: ClassID(i), s: 0}
		g.insert(classes[i], 0)
	}

	if g.fullSlots != 1 {
		t.Fatalf("fullSlots: got %b, want 1 (logical slot 0 only)", g.fullSlots)
	}
	// all 33 classes are chained off the same slot; none were clamped to
	// a different slot index via SlotOverflow, since roundedS-g.S is 0
	// for every one of them.
	count := 0
	for _, c := range g.slots[g.front] {
		if c != nil {
			count++
		}
	}
	if count != len(classes) {
		t.Fatalf("slot 0 length: got %d, want %d", count, len(classes))
	}
}
