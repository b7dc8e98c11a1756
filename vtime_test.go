// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import (
	"testing"
	"time"
)

func TestVtimeUpdateDrainsAtIdleRate(t *testing.T) {
	vt := newVtime(linkSpeedMbps)
	t0 := time.Unix(0, 0)
	vt.update(t0, true) // first call only seeds vLastUpdated

	t1 := t0.Add(time.Second)
	vt.update(t1, true)

	want := uint64(time.Second) * computeDrainRate(linkSpeedMbps)
	if vt.v != want {
		t.Fatalf("v after 1s idle: got %d, want %d", vt.v, want)
	}
}

func TestVtimeUpdateDrainsAtConfiguredLinkSpeed(t *testing.T) {
	const slowMbps = 100
	vt := newVtime(slowMbps)
	t0 := time.Unix(0, 0)
	vt.update(t0, true)

	t1 := t0.Add(time.Second)
	vt.update(t1, true)

	want := uint64(time.Second) * computeDrainRate(slowMbps)
	if vt.v != want {
		t.Fatalf("v after 1s idle at %dMbps: got %d, want %d", slowMbps, vt.v, want)
	}
	if vt.v == uint64(time.Second)*computeDrainRate(linkSpeedMbps) {
		t.Fatal("a configured link speed far below the default should drain V at a visibly different rate")
	}
}

func TestVtimeUpdateNoAdvanceWhenBusyAndNoBacklog(t *testing.T) {
	vt := newVtime(linkSpeedMbps)
	t0 := time.Unix(0, 0)
	vt.update(t0, false)
	t1 := t0.Add(time.Second)
	vt.update(t1, false)
	if vt.v != 0 {
		t.Fatalf("v should not advance while ER is non-empty with no charged backlog: got %d", vt.v)
	}
}

func TestVtimeChargeDequeueThenFullDrain(t *testing.T) {
	vt := newVtime(linkSpeedMbps)
	t0 := time.Unix(0, 0)
	vt.update(t0, false)

	vt.chargeDequeue(1500, linkSpeedMbps)
	if vt.vDiffSum == 0 || vt.tDiffSum == 0 {
		t.Fatal("chargeDequeue should populate both sums")
	}

	// advance wall clock past the charged backlog: the entire v_diff_sum
	// applies and both sums zero out; with ER empty, V also drains for the
	// leftover microsecond.
	t1 := t0.Add(time.Duration(vt.tDiffSum) + time.Microsecond)
	wantV := vt.vDiffSum + uint64(time.Microsecond)*vt.drainRate
	vt.update(t1, true)
	if vt.v != wantV {
		t.Fatalf("v after full drain: got %d, want %d", vt.v, wantV)
	}
	if vt.vDiffSum != 0 || vt.tDiffSum != 0 {
		t.Fatal("sums should be zeroed after a full drain")
	}
}

func TestPromoteEligibilityMovesAcrossBoundary(t *testing.T) {
	var bm groupBitmaps
	bm.set(stateIR, 2)
	bm.set(stateIB, 2)

	oldV := uint64(0)
	newV := uint64(1) << (minSlotShift + 2)
	promoteEligibility(&bm, oldV, newV)

	if !bm.has(stateER, 2) {
		t.Fatal("expected group 2 promoted IR->ER")
	}
	if !bm.has(stateEB, 2) {
		t.Fatal("expected group 2 promoted IB->EB")
	}
}

func TestPromoteEligibilityNoopWithinSameSlot(t *testing.T) {
	var bm groupBitmaps
	bm.set(stateIR, 2)
	promoteEligibility(&bm, 0, 1) // same vslot
	if bm.has(stateER, 2) {
		t.Fatal("promotion should not fire within the same V slot")
	}
}

func TestUnblockCascadeMovesLowerBlockedGroups(t *testing.T) {
	var groups [numGroups]*group
	for i := range groups {
		groups[i] = newGroup(i)
	}
	groups[5].f = 100

	var bm groupBitmaps
	bm.set(stateER, 5)
	bm.set(stateEB, 2)
	bm.set(stateIB, 1)

	unblockCascade(&bm, &groups, 5, 200) // no ER group above index 5: cascade fires

	if !bm.has(stateER, 2) {
		t.Fatal("expected group 2 moved EB->ER")
	}
	if !bm.has(stateIR, 1) {
		t.Fatal("expected group 1 moved IB->IR")
	}
}

func TestUnblockCascadeNoopWhenNextStillBlocks(t *testing.T) {
	var groups [numGroups]*group
	for i := range groups {
		groups[i] = newGroup(i)
	}
	groups[7].f = 1000 // next ER competitor above servedIndex

	var bm groupBitmaps
	bm.set(stateER, 5)
	bm.set(stateER, 7)
	bm.set(stateEB, 2)

	unblockCascade(&bm, &groups, 5, 100) // oldF(100) <= next.F(1000): no cascade

	if bm.has(stateER, 2) {
		t.Fatal("cascade should not fire when the next ER competitor's F >= oldF")
	}
}
