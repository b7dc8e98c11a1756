// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import "time"

// vtime holds the scheduler's system virtual time and the running sums
// that drive its advancement. It is owned exclusively by the dispatcher
// goroutine, so every field here is a plain, non-atomic value.
// linkSpeedMbps and drainRate are fixed for the vtime's lifetime, set once
// from Config.LinkSpeedMbps when the dispatcher is constructed.
type vtime struct {
	v            uint64
	vLastUpdated time.Time
	vDiffSum     uint64 // fixed-point virtual time still to be added
	tDiffSum     uint64 // wall-clock nanoseconds over which to add it

	linkSpeedMbps uint64
	drainRate     uint64
}

// newVtime builds a vtime for the given link speed in Mbps, falling back
// to linkSpeedMbps if mbps is zero (an unset Config field).
func newVtime(mbps uint64) vtime {
	if mbps == 0 {
		mbps = linkSpeedMbps
	}
	return vtime{linkSpeedMbps: mbps, drainRate: computeDrainRate(mbps)}
}

// chargeDequeue records the virtual-time and wall-clock cost of one
// dequeued packet of length L: each packet
// contributes L*ONE_FP/max(LINK_SPEED, wsum_active) to v_diff_sum and
// L*NSEC_PER_SEC/(125000*LINK_SPEED) to t_diff_sum.
func (vt *vtime) chargeDequeue(length int, wsumActive uint64) {
	l := uint64(length)
	denomW := wsumActive
	if denomW < vt.linkSpeedMbps {
		denomW = vt.linkSpeedMbps
	}
	vt.vDiffSum += l * oneFP / denomW
	vt.tDiffSum += l * nsecPerSec / (125000 * vt.linkSpeedMbps)
}

// update advances V based on wall-clock elapsed time, following
// the V-advancement rule exactly. erEmpty reports whether the ER bitmap is
// currently empty (link idle with no eligible-ready work).
func (vt *vtime) update(now time.Time, erEmpty bool) {
	if vt.vLastUpdated.IsZero() {
		vt.vLastUpdated = now
		return
	}
	t := uint64(now.Sub(vt.vLastUpdated).Nanoseconds())
	if t == 0 {
		return
	}
	vt.vLastUpdated = now

	switch {
	case vt.tDiffSum > 0 && t >= vt.tDiffSum:
		vt.v += vt.vDiffSum
		remaining := t - vt.tDiffSum
		vt.vDiffSum = 0
		vt.tDiffSum = 0
		if erEmpty {
			vt.v += remaining * vt.drainRate
		}
	case vt.tDiffSum > 0:
		v := vt.vDiffSum * t / vt.tDiffSum
		vt.v += v
		vt.vDiffSum -= v
		vt.tDiffSum -= t
	case erEmpty:
		vt.v += t * vt.drainRate
	default:
		// link busy with eligible work and no backlog sum yet: V advances
		// only when dequeued packets are charged against it.
	}
}

// promoteEligibility implements the eligibility promotion rule: as V
// crosses a MIN_SLOT_SHIFT-sized boundary, every
// group whose promotion is implied by that crossing moves IR->ER and
// IB->EB.
func promoteEligibility(bm *groupBitmaps, oldV, newV uint64) {
	vslot := newV >> minSlotShift
	oldVslot := oldV >> minSlotShift
	if vslot == oldVslot {
		return
	}
	mask := uint32((uint64(1) << uint(fls(vslot^oldVslot))) - 1)
	moveBits(&bm.er, &bm.ir, mask)
	moveBits(&bm.eb, &bm.ib, mask)
}

// classifyGroupState implements the group-state classification rule for
// a group g whose S and F have just been (re)computed.
// groups is the fixed array of all groups, used to find the lowest-indexed
// ER competitor with a higher index than g.
func classifyGroupState(bm *groupBitmaps, groups *[numGroups]*group, g *group, v uint64) groupState {
	base := stateER
	if gt(g.s, v) {
		base = stateIR
	}

	mask := maskFrom(bm.er, g.index+1)
	if mask != 0 {
		nextIdx := ffs(mask) - 1
		next := groups[nextIdx]
		if gt(g.f, next.f) {
			return base + 2 // IR->IB, ER->EB
		}
	}
	return base
}

// unblockCascade implements the unblock cascade: after
// servedIndex's F has moved forward, any group that was blocked purely by
// the old F may now be free to run.
func unblockCascade(bm *groupBitmaps, groups *[numGroups]*group, servedIndex int, oldF uint64) {
	mask := maskFrom(bm.er, servedIndex+1)
	if mask != 0 {
		nextIdx := ffs(mask) - 1
		next := groups[nextIdx]
		if !gt(oldF, next.f) {
			return // next.F >= oldF: nothing was blocked by the old F
		}
	}
	moveBits(&bm.er, &bm.eb, maskBelow(bm.eb, servedIndex))
	moveBits(&bm.ir, &bm.ib, maskBelow(bm.ib, servedIndex))
}
