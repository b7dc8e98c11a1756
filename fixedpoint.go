// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import "math/bits"

// Fixed-point constants for the virtual-time domain. All timestamps and
// per-unit-length costs live in a 64-bit fixed-point number with fracBits
// fractional bits.
const (
	fracBits = 30
	oneFP    = uint64(1) << fracBits

	mtuShift = 11
	lmaxMax  = uint64(1) << mtuShift // 2048

	maxWshift = 16
	maxWeight = uint64(1) << maxWshift // 65536

	maxIndex = 19 // MAX_INDEX; 20 groups total, indices [0, maxIndex]

	minSlotShift = fracBits + mtuShift - maxIndex

	// invWDisabled is the sentinel inv_w value marking a class whose weight
	// has been set to zero: disabled but not deleted.
	invWDisabled = oneFP + 1

	nsecPerSec = uint64(1_000_000_000)

	// linkSpeedMbps is the default link-rate constant: a 10GbE link with
	// framing overhead subtracted. Config.LinkSpeedMbps lets a host
	// override this per Scheduler; see computeDrainRate.
	linkSpeedMbps = 9800
)

// computeDrainRate returns the fixed-point amount added to V per
// nanosecond of link-idle time for a given link speed in Mbps:
// mbps * 125000 * ONE_FP / NSEC_PER_SEC.
func computeDrainRate(mbps uint64) uint64 {
	return mbps * 125000 * oneFP / nsecPerSec
}

// roundDown clears the low shift bits of t: round_down(t, shift) = t & ~((1<<shift)-1).
func roundDown(t uint64, shift uint) uint64 {
	return t &^ ((uint64(1) << shift) - 1)
}

// gt is the wraparound-safe "greater than" predicate used for every virtual
// timestamp comparison: gt(a,b) ≜ signed(a-b) > 0. Because virtual time
// arithmetic is modulo 2^64, a plain a > b comparison would break once V
// wraps; this does not.
func gt(a, b uint64) bool {
	return int64(a-b) > 0
}

// ffs returns the position (1-based) of the least significant set bit in x,
// or 0 if x is zero — the Go analogue of C's ffs(3) used throughout for
// bitmap scans.
func ffs(x uint32) int {
	if x == 0 {
		return 0
	}
	return bits.TrailingZeros32(x) + 1
}

// fls returns 1 + the index of the most significant set bit in x, or 0 if x
// is zero — the Go analogue of C's fls(3).
func fls(x uint64) int {
	return bits.Len64(x)
}
