// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/rs/zerolog"
)

// logger is silent by default; a host wires a sink with SetLogger.
var logger zerolog.Logger = zerolog.Nop()

// SetLogger installs l as the package-wide sink for diagnostic logging.
// qfqrl never logs at a level above Warn on its own — everything else
// (packet drops, activations) is accounted in Stats instead.
func SetLogger(l zerolog.Logger) {
	logger = l
}

// slotOverflowLimiter rate-limits the SlotOverflow warning to once per
// second per group index, so a host under sustained invariant violation
// does not get its log flooded. One category per group index is plenty:
// numGroups is 20.
var slotOverflowLimiter = catrate.NewLimiter(map[time.Duration]int{time.Second: 1})

// logSlotOverflow logs the SlotOverflow condition: a computed slot index
// landed outside [0, numSlots), a hard invariant violation whose handling
// flag as deserving an assertion rather than a silent clamp. Emission is
// rate-limited per group so the log cannot be weaponized into a flood.
func logSlotOverflow(groupIndex int) {
	if _, ok := slotOverflowLimiter.Allow(groupIndex); !ok {
		return
	}
	logger.Warn().
		Int("group", groupIndex).
		Msg("qfqrl: slot index overflow, clamped to last slot")
}
