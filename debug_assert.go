// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build qfqrl_debug

package qfqrl

import "fmt"

// debugAssertf panics with a formatted message when the module is built
// with -tags qfqrl_debug, turning SlotOverflow into a test failure in
// debug builds rather than a silent
// clamp; this is that assertion. Production builds (the default) never pay
// for it — see debug_assert_off.go.
func debugAssertf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
