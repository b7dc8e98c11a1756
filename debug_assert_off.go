// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !qfqrl_debug

package qfqrl

// debugAssertf is a no-op in production builds. See debug_assert.go.
func debugAssertf(format string, args ...any) {}
