// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package qfqrl

// RaceEnabled is true when the race detector is active. Used by tests to
// skip the activation queue's concurrent producer tests, which trigger
// false positives: the race detector cannot observe the acquire/release
// orderings established through atomix.
const RaceEnabled = true
