// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import "testing"

func TestGroupBitmapsSetClearStateOf(t *testing.T) {
	var bm groupBitmaps
	bm.set(stateER, 3)
	if !bm.has(stateER, 3) {
		t.Fatal("expected bit 3 set in ER")
	}
	state, ok := bm.stateOf(3)
	if !ok || state != stateER {
		t.Fatalf("stateOf(3): got (%v,%v), want (ER,true)", state, ok)
	}
	bm.clear(stateER, 3)
	if _, ok := bm.stateOf(3); ok {
		t.Fatal("expected bit 3 cleared from all bitmaps")
	}
}

func TestGroupBitmapsClearAll(t *testing.T) {
	var bm groupBitmaps
	bm.set(stateER, 5)
	bm.set(stateIB, 5) // shouldn't happen in practice, but clearAll must be thorough
	bm.clearAll(5)
	if _, ok := bm.stateOf(5); ok {
		t.Fatal("clearAll should remove the index from every bitmap")
	}
}

func TestMaskFromMaskBelow(t *testing.T) {
	word := uint32(0b1111_0000)
	if got := maskFrom(word, 4); got != word {
		t.Fatalf("maskFrom(0b11110000,4): got %b, want %b", got, word)
	}
	if got := maskFrom(word, 5); got != 0b1110_0000 {
		t.Fatalf("maskFrom(0b11110000,5): got %b, want %b", got, 0b1110_0000)
	}
	if got := maskBelow(word, 8); got != word {
		t.Fatalf("maskBelow(word,8): got %b, want %b", got, word)
	}
	if got := maskBelow(word, 4); got != 0 {
		t.Fatalf("maskBelow(word,4): got %b, want 0", got)
	}
}

func TestMoveBits(t *testing.T) {
	var dst, src uint32
	src = 0b1010
	moveBits(&dst, &src, 0b1111)
	if dst != 0b1010 {
		t.Fatalf("dst: got %b, want %b", dst, 0b1010)
	}
	if src != 0 {
		t.Fatalf("src: got %b, want 0", src)
	}
}
