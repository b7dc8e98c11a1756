// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import "testing"

func TestPriorityClassifierBindHandle(t *testing.T) {
	p := NewPriorityClassifier()
	p.BindHandle(7, 42)

	id, ok := p.Classify(&Packet{Priority: 7})
	if !ok || id != 42 {
		t.Fatalf("Classify: got (%v,%v), want (42,true)", id, ok)
	}

	p.UnbindHandle(7)
	if _, ok := p.Classify(&Packet{Priority: 7}); ok {
		t.Fatal("Classify after UnbindHandle should no longer match")
	}
}

func TestPriorityClassifierFilterChain(t *testing.T) {
	p := NewPriorityClassifier()
	p.AppendFilter(Filter{Match: func(pkt *Packet) (ClassID, FilterAction) {
		if pkt.Len > 1000 {
			return 0, FilterActionNoMatch
		}
		return 0, FilterActionDrop
	}})
	p.AppendFilter(Filter{Match: func(pkt *Packet) (ClassID, FilterAction) {
		return 9, FilterActionClassify
	}})

	if _, ok := p.Classify(&Packet{Len: 10}); ok {
		t.Fatal("small packet should be dropped by the first filter")
	}
	id, ok := p.Classify(&Packet{Len: 2000})
	if !ok || id != 9 {
		t.Fatalf("large packet: got (%v,%v), want (9,true)", id, ok)
	}
}

func TestPriorityClassifierNoMatchDrops(t *testing.T) {
	p := NewPriorityClassifier()
	if _, ok := p.Classify(&Packet{Priority: 1}); ok {
		t.Fatal("an empty classifier should never match")
	}
}

func TestPriorityClassifierBindTakesPriorityOverFilters(t *testing.T) {
	p := NewPriorityClassifier()
	p.BindHandle(5, 1)
	p.AppendFilter(Filter{Match: func(pkt *Packet) (ClassID, FilterAction) {
		return 2, FilterActionClassify
	}})
	id, ok := p.Classify(&Packet{Priority: 5})
	if !ok || id != 1 {
		t.Fatalf("a bound handle should win over the filter chain: got (%v,%v), want (1,true)", id, ok)
	}
}

func TestPriorityClassifierConnCache(t *testing.T) {
	p := NewPriorityClassifier()
	calls := 0
	p.AppendFilter(Filter{Match: func(pkt *Packet) (ClassID, FilterAction) {
		calls++
		return 3, FilterActionClassify
	}})

	conn := "conn-a"
	id, ok := p.ClassifyFor(conn, &Packet{})
	if !ok || id != 3 {
		t.Fatalf("first ClassifyFor: got (%v,%v), want (3,true)", id, ok)
	}
	id, ok = p.ClassifyFor(conn, &Packet{})
	if !ok || id != 3 {
		t.Fatalf("second ClassifyFor: got (%v,%v), want (3,true)", id, ok)
	}
	if calls != 1 {
		t.Fatalf("filter chain should only run once, cache should serve the rest: got %d calls", calls)
	}

	p.InvalidateConn(conn)
	if _, ok := p.ClassifyFor(conn, &Packet{}); !ok {
		t.Fatal("ClassifyFor after invalidation should re-run the filter chain, not fail")
	}
	if calls != 2 {
		t.Fatalf("after InvalidateConn the filter chain should run again: got %d calls", calls)
	}
}

func TestPriorityClassifierNilConnHandleBypassesCache(t *testing.T) {
	p := NewPriorityClassifier()
	calls := 0
	p.AppendFilter(Filter{Match: func(pkt *Packet) (ClassID, FilterAction) {
		calls++
		return 4, FilterActionClassify
	}})
	p.ClassifyFor(nil, &Packet{})
	p.ClassifyFor(nil, &Packet{})
	if calls != 2 {
		t.Fatalf("a nil connHandle should disable caching: got %d calls, want 2", calls)
	}
}
