// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import "sync"

// Classifier maps a packet to a class handle. A host-specific
// implementation backs the ordered filter chain; qfqrl only depends on
// this minimal interface — classifier/filter subsystem internals are out
// of scope beyond a testable instance.
type Classifier interface {
	// Classify returns the ClassID pkt should be queued to, and false if
	// no class matched (ClassifyDrop).
	Classify(pkt *Packet) (ClassID, bool)
}

// PriorityClassifier is the minimal real classifier: a direct
// priority-to-class handle match, falling back to an
// ordered chain of predicate filters. A handle match short-circuits the
// filter chain; within the chain, a filter that classifies or drops
// short-circuits the filters after it.
type PriorityClassifier struct {
	mu        sync.RWMutex
	byHandle  map[uint32]ClassID
	filters   []Filter
	connCache sync.Map // producer handle (any) -> cachedBinding
}

// Filter is one link in the ordered filter chain. Match returns a
// ClassID with FilterActionClassify to redirect the packet there,
// FilterActionNoMatch to let the next filter (or the classify-drop path)
// decide, or FilterActionDrop to drop the packet.
type Filter struct {
	Match func(pkt *Packet) (ClassID, FilterAction)
}

// FilterAction names what a Filter decided to do with a packet.
type FilterAction int

const (
	// FilterActionNoMatch means the filter did not apply; fall through.
	FilterActionNoMatch FilterAction = iota
	// FilterActionClassify means the returned ClassID is authoritative.
	FilterActionClassify
	// FilterActionDrop means the packet should be dropped regardless of
	// the returned ClassID (which is ignored).
	FilterActionDrop
)

type cachedBinding struct {
	classID ClassID
}

// NewPriorityClassifier returns an empty classifier. Use BindHandle and
// AppendFilter to populate it.
func NewPriorityClassifier() *PriorityClassifier {
	return &PriorityClassifier{byHandle: make(map[uint32]ClassID)}
}

// BindHandle registers a direct priority-value to class mapping.
func (p *PriorityClassifier) BindHandle(priority uint32, id ClassID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byHandle[priority] = id
}

// UnbindHandle removes a direct priority-value mapping.
func (p *PriorityClassifier) UnbindHandle(priority uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byHandle, priority)
}

// AppendFilter appends f to the end of the ordered filter chain.
func (p *PriorityClassifier) AppendFilter(f Filter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters = append(p.filters, f)
}

// ClassifyFor resolves pkt's class, consulting and updating the
// per-connection cache keyed by connHandle, cached on the producing
// endpoint. A zero connHandle disables caching for
// that call (e.g. a control-path probe with no stable connection).
func (p *PriorityClassifier) ClassifyFor(connHandle any, pkt *Packet) (ClassID, bool) {
	if connHandle != nil {
		if v, ok := p.connCache.Load(connHandle); ok {
			return v.(cachedBinding).classID, true
		}
	}

	id, ok := p.Classify(pkt)
	if ok && connHandle != nil {
		p.connCache.Store(connHandle, cachedBinding{classID: id})
	}
	return id, ok
}

// Classify implements the Classifier interface without a connection
// cache: direct handle match on priority, then the ordered filter chain.
func (p *PriorityClassifier) Classify(pkt *Packet) (ClassID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if id, ok := p.byHandle[pkt.Priority]; ok {
		return id, true
	}

	for _, f := range p.filters {
		id, action := f.Match(pkt)
		switch action {
		case FilterActionClassify:
			return id, true
		case FilterActionDrop:
			return 0, false
		}
	}
	return 0, false
}

// InvalidateConn removes connHandle's cached binding, e.g. when a class
// it points to is deleted.
func (p *PriorityClassifier) InvalidateConn(connHandle any) {
	p.connCache.Delete(connHandle)
}
