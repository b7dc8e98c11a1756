// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates an operation on a collaborator (inner queue,
// activation queue) could not proceed immediately. It is an alias for
// [iox.ErrWouldBlock], matching the convention the activation queue in
// activation.go inherits from code.hybscloud.com/lfq.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates an operation would block.
func IsWouldBlock(err error) bool { return iox.IsWouldBlock(err) }

// IsSemantic reports whether err is a control-flow signal rather than a
// failure. Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool { return iox.IsSemantic(err) }

// Kind classifies scheduler errors.
type Kind int

const (
	// KindInvalidWeight: weight exceeds 2^MAX_WSHIFT (zero is valid: disabled).
	KindInvalidWeight Kind = iota
	// KindInvalidLmax: lmax is zero or exceeds 2^MTU_SHIFT.
	KindInvalidLmax
	// KindWsumExceeded: admitting the class would push wsum past 2*2^MAX_WSHIFT.
	KindWsumExceeded
	// KindClassifyDrop: no class matched the packet, or a filter shot it.
	KindClassifyDrop
	// KindEnqueueDrop: the class's inner queue refused the packet.
	KindEnqueueDrop
	// KindClassBusy: delete attempted while filter_cnt > 0.
	KindClassBusy
	// KindActivationOOM: the activation queue for the producer's CPU is full.
	KindActivationOOM
	// KindUnknownClass: an operation referenced a classid that does not exist.
	KindUnknownClass
)

func (k Kind) String() string {
	switch k {
	case KindInvalidWeight:
		return "invalid_weight"
	case KindInvalidLmax:
		return "invalid_lmax"
	case KindWsumExceeded:
		return "wsum_exceeded"
	case KindClassifyDrop:
		return "classify_drop"
	case KindEnqueueDrop:
		return "enqueue_drop"
	case KindClassBusy:
		return "class_busy"
	case KindActivationOOM:
		return "activation_oom"
	case KindUnknownClass:
		return "unknown_class"
	default:
		return "unknown"
	}
}

// SchedulerError is the concrete error type returned for every non-drop
// failure kind. Packet drops (ClassifyDrop, EnqueueDrop) are silent to the
// Enqueue/EnqueueTo caller and are only counted in the statistics.
type SchedulerError struct {
	Kind    Kind
	ClassID ClassID
	Err     error // optional wrapped cause
}

func (e *SchedulerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("qfqrl: %s (class %v): %v", e.Kind, e.ClassID, e.Err)
	}
	return fmt.Sprintf("qfqrl: %s (class %v)", e.Kind, e.ClassID)
}

func (e *SchedulerError) Unwrap() error { return e.Err }

func newError(kind Kind, id ClassID) *SchedulerError {
	return &SchedulerError{Kind: kind, ClassID: id}
}

// IsKind reports whether err is, or wraps, a *SchedulerError or a
// *ConfigError of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *SchedulerError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	var ce *ConfigError
	return errors.As(err, &ce) && ce.Kind == kind
}
