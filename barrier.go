package gdev

import (
	"fmt"

	"github.com/gogpu/gdev/hal"
)

// Barrier describes a single entry of a ResourceBarrier batch. Build
// values with TransitionBarrier, AliasingBarrier, or UAVBarrier.
type Barrier struct {
	typ      hal.BarrierType
	resource *Resource // transition/UAV target, aliasing "after"
	second   *Resource // aliasing "before"
	before   hal.ResourceState
	after    hal.ResourceState
}

// TransitionBarrier declares that r moves from the before state to the
// after state. The declared before state must match the state the
// device tracks for r.
func TransitionBarrier(r *Resource, before, after hal.ResourceState) Barrier {
	return Barrier{typ: hal.BarrierTransition, resource: r, before: before, after: after}
}

// AliasingBarrier declares that the heap memory backing before is about
// to be reused through after. Either resource may be nil, meaning "any
// placed resource on the heap".
func AliasingBarrier(before, after *Resource) Barrier {
	return Barrier{typ: hal.BarrierAliasing, resource: after, second: before}
}

// UAVBarrier orders all prior unordered-access writes to r before any
// subsequent access. A nil r orders all UAV accesses on the queue.
func UAVBarrier(r *Resource) Barrier {
	return Barrier{typ: hal.BarrierUAV, resource: r}
}

// StateTracker validates transition barriers against the per-resource
// state the device last recorded. With strict checking disabled it
// still updates tracked states but skips the mismatch error, matching
// how release-layer drivers behave.
type StateTracker struct {
	strict bool
}

func newStateTracker(strict bool) *StateTracker {
	return &StateTracker{strict: strict}
}

// apply validates b, updates tracked state, and lowers it to the hal
// representation.
func (t *StateTracker) apply(b Barrier) (hal.Barrier, error) {
	switch b.typ {
	case hal.BarrierTransition:
		r := b.resource
		if r == nil {
			return hal.Barrier{}, fmt.Errorf("transition barrier: nil resource")
		}
		r.mu.Lock()
		cur := r.state
		if t.strict && cur != b.before {
			r.mu.Unlock()
			return hal.Barrier{}, fmt.Errorf(
				"resource %q is in state %v, barrier declares %v: %w",
				r.label, cur, b.before, ErrStateMismatch)
		}
		r.state = b.after
		r.mu.Unlock()
		return hal.Barrier{
			Type: hal.BarrierTransition,
			Transition: &hal.TransitionBarrier{
				Buffer: r.raw,
				Before: b.before,
				After:  b.after,
			},
		}, nil

	case hal.BarrierAliasing:
		ab := &hal.AliasingBarrier{}
		if b.second != nil {
			ab.Before = b.second.raw
		}
		if b.resource != nil {
			ab.After = b.resource.raw
		}
		return hal.Barrier{Type: hal.BarrierAliasing, Aliasing: ab}, nil

	case hal.BarrierUAV:
		ub := &hal.UAVBarrier{}
		if b.resource != nil {
			ub.Buffer = b.resource.raw
		}
		return hal.Barrier{Type: hal.BarrierUAV, UAV: ub}, nil

	default:
		return hal.Barrier{}, fmt.Errorf("unknown barrier type %d", int(b.typ))
	}
}
