package hal

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// EngineClass selects which execution engine a queue or command object is
// bound to.
type EngineClass int

const (
	// EngineDirect executes graphics, compute, and copy work.
	EngineDirect EngineClass = iota

	// EngineCompute executes compute and copy work.
	EngineCompute

	// EngineCopy executes copy work only.
	EngineCopy
)

// String returns the string representation of EngineClass.
func (c EngineClass) String() string {
	switch c {
	case EngineDirect:
		return "Direct"
	case EngineCompute:
		return "Compute"
	case EngineCopy:
		return "Copy"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// FenceFlags configure fence creation.
type FenceFlags uint32

const (
	// FenceFlagNone creates an ordinary device-local fence.
	FenceFlagNone FenceFlags = 0

	// FenceFlagShared allows the fence to be exported to another device
	// or process.
	FenceFlagShared FenceFlags = 1 << iota

	// FenceFlagSharedCrossAdapter allows the fence to order work between
	// independently clocked adapters.
	FenceFlagSharedCrossAdapter
)

// HeapFlags configure heap creation.
type HeapFlags uint32

const (
	// HeapFlagNone creates an ordinary device-local heap.
	HeapFlagNone HeapFlags = 0

	// HeapFlagShared allows the heap to be exported to another device or
	// process.
	HeapFlagShared HeapFlags = 1 << iota

	// HeapFlagSharedCrossAdapter allows both adapters to alias the
	// heap's backing memory.
	HeapFlagSharedCrossAdapter
)

// ResourceState is the declared logical state of a resource. The state a
// caller declares in a transition barrier must match the resource's true
// last-declared state or accelerator behavior is undefined; gdev's tracker
// makes the mismatch detectable.
type ResourceState uint32

const (
	// StateCommon is the neutral state resources start in. Present is an
	// alias: a common-state resource is presentable.
	StateCommon ResourceState = 0

	// StateCopyDest allows the resource to be a copy destination.
	StateCopyDest ResourceState = 1 << iota

	// StateCopySource allows the resource to be a copy source.
	StateCopySource

	// StateShaderResource allows shader reads.
	StateShaderResource

	// StateUnorderedAccess allows unordered shader reads and writes.
	StateUnorderedAccess

	// StateRenderTarget allows output-merger writes.
	StateRenderTarget
)

// String returns the string representation of ResourceState.
func (s ResourceState) String() string {
	if s == StateCommon {
		return "Common"
	}
	var parts []string
	if s&StateCopyDest != 0 {
		parts = append(parts, "CopyDest")
	}
	if s&StateCopySource != 0 {
		parts = append(parts, "CopySource")
	}
	if s&StateShaderResource != 0 {
		parts = append(parts, "ShaderResource")
	}
	if s&StateUnorderedAccess != 0 {
		parts = append(parts, "UnorderedAccess")
	}
	if s&StateRenderTarget != 0 {
		parts = append(parts, "RenderTarget")
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Unknown(%#x)", uint32(s))
	}
	return strings.Join(parts, "|")
}

// BarrierType discriminates the barrier variants.
type BarrierType int

const (
	// BarrierTransition declares a resource state change.
	BarrierTransition BarrierType = iota

	// BarrierAliasing declares a hand-off between two resources placed
	// in overlapping heap ranges.
	BarrierAliasing

	// BarrierUAV orders unordered-access writes against later reads of
	// the same resource.
	BarrierUAV
)

// Barrier is a tagged variant: exactly one of Transition, Aliasing, or
// UAV is populated, selected by Type.
type Barrier struct {
	Type       BarrierType
	Transition *TransitionBarrier
	Aliasing   *AliasingBarrier
	UAV        *UAVBarrier
}

// TransitionBarrier declares that Buffer moves from Before to After.
type TransitionBarrier struct {
	Buffer Buffer
	Before ResourceState
	After  ResourceState
}

// AliasingBarrier declares that After replaces Before in a shared heap
// range. Either field may be nil for the wildcard form.
type AliasingBarrier struct {
	Before Buffer
	After  Buffer
}

// UAVBarrier orders all preceding unordered-access operations on Buffer
// before any following ones. A nil Buffer orders all UAV work.
type UAVBarrier struct {
	Buffer Buffer
}

// QueueDescriptor describes a queue to create.
type QueueDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Class is the engine class the queue submits to.
	Class EngineClass
}

// FenceDescriptor describes a fence to create.
type FenceDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Initial is the starting counter value, commonly 0.
	Initial uint64

	// Flags select sharing behavior.
	Flags FenceFlags
}

// HeapDescriptor describes a heap to create.
type HeapDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the pool size in bytes.
	Size uint64

	// Flags select sharing behavior.
	Flags HeapFlags
}

// BufferDescriptor describes a buffer to create, committed or placed.
type BufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage carries the WebGPU-style usage flags backends that validate
	// usage (hal/halwgpu) need. The simulator ignores it.
	Usage gputypes.BufferUsage
}
