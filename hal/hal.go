// Package hal defines the narrow native-device surface that gdev is built
// on: device, queue, timeline fence, heap, buffer, and command recording
// primitives, expressed as Go interfaces.
//
// Backends implement these interfaces over an actual accelerator API or,
// for tests and headless use, over the deterministic in-process simulator
// in hal/halsim. Client code should not call hal directly; the gdev root
// package wraps every object with lifecycle and state checking.
package hal

import (
	"errors"
	"time"
)

// ErrUnsupported is returned by backends for operations the underlying
// accelerator API cannot express (for example cross-queue waits or shared
// handles on WebGPU).
var ErrUnsupported = errors.New("hal: operation not supported by backend")

// Device is the root factory object of a backend. A Device owns no
// synchronization state itself; every queue, fence, heap, and command
// object is created from it and holds its own.
//
// All creation methods fail with a backend error once the device has been
// removed; RemovalReason reports the fatal condition.
type Device interface {
	// CreateQueue creates an ordered, asynchronous submission channel
	// bound to one engine class.
	CreateQueue(desc *QueueDescriptor) (Queue, error)

	// CreateFence creates a timeline fence starting at desc.Initial.
	CreateFence(desc *FenceDescriptor) (Fence, error)

	// CreateHeap creates a memory pool. Heaps flagged shared may be
	// exported through ExportHandle.
	CreateHeap(desc *HeapDescriptor) (Heap, error)

	// CreateBuffer creates a buffer with its own backing memory.
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)

	// CreatePlacedBuffer creates a buffer aliasing a sub-range of heap,
	// starting at offset. Offsets are caller-managed; backends validate
	// bounds but not overlap.
	CreatePlacedBuffer(heap Heap, offset uint64, desc *BufferDescriptor) (Buffer, error)

	// CreateAllocator creates backing memory for command recording.
	CreateAllocator(class EngineClass) (Allocator, error)

	// CreateList creates a command list in the recording state, built
	// from the given allocator.
	CreateList(class EngineClass, alloc Allocator) (List, error)

	// ExportHandle exports a shareable object (Fence or Heap) as a
	// handle a second device, or a second process, can import. An empty
	// name produces an anonymous handle; a non-empty name registers the
	// handle in the OS namespace for OpenSharedHandleByName.
	ExportHandle(obj Shareable, name string) (SharedHandle, error)

	// OpenSharedHandleByName looks up a named handle exported by another
	// device or process.
	OpenSharedHandleByName(name string) (SharedHandle, error)

	// OpenSharedFence imports a fence handle, producing a fence that
	// aliases the exporter's counter.
	OpenSharedFence(h SharedHandle) (Fence, error)

	// OpenSharedHeap imports a heap handle, producing a heap that
	// aliases the exporter's backing memory.
	OpenSharedHeap(h SharedHandle) (Heap, error)

	// RemovalReason reports why the device stopped honoring work, or nil
	// while the device is healthy. A non-nil reason is permanent.
	RemovalReason() error

	// Destroy releases the device. The caller must have drained all
	// queues first; destroying a device with in-flight work is a
	// contract violation.
	Destroy()
}

// Queue executes submitted command-list batches in FIFO order on one
// independently clocked engine. Completion order equals submission order
// within a queue; across queues only Signal/Wait edges order work.
//
// Queue methods are safe for concurrent use.
type Queue interface {
	// Class reports the engine class the queue was created with.
	Class() EngineClass

	// Execute appends a batch to the queue's FIFO. Lists execute in
	// slice order. Every list must be closed. Execute does not block.
	Execute(lists []List) error

	// Signal schedules a fence update that becomes visible only after
	// all previously submitted work on this queue completes.
	Signal(f Fence, value uint64) error

	// Wait schedules a queue-side stall: the queue will not begin its
	// next batch until f reaches value. The CPU is not blocked.
	Wait(f Fence, value uint64) error

	// Destroy releases the queue.
	Destroy()
}

// Fence is a monotonically non-decreasing 64-bit counter advanced by
// queues (Queue.Signal) or the CPU (Signal), and observed by the CPU.
//
// Fence methods are safe for concurrent use.
type Fence interface {
	Shareable

	// CompletedValue returns a CPU-visible snapshot of the counter. It
	// may lag the true accelerator state but never decreases.
	CompletedValue() uint64

	// Signal force-sets the counter from the CPU. Used at init and
	// teardown; values below the current counter are ignored so the
	// counter stays monotonic.
	Signal(value uint64) error

	// SetEventOnCompletion arranges for ev.Set to be called once the
	// counter reaches value. If the value is already reached the event
	// is set before SetEventOnCompletion returns, so a following wait
	// cannot miss the wake.
	SetEventOnCompletion(value uint64, ev Event) error

	// Destroy releases the fence. Imported copies hold their own
	// reference; the counter survives until the last copy is destroyed.
	Destroy()
}

// Event is the OS synchronous wait primitive consumed by fences. Events
// are auto-reset: a Set stores one wake token and the next Wait consumes
// it, which lets one event be reused across frames.
type Event interface {
	// Set stores the wake token. Setting an already-set event is a no-op.
	Set()

	// Wait blocks until the token is available or the timeout elapses.
	// A timeout <= 0 waits indefinitely. Returns false if the timeout
	// elapsed first.
	Wait(timeout time.Duration) (bool, error)

	// Close releases the event. Waiting on a closed event is an error.
	Close() error
}

// Heap is a memory pool resources are placed into at caller-managed
// offsets.
type Heap interface {
	Shareable

	// Size returns the pool size in bytes.
	Size() uint64

	// Destroy releases the heap. Placed buffers must be destroyed first.
	Destroy()
}

// Buffer is an accelerator-addressable memory region. Write and Read are
// the CPU mapping surface; they are valid only while no in-flight queue
// work touches the same range, which the caller guarantees through the
// fence discipline.
type Buffer interface {
	// Size returns the buffer size in bytes.
	Size() uint64

	// Write copies p into the buffer at offset.
	Write(offset uint64, p []byte) error

	// Read copies len(p) bytes from the buffer at offset into p.
	Read(offset uint64, p []byte) error

	// Destroy releases the buffer.
	Destroy()
}

// Allocator is the backing memory for recorded commands. An allocator
// must not be reset while a list built from it is still in flight;
// backends that can detect the violation return an error from Reset.
type Allocator interface {
	// Reset reclaims all memory recorded through this allocator.
	Reset() error

	// Destroy releases the allocator.
	Destroy()
}

// List is a recorded sequence of accelerator operations. Lists follow the
// open/record/close/submit/reset lifecycle; the gdev wrapper enforces the
// state machine, backends only need to honor Reset and Close.
type List interface {
	// Reset rebinds the list to alloc and reopens it for recording.
	Reset(alloc Allocator) error

	// Close ends recording. Only closed lists may be executed.
	Close() error

	// CopyBufferRegion records a copy of size bytes from src at
	// srcOffset to dst at dstOffset.
	CopyBufferRegion(dst Buffer, dstOffset uint64, src Buffer, srcOffset, size uint64) error

	// FillBuffer records a fill of size bytes at offset with value.
	FillBuffer(dst Buffer, offset, size uint64, value byte) error

	// ResourceBarrier records a batch of barriers submitted atomically
	// before the operations that depend on the new states.
	ResourceBarrier(barriers []Barrier) error

	// Destroy releases the list.
	Destroy()
}

// Shareable is implemented by objects that can cross a device or process
// boundary through ExportHandle.
type Shareable interface {
	// SharedKind reports which kind of object a handle refers to.
	SharedKind() HandleKind
}

// SharedHandle is an exported reference to a Fence or Heap. A handle is
// independent of the object it was exported from; close it once every
// importer has opened it.
type SharedHandle interface {
	// Kind reports the kind of object the handle refers to.
	Kind() HandleKind

	// Name returns the OS namespace name, or "" for anonymous handles.
	Name() string

	// Close releases the handle. The underlying object is unaffected.
	Close()
}

// HandleKind discriminates shared handle targets.
type HandleKind int

const (
	// HandleFence marks a handle exported from a fence.
	HandleFence HandleKind = iota

	// HandleHeap marks a handle exported from a heap.
	HandleHeap
)

// String returns the string representation of HandleKind.
func (k HandleKind) String() string {
	switch k {
	case HandleFence:
		return "Fence"
	case HandleHeap:
		return "Heap"
	default:
		return "Unknown"
	}
}
