package gdev

import (
	"fmt"
	"time"

	"github.com/gogpu/gdev/hal"
)

// ============================================================================
// Export / import
// ============================================================================

// ExportFence exports f as a shareable handle. An empty name produces an
// anonymous handle passed out of band (e.g. over a pipe); a non-empty
// name registers the handle in the OS namespace for
// OpenSharedHandleByName. The fence must have been created with
// hal.FenceFlagShared or hal.FenceFlagSharedCrossAdapter.
func (d *Device) ExportFence(f *Fence, name string) (hal.SharedHandle, error) {
	h, err := d.hal.ExportHandle(f.raw, name)
	if err != nil {
		return nil, &DeviceError{Op: "ExportFence", Err: err}
	}
	Logger().Debug("gdev: fence exported", "fence", f.label, "name", name)
	return h, nil
}

// ExportHeap exports h as a shareable handle. The heap must have been
// created with hal.HeapFlagShared or hal.HeapFlagSharedCrossAdapter.
func (d *Device) ExportHeap(h *Heap, name string) (hal.SharedHandle, error) {
	sh, err := d.hal.ExportHandle(h.raw, name)
	if err != nil {
		return nil, &DeviceError{Op: "ExportHeap", Err: err}
	}
	Logger().Debug("gdev: heap exported", "heap", h.label, "name", name)
	return sh, nil
}

// ImportFence opens a fence handle on this device. The result aliases
// the exporter's counter: signals on either side are visible to both,
// and each side still destroys its own copy.
func (d *Device) ImportFence(h hal.SharedHandle, label string) (*Fence, error) {
	raw, err := d.hal.OpenSharedFence(h)
	if err != nil {
		return nil, &DeviceError{Op: "ImportFence", Err: err}
	}
	return &Fence{dev: d, raw: raw, label: label}, nil
}

// ImportHeap opens a heap handle on this device. The result aliases the
// exporter's backing memory; placed buffers created on it at the same
// offsets see the exporter's bytes.
func (d *Device) ImportHeap(h hal.SharedHandle, label string) (*Heap, error) {
	raw, err := d.hal.OpenSharedHeap(h)
	if err != nil {
		return nil, &DeviceError{Op: "ImportHeap", Err: err}
	}
	return &Heap{dev: d, raw: raw, size: raw.Size(), label: label}, nil
}

// OpenSharedHandleByName looks up a handle another device or process
// registered under name.
func (d *Device) OpenSharedHandleByName(name string) (hal.SharedHandle, error) {
	h, err := d.hal.OpenSharedHandleByName(name)
	if err != nil {
		return nil, &DeviceError{Op: "OpenSharedHandleByName", Err: err}
	}
	return h, nil
}

// ============================================================================
// Hand-off protocol
// ============================================================================

// HandoffRole selects which half of the alternation a Handoff drives.
type HandoffRole int

const (
	// HandoffProducer generates data and signals first.
	HandoffProducer HandoffRole = iota

	// HandoffConsumer waits for the producer before each access.
	HandoffConsumer
)

// String returns the string representation of HandoffRole.
func (r HandoffRole) String() string {
	switch r {
	case HandoffProducer:
		return "Producer"
	case HandoffConsumer:
		return "Consumer"
	default:
		return "Unknown"
	}
}

// Handoff drives one side of the strict signal/wait alternation two
// parties use to pass a shared resource back and forth over one shared
// fence. The producer signals odd fence values after writing; the
// consumer waits each odd value, reads, and signals the following even
// value to return ownership.
//
// Both sides construct a Handoff over their own queue and their imported
// (or original) copy of the same fence, then call BeginAccess and
// EndAccess around every access, strictly alternating. The fence values
// are derived internally; neither side picks values, which is what makes
// the protocol restart-proof against value reuse.
//
// A Handoff is owned by one goroutine.
type Handoff struct {
	queue *Queue
	fence *Fence
	role  HandoffRole
	next  uint64
	began bool
}

// NewHandoff creates the role side of an alternation over fence on
// queue. Both sides must start before either has signaled the fence
// past its initial value of 0.
func NewHandoff(queue *Queue, fence *Fence, role HandoffRole) *Handoff {
	h := &Handoff{queue: queue, fence: fence, role: role, next: 1}
	if role == HandoffConsumer {
		h.next = 2
	}
	return h
}

// Role returns the side this Handoff drives.
func (h *Handoff) Role() HandoffRole { return h.role }

// BeginAccess schedules the queue-side wait that grants this side
// ownership of the shared resource. The producer's very first access
// waits on nothing; every later access waits for the peer's last
// signal. The CPU is not blocked.
func (h *Handoff) BeginAccess() error {
	if h.began {
		return fmt.Errorf("begin access (%v): previous access not ended: %w",
			h.role, ErrHandoffOrder)
	}
	if h.next > 1 {
		if err := h.queue.Wait(h.fence, h.next-1); err != nil {
			return err
		}
	}
	h.began = true
	return nil
}

// EndAccess signals ownership over to the peer after all work submitted
// since BeginAccess completes.
func (h *Handoff) EndAccess() error {
	if !h.began {
		return fmt.Errorf("end access (%v): no access begun: %w", h.role, ErrHandoffOrder)
	}
	if err := h.queue.Signal(h.fence, h.next); err != nil {
		return err
	}
	h.next += 2
	h.began = false
	return nil
}

// Steps reports how many complete Begin/End rounds this side has run.
func (h *Handoff) Steps() uint64 {
	first := uint64(1)
	if h.role == HandoffConsumer {
		first = 2
	}
	return (h.next - first) / 2
}

// Drain blocks the CPU until the peer-visible effects of this side's
// last EndAccess are complete. A timeout <= 0 waits indefinitely.
func (h *Handoff) Drain(timeout time.Duration) error {
	if h.next <= 2 {
		return nil
	}
	return h.fence.Wait(h.next-2, timeout)
}

// ============================================================================
// Shared ring
// ============================================================================

// SharedRing places depth equally sized buffers at consecutive stride
// offsets of one shared heap. Exporter and importer build a SharedRing
// over their own copy of the heap with identical geometry; buffer i on
// one side then aliases buffer i on the other, and the hand-off
// protocol keeps the two sides off the same index at the same time.
type SharedRing struct {
	heap    *Heap
	buffers []*Resource
	stride  uint64
}

// NewSharedRing carves depth buffers of size bytes out of heap, placing
// buffer i at offset i*stride. stride may exceed size to satisfy
// placement alignment.
func NewSharedRing(dev *Device, heap *Heap, depth int, size, stride uint64, state hal.ResourceState, label string) (*SharedRing, error) {
	if depth < 1 {
		return nil, fmt.Errorf("ring depth %d: %w", depth, ErrInvalidDepth)
	}
	if stride < size {
		return nil, fmt.Errorf("ring stride %d < buffer size %d", stride, size)
	}
	r := &SharedRing{heap: heap, stride: stride}
	for i := 0; i < depth; i++ {
		buf, err := dev.CreatePlacedBuffer(heap, uint64(i)*stride, size, state,
			fmt.Sprintf("%s[%d]", label, i))
		if err != nil {
			r.Destroy()
			return nil, err
		}
		r.buffers = append(r.buffers, buf)
	}
	return r, nil
}

// Depth returns the number of buffers in the ring.
func (r *SharedRing) Depth() int { return len(r.buffers) }

// Buffer returns the buffer placed at index i.
func (r *SharedRing) Buffer(i int) *Resource { return r.buffers[i] }

// Heap returns the heap the ring is placed on.
func (r *SharedRing) Heap() *Heap { return r.heap }

// Destroy releases the placed buffers. The heap is not destroyed; it
// may be shared with another device.
func (r *SharedRing) Destroy() {
	for _, b := range r.buffers {
		b.Destroy()
	}
	r.buffers = nil
}
