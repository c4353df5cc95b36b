package gdev

import (
	"fmt"
	"sync"

	"github.com/gogpu/gdev/hal"
)

// Resource is a device buffer with a tracked usage state. The tracked
// state advances only through recorded transition barriers, so
// recording order defines the state timeline even before the GPU runs
// the work.
type Resource struct {
	dev   *Device
	raw   hal.Buffer
	size  uint64
	label string

	mu    sync.Mutex
	state hal.ResourceState
}

// Label returns the debug label.
func (r *Resource) Label() string { return r.label }

// Size returns the buffer size in bytes.
func (r *Resource) Size() uint64 { return r.size }

// State returns the currently tracked resource state.
func (r *Resource) State() hal.ResourceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Write uploads data at offset. Backends without CPU-visible staging
// return hal.ErrUnsupported.
func (r *Resource) Write(offset uint64, data []byte) error {
	if err := r.raw.Write(offset, data); err != nil {
		return fmt.Errorf("write %q: %w", r.label, err)
	}
	return nil
}

// Read copies len(dst) bytes from offset into dst.
func (r *Resource) Read(offset uint64, dst []byte) error {
	if err := r.raw.Read(offset, dst); err != nil {
		return fmt.Errorf("read %q: %w", r.label, err)
	}
	return nil
}

// Raw returns the backend buffer.
func (r *Resource) Raw() hal.Buffer { return r.raw }

// Destroy releases the buffer. Placed resources release their mapping
// only; the heap stays valid.
func (r *Resource) Destroy() {
	r.raw.Destroy()
}

// Heap is a contiguous block of device memory that placed resources
// carve regions out of. Heaps created with hal.HeapFlagShared can be
// exported and opened by other devices.
type Heap struct {
	dev   *Device
	raw   hal.Heap
	size  uint64
	flags hal.HeapFlags
	label string
}

// Label returns the debug label.
func (h *Heap) Label() string { return h.label }

// Size returns the heap size in bytes.
func (h *Heap) Size() uint64 { return h.size }

// Flags returns the creation flags.
func (h *Heap) Flags() hal.HeapFlags { return h.flags }

// Raw returns the backend heap.
func (h *Heap) Raw() hal.Heap { return h.raw }

// Destroy releases the heap. Placed resources on it must be destroyed
// first.
func (h *Heap) Destroy() {
	h.raw.Destroy()
}
