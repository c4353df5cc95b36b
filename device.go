package gdev

import (
	"fmt"

	"github.com/gogpu/gdev/hal"
	"github.com/gogpu/gdev/hal/halsim"
)

// Config configures a Device. The zero value is usable: it selects the
// deterministic simulator backend with strict state checking enabled.
// All configuration is explicit and per-device; gdev keeps no
// process-wide mutable state besides the logger.
type Config struct {
	// Backend is the native device to build on. Nil selects a fresh
	// hal/halsim simulator device.
	Backend hal.Device

	// Label is an optional debug name.
	Label string

	// DisableStateChecks turns off record-time validation of declared
	// barrier states. Checking is on by default; disable it only after
	// the transition discipline of a workload has been validated.
	DisableStateChecks bool
}

// Device is the factory object for queues, fences, heaps, resources, and
// command recording objects. The device owns no synchronization state;
// every protocol object created from it carries its own.
//
// Device is safe for concurrent use.
type Device struct {
	hal     hal.Device
	label   string
	tracker *StateTracker
}

// NewDevice creates a device over cfg.Backend.
func NewDevice(cfg Config) (*Device, error) {
	backend := cfg.Backend
	if backend == nil {
		backend = halsim.New()
	}
	d := &Device{
		hal:     backend,
		label:   cfg.Label,
		tracker: newStateTracker(!cfg.DisableStateChecks),
	}
	Logger().Info("gdev: device created",
		"label", cfg.Label,
		"backend", fmt.Sprintf("%T", backend),
		"stateChecks", !cfg.DisableStateChecks)
	return d, nil
}

// Label returns the device's debug label.
func (d *Device) Label() string { return d.label }

// HAL returns the underlying native device.
func (d *Device) HAL() hal.Device { return d.hal }

// RemovalReason reports why the accelerator stopped honoring work on
// this device, or nil while the device is healthy. A non-nil reason is
// fatal: abandon the frame loop and recreate the device.
func (d *Device) RemovalReason() error {
	return d.hal.RemovalReason()
}

// checkRemoved wraps the removal reason for a failing operation so that
// errors.Is(err, ErrDeviceRemoved) holds.
func (d *Device) checkRemoved(op string) error {
	if reason := d.hal.RemovalReason(); reason != nil {
		return &DeviceError{Op: op, Err: fmt.Errorf("%w: %v", ErrDeviceRemoved, reason)}
	}
	return nil
}

// CreateQueue creates an execution queue bound to one engine class.
func (d *Device) CreateQueue(class hal.EngineClass, label string) (*Queue, error) {
	if err := d.checkRemoved("CreateQueue"); err != nil {
		return nil, err
	}
	raw, err := d.hal.CreateQueue(&hal.QueueDescriptor{Label: label, Class: class})
	if err != nil {
		return nil, &DeviceError{Op: "CreateQueue", Err: err}
	}
	return &Queue{dev: d, raw: raw, class: class, label: label}, nil
}

// CreateFence creates a timeline fence starting at initial.
func (d *Device) CreateFence(initial uint64, flags hal.FenceFlags, label string) (*Fence, error) {
	if err := d.checkRemoved("CreateFence"); err != nil {
		return nil, err
	}
	raw, err := d.hal.CreateFence(&hal.FenceDescriptor{Label: label, Initial: initial, Flags: flags})
	if err != nil {
		return nil, &DeviceError{Op: "CreateFence", Err: err}
	}
	return &Fence{dev: d, raw: raw, label: label}, nil
}

// CreateHeap creates a memory pool resources can be placed into.
func (d *Device) CreateHeap(size uint64, flags hal.HeapFlags, label string) (*Heap, error) {
	if err := d.checkRemoved("CreateHeap"); err != nil {
		return nil, err
	}
	raw, err := d.hal.CreateHeap(&hal.HeapDescriptor{Label: label, Size: size, Flags: flags})
	if err != nil {
		return nil, &DeviceError{Op: "CreateHeap", Err: err}
	}
	return &Heap{dev: d, raw: raw, size: size, flags: flags, label: label}, nil
}

// CreateBuffer creates a committed buffer in the given initial logical
// state.
func (d *Device) CreateBuffer(size uint64, state hal.ResourceState, label string) (*Resource, error) {
	if err := d.checkRemoved("CreateBuffer"); err != nil {
		return nil, err
	}
	raw, err := d.hal.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size})
	if err != nil {
		return nil, &DeviceError{Op: "CreateBuffer", Err: err}
	}
	return &Resource{dev: d, raw: raw, size: size, state: state, label: label}, nil
}

// CreatePlacedBuffer creates a buffer aliasing a sub-range of heap at the
// caller-managed offset. Offsets of simultaneously live placed buffers
// must not overlap; the per-frame-slot offset convention in SharedRing
// keeps hand-off regions disjoint by construction.
func (d *Device) CreatePlacedBuffer(heap *Heap, offset, size uint64, state hal.ResourceState, label string) (*Resource, error) {
	if err := d.checkRemoved("CreatePlacedBuffer"); err != nil {
		return nil, err
	}
	raw, err := d.hal.CreatePlacedBuffer(heap.raw, offset, &hal.BufferDescriptor{Label: label, Size: size})
	if err != nil {
		return nil, &DeviceError{Op: "CreatePlacedBuffer", Err: err}
	}
	return &Resource{dev: d, raw: raw, size: size, state: state, label: label}, nil
}

// CreateCommandAllocator creates backing memory for command recording.
func (d *Device) CreateCommandAllocator(class hal.EngineClass) (*CommandAllocator, error) {
	if err := d.checkRemoved("CreateCommandAllocator"); err != nil {
		return nil, err
	}
	raw, err := d.hal.CreateAllocator(class)
	if err != nil {
		return nil, &DeviceError{Op: "CreateCommandAllocator", Err: err}
	}
	return &CommandAllocator{dev: d, raw: raw, class: class}, nil
}

// CreateCommandList creates a command list in the Recording state, built
// from alloc.
func (d *Device) CreateCommandList(class hal.EngineClass, alloc *CommandAllocator) (*CommandList, error) {
	if err := d.checkRemoved("CreateCommandList"); err != nil {
		return nil, err
	}
	raw, err := d.hal.CreateList(class, alloc.raw)
	if err != nil {
		return nil, &DeviceError{Op: "CreateCommandList", Err: err}
	}
	return &CommandList{dev: d, raw: raw, class: class, state: ListStateRecording}, nil
}

// Close releases the device. All queues must have been drained first;
// the fence discipline, not the device, guarantees no in-flight work
// still references its objects.
func (d *Device) Close() {
	d.hal.Destroy()
	Logger().Info("gdev: device closed", "label", d.label)
}
