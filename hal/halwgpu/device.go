// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package halwgpu adapts a wgpu hal device to the gdev hal interfaces.
//
// WebGPU-family APIs expose a narrower synchronization model than the
// interfaces allow: one implicit queue, fences observable only through a
// device wait, no CPU fence signals, no queue-side waits, and no shared
// heaps or handles. The adapter maps what it can and returns
// hal.ErrUnsupported for the rest, so protocol-level code (frame
// pipelining, single-device hand-off to the CPU) still runs on real
// hardware while cross-device tests stay on hal/halsim.
package halwgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	whal "github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gdev/hal"
)

// Device adapts an open wgpu hal device. wgpu exposes exactly one
// hardware queue; CreateQueue hands out wrappers over it regardless of
// the requested engine class.
type Device struct {
	raw   whal.Device
	queue whal.Queue
	inst  whal.Instance // owned only when Open created it
}

// New wraps an already open wgpu device/queue pair, e.g. one shared with
// a renderer.
func New(dev whal.Device, queue whal.Queue) *Device {
	return &Device{raw: dev, queue: queue}
}

// Open creates a standalone Vulkan device on the first usable adapter,
// preferring a discrete or integrated GPU.
func Open() (*Device, error) {
	backend, ok := whal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("halwgpu: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&whal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("halwgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("halwgpu: no adapters found")
	}
	selected := &adapters[0]
	for i := range adapters {
		t := adapters[i].Info.DeviceType
		if t == gputypes.DeviceTypeDiscreteGPU || t == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("halwgpu: open adapter %q: %w", selected.Info.Name, err)
	}
	return &Device{raw: open.Device, queue: open.Queue, inst: instance}, nil
}

// Raw returns the wrapped wgpu device.
func (d *Device) Raw() whal.Device { return d.raw }

// CreateQueue returns a wrapper over the device's single hardware queue.
// The engine class is recorded for introspection only; all classes share
// one engine here.
func (d *Device) CreateQueue(desc *hal.QueueDescriptor) (hal.Queue, error) {
	return &Queue{dev: d, class: desc.Class}, nil
}

// CreateFence creates a timeline fence. The counter is only advanced by
// queue signals; wgpu has no CPU-side fence signal.
func (d *Device) CreateFence(desc *hal.FenceDescriptor) (hal.Fence, error) {
	if desc.Flags != hal.FenceFlagNone {
		return nil, fmt.Errorf("halwgpu: shared fences: %w", hal.ErrUnsupported)
	}
	if desc.Initial != 0 {
		return nil, fmt.Errorf("halwgpu: nonzero initial fence value: %w", hal.ErrUnsupported)
	}
	raw, err := d.raw.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("halwgpu: create fence: %w", err)
	}
	return newFence(d, raw), nil
}

// CreateHeap is unsupported; wgpu has no placed-resource heaps.
func (d *Device) CreateHeap(*hal.HeapDescriptor) (hal.Heap, error) {
	return nil, fmt.Errorf("halwgpu: heaps: %w", hal.ErrUnsupported)
}

// CreateBuffer creates a committed buffer. A zero desc.Usage defaults to
// storage plus both copy directions so recorded copies and CPU staging
// both work.
func (d *Device) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	usage := desc.Usage
	if usage == 0 {
		usage = gputypes.BufferUsageStorage |
			gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	}
	raw, err := d.raw.CreateBuffer(&whal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("halwgpu: create buffer %q: %w", desc.Label, err)
	}
	return &Buffer{dev: d, raw: raw, size: desc.Size}, nil
}

// CreatePlacedBuffer is unsupported; wgpu has no placed-resource heaps.
func (d *Device) CreatePlacedBuffer(hal.Heap, uint64, *hal.BufferDescriptor) (hal.Buffer, error) {
	return nil, fmt.Errorf("halwgpu: placed buffers: %w", hal.ErrUnsupported)
}

// CreateAllocator returns a token allocator. wgpu encoders own their
// backing memory, so Reset has nothing to reclaim; recording memory is
// released when a command buffer is freed after submission.
func (d *Device) CreateAllocator(class hal.EngineClass) (hal.Allocator, error) {
	return &Allocator{class: class}, nil
}

// CreateList creates a command list open for recording.
func (d *Device) CreateList(class hal.EngineClass, alloc hal.Allocator) (hal.List, error) {
	l := &List{dev: d, class: class}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

// ExportHandle is unsupported; wgpu has no shareable objects.
func (d *Device) ExportHandle(hal.Shareable, string) (hal.SharedHandle, error) {
	return nil, fmt.Errorf("halwgpu: shared handles: %w", hal.ErrUnsupported)
}

// OpenSharedHandleByName is unsupported.
func (d *Device) OpenSharedHandleByName(string) (hal.SharedHandle, error) {
	return nil, fmt.Errorf("halwgpu: shared handles: %w", hal.ErrUnsupported)
}

// OpenSharedFence is unsupported.
func (d *Device) OpenSharedFence(hal.SharedHandle) (hal.Fence, error) {
	return nil, fmt.Errorf("halwgpu: shared fences: %w", hal.ErrUnsupported)
}

// OpenSharedHeap is unsupported.
func (d *Device) OpenSharedHeap(hal.SharedHandle) (hal.Heap, error) {
	return nil, fmt.Errorf("halwgpu: shared heaps: %w", hal.ErrUnsupported)
}

// RemovalReason always reports healthy; wgpu surfaces device loss as
// errors from the failing call instead.
func (d *Device) RemovalReason() error { return nil }

// Destroy releases the instance if Open created one. A device wrapped
// with New belongs to its creator.
func (d *Device) Destroy() {
	if d.inst != nil {
		d.inst.Destroy()
		d.inst = nil
	}
}

// Buffer adapts a wgpu buffer. Write and Read go through the queue's
// staging path, which is ordered against previously submitted work.
type Buffer struct {
	dev  *Device
	raw  whal.Buffer
	size uint64
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Write uploads p at offset through the queue staging path.
func (b *Buffer) Write(offset uint64, p []byte) error {
	b.dev.queue.WriteBuffer(b.raw, offset, p)
	return nil
}

// Read copies len(p) bytes at offset into p. The caller must have
// drained the work producing the bytes first.
func (b *Buffer) Read(offset uint64, p []byte) error {
	if err := b.dev.queue.ReadBuffer(b.raw, offset, p); err != nil {
		return fmt.Errorf("halwgpu: read buffer: %w", err)
	}
	return nil
}

// Destroy releases the buffer.
func (b *Buffer) Destroy() {
	b.dev.raw.DestroyBuffer(b.raw)
}
