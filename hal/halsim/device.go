// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package halsim is a deterministic in-process implementation of the hal
// surface. Each queue runs its FIFO on its own goroutine, fences are real
// timeline counters with registered-event wakeups, and heaps are plain
// byte slices, so the full synchronization protocol — frame pipelining,
// cross-queue fence edges, shared-heap hand-off — executes with genuine
// concurrency but no hardware.
//
// The simulator doubles as the test substrate: queues can be paused and
// single-stepped to model an accelerator that falls behind the CPU, and a
// device can be marked removed to exercise the fatal error path.
package halsim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gdev/hal"
)

// Simulator errors.
var (
	// ErrDestroyed is returned when operating on a destroyed object.
	ErrDestroyed = errors.New("halsim: object has been destroyed")

	// ErrDeviceRemoved is returned by creation calls on a removed device.
	ErrDeviceRemoved = errors.New("halsim: device removed")

	// ErrAllocatorInFlight is returned when an allocator is reset while
	// a list built from it is still referenced by unfinished queue work.
	ErrAllocatorInFlight = errors.New("halsim: allocator reset while work in flight")

	// ErrListClosed is returned when recording into a closed list.
	ErrListClosed = errors.New("halsim: command list is closed")

	// ErrListOpen is returned when executing a list that was not closed.
	ErrListOpen = errors.New("halsim: command list is still recording")

	// ErrOutOfBounds is returned when a copy, fill, or placement exceeds
	// the target's size.
	ErrOutOfBounds = errors.New("halsim: range out of bounds")

	// ErrNotShared is returned when exporting an object created without
	// a shared flag.
	ErrNotShared = errors.New("halsim: object was not created shared")

	// ErrUnknownName is returned when no handle is registered under the
	// requested name.
	ErrUnknownName = errors.New("halsim: no shared handle with that name")

	// ErrWrongKind is returned when importing a handle as the wrong
	// object kind.
	ErrWrongKind = errors.New("halsim: shared handle kind mismatch")
)

// Device is the simulator's root object. It implements hal.Device.
//
// Device is safe for concurrent use.
type Device struct {
	mu      sync.Mutex
	label   string
	removed error
	queues  []*Queue
}

// New creates a simulator device.
func New() *Device {
	return &Device{}
}

// NewWithLabel creates a simulator device with a debug label.
func NewWithLabel(label string) *Device {
	return &Device{label: label}
}

// Remove marks the device removed with the given reason. This is a
// simulation control for exercising the fatal device-removed path: all
// further creation calls fail and RemovalReason reports the reason.
// Work already queued keeps draining so teardown fences still fire.
func (d *Device) Remove(reason error) {
	if reason == nil {
		reason = ErrDeviceRemoved
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.removed == nil {
		d.removed = reason
	}
}

// RemovalReason implements hal.Device.
func (d *Device) RemovalReason() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removed
}

// checkAlive returns the removal error, wrapped with the failing op.
func (d *Device) checkAlive(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.removed != nil {
		return fmt.Errorf("%s: %w", op, d.removed)
	}
	return nil
}

// CreateQueue implements hal.Device.
func (d *Device) CreateQueue(desc *hal.QueueDescriptor) (hal.Queue, error) {
	if err := d.checkAlive("create queue"); err != nil {
		return nil, err
	}
	class := hal.EngineDirect
	label := ""
	if desc != nil {
		class = desc.Class
		label = desc.Label
	}
	q := newQueue(d, class, label)
	d.mu.Lock()
	d.queues = append(d.queues, q)
	d.mu.Unlock()
	return q, nil
}

// CreateFence implements hal.Device.
func (d *Device) CreateFence(desc *hal.FenceDescriptor) (hal.Fence, error) {
	if err := d.checkAlive("create fence"); err != nil {
		return nil, err
	}
	var initial uint64
	var flags hal.FenceFlags
	if desc != nil {
		initial = desc.Initial
		flags = desc.Flags
	}
	return newFence(initial, flags), nil
}

// CreateHeap implements hal.Device.
func (d *Device) CreateHeap(desc *hal.HeapDescriptor) (hal.Heap, error) {
	if err := d.checkAlive("create heap"); err != nil {
		return nil, err
	}
	if desc == nil || desc.Size == 0 {
		return nil, fmt.Errorf("create heap: %w: zero size", ErrOutOfBounds)
	}
	return newHeap(desc.Size, desc.Flags), nil
}

// CreateBuffer implements hal.Device.
func (d *Device) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	if err := d.checkAlive("create buffer"); err != nil {
		return nil, err
	}
	if desc == nil || desc.Size == 0 {
		return nil, fmt.Errorf("create buffer: %w: zero size", ErrOutOfBounds)
	}
	return newCommittedBuffer(desc.Size), nil
}

// CreatePlacedBuffer implements hal.Device.
func (d *Device) CreatePlacedBuffer(heap hal.Heap, offset uint64, desc *hal.BufferDescriptor) (hal.Buffer, error) {
	if err := d.checkAlive("create placed buffer"); err != nil {
		return nil, err
	}
	h, ok := heap.(*Heap)
	if !ok || h == nil {
		return nil, fmt.Errorf("create placed buffer: heap is not a simulator heap")
	}
	if desc == nil || desc.Size == 0 {
		return nil, fmt.Errorf("create placed buffer: %w: zero size", ErrOutOfBounds)
	}
	return h.place(offset, desc.Size)
}

// CreateAllocator implements hal.Device.
func (d *Device) CreateAllocator(class hal.EngineClass) (hal.Allocator, error) {
	if err := d.checkAlive("create allocator"); err != nil {
		return nil, err
	}
	return &Allocator{class: class}, nil
}

// CreateList implements hal.Device.
func (d *Device) CreateList(class hal.EngineClass, alloc hal.Allocator) (hal.List, error) {
	if err := d.checkAlive("create list"); err != nil {
		return nil, err
	}
	a, ok := alloc.(*Allocator)
	if !ok || a == nil {
		return nil, fmt.Errorf("create list: allocator is not a simulator allocator")
	}
	return &List{class: class, alloc: a}, nil
}

// Destroy implements hal.Device.
func (d *Device) Destroy() {
	d.mu.Lock()
	queues := d.queues
	d.queues = nil
	d.mu.Unlock()
	for _, q := range queues {
		q.Destroy()
	}
}
