// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halsim

import (
	"fmt"
	"sync"

	"github.com/gogpu/gdev/hal"
)

// sharedTable models the OS handle namespace. It is process-global so two
// simulator devices — standing in for two adapters or two processes —
// resolve the same names, the way named OS handles behave.
var sharedTable = struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*sharedEntry
	byName map[string]*sharedEntry
}{
	byID:   make(map[uint64]*sharedEntry),
	byName: make(map[string]*sharedEntry),
}

type sharedEntry struct {
	id    uint64
	name  string
	kind  hal.HandleKind
	fence *fenceState
	heap  *heapState
	size  uint64
	flags hal.HeapFlags
}

// Handle implements hal.SharedHandle.
type Handle struct {
	entry *sharedEntry
}

// Kind implements hal.SharedHandle.
func (h *Handle) Kind() hal.HandleKind { return h.entry.kind }

// Name implements hal.SharedHandle.
func (h *Handle) Name() string { return h.entry.name }

// Close implements hal.SharedHandle. Objects already imported through the
// handle are unaffected.
func (h *Handle) Close() {
	sharedTable.mu.Lock()
	delete(sharedTable.byID, h.entry.id)
	if h.entry.name != "" {
		delete(sharedTable.byName, h.entry.name)
	}
	sharedTable.mu.Unlock()
}

// ExportHandle implements hal.Device.
func (d *Device) ExportHandle(obj hal.Shareable, name string) (hal.SharedHandle, error) {
	if err := d.checkAlive("export handle"); err != nil {
		return nil, err
	}
	entry := &sharedEntry{name: name}
	switch o := obj.(type) {
	case *Fence:
		if o.flags&(hal.FenceFlagShared|hal.FenceFlagSharedCrossAdapter) == 0 {
			return nil, fmt.Errorf("export fence: %w", ErrNotShared)
		}
		entry.kind = hal.HandleFence
		entry.fence = o.st
	case *Heap:
		if o.flags&(hal.HeapFlagShared|hal.HeapFlagSharedCrossAdapter) == 0 {
			return nil, fmt.Errorf("export heap: %w", ErrNotShared)
		}
		entry.kind = hal.HandleHeap
		entry.heap = o.st
		entry.size = o.size
		entry.flags = o.flags
	default:
		return nil, fmt.Errorf("export handle: unsupported object %T", obj)
	}

	sharedTable.mu.Lock()
	sharedTable.nextID++
	entry.id = sharedTable.nextID
	sharedTable.byID[entry.id] = entry
	if name != "" {
		sharedTable.byName[name] = entry
	}
	sharedTable.mu.Unlock()

	return &Handle{entry: entry}, nil
}

// OpenSharedHandleByName implements hal.Device.
func (d *Device) OpenSharedHandleByName(name string) (hal.SharedHandle, error) {
	if err := d.checkAlive("open shared handle"); err != nil {
		return nil, err
	}
	sharedTable.mu.Lock()
	entry, ok := sharedTable.byName[name]
	sharedTable.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("open %q: %w", name, ErrUnknownName)
	}
	return &Handle{entry: entry}, nil
}

// OpenSharedFence implements hal.Device. The returned fence aliases the
// exporter's counter.
func (d *Device) OpenSharedFence(h hal.SharedHandle) (hal.Fence, error) {
	if err := d.checkAlive("open shared fence"); err != nil {
		return nil, err
	}
	sh, ok := h.(*Handle)
	if !ok || sh.entry.kind != hal.HandleFence {
		return nil, fmt.Errorf("open shared fence: %w", ErrWrongKind)
	}
	return &Fence{st: sh.entry.fence, flags: hal.FenceFlagShared}, nil
}

// OpenSharedHeap implements hal.Device. The returned heap aliases the
// exporter's backing memory.
func (d *Device) OpenSharedHeap(h hal.SharedHandle) (hal.Heap, error) {
	if err := d.checkAlive("open shared heap"); err != nil {
		return nil, err
	}
	sh, ok := h.(*Handle)
	if !ok || sh.entry.kind != hal.HandleHeap {
		return nil, fmt.Errorf("open shared heap: %w", ErrWrongKind)
	}
	return &Heap{st: sh.entry.heap, size: sh.entry.size, flags: sh.entry.flags}, nil
}
