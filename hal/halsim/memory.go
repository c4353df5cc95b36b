// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halsim

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/gdev/hal"
)

// heapState is the byte backing shared by a heap and all of its imported
// copies. One mutex guards the whole pool; placed buffers alias sub-ranges
// of bytes.
type heapState struct {
	mu    sync.Mutex
	bytes []byte
}

// Heap implements hal.Heap over a plain byte slice.
type Heap struct {
	st    *heapState
	size  uint64
	flags hal.HeapFlags
}

func newHeap(size uint64, flags hal.HeapFlags) *Heap {
	return &Heap{
		st:    &heapState{bytes: make([]byte, size)},
		size:  size,
		flags: flags,
	}
}

// SharedKind implements hal.Shareable.
func (h *Heap) SharedKind() hal.HandleKind { return hal.HandleHeap }

// Size implements hal.Heap.
func (h *Heap) Size() uint64 { return h.size }

// Destroy implements hal.Heap. The backing memory survives as long as any
// imported copy or placed buffer still references it.
func (h *Heap) Destroy() {}

// place creates a buffer aliasing [offset, offset+size) of the heap.
func (h *Heap) place(offset, size uint64) (*Buffer, error) {
	if offset > h.size || size > h.size-offset {
		return nil, fmt.Errorf("place at %d size %d in heap of %d: %w",
			offset, size, h.size, ErrOutOfBounds)
	}
	return &Buffer{st: h.st, off: offset, size: size}, nil
}

// Buffer implements hal.Buffer. A committed buffer owns its own heapState;
// a placed buffer shares its heap's.
type Buffer struct {
	st   *heapState
	off  uint64
	size uint64
}

func newCommittedBuffer(size uint64) *Buffer {
	return &Buffer{
		st:   &heapState{bytes: make([]byte, size)},
		size: size,
	}
}

// Size implements hal.Buffer.
func (b *Buffer) Size() uint64 { return b.size }

// Write implements hal.Buffer.
func (b *Buffer) Write(offset uint64, p []byte) error {
	if offset > b.size || uint64(len(p)) > b.size-offset {
		return fmt.Errorf("write at %d size %d in buffer of %d: %w",
			offset, len(p), b.size, ErrOutOfBounds)
	}
	b.st.mu.Lock()
	copy(b.st.bytes[b.off+offset:], p)
	b.st.mu.Unlock()
	return nil
}

// Read implements hal.Buffer.
func (b *Buffer) Read(offset uint64, p []byte) error {
	if offset > b.size || uint64(len(p)) > b.size-offset {
		return fmt.Errorf("read at %d size %d in buffer of %d: %w",
			offset, len(p), b.size, ErrOutOfBounds)
	}
	b.st.mu.Lock()
	copy(p, b.st.bytes[b.off+offset:b.off+offset+uint64(len(p))])
	b.st.mu.Unlock()
	return nil
}

// Destroy implements hal.Buffer.
func (b *Buffer) Destroy() {}

// copyRegion performs a recorded copy on the queue worker. Both states
// are locked, in address order when they differ, so concurrent CPU access
// to unrelated ranges stays safe.
func copyRegion(dst *Buffer, dstOff uint64, src *Buffer, srcOff, size uint64) {
	if dst.st == src.st {
		dst.st.mu.Lock()
		copy(dst.st.bytes[dst.off+dstOff:dst.off+dstOff+size],
			src.st.bytes[src.off+srcOff:src.off+srcOff+size])
		dst.st.mu.Unlock()
		return
	}
	first, second := dst.st, src.st
	if uintptr(unsafe.Pointer(first)) > uintptr(unsafe.Pointer(second)) {
		first, second = second, first
	}
	first.mu.Lock()
	second.mu.Lock()
	copy(dst.st.bytes[dst.off+dstOff:dst.off+dstOff+size],
		src.st.bytes[src.off+srcOff:src.off+srcOff+size])
	second.mu.Unlock()
	first.mu.Unlock()
}

// fillRegion performs a recorded fill on the queue worker.
func fillRegion(dst *Buffer, off, size uint64, value byte) {
	dst.st.mu.Lock()
	region := dst.st.bytes[dst.off+off : dst.off+off+size]
	for i := range region {
		region[i] = value
	}
	dst.st.mu.Unlock()
}
