// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halsim

import (
	"fmt"
	"sync"

	"github.com/gogpu/gdev/hal"
)

// Allocator implements hal.Allocator. It does not own command storage
// (lists carry their own slices); its job is the in-flight contract:
// Reset fails while any batch recorded through it is still executing.
type Allocator struct {
	mu       sync.Mutex
	class    hal.EngineClass
	inFlight int
}

// Reset implements hal.Allocator.
func (a *Allocator) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inFlight > 0 {
		return fmt.Errorf("%w: %d batch(es) pending", ErrAllocatorInFlight, a.inFlight)
	}
	return nil
}

// Destroy implements hal.Allocator.
func (a *Allocator) Destroy() {}

func (a *Allocator) beginBatch() {
	a.mu.Lock()
	a.inFlight++
	a.mu.Unlock()
}

func (a *Allocator) endBatch() {
	a.mu.Lock()
	a.inFlight--
	a.mu.Unlock()
}

// cmdKind discriminates recorded commands.
type cmdKind int

const (
	cmdCopy cmdKind = iota
	cmdFill
	cmdBarrier
)

// command is one recorded operation. Barriers are validated at record
// time by the gdev layer and are inert during simulated execution.
type command struct {
	kind           cmdKind
	dst, src       *Buffer
	dstOff, srcOff uint64
	size           uint64
	fill           byte
}

// List implements hal.List. A list is not safe for concurrent use; the
// gdev wrapper documents single-goroutine ownership per frame slot.
type List struct {
	mu     sync.Mutex
	class  hal.EngineClass
	alloc  *Allocator
	cmds   []command
	closed bool
}

// Reset implements hal.List.
func (l *List) Reset(alloc hal.Allocator) error {
	a, ok := alloc.(*Allocator)
	if !ok || a == nil {
		return fmt.Errorf("list reset: allocator is not a simulator allocator")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alloc = a
	l.cmds = nil
	l.closed = false
	return nil
}

// Close implements hal.List.
func (l *List) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrListClosed
	}
	l.closed = true
	return nil
}

// CopyBufferRegion implements hal.List.
func (l *List) CopyBufferRegion(dst hal.Buffer, dstOffset uint64, src hal.Buffer, srcOffset, size uint64) error {
	db, ok := dst.(*Buffer)
	if !ok {
		return fmt.Errorf("copy: destination is not a simulator buffer")
	}
	sb, ok := src.(*Buffer)
	if !ok {
		return fmt.Errorf("copy: source is not a simulator buffer")
	}
	if dstOffset > db.size || size > db.size-dstOffset ||
		srcOffset > sb.size || size > sb.size-srcOffset {
		return fmt.Errorf("copy of %d bytes: %w", size, ErrOutOfBounds)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrListClosed
	}
	l.cmds = append(l.cmds, command{
		kind: cmdCopy, dst: db, src: sb,
		dstOff: dstOffset, srcOff: srcOffset, size: size,
	})
	return nil
}

// FillBuffer implements hal.List.
func (l *List) FillBuffer(dst hal.Buffer, offset, size uint64, value byte) error {
	db, ok := dst.(*Buffer)
	if !ok {
		return fmt.Errorf("fill: destination is not a simulator buffer")
	}
	if offset > db.size || size > db.size-offset {
		return fmt.Errorf("fill of %d bytes: %w", size, ErrOutOfBounds)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrListClosed
	}
	l.cmds = append(l.cmds, command{kind: cmdFill, dst: db, dstOff: offset, size: size, fill: value})
	return nil
}

// ResourceBarrier implements hal.List.
func (l *List) ResourceBarrier(barriers []hal.Barrier) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrListClosed
	}
	l.cmds = append(l.cmds, command{kind: cmdBarrier})
	return nil
}

// Destroy implements hal.List.
func (l *List) Destroy() {}

// snapshot captures the recorded commands and allocator for submission,
// so a later Reset of the list cannot disturb in-flight work.
func (l *List) snapshot() (batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		return batch{}, ErrListOpen
	}
	return batch{cmds: l.cmds, alloc: l.alloc}, nil
}

// batch is one submitted list's captured work.
type batch struct {
	cmds  []command
	alloc *Allocator
}

func (b batch) run() {
	for _, c := range b.cmds {
		switch c.kind {
		case cmdCopy:
			copyRegion(c.dst, c.dstOff, c.src, c.srcOff, c.size)
		case cmdFill:
			fillRegion(c.dst, c.dstOff, c.size, c.fill)
		case cmdBarrier:
			// States are validated when recorded; execution is inert.
		}
	}
	if b.alloc != nil {
		b.alloc.endBatch()
	}
}
