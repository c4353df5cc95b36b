// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halwgpu

import (
	"fmt"
	"sync"

	whal "github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gdev/hal"
)

// Queue adapts the device's single hardware queue. wgpu couples command
// submission with fence signaling in one call, so Execute only collects
// closed command buffers; the next Signal flushes them to the hardware
// together with the fence update. A Signal with no pending buffers
// submits an empty batch, which still honors queue ordering.
type Queue struct {
	dev   *Device
	class hal.EngineClass

	mu      sync.Mutex
	pending []whal.CommandBuffer
}

// Class reports the engine class the queue was requested with.
func (q *Queue) Class() hal.EngineClass { return q.class }

// Execute collects the lists' command buffers for the next flush.
func (q *Queue) Execute(lists []hal.List) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, l := range lists {
		wl, ok := l.(*List)
		if !ok {
			return fmt.Errorf("halwgpu: execute: list %d is %T, not a halwgpu list", i, l)
		}
		cb, err := wl.take()
		if err != nil {
			return fmt.Errorf("halwgpu: execute list %d: %w", i, err)
		}
		q.pending = append(q.pending, cb)
	}
	return nil
}

// Signal submits everything collected since the previous Signal and
// schedules the fence update behind it.
func (q *Queue) Signal(f hal.Fence, value uint64) error {
	wf, ok := f.(*Fence)
	if !ok {
		return fmt.Errorf("halwgpu: signal: fence is %T, not a halwgpu fence", f)
	}
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()
	if err := q.dev.queue.Submit(batch, wf.raw, value); err != nil {
		return fmt.Errorf("halwgpu: submit %d buffers: %w", len(batch), err)
	}
	for _, cb := range batch {
		q.dev.raw.FreeCommandBuffer(cb)
	}
	return nil
}

// Wait is unsupported; wgpu has a single queue and no queue-side fence
// waits.
func (q *Queue) Wait(hal.Fence, uint64) error {
	return fmt.Errorf("halwgpu: queue-side wait: %w", hal.ErrUnsupported)
}

// Destroy releases the wrapper. The hardware queue belongs to the
// device.
func (q *Queue) Destroy() {}

// Allocator is a token; wgpu encoders own their recording memory and
// release it when the command buffer is freed after submission.
type Allocator struct {
	class hal.EngineClass
}

// Reset implements hal.Allocator. Nothing to reclaim.
func (a *Allocator) Reset() error { return nil }

// Destroy implements hal.Allocator.
func (a *Allocator) Destroy() {}

// List adapts a wgpu command encoder to the reset/record/close
// lifecycle. Each Reset creates a fresh encoder; Close finishes it into
// a command buffer that Execute hands to the queue.
type List struct {
	dev   *Device
	class hal.EngineClass

	enc whal.CommandEncoder
	cb  whal.CommandBuffer
}

func (l *List) open() error {
	enc, err := l.dev.raw.CreateCommandEncoder(&whal.CommandEncoderDescriptor{
		Label: "gdev-list",
	})
	if err != nil {
		return fmt.Errorf("halwgpu: create encoder: %w", err)
	}
	if err := enc.BeginEncoding("gdev-list"); err != nil {
		return fmt.Errorf("halwgpu: begin encoding: %w", err)
	}
	l.enc = enc
	return nil
}

// Reset reopens the list with a fresh encoder. The allocator argument is
// unused; see Allocator.
func (l *List) Reset(hal.Allocator) error {
	if l.enc != nil {
		l.enc.DiscardEncoding()
		l.enc = nil
	}
	if l.cb != nil {
		l.dev.raw.FreeCommandBuffer(l.cb)
		l.cb = nil
	}
	return l.open()
}

// Close finishes encoding into a command buffer.
func (l *List) Close() error {
	if l.enc == nil {
		return fmt.Errorf("halwgpu: close: list not recording")
	}
	cb, err := l.enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("halwgpu: end encoding: %w", err)
	}
	l.enc = nil
	l.cb = cb
	return nil
}

// take hands the finished command buffer to the queue; ownership moves
// with it.
func (l *List) take() (whal.CommandBuffer, error) {
	if l.cb == nil {
		return nil, fmt.Errorf("halwgpu: list has no closed command buffer")
	}
	cb := l.cb
	l.cb = nil
	return cb, nil
}

// CopyBufferRegion records a buffer-to-buffer copy.
func (l *List) CopyBufferRegion(dst hal.Buffer, dstOffset uint64, src hal.Buffer, srcOffset, size uint64) error {
	if l.enc == nil {
		return fmt.Errorf("halwgpu: copy: list not recording")
	}
	wd, ok := dst.(*Buffer)
	if !ok {
		return fmt.Errorf("halwgpu: copy: dst is %T, not a halwgpu buffer", dst)
	}
	ws, ok := src.(*Buffer)
	if !ok {
		return fmt.Errorf("halwgpu: copy: src is %T, not a halwgpu buffer", src)
	}
	l.enc.CopyBufferToBuffer(ws.raw, wd.raw, []whal.BufferCopy{{
		SrcOffset: srcOffset,
		DstOffset: dstOffset,
		Size:      size,
	}})
	return nil
}

// FillBuffer is unsupported; the wgpu hal exposes no recorded fill.
// Upload a pattern with Buffer.Write or record a copy from a prepared
// source instead.
func (l *List) FillBuffer(hal.Buffer, uint64, uint64, byte) error {
	return fmt.Errorf("halwgpu: fill buffer: %w", hal.ErrUnsupported)
}

// ResourceBarrier accepts and drops the batch; wgpu tracks buffer usage
// internally and inserts its own barriers at submission.
func (l *List) ResourceBarrier([]hal.Barrier) error {
	if l.enc == nil {
		return fmt.Errorf("halwgpu: barrier: list not recording")
	}
	return nil
}

// Destroy discards any open encoding and frees an unclaimed command
// buffer.
func (l *List) Destroy() {
	if l.enc != nil {
		l.enc.DiscardEncoding()
		l.enc = nil
	}
	if l.cb != nil {
		l.dev.raw.FreeCommandBuffer(l.cb)
		l.cb = nil
	}
}
