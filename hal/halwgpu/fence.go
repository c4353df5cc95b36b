// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halwgpu

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	whal "github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gdev/hal"
)

// completionPollInterval paces the waiter goroutines that stand in for
// an OS completion callback; wgpu only exposes a blocking device wait.
const completionPollInterval = 50 * time.Millisecond

// Fence adapts a wgpu fence to the timeline contract. wgpu can only
// observe a fence through a blocking device wait, so CompletedValue
// advances a cached counter by zero-timeout polls and
// SetEventOnCompletion runs a waiter goroutine per registration.
type Fence struct {
	dev *Device
	raw whal.Fence

	completed atomic.Uint64

	mu     sync.Mutex
	closed chan struct{}
}

func newFence(d *Device, raw whal.Fence) *Fence {
	return &Fence{dev: d, raw: raw, closed: make(chan struct{})}
}

// SharedKind implements hal.Shareable; wgpu fences never actually
// export (see Device.ExportHandle).
func (f *Fence) SharedKind() hal.HandleKind { return hal.HandleFence }

// CompletedValue polls the next uncached value with a zero timeout and
// advances the cache as far as the poll reaches.
func (f *Fence) CompletedValue() uint64 {
	for {
		next := f.completed.Load() + 1
		ok, err := f.dev.raw.Wait(f.raw, next, 0)
		if err != nil || !ok {
			return f.completed.Load()
		}
		f.completed.CompareAndSwap(next-1, next)
	}
}

// Signal is unsupported; wgpu fences advance only through queue
// submission.
func (f *Fence) Signal(uint64) error {
	return fmt.Errorf("halwgpu: CPU fence signal: %w", hal.ErrUnsupported)
}

// SetEventOnCompletion starts a waiter goroutine that blocks in the
// device wait and sets ev when value is reached. The goroutine exits
// when the fence is destroyed.
func (f *Fence) SetEventOnCompletion(value uint64, ev hal.Event) error {
	if f.CompletedValue() >= value {
		ev.Set()
		return nil
	}
	go func() {
		for {
			select {
			case <-f.closed:
				return
			default:
			}
			ok, err := f.dev.raw.Wait(f.raw, value, completionPollInterval)
			if err != nil {
				return
			}
			if ok {
				for {
					cur := f.completed.Load()
					if cur >= value || f.completed.CompareAndSwap(cur, value) {
						break
					}
				}
				ev.Set()
				return
			}
		}
	}()
	return nil
}

// Destroy stops outstanding waiters and releases the fence.
func (f *Fence) Destroy() {
	f.mu.Lock()
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	f.mu.Unlock()
	f.dev.raw.DestroyFence(f.raw)
}
