// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halsim

import (
	"sync"

	"github.com/gogpu/gdev/hal"
)

// fenceState is the shared timeline counter behind one fence and all of
// its imported copies. Queue-side waits park on cond; CPU-side waits go
// through registered events so the already-completed race cannot lose a
// wake.
type fenceState struct {
	mu      sync.Mutex
	cond    *sync.Cond
	value   uint64
	waiters []fenceWaiter
}

type fenceWaiter struct {
	target uint64
	ev     hal.Event
}

func newFenceState(initial uint64) *fenceState {
	st := &fenceState{value: initial}
	st.cond = sync.NewCond(&st.mu)
	return st
}

// signal raises the counter to value. Lower values are ignored so the
// counter never decreases. Satisfied event registrations fire outside the
// lock.
func (st *fenceState) signal(value uint64) {
	st.mu.Lock()
	if value <= st.value {
		st.mu.Unlock()
		return
	}
	st.value = value
	st.cond.Broadcast()

	var fired []hal.Event
	remaining := st.waiters[:0]
	for _, w := range st.waiters {
		if w.target <= st.value {
			fired = append(fired, w.ev)
		} else {
			remaining = append(remaining, w)
		}
	}
	st.waiters = remaining
	st.mu.Unlock()

	for _, ev := range fired {
		ev.Set()
	}
}

// waitValue blocks the calling goroutine (a queue worker) until the
// counter reaches value.
func (st *fenceState) waitValue(value uint64) {
	st.mu.Lock()
	for st.value < value {
		st.cond.Wait()
	}
	st.mu.Unlock()
}

func (st *fenceState) completed() uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.value
}

// Fence implements hal.Fence. Imported copies share the same fenceState,
// so a signal on one device is observed by every copy.
type Fence struct {
	st    *fenceState
	flags hal.FenceFlags
}

func newFence(initial uint64, flags hal.FenceFlags) *Fence {
	return &Fence{st: newFenceState(initial), flags: flags}
}

// SharedKind implements hal.Shareable.
func (f *Fence) SharedKind() hal.HandleKind { return hal.HandleFence }

// CompletedValue implements hal.Fence.
func (f *Fence) CompletedValue() uint64 { return f.st.completed() }

// Signal implements hal.Fence.
func (f *Fence) Signal(value uint64) error {
	f.st.signal(value)
	return nil
}

// SetEventOnCompletion implements hal.Fence. If value is already reached
// the event is set before returning.
func (f *Fence) SetEventOnCompletion(value uint64, ev hal.Event) error {
	f.st.mu.Lock()
	if f.st.value >= value {
		f.st.mu.Unlock()
		ev.Set()
		return nil
	}
	f.st.waiters = append(f.st.waiters, fenceWaiter{target: value, ev: ev})
	f.st.mu.Unlock()
	return nil
}

// Destroy implements hal.Fence. The shared counter survives as long as
// any imported copy still references it.
func (f *Fence) Destroy() {}
