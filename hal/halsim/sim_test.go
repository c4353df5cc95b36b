// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halsim

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gdev/hal"
)

// testEvent is a minimal hal.Event for exercising fence wakeups.
type testEvent struct {
	ch chan struct{}
}

func newTestEvent() *testEvent { return &testEvent{ch: make(chan struct{}, 1)} }

func (e *testEvent) Set() {
	select {
	case e.ch <- struct{}{}:
	default:
	}
}

func (e *testEvent) Wait(timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		<-e.ch
		return true, nil
	}
	select {
	case <-e.ch:
		return true, nil
	case <-time.After(timeout):
		return false, nil
	}
}

func (e *testEvent) Close() error { return nil }

func mustQueue(t *testing.T, d *Device) *Queue {
	t.Helper()
	q, err := d.CreateQueue(&hal.QueueDescriptor{Label: t.Name(), Class: hal.EngineDirect})
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	return q.(*Queue)
}

func mustFence(t *testing.T, d *Device, initial uint64, flags hal.FenceFlags) hal.Fence {
	t.Helper()
	f, err := d.CreateFence(&hal.FenceDescriptor{Initial: initial, Flags: flags})
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	return f
}

func TestQueue_PauseStepResume(t *testing.T) {
	d := New()
	defer d.Destroy()
	q := mustQueue(t, d)
	f := mustFence(t, d, 0, hal.FenceFlagNone)

	q.Pause()
	for v := uint64(1); v <= 3; v++ {
		if err := q.Signal(f, v); err != nil {
			t.Fatalf("Signal(%d): %v", v, err)
		}
	}
	time.Sleep(10 * time.Millisecond)
	if got := f.CompletedValue(); got != 0 {
		t.Fatalf("paused queue advanced fence to %d", got)
	}

	// Each step releases exactly one op.
	q.Step(1)
	waitFenceValue(t, f, 1)
	q.Step(1)
	waitFenceValue(t, f, 2)

	q.Resume()
	q.WaitIdle()
	if got := f.CompletedValue(); got != 3 {
		t.Errorf("CompletedValue after resume = %d, want 3", got)
	}
}

// waitFenceValue polls until the fence reaches exactly value and stays
// there long enough to rule out overshoot.
func waitFenceValue(t *testing.T, f hal.Fence, value uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for f.CompletedValue() < value {
		if time.Now().After(deadline) {
			t.Fatalf("fence stuck at %d, want %d", f.CompletedValue(), value)
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(5 * time.Millisecond)
	if got := f.CompletedValue(); got != value {
		t.Fatalf("fence overshot to %d, want %d", got, value)
	}
}

func TestAllocator_ResetWhileInFlight(t *testing.T) {
	d := New()
	defer d.Destroy()
	q := mustQueue(t, d)
	f := mustFence(t, d, 0, hal.FenceFlagNone)

	alloc, err := d.CreateAllocator(hal.EngineDirect)
	if err != nil {
		t.Fatalf("CreateAllocator: %v", err)
	}
	list, err := d.CreateList(hal.EngineDirect, alloc)
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	buf, err := d.CreateBuffer(&hal.BufferDescriptor{Size: 8})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := list.FillBuffer(buf, 0, 8, 1); err != nil {
		t.Fatalf("FillBuffer: %v", err)
	}
	if err := list.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	q.Pause()
	if err := q.Execute([]hal.List{list}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// The batch has not run: the allocator must refuse to reset.
	if err := alloc.Reset(); !errors.Is(err, ErrAllocatorInFlight) {
		t.Errorf("Reset err = %v, want ErrAllocatorInFlight", err)
	}

	q.Resume()
	if err := q.Signal(f, 1); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	waitFenceValue(t, f, 1)
	if err := alloc.Reset(); err != nil {
		t.Errorf("Reset after completion: %v", err)
	}
}

func TestQueue_ExecuteOpenListRejected(t *testing.T) {
	d := New()
	defer d.Destroy()
	q := mustQueue(t, d)

	alloc, err := d.CreateAllocator(hal.EngineDirect)
	if err != nil {
		t.Fatalf("CreateAllocator: %v", err)
	}
	list, err := d.CreateList(hal.EngineDirect, alloc)
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	if err := q.Execute([]hal.List{list}); !errors.Is(err, ErrListOpen) {
		t.Errorf("Execute err = %v, want ErrListOpen", err)
	}
}

func TestFence_EventFiresOncePerRegistration(t *testing.T) {
	d := New()
	defer d.Destroy()
	f := mustFence(t, d, 0, hal.FenceFlagNone)

	// Registrations for different targets fire as each is reached.
	var evs [3]*testEvent
	for i := range evs {
		evs[i] = newTestEvent()
		if err := f.SetEventOnCompletion(uint64(i+1), evs[i]); err != nil {
			t.Fatalf("SetEventOnCompletion(%d): %v", i+1, err)
		}
	}
	if err := f.Signal(2); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	for i := 0; i < 2; i++ {
		if ok, _ := evs[i].Wait(time.Second); !ok {
			t.Errorf("event %d did not fire", i+1)
		}
	}
	if ok, _ := evs[2].Wait(10 * time.Millisecond); ok {
		t.Error("event for value 3 fired at value 2")
	}
	if err := f.Signal(3); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if ok, _ := evs[2].Wait(time.Second); !ok {
		t.Error("event for value 3 never fired")
	}
}

func TestSharedTable_WrongKindRejected(t *testing.T) {
	d := New()
	defer d.Destroy()

	f := mustFence(t, d, 0, hal.FenceFlagShared)
	h, err := d.ExportHandle(f.(*Fence), "")
	if err != nil {
		t.Fatalf("ExportHandle: %v", err)
	}
	defer h.Close()

	if _, err := d.OpenSharedHeap(h); !errors.Is(err, ErrWrongKind) {
		t.Errorf("OpenSharedHeap on fence handle err = %v, want ErrWrongKind", err)
	}
	if _, err := d.OpenSharedFence(h); err != nil {
		t.Errorf("OpenSharedFence: %v", err)
	}
}

func TestHeap_PlacementBounds(t *testing.T) {
	d := New()
	defer d.Destroy()
	heap, err := d.CreateHeap(&hal.HeapDescriptor{Size: 64})
	if err != nil {
		t.Fatalf("CreateHeap: %v", err)
	}

	tests := []struct {
		offset, size uint64
		ok           bool
	}{
		{0, 64, true},
		{32, 32, true},
		{32, 33, false},
		{64, 1, false},
		// offset+size wraps around uint64; must still be rejected.
		{^uint64(0), 2, false},
		{1, ^uint64(0), false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("off%d_size%d", tt.offset, tt.size), func(t *testing.T) {
			_, err := d.CreatePlacedBuffer(heap, tt.offset, &hal.BufferDescriptor{Size: tt.size})
			if tt.ok && err != nil {
				t.Errorf("place: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrOutOfBounds) {
				t.Errorf("place err = %v, want ErrOutOfBounds", err)
			}
		})
	}
}

func TestBuffer_AccessBoundsOverflow(t *testing.T) {
	d := New()
	defer d.Destroy()
	buf, err := d.CreateBuffer(&hal.BufferDescriptor{Size: 64})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	huge := ^uint64(0)
	if err := buf.Write(huge, make([]byte, 2)); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Write at %d err = %v, want ErrOutOfBounds", huge, err)
	}
	if err := buf.Read(huge, make([]byte, 2)); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Read at %d err = %v, want ErrOutOfBounds", huge, err)
	}

	alloc, err := d.CreateAllocator(hal.EngineDirect)
	if err != nil {
		t.Fatalf("CreateAllocator: %v", err)
	}
	list, err := d.CreateList(hal.EngineDirect, alloc)
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	if err := list.FillBuffer(buf, huge, 2, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("FillBuffer at %d err = %v, want ErrOutOfBounds", huge, err)
	}
	if err := list.CopyBufferRegion(buf, huge, buf, 0, 2); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("CopyBufferRegion to %d err = %v, want ErrOutOfBounds", huge, err)
	}
	if err := list.CopyBufferRegion(buf, 0, buf, huge, 2); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("CopyBufferRegion from %d err = %v, want ErrOutOfBounds", huge, err)
	}
}

func TestQueue_ExecuteAfterDestroyReleasesAllocator(t *testing.T) {
	d := New()
	defer d.Destroy()
	q := mustQueue(t, d)

	alloc, err := d.CreateAllocator(hal.EngineDirect)
	if err != nil {
		t.Fatalf("CreateAllocator: %v", err)
	}
	list, err := d.CreateList(hal.EngineDirect, alloc)
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	buf, err := d.CreateBuffer(&hal.BufferDescriptor{Size: 8})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := list.FillBuffer(buf, 0, 8, 1); err != nil {
		t.Fatalf("FillBuffer: %v", err)
	}
	if err := list.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	q.Destroy()
	if err := q.Execute([]hal.List{list}); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("Execute on destroyed queue err = %v, want ErrDestroyed", err)
	}
	// The rejected batch must not be counted as in flight.
	if err := alloc.Reset(); err != nil {
		t.Errorf("Reset after rejected Execute: %v", err)
	}
}

func TestQueue_ConcurrentSubmitters(t *testing.T) {
	d := New()
	defer d.Destroy()
	q := mustQueue(t, d)
	f := mustFence(t, d, 0, hal.FenceFlagNone)

	// Many goroutines race signals through one queue; the FIFO worker
	// serializes them and the counter ends at the maximum.
	const goroutines = 8
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 1; i <= 50; i++ {
				_ = q.Signal(f, uint64(g*50+i))
			}
		}(g)
	}
	wg.Wait()
	q.WaitIdle()
	if got := f.CompletedValue(); got != goroutines*50 {
		t.Errorf("CompletedValue = %d, want %d", got, goroutines*50)
	}
}
