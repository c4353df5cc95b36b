package gdev

import (
	"errors"
	"testing"

	"github.com/gogpu/gdev/hal"
)

// newRecordingList returns a simulator-backed device plus an open list
// for barrier tests.
func newRecordingList(t *testing.T, cfg Config) (*Device, *CommandList) {
	t.Helper()
	if cfg.Label == "" {
		cfg.Label = t.Name()
	}
	dev, err := NewDevice(cfg)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	t.Cleanup(dev.Close)
	return dev, openList(t, dev)
}

func openList(t *testing.T, dev *Device) *CommandList {
	t.Helper()
	alloc, err := dev.CreateCommandAllocator(hal.EngineDirect)
	if err != nil {
		t.Fatalf("CreateCommandAllocator: %v", err)
	}
	list, err := dev.CreateCommandList(hal.EngineDirect, alloc)
	if err != nil {
		t.Fatalf("CreateCommandList: %v", err)
	}
	return list
}

func TestTransition_UpdatesTrackedState(t *testing.T) {
	dev, list := newRecordingList(t, Config{})

	buf, err := dev.CreateBuffer(16, hal.StateCommon, "buf")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	// A legal chain: each declared before-state matches the tracked
	// state left by the previous transition.
	chain := []struct{ before, after hal.ResourceState }{
		{hal.StateCommon, hal.StateCopyDest},
		{hal.StateCopyDest, hal.StateShaderResource},
		{hal.StateShaderResource, hal.StateCommon},
	}
	for i, step := range chain {
		if err := list.Transition(buf, step.before, step.after); err != nil {
			t.Fatalf("step %d (%v -> %v): %v", i, step.before, step.after, err)
		}
		if got := buf.State(); got != step.after {
			t.Fatalf("step %d tracked state = %v, want %v", i, got, step.after)
		}
	}
}

func TestTransition_MismatchDetected(t *testing.T) {
	dev, list := newRecordingList(t, Config{})

	buf, err := dev.CreateBuffer(16, hal.StateCopyDest, "buf")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	err = list.Transition(buf, hal.StateCommon, hal.StateShaderResource)
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("err = %v, want ErrStateMismatch", err)
	}
	// A rejected transition must not disturb the tracked state.
	if got := buf.State(); got != hal.StateCopyDest {
		t.Errorf("tracked state after rejection = %v, want %v", got, hal.StateCopyDest)
	}
}

func TestTransition_ChecksDisabled(t *testing.T) {
	dev, list := newRecordingList(t, Config{DisableStateChecks: true})

	buf, err := dev.CreateBuffer(16, hal.StateCopyDest, "buf")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	// The mismatch passes, and the tracked state still follows the
	// declared after-state.
	if err := list.Transition(buf, hal.StateCommon, hal.StateShaderResource); err != nil {
		t.Fatalf("Transition with checks disabled: %v", err)
	}
	if got := buf.State(); got != hal.StateShaderResource {
		t.Errorf("tracked state = %v, want %v", got, hal.StateShaderResource)
	}
}

func TestResourceBarrier_BatchMismatchFails(t *testing.T) {
	dev, list := newRecordingList(t, Config{})

	a, err := dev.CreateBuffer(16, hal.StateCommon, "a")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	b, err := dev.CreateBuffer(16, hal.StateCopyDest, "b")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	// The second entry is invalid; the batch must fail.
	err = list.ResourceBarrier(
		TransitionBarrier(a, hal.StateCommon, hal.StateCopySource),
		TransitionBarrier(b, hal.StateCommon, hal.StateCopySource),
	)
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("err = %v, want ErrStateMismatch", err)
	}
	if got := b.State(); got != hal.StateCopyDest {
		t.Errorf("b tracked state = %v, want %v", got, hal.StateCopyDest)
	}
}

func TestBarrier_AliasingAndUAV(t *testing.T) {
	dev, list := newRecordingList(t, Config{})

	heap, err := dev.CreateHeap(64, hal.HeapFlagNone, "pool")
	if err != nil {
		t.Fatalf("CreateHeap: %v", err)
	}
	before, err := dev.CreatePlacedBuffer(heap, 0, 32, hal.StateCommon, "before")
	if err != nil {
		t.Fatalf("CreatePlacedBuffer: %v", err)
	}
	after, err := dev.CreatePlacedBuffer(heap, 0, 32, hal.StateUnorderedAccess, "after")
	if err != nil {
		t.Fatalf("CreatePlacedBuffer: %v", err)
	}

	// Neither variant consults or disturbs tracked states.
	err = list.ResourceBarrier(
		AliasingBarrier(before, after),
		UAVBarrier(after),
		UAVBarrier(nil),
		AliasingBarrier(nil, after),
	)
	if err != nil {
		t.Fatalf("ResourceBarrier: %v", err)
	}
	if got := before.State(); got != hal.StateCommon {
		t.Errorf("before tracked state = %v, want %v", got, hal.StateCommon)
	}
	if got := after.State(); got != hal.StateUnorderedAccess {
		t.Errorf("after tracked state = %v, want %v", got, hal.StateUnorderedAccess)
	}
}

func TestBarrier_RequiresRecordingList(t *testing.T) {
	dev, list := newRecordingList(t, Config{})

	buf, err := dev.CreateBuffer(16, hal.StateCommon, "buf")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := list.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err = list.Transition(buf, hal.StateCommon, hal.StateCopyDest)
	if !errors.Is(err, ErrListNotRecording) {
		t.Errorf("err = %v, want ErrListNotRecording", err)
	}
}
