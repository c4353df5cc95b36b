package gdev

import (
	"fmt"
	"sync"

	"github.com/gogpu/gdev/hal"
)

// ListState tracks a command list through its lifecycle:
//
//	Recording -(Close)-> Closed -(ExecuteCommandLists)-> Submitted
//	Submitted -(Reset, after the allocator is safely reset)-> Recording
//
// A Submitted list becomes reusable only once the fence watermark that
// covers its batch is complete; FramePipeline makes that ordering
// unreachable to violate from client code.
type ListState int

const (
	// ListStateRecording accepts recorded operations.
	ListStateRecording ListState = iota

	// ListStateClosed is ready for submission.
	ListStateClosed

	// ListStateSubmitted is referenced by in-flight queue work.
	ListStateSubmitted
)

// String returns the string representation of ListState.
func (s ListState) String() string {
	switch s {
	case ListStateRecording:
		return "Recording"
	case ListStateClosed:
		return "Closed"
	case ListStateSubmitted:
		return "Submitted"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// CommandAllocator is the reusable memory pool command lists record
// into. An allocator must not be reset while a list built from it is
// still in flight; that invariant is enforced by FramePipeline's
// watermark check, not by the allocator itself, though the simulator
// backend also detects the violation and fails the Reset.
type CommandAllocator struct {
	dev   *Device
	raw   hal.Allocator
	class hal.EngineClass
}

// Class reports the engine class the allocator records for.
func (a *CommandAllocator) Class() hal.EngineClass { return a.class }

// Reset reclaims all memory recorded through this allocator. Only call
// it once the fence watermark covering the allocator's last batch is
// complete.
func (a *CommandAllocator) Reset() error {
	if err := a.raw.Reset(); err != nil {
		return &DeviceError{Op: "CommandAllocator.Reset", Err: err}
	}
	return nil
}

// Destroy releases the allocator.
func (a *CommandAllocator) Destroy() {
	a.raw.Destroy()
}

// CommandList is a recorded sequence of accelerator operations. Each
// allocator/list pair is exclusively owned by one frame slot and must
// not be touched by two goroutines concurrently.
type CommandList struct {
	dev   *Device
	raw   hal.List
	class hal.EngineClass

	mu    sync.Mutex
	state ListState
}

// Class reports the engine class the list records for.
func (l *CommandList) Class() hal.EngineClass { return l.class }

// State returns the current lifecycle state.
func (l *CommandList) State() ListState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// checkRecordingLocked returns an error unless the list is Recording.
// The caller must hold l.mu.
func (l *CommandList) checkRecordingLocked(op string) error {
	if l.state != ListStateRecording {
		return fmt.Errorf("%s (state %v): %w", op, l.state, ErrListNotRecording)
	}
	return nil
}

// Reset rebinds the list to alloc and reopens it for recording. The
// allocator must have been reset since the list's last submission
// (FramePipeline sequences this). Resetting a list that is still
// recording is an error.
func (l *CommandList) Reset(alloc *CommandAllocator) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == ListStateRecording {
		return fmt.Errorf("reset list: %w", ErrListRecording)
	}
	if err := l.raw.Reset(alloc.raw); err != nil {
		return &DeviceError{Op: "CommandList.Reset", Err: err}
	}
	l.state = ListStateRecording
	return nil
}

// Close ends recording. Only Closed lists may be submitted.
func (l *CommandList) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkRecordingLocked("close list"); err != nil {
		return err
	}
	if err := l.raw.Close(); err != nil {
		return &DeviceError{Op: "CommandList.Close", Err: err}
	}
	l.state = ListStateClosed
	return nil
}

func (l *CommandList) markSubmitted() {
	l.mu.Lock()
	l.state = ListStateSubmitted
	l.mu.Unlock()
}

// CopyBufferRegion records a copy of size bytes from src at srcOffset to
// dst at dstOffset.
func (l *CommandList) CopyBufferRegion(dst *Resource, dstOffset uint64, src *Resource, srcOffset, size uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkRecordingLocked("copy buffer region"); err != nil {
		return err
	}
	if err := l.raw.CopyBufferRegion(dst.raw, dstOffset, src.raw, srcOffset, size); err != nil {
		return fmt.Errorf("copy buffer region: %w", err)
	}
	return nil
}

// FillBuffer records a fill of size bytes at offset in dst with value.
func (l *CommandList) FillBuffer(dst *Resource, offset, size uint64, value byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkRecordingLocked("fill buffer"); err != nil {
		return err
	}
	if err := l.raw.FillBuffer(dst.raw, offset, size, value); err != nil {
		return fmt.Errorf("fill buffer: %w", err)
	}
	return nil
}

// ResourceBarrier records a batch of barriers submitted atomically
// before the operations that depend on the new states. Transitions are
// validated against each resource's tracked state (strict mode) and the
// tracked state is updated in recording order.
func (l *CommandList) ResourceBarrier(barriers ...Barrier) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkRecordingLocked("resource barrier"); err != nil {
		return err
	}
	raws := make([]hal.Barrier, len(barriers))
	for i, b := range barriers {
		raw, err := l.dev.tracker.apply(b)
		if err != nil {
			return fmt.Errorf("barrier %d: %w", i, err)
		}
		raws[i] = raw
	}
	if err := l.raw.ResourceBarrier(raws); err != nil {
		return fmt.Errorf("resource barrier: %w", err)
	}
	return nil
}

// Transition is shorthand for a single-entry ResourceBarrier batch.
func (l *CommandList) Transition(r *Resource, before, after hal.ResourceState) error {
	return l.ResourceBarrier(TransitionBarrier(r, before, after))
}

// Destroy releases the list.
func (l *CommandList) Destroy() {
	l.raw.Destroy()
}
