package gdev

import (
	"fmt"
	"time"

	"github.com/gogpu/gdev/hal"
)

// Fence is a monotonically non-decreasing 64-bit counter used to express
// happened-before between the CPU and one or more queues. Queues advance
// it with Queue.Signal; the CPU observes it with CompletedValue or blocks
// on it through an Event.
//
// Fence is safe for concurrent use. Concurrent signals of the same value
// from two goroutines are a caller-side ordering bug; derive values from
// a single counter (FramePipeline and Handoff both do).
type Fence struct {
	dev   *Device
	raw   hal.Fence
	label string
}

// Label returns the fence's debug label.
func (f *Fence) Label() string { return f.label }

// Raw returns the underlying native fence.
func (f *Fence) Raw() hal.Fence { return f.raw }

// CompletedValue returns a CPU-visible snapshot of the counter. It may
// lag the true accelerator state but never decreases.
func (f *Fence) CompletedValue() uint64 {
	return f.raw.CompletedValue()
}

// Signal force-sets the counter from the CPU. Intended for init and
// teardown; steady-state advancement belongs to Queue.Signal.
func (f *Fence) Signal(value uint64) error {
	if err := f.raw.Signal(value); err != nil {
		return &DeviceError{Op: "Fence.Signal", Err: err}
	}
	return nil
}

// SetEventOnCompletion arranges for ev.Set once the counter reaches
// value. If the value is already reached the event is set before this
// call returns, so a following ev.Wait cannot block forever on a
// completed fence. A failed registration propagates; it never silently
// drops the wake.
func (f *Fence) SetEventOnCompletion(value uint64, ev Event) error {
	if err := f.raw.SetEventOnCompletion(value, ev); err != nil {
		return &DeviceError{Op: "SetEventOnCompletion", Err: err}
	}
	return nil
}

// Wait blocks the calling goroutine until the counter reaches value or
// the timeout elapses. A timeout <= 0 waits indefinitely. This is a
// convenience over SetEventOnCompletion with a throwaway event; reuse
// one Event (as FramePipeline does) on hot paths.
func (f *Fence) Wait(value uint64, timeout time.Duration) error {
	if f.raw.CompletedValue() >= value {
		return nil
	}
	ev := NewEvent()
	defer ev.Close()
	if err := f.SetEventOnCompletion(value, ev); err != nil {
		return err
	}
	ok, err := ev.Wait(timeout)
	if err != nil {
		return fmt.Errorf("wait for fence value %d: %w", value, err)
	}
	if !ok {
		return fmt.Errorf("wait for fence value %d after %v: %w", value, timeout, ErrWaitTimeout)
	}
	return nil
}

// Destroy releases the fence. Queues, CPU waiters, and imported copies
// must be done with it first.
func (f *Fence) Destroy() {
	f.raw.Destroy()
}
