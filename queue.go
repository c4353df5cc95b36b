package gdev

import (
	"fmt"
	"time"

	"github.com/gogpu/gdev/hal"
)

// Queue is an ordered, asynchronous submission channel bound to one
// engine class. Batches submitted to the same queue complete in
// submission order; there is no ordering relative to other queues unless
// a fence Signal/Wait edge is inserted explicitly.
//
// Queue is safe for concurrent use. None of its methods block the CPU.
type Queue struct {
	dev   *Device
	raw   hal.Queue
	class hal.EngineClass
	label string
}

// Class reports the engine class the queue was created with.
func (q *Queue) Class() hal.EngineClass { return q.class }

// Label returns the queue's debug label.
func (q *Queue) Label() string { return q.label }

// Raw returns the underlying native queue.
func (q *Queue) Raw() hal.Queue { return q.raw }

// ExecuteCommandLists appends a batch to the queue's FIFO. Lists execute
// in argument order but may still overlap with batches from other
// queues. Every list must be Closed; on success each list moves to
// Submitted.
func (q *Queue) ExecuteCommandLists(lists ...*CommandList) error {
	raws := make([]hal.List, len(lists))
	for i, l := range lists {
		if st := l.State(); st != ListStateClosed {
			return fmt.Errorf("execute list %d (state %v): %w", i, st, ErrListNotClosed)
		}
		raws[i] = l.raw
	}
	if err := q.raw.Execute(raws); err != nil {
		return &DeviceError{Op: "ExecuteCommandLists", Err: err}
	}
	for _, l := range lists {
		l.markSubmitted()
	}
	return nil
}

// Signal schedules a fence update that becomes visible only after all
// work previously submitted to this queue completes.
func (q *Queue) Signal(f *Fence, value uint64) error {
	if err := q.raw.Signal(f.raw, value); err != nil {
		return &DeviceError{Op: "Queue.Signal", Err: err}
	}
	Logger().Debug("gdev: queue signal scheduled",
		"queue", q.label, "fence", f.label, "value", value)
	return nil
}

// Wait schedules a queue-side stall: this queue will not begin its next
// batch until f reaches value. The CPU is not blocked. A queue waiting
// on a value only it could signal deadlocks; keep the wait/signal graph
// acyclic.
func (q *Queue) Wait(f *Fence, value uint64) error {
	if err := q.raw.Wait(f.raw, value); err != nil {
		return &DeviceError{Op: "Queue.Wait", Err: err}
	}
	Logger().Debug("gdev: queue wait scheduled",
		"queue", q.label, "fence", f.label, "value", value)
	return nil
}

// Flush signals f with value on this queue and blocks the CPU until the
// signal completes, i.e. until everything previously submitted has
// drained. Teardown and resize helper. A timeout <= 0 waits
// indefinitely.
func (q *Queue) Flush(f *Fence, value uint64, timeout time.Duration) error {
	if err := q.Signal(f, value); err != nil {
		return err
	}
	if err := f.Wait(value, timeout); err != nil {
		return fmt.Errorf("flush queue %q: %w", q.label, err)
	}
	Logger().Info("gdev: queue drained", "queue", q.label, "value", value)
	return nil
}

// Destroy releases the queue. Drain it through Flush first.
func (q *Queue) Destroy() {
	q.raw.Destroy()
}
