// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halsim

import (
	"fmt"
	"sync"

	"github.com/gogpu/gdev/hal"
)

type opKind int

const (
	opExecute opKind = iota
	opSignal
	opWait
)

// queueOp is one entry in the queue's FIFO.
type queueOp struct {
	kind    opKind
	batches []batch
	fence   *fenceState
	value   uint64
}

// Queue implements hal.Queue. A worker goroutine drains the FIFO so
// execution is genuinely asynchronous relative to the submitting CPU;
// a queue-side fence wait parks only the worker, exactly like a hardware
// queue stall.
//
// Queue is safe for concurrent use.
type Queue struct {
	dev   *Device
	class hal.EngineClass
	label string

	mu      sync.Mutex
	cond    *sync.Cond
	ops     []queueOp
	busy    bool
	paused  bool
	credits int
	closed  bool
}

func newQueue(dev *Device, class hal.EngineClass, label string) *Queue {
	q := &Queue{dev: dev, class: class, label: label}
	q.cond = sync.NewCond(&q.mu)
	go q.work()
	return q
}

// Class implements hal.Queue.
func (q *Queue) Class() hal.EngineClass { return q.class }

// Execute implements hal.Queue. Each list's recorded commands are
// snapshotted at submission, and the list's allocator is held in flight
// until the batch completes.
func (q *Queue) Execute(lists []hal.List) error {
	batches := make([]batch, 0, len(lists))
	for i, raw := range lists {
		l, ok := raw.(*List)
		if !ok || l == nil {
			return fmt.Errorf("execute: list %d is not a simulator list", i)
		}
		b, err := l.snapshot()
		if err != nil {
			return fmt.Errorf("execute: list %d: %w", i, err)
		}
		batches = append(batches, b)
	}
	for _, b := range batches {
		if b.alloc != nil {
			b.alloc.beginBatch()
		}
	}
	if err := q.push(queueOp{kind: opExecute, batches: batches}); err != nil {
		for _, b := range batches {
			if b.alloc != nil {
				b.alloc.endBatch()
			}
		}
		return err
	}
	return nil
}

// Signal implements hal.Queue. The fence update is an op in the FIFO, so
// it becomes visible only after all previously submitted work completes.
func (q *Queue) Signal(f hal.Fence, value uint64) error {
	sf, ok := f.(*Fence)
	if !ok || sf == nil {
		return fmt.Errorf("signal: fence is not a simulator fence")
	}
	return q.push(queueOp{kind: opSignal, fence: sf.st, value: value})
}

// Wait implements hal.Queue. The stall parks the worker goroutine, not
// the caller.
func (q *Queue) Wait(f hal.Fence, value uint64) error {
	sf, ok := f.(*Fence)
	if !ok || sf == nil {
		return fmt.Errorf("wait: fence is not a simulator fence")
	}
	return q.push(queueOp{kind: opWait, fence: sf.st, value: value})
}

func (q *Queue) push(op queueOp) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrDestroyed
	}
	q.ops = append(q.ops, op)
	q.cond.Broadcast()
	return nil
}

// Pause suspends the worker after the op it is currently running. Ops
// keep accumulating; use Step to release them one at a time. This is the
// harness hook for modeling an accelerator running behind the CPU.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.credits = 0
	q.mu.Unlock()
}

// Step allows a paused worker to run n more ops.
func (q *Queue) Step(n int) {
	q.mu.Lock()
	q.credits += n
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Resume returns the worker to free-running mode.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.credits = 0
	q.cond.Broadcast()
	q.mu.Unlock()
}

// WaitIdle blocks until the FIFO is empty and the worker is between ops.
// Simulation/teardown helper; client code synchronizes with fences.
func (q *Queue) WaitIdle() {
	q.mu.Lock()
	for !q.closed && (len(q.ops) > 0 || q.busy) {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// Destroy implements hal.Queue. Remaining ops are dropped; the caller
// must have drained the queue through a fence first.
func (q *Queue) Destroy() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.ops = nil
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *Queue) work() {
	for {
		q.mu.Lock()
		for !q.closed && (len(q.ops) == 0 || (q.paused && q.credits == 0)) {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		if q.paused {
			q.credits--
		}
		op := q.ops[0]
		q.ops = q.ops[1:]
		q.busy = true
		q.mu.Unlock()

		q.run(op)

		q.mu.Lock()
		q.busy = false
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (q *Queue) run(op queueOp) {
	switch op.kind {
	case opExecute:
		for _, b := range op.batches {
			b.run()
		}
	case opSignal:
		op.fence.signal(op.value)
	case opWait:
		op.fence.waitValue(op.value)
	}
}
