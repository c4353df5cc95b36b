package gdev

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gogpu/gdev/hal"
)

// ResourceSelector publishes which buffer of a two-deep ring the
// consumer should read next. The worker writes buffer 1-i while the
// published index is i, then swaps; the consumer samples Load once per
// frame and may lag behind without tearing.
type ResourceSelector struct {
	idx atomic.Uint32
}

// Load returns the index the consumer should read.
func (s *ResourceSelector) Load() int { return int(s.idx.Load()) }

// Swap publishes the freshly written buffer and returns the previously
// published index.
func (s *ResourceSelector) Swap() int {
	for {
		old := s.idx.Load()
		if s.idx.CompareAndSwap(old, 1-old) {
			return int(old)
		}
	}
}

// AsyncComputeConfig configures an AsyncCompute worker.
type AsyncComputeConfig struct {
	// Device creates the worker's recording objects and pacing fence.
	Device *Device

	// Queue receives the worker's submissions; typically a dedicated
	// hal.EngineCompute queue so compute overlaps the direct queue.
	Queue *Queue

	// Handoff, if set, brackets every round with BeginAccess/EndAccess
	// so the worker can feed a peer over a shared resource. Nil runs
	// the worker free of any cross-party protocol.
	Handoff *Handoff

	// Selector publishes the freshly written ring index after each
	// round. Required.
	Selector *ResourceSelector

	// Record records one simulation round targeting ring buffer target.
	// It runs on the worker goroutine with list open for recording.
	Record func(target int, list *CommandList) error

	// Rounds bounds the worker; 0 runs until the context is canceled.
	Rounds uint64
}

// AsyncCompute runs a compute workload on its own goroutine and queue,
// double buffering its output so a consumer on another queue always has
// a complete result to read. Each round records into the ring buffer the
// selector does not currently publish, submits, waits for completion on
// its own fence, and only then publishes the new index.
type AsyncCompute struct {
	cfg   AsyncComputeConfig
	fence *Fence
	alloc *CommandAllocator
	list  *CommandList

	done   chan struct{}
	rounds atomic.Uint64
	err    error
}

// StartAsyncCompute creates the worker's recording objects and launches
// the worker goroutine. Cancel ctx to stop it; then call Wait.
func StartAsyncCompute(ctx context.Context, cfg AsyncComputeConfig) (*AsyncCompute, error) {
	if cfg.Device == nil || cfg.Queue == nil {
		return nil, fmt.Errorf("async compute needs a device and a queue")
	}
	if cfg.Selector == nil || cfg.Record == nil {
		return nil, fmt.Errorf("async compute needs a selector and a record func")
	}
	fence, err := cfg.Device.CreateFence(0, hal.FenceFlagNone, "async-compute")
	if err != nil {
		return nil, err
	}
	alloc, err := cfg.Device.CreateCommandAllocator(cfg.Queue.Class())
	if err != nil {
		fence.Destroy()
		return nil, err
	}
	list, err := cfg.Device.CreateCommandList(cfg.Queue.Class(), alloc)
	if err != nil {
		alloc.Destroy()
		fence.Destroy()
		return nil, err
	}
	if err := list.Close(); err != nil {
		list.Destroy()
		alloc.Destroy()
		fence.Destroy()
		return nil, err
	}
	w := &AsyncCompute{cfg: cfg, fence: fence, alloc: alloc, list: list,
		done: make(chan struct{})}
	go w.run(ctx)
	return w, nil
}

// Rounds reports how many simulation rounds have been published.
func (w *AsyncCompute) Rounds() uint64 { return w.rounds.Load() }

// Wait blocks until the worker goroutine exits and returns its terminal
// error, if any. Context cancellation is a clean exit, not an error. A
// timeout <= 0 waits indefinitely.
func (w *AsyncCompute) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		<-w.done
		return w.err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return w.err
	case <-timer.C:
		return fmt.Errorf("async compute still running after %v: %w",
			timeout, ErrWaitTimeout)
	}
}

func (w *AsyncCompute) run(ctx context.Context) {
	defer close(w.done)
	defer w.release()
	var fenceValue uint64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if w.cfg.Rounds > 0 && w.rounds.Load() >= w.cfg.Rounds {
			return
		}
		if err := w.round(&fenceValue); err != nil {
			w.err = err
			Logger().Error("gdev: async compute stopped", "err", err)
			return
		}
	}
}

// round records, submits, and completes one simulation step, then
// publishes the written ring index.
func (w *AsyncCompute) round(fenceValue *uint64) error {
	if w.cfg.Handoff != nil {
		if err := w.cfg.Handoff.BeginAccess(); err != nil {
			return err
		}
	}
	// The rounds completed so far fully cover the last submission, so
	// the allocator is safe to reclaim here.
	if err := w.alloc.Reset(); err != nil {
		return err
	}
	if err := w.list.Reset(w.alloc); err != nil {
		return err
	}
	target := 1 - w.cfg.Selector.Load()
	if err := w.cfg.Record(target, w.list); err != nil {
		return fmt.Errorf("record round %d: %w", w.rounds.Load(), err)
	}
	if err := w.list.Close(); err != nil {
		return err
	}
	if err := w.cfg.Queue.ExecuteCommandLists(w.list); err != nil {
		return err
	}
	if w.cfg.Handoff != nil {
		if err := w.cfg.Handoff.EndAccess(); err != nil {
			return err
		}
	}
	*fenceValue++
	if err := w.cfg.Queue.Signal(w.fence, *fenceValue); err != nil {
		return err
	}
	if err := w.fence.Wait(*fenceValue, 0); err != nil {
		return err
	}
	w.cfg.Selector.Swap()
	w.rounds.Add(1)
	return nil
}

func (w *AsyncCompute) release() {
	w.list.Destroy()
	w.alloc.Destroy()
	w.fence.Destroy()
}
