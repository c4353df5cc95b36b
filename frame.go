package gdev

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gogpu/gdev/hal"
)

// FrameSlot is one rung of the frames-in-flight ring: a command
// allocator, a command list built from it, and an optional transient
// resource, all reused once the fence watermark recorded at the slot's
// last submission completes.
type FrameSlot struct {
	// Index is the slot's position in the ring, in [0, Depth).
	Index int

	// Allocator backs List's recording for this slot.
	Allocator *CommandAllocator

	// List is reopened for recording by BeginFrame and submitted by
	// EndFrame.
	List *CommandList

	// Transient is per-slot scratch (an upload buffer, a render
	// target); the pipeline never touches it beyond handing it to
	// SlotInit. It is safe to use from frame N's recording because
	// BeginFrame proved frame N-Depth is complete.
	Transient *Resource

	watermark uint64
}

// Watermark returns the fence value that covers the slot's most recent
// submission, or 0 if the slot has never been submitted.
func (s *FrameSlot) Watermark() uint64 { return s.watermark }

// PipelineConfig configures a FramePipeline.
type PipelineConfig struct {
	// Device creates the per-slot recording objects.
	Device *Device

	// Queue receives each frame's submission and fence signal.
	Queue *Queue

	// Depth is the number of frames that may be in flight at once.
	// Must be >= 1. Typical values are 2 and 3.
	Depth int

	// Fence paces the ring. Nil creates a private fence at 0.
	Fence *Fence

	// Timeout bounds each BeginFrame stall. <= 0 waits indefinitely.
	// A pipeline that times out here has usually lost its device;
	// BeginFrame surfaces the removal reason when there is one.
	Timeout time.Duration

	// SlotInit, if set, runs once per slot at construction, after the
	// slot's allocator and list exist. Use it to create Transient.
	SlotInit func(slot *FrameSlot) error
}

// FramePipeline sequences a ring of Depth frame slots over one queue so
// that CPU recording for frame N overlaps accelerator execution of
// frames N-1..N-Depth+1, and slot reuse never touches memory the
// accelerator still reads.
//
// BeginFrame, EndFrame, and Drain must be called from one goroutine.
// Stalls is safe to read from anywhere.
type FramePipeline struct {
	dev       *Device
	queue     *Queue
	fence     *Fence
	ownsFence bool
	slots     []*FrameSlot
	timeout   time.Duration
	ev        *SyncEvent

	cursor  int
	next    uint64 // fence value the next EndFrame signals
	inFrame bool
	stalls  atomic.Uint64
}

// NewFramePipeline builds the ring, creating Depth allocator/list pairs.
// All lists start Closed so that the first BeginFrame of every slot
// follows the same reset path as steady state.
func NewFramePipeline(cfg PipelineConfig) (*FramePipeline, error) {
	if cfg.Depth < 1 {
		return nil, fmt.Errorf("pipeline depth %d: %w", cfg.Depth, ErrInvalidDepth)
	}
	if cfg.Device == nil || cfg.Queue == nil {
		return nil, fmt.Errorf("pipeline needs a device and a queue")
	}
	fence := cfg.Fence
	owns := false
	if fence == nil {
		f, err := cfg.Device.CreateFence(0, hal.FenceFlagNone, "frame-pipeline")
		if err != nil {
			return nil, err
		}
		fence = f
		owns = true
	}
	p := &FramePipeline{
		dev:       cfg.Device,
		queue:     cfg.Queue,
		fence:     fence,
		ownsFence: owns,
		timeout:   cfg.Timeout,
		ev:        NewEvent(),
		next:      fence.CompletedValue() + 1,
	}
	for i := 0; i < cfg.Depth; i++ {
		alloc, err := cfg.Device.CreateCommandAllocator(cfg.Queue.Class())
		if err != nil {
			p.destroySlots()
			return nil, err
		}
		list, err := cfg.Device.CreateCommandList(cfg.Queue.Class(), alloc)
		if err != nil {
			alloc.Destroy()
			p.destroySlots()
			return nil, err
		}
		if err := list.Close(); err != nil {
			list.Destroy()
			alloc.Destroy()
			p.destroySlots()
			return nil, err
		}
		slot := &FrameSlot{Index: i, Allocator: alloc, List: list}
		if cfg.SlotInit != nil {
			if err := cfg.SlotInit(slot); err != nil {
				list.Destroy()
				alloc.Destroy()
				p.destroySlots()
				return nil, fmt.Errorf("init slot %d: %w", i, err)
			}
		}
		p.slots = append(p.slots, slot)
	}
	Logger().Info("gdev: frame pipeline created",
		"depth", cfg.Depth, "queue", cfg.Queue.Label())
	return p, nil
}

// Depth returns the configured frames-in-flight count.
func (p *FramePipeline) Depth() int { return len(p.slots) }

// Fence returns the pacing fence.
func (p *FramePipeline) Fence() *Fence { return p.fence }

// Stalls reports how many BeginFrame calls had to block on the fence.
// A steadily climbing count means the accelerator, not the CPU, is the
// bottleneck at this depth.
func (p *FramePipeline) Stalls() uint64 { return p.stalls.Load() }

// BeginFrame blocks until the cursor slot's previous submission is
// complete, resets the slot's allocator and list, and returns the slot
// with List open for recording.
func (p *FramePipeline) BeginFrame() (*FrameSlot, error) {
	if p.inFrame {
		return nil, fmt.Errorf("begin frame: previous frame not ended: %w", ErrWrongSlot)
	}
	slot := p.slots[p.cursor]
	if slot.watermark > p.fence.CompletedValue() {
		p.stalls.Add(1)
		Logger().Debug("gdev: frame pipeline stalling",
			"slot", slot.Index, "watermark", slot.watermark)
		if err := p.fence.SetEventOnCompletion(slot.watermark, p.ev); err != nil {
			return nil, err
		}
		ok, err := p.ev.Wait(p.timeout)
		if err != nil {
			return nil, fmt.Errorf("begin frame %d: %w", slot.Index, err)
		}
		if !ok {
			if err := p.dev.checkRemoved("BeginFrame"); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("begin frame %d after %v: %w",
				slot.Index, p.timeout, ErrWaitTimeout)
		}
	}
	if err := slot.Allocator.Reset(); err != nil {
		return nil, err
	}
	if err := slot.List.Reset(slot.Allocator); err != nil {
		return nil, err
	}
	p.inFrame = true
	return slot, nil
}

// EndFrame closes slot's list if it is still recording, submits it, and
// signals the pacing fence to record the slot's new watermark. slot must
// be the value the matching BeginFrame returned.
func (p *FramePipeline) EndFrame(slot *FrameSlot) error {
	if !p.inFrame || slot != p.slots[p.cursor] {
		return fmt.Errorf("end frame: slot %d out of turn: %w", slot.Index, ErrWrongSlot)
	}
	if slot.List.State() == ListStateRecording {
		if err := slot.List.Close(); err != nil {
			return err
		}
	}
	if err := p.queue.ExecuteCommandLists(slot.List); err != nil {
		return err
	}
	if err := p.queue.Signal(p.fence, p.next); err != nil {
		return err
	}
	slot.watermark = p.next
	p.next++
	p.cursor = (p.cursor + 1) % len(p.slots)
	p.inFrame = false
	return nil
}

// Drain blocks until every submitted frame is complete. Call it before
// destroying resources the ring still references. A timeout <= 0 waits
// indefinitely.
func (p *FramePipeline) Drain(timeout time.Duration) error {
	value := p.next
	if err := p.queue.Signal(p.fence, value); err != nil {
		return err
	}
	// The signal is enqueued whether or not the wait below times out;
	// value is spent either way.
	p.next++
	if err := p.fence.Wait(value, timeout); err != nil {
		return fmt.Errorf("drain pipeline: %w", err)
	}
	return nil
}

// Close drains nothing; it releases the ring's objects and the private
// fence if the pipeline created one. Call Drain first.
func (p *FramePipeline) Close() {
	p.destroySlots()
	p.ev.Close()
	if p.ownsFence {
		p.fence.Destroy()
	}
}

func (p *FramePipeline) destroySlots() {
	for _, s := range p.slots {
		if s.Transient != nil {
			s.Transient.Destroy()
		}
		s.List.Destroy()
		s.Allocator.Destroy()
	}
	p.slots = nil
}
