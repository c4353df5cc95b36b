// Package gdev exposes a graphics-and-compute device API — queues,
// command lists, fences, heaps — to client rendering code, with the
// frame-pipelining and fence-based synchronization protocol implemented
// once, correctly, instead of per application.
//
// # Overview
//
// A Device is the factory for everything else. Client code records work
// into a CommandList, submits it to a Queue, and coordinates CPU and
// accelerator through Fence values. The three higher-level components
// wrap the protocols that are easy to get wrong:
//
//   - FramePipeline: the frames-in-flight ring. The CPU records up to N
//     frames ahead and blocks only when a slot's fence watermark has not
//     been reached, so a command allocator is never reset under in-flight
//     work.
//   - StateTracker: the resource barrier discipline. Every transition
//     declares (before, after); in strict mode a mismatch against the
//     resource's tracked state is reported at record time.
//   - Handoff and SharedRing: the cross-device/cross-process bridge. A
//     shared heap carries the data, a shared fence carries the strict
//     signal/wait alternation that replaces hardware coherency between
//     independently clocked engines.
//
// # Quick start
//
//	dev, _ := gdev.NewDevice(gdev.Config{})          // simulator backend
//	queue, _ := dev.CreateQueue(hal.EngineDirect, "main")
//
//	pipe, _ := gdev.NewFramePipeline(gdev.PipelineConfig{
//		Device: dev,
//		Queue:  queue,
//		Depth:  3,
//	})
//	for running {
//		slot, _ := pipe.BeginFrame()   // blocks only if the GPU is N frames behind
//		record(slot.List)
//		pipe.EndFrame(slot)            // submit + signal watermark
//	}
//	pipe.Drain(0)                      // teardown: wait for all in-flight work
//
// # Backends
//
// The native layer is the hal package; gdev ships two implementations.
// hal/halsim is a deterministic in-process simulator used by default and
// by every test. hal/halwgpu adapts a gogpu/wgpu device for the
// single-queue path on real hardware.
//
// # Concurrency
//
// Fence and Queue are safe for concurrent use. A CommandAllocator and
// CommandList pair is owned by one frame slot and one goroutine at a
// time. The only call that blocks the CPU is an event wait; Signal, Wait,
// and ExecuteCommandLists merely append to a queue's FIFO.
package gdev
