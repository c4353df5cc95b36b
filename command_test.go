package gdev

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gdev/hal"
)

func TestCommandList_Lifecycle(t *testing.T) {
	dev, _ := newTestDevice(t)
	q, err := dev.CreateQueue(hal.EngineDirect, "q")
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	alloc, err := dev.CreateCommandAllocator(hal.EngineDirect)
	if err != nil {
		t.Fatalf("CreateCommandAllocator: %v", err)
	}
	list, err := dev.CreateCommandList(hal.EngineDirect, alloc)
	if err != nil {
		t.Fatalf("CreateCommandList: %v", err)
	}
	buf, err := dev.CreateBuffer(8, hal.StateCommon, "buf")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	if got := list.State(); got != ListStateRecording {
		t.Fatalf("initial state = %v, want Recording", got)
	}

	// Submitting an open list must fail.
	if err := q.ExecuteCommandLists(list); !errors.Is(err, ErrListNotClosed) {
		t.Errorf("execute recording list err = %v, want ErrListNotClosed", err)
	}
	// Resetting an open list must fail.
	if err := list.Reset(alloc); !errors.Is(err, ErrListRecording) {
		t.Errorf("reset recording list err = %v, want ErrListRecording", err)
	}

	if err := list.FillBuffer(buf, 0, 8, 0xaa); err != nil {
		t.Fatalf("FillBuffer: %v", err)
	}
	if err := list.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := list.State(); got != ListStateClosed {
		t.Fatalf("state after Close = %v, want Closed", got)
	}

	// Recording into a closed list must fail.
	if err := list.FillBuffer(buf, 0, 8, 0xbb); !errors.Is(err, ErrListNotRecording) {
		t.Errorf("record on closed list err = %v, want ErrListNotRecording", err)
	}
	// Closing twice must fail.
	if err := list.Close(); !errors.Is(err, ErrListNotRecording) {
		t.Errorf("double Close err = %v, want ErrListNotRecording", err)
	}

	if err := q.ExecuteCommandLists(list); err != nil {
		t.Fatalf("ExecuteCommandLists: %v", err)
	}
	if got := list.State(); got != ListStateSubmitted {
		t.Fatalf("state after submit = %v, want Submitted", got)
	}
}

func TestCommandList_ReuseAfterDrain(t *testing.T) {
	dev, _ := newTestDevice(t)
	q, err := dev.CreateQueue(hal.EngineDirect, "q")
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	f, err := dev.CreateFence(0, hal.FenceFlagNone, "f")
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	alloc, err := dev.CreateCommandAllocator(hal.EngineDirect)
	if err != nil {
		t.Fatalf("CreateCommandAllocator: %v", err)
	}
	list, err := dev.CreateCommandList(hal.EngineDirect, alloc)
	if err != nil {
		t.Fatalf("CreateCommandList: %v", err)
	}
	buf, err := dev.CreateBuffer(4, hal.StateCommon, "buf")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	for round := byte(1); round <= 3; round++ {
		if err := list.FillBuffer(buf, 0, 4, round); err != nil {
			t.Fatalf("round %d FillBuffer: %v", round, err)
		}
		if err := list.Close(); err != nil {
			t.Fatalf("round %d Close: %v", round, err)
		}
		if err := q.ExecuteCommandLists(list); err != nil {
			t.Fatalf("round %d execute: %v", round, err)
		}
		if err := q.Flush(f, uint64(round), 5*time.Second); err != nil {
			t.Fatalf("round %d Flush: %v", round, err)
		}
		// The watermark covers the batch: allocator reset is safe now.
		if err := alloc.Reset(); err != nil {
			t.Fatalf("round %d allocator Reset: %v", round, err)
		}
		if err := list.Reset(alloc); err != nil {
			t.Fatalf("round %d list Reset: %v", round, err)
		}
		got := make([]byte, 4)
		if err := buf.Read(0, got); err != nil {
			t.Fatalf("round %d Read: %v", round, err)
		}
		if got[0] != round {
			t.Fatalf("round %d byte = %d, want %d", round, got[0], round)
		}
	}
}

func TestCommandList_CopyAndFill(t *testing.T) {
	dev, _ := newTestDevice(t)
	q, err := dev.CreateQueue(hal.EngineCopy, "copy")
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	f, err := dev.CreateFence(0, hal.FenceFlagNone, "f")
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	src, err := dev.CreateBuffer(8, hal.StateCopySource, "src")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	dst, err := dev.CreateBuffer(8, hal.StateCopyDest, "dst")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	alloc, err := dev.CreateCommandAllocator(hal.EngineCopy)
	if err != nil {
		t.Fatalf("CreateCommandAllocator: %v", err)
	}
	list, err := dev.CreateCommandList(hal.EngineCopy, alloc)
	if err != nil {
		t.Fatalf("CreateCommandList: %v", err)
	}

	// Fill the source, then copy its back half onto the front of dst.
	if err := list.FillBuffer(src, 4, 4, 0x77); err != nil {
		t.Fatalf("FillBuffer: %v", err)
	}
	if err := list.CopyBufferRegion(dst, 0, src, 4, 4); err != nil {
		t.Fatalf("CopyBufferRegion: %v", err)
	}
	if err := list.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.ExecuteCommandLists(list); err != nil {
		t.Fatalf("ExecuteCommandLists: %v", err)
	}
	if err := q.Flush(f, 1, 5*time.Second); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := make([]byte, 8)
	if err := dst.Read(0, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := 0; i < 4; i++ {
		if got[i] != 0x77 {
			t.Errorf("byte %d = %#x, want 0x77", i, got[i])
		}
	}
	for i := 4; i < 8; i++ {
		if got[i] != 0 {
			t.Errorf("byte %d = %#x, want 0", i, got[i])
		}
	}
}
