package gdev

import (
	"errors"
	"testing"

	"github.com/gogpu/gdev/hal"
	"github.com/gogpu/gdev/hal/halsim"
)

// newTestDevice creates a device over a fresh simulator and returns both
// so tests can reach the simulation controls.
func newTestDevice(t *testing.T) (*Device, *halsim.Device) {
	t.Helper()
	sim := halsim.New()
	dev, err := NewDevice(Config{Backend: sim, Label: t.Name()})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	t.Cleanup(dev.Close)
	return dev, sim
}

func TestDevice_CreateObjects(t *testing.T) {
	dev, _ := newTestDevice(t)

	q, err := dev.CreateQueue(hal.EngineDirect, "direct")
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	if q.Class() != hal.EngineDirect {
		t.Errorf("queue class = %v, want %v", q.Class(), hal.EngineDirect)
	}

	f, err := dev.CreateFence(7, hal.FenceFlagNone, "f")
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	if got := f.CompletedValue(); got != 7 {
		t.Errorf("initial CompletedValue = %d, want 7", got)
	}

	buf, err := dev.CreateBuffer(64, hal.StateCommon, "buf")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if buf.Size() != 64 {
		t.Errorf("buffer size = %d, want 64", buf.Size())
	}
	if buf.State() != hal.StateCommon {
		t.Errorf("initial state = %v, want %v", buf.State(), hal.StateCommon)
	}
}

func TestDevice_RemovedFailsCreation(t *testing.T) {
	dev, sim := newTestDevice(t)

	if dev.RemovalReason() != nil {
		t.Fatalf("healthy device reports removal: %v", dev.RemovalReason())
	}

	sim.Remove(nil)

	if dev.RemovalReason() == nil {
		t.Fatal("removed device reports healthy")
	}
	_, err := dev.CreateQueue(hal.EngineDirect, "late")
	if err == nil {
		t.Fatal("CreateQueue on removed device succeeded")
	}
	if !errors.Is(err, ErrDeviceRemoved) {
		t.Errorf("err = %v, want ErrDeviceRemoved", err)
	}

	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Errorf("err = %T, want *DeviceError", err)
	} else if devErr.Op != "CreateQueue" {
		t.Errorf("Op = %q, want CreateQueue", devErr.Op)
	}
}

func TestDevice_PlacedBufferAliasesHeap(t *testing.T) {
	dev, _ := newTestDevice(t)

	heap, err := dev.CreateHeap(256, hal.HeapFlagNone, "pool")
	if err != nil {
		t.Fatalf("CreateHeap: %v", err)
	}
	a, err := dev.CreatePlacedBuffer(heap, 32, 16, hal.StateCommon, "a")
	if err != nil {
		t.Fatalf("CreatePlacedBuffer a: %v", err)
	}
	b, err := dev.CreatePlacedBuffer(heap, 32, 16, hal.StateCommon, "b")
	if err != nil {
		t.Fatalf("CreatePlacedBuffer b: %v", err)
	}

	if err := a.Write(0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := make([]byte, 4)
	if err := b.Read(0, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i, want := range []byte{1, 2, 3, 4} {
		if got[i] != want {
			t.Errorf("byte %d = %d, want %d", i, got[i], want)
		}
	}
}
