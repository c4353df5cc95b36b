//go:build windows

package gdev

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows"
)

// OSEvent is an Event backed by a Win32 auto-reset event object. It is
// interchangeable with SyncEvent; use it when the wait handle must also
// be visible to native code.
type OSEvent struct {
	handle windows.Handle
}

// NewOSEvent creates an unsignaled auto-reset Win32 event.
func NewOSEvent() (*OSEvent, error) {
	h, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return &OSEvent{handle: h}, nil
}

// Set implements Event.
func (e *OSEvent) Set() {
	_ = windows.SetEvent(e.handle)
}

// Wait implements Event. A timeout <= 0 waits indefinitely.
func (e *OSEvent) Wait(timeout time.Duration) (bool, error) {
	ms := uint32(windows.INFINITE)
	if timeout > 0 {
		ms = uint32(timeout.Milliseconds())
	}
	status, err := windows.WaitForSingleObject(e.handle, ms)
	switch status {
	case windows.WAIT_OBJECT_0:
		return true, nil
	case uint32(windows.WAIT_TIMEOUT):
		return false, nil
	default:
		return false, fmt.Errorf("wait for event: %w", err)
	}
}

// Close implements Event.
func (e *OSEvent) Close() error {
	return windows.CloseHandle(e.handle)
}

// Handle returns the underlying Win32 handle.
func (e *OSEvent) Handle() windows.Handle { return e.handle }
