package gdev

import (
	"errors"
	"fmt"
)

// Errors returned by the synchronization and recording layer.
var (
	// ErrDeviceRemoved is returned once the accelerator has stopped
	// honoring work on a device. The condition is fatal: no retry is
	// meaningful without recreating the device.
	ErrDeviceRemoved = errors.New("gdev: device removed")

	// ErrListNotRecording is returned when recording operations are
	// called on a list that is not in the Recording state.
	ErrListNotRecording = errors.New("gdev: command list not in recording state")

	// ErrListNotClosed is returned when submitting a list that was not
	// closed.
	ErrListNotClosed = errors.New("gdev: command list not closed")

	// ErrListRecording is returned when resetting a list that is still
	// recording.
	ErrListRecording = errors.New("gdev: command list is still recording")

	// ErrStateMismatch is returned in strict mode when a transition's
	// declared before-state does not match the resource's tracked state.
	ErrStateMismatch = errors.New("gdev: declared state does not match tracked state")

	// ErrWaitTimeout is returned when a fence wait's timeout elapses
	// before the target value is reached.
	ErrWaitTimeout = errors.New("gdev: fence wait timed out")

	// ErrEventClosed is returned when waiting on a closed event.
	ErrEventClosed = errors.New("gdev: event is closed")

	// ErrInvalidDepth is returned when a frame pipeline is created with
	// a depth below 1.
	ErrInvalidDepth = errors.New("gdev: pipeline depth must be at least 1")

	// ErrWrongSlot is returned when EndFrame is called with a slot other
	// than the one BeginFrame returned.
	ErrWrongSlot = errors.New("gdev: frame slot submitted out of order")

	// ErrHandoffOrder is returned when a hand-off's BeginAccess and
	// EndAccess calls are not strictly paired.
	ErrHandoffOrder = errors.New("gdev: hand-off access out of order")
)

// DeviceError carries the failing native operation's name and, when the
// backend supplies one, its status code. Callers decide retry versus
// abort; device removal is surfaced separately through ErrDeviceRemoved.
type DeviceError struct {
	// Op is the native operation that failed, e.g. "CreateFence".
	Op string

	// Code is the native status code, or 0 when the backend reports
	// errors without one.
	Code int32

	// Err is the underlying backend error.
	Err error
}

// Error implements error.
func (e *DeviceError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("gdev: %s failed (code %#x): %v", e.Op, uint32(e.Code), e.Err)
	}
	return fmt.Sprintf("gdev: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying backend error.
func (e *DeviceError) Unwrap() error { return e.Err }
