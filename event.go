package gdev

import (
	"sync"
	"time"

	"github.com/gogpu/gdev/hal"
)

// Event is the OS synchronous wait primitive fences deliver completion
// wakes through. See hal.Event for the contract.
type Event = hal.Event

// SyncEvent is the portable Event implementation: an auto-reset event
// built on a one-token channel. Set stores the token without blocking;
// Wait consumes it. One SyncEvent can be reused across frames.
//
// SyncEvent is safe for concurrent use.
type SyncEvent struct {
	tokens chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewEvent creates an unsignaled SyncEvent.
func NewEvent() *SyncEvent {
	return &SyncEvent{
		tokens: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Set implements Event. Setting an already-set or closed event is a
// no-op.
func (e *SyncEvent) Set() {
	// Closed wins over delivering a token; a two-way select would pick
	// at random when both are ready.
	select {
	case <-e.done:
		return
	default:
	}
	select {
	case e.tokens <- struct{}{}:
	default:
	}
}

// Wait implements Event. A timeout <= 0 waits indefinitely. Returns
// false with a nil error when the timeout elapsed first.
func (e *SyncEvent) Wait(timeout time.Duration) (bool, error) {
	select {
	case <-e.done:
		return false, ErrEventClosed
	default:
	}
	if timeout <= 0 {
		select {
		case <-e.tokens:
			return true, nil
		case <-e.done:
			return false, ErrEventClosed
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-e.tokens:
		return true, nil
	case <-e.done:
		return false, ErrEventClosed
	case <-timer.C:
		return false, nil
	}
}

// Close implements Event. Pending and future waits fail with
// ErrEventClosed. Close is idempotent.
func (e *SyncEvent) Close() error {
	e.once.Do(func() { close(e.done) })
	return nil
}
