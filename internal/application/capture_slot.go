package application

import (
	"context"
	"sync"
	"time"
)

// ArmFunc starts speech capture for the partner's next reply.
type ArmFunc func()

// CaptureSlot holds the capture-arming callback registered by whichever
// component owns the microphone for the active conversation. Waiters are
// released as soon as a callback is registered.
type CaptureSlot struct {
	mu    sync.Mutex
	fn    ArmFunc
	ready chan struct{}
}

func NewCaptureSlot() *CaptureSlot {
	return &CaptureSlot{ready: make(chan struct{})}
}

func (s *CaptureSlot) Register(fn ArmFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fn = fn
	select {
	case <-s.ready:
	default:
		close(s.ready)
	}
}

func (s *CaptureSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fn = nil
	select {
	case <-s.ready:
		s.ready = make(chan struct{})
	default:
	}
}

func (s *CaptureSlot) Current() ArmFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fn
}

// Await returns the registered callback, waiting up to timeout for one to
// appear. It returns false when the wait runs out or ctx is done.
func (s *CaptureSlot) Await(ctx context.Context, timeout time.Duration) (ArmFunc, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		fn, ready := s.fn, s.ready
		s.mu.Unlock()

		if fn != nil {
			return fn, true
		}

		select {
		case <-ready:
			// Registered, or registered and cleared again; re-check.
		case <-timer.C:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}
