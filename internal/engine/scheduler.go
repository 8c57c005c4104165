package engine

import (
	"sync"
	"time"
)

// scheduler holds one cancelable deferred task per key. Schedule with an
// existing key cancels the previous timer first, which is exactly the
// debounce-reset semantic: the task runs only after the interval elapses with
// no rescheduling. Fired tasks run on the timer goroutine.
type scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newScheduler() *scheduler {
	return &scheduler{timers: make(map[string]*time.Timer)}
}

// Schedule arms (or re-arms) the deferred task for key.
func (s *scheduler) Schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[key]; ok {
		t.Stop()
	}

	var timer *time.Timer

	timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		// Only deregister if this timer is still the current one; a
		// reschedule may have replaced it between fire and lock.
		if s.timers[key] == timer {
			delete(s.timers, key)
		}
		s.mu.Unlock()

		fn()
	})

	s.timers[key] = timer
}

// Cancel stops and removes the pending task for key, if any. Reports whether
// a task was pending.
func (s *scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[key]
	if !ok {
		return false
	}

	t.Stop()
	delete(s.timers, key)

	return true
}

// CancelAll stops every pending task. Used at engine teardown.
func (s *scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
