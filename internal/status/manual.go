package status

import (
	"sync"
	"time"
)

// ManualScheduler records scheduled callbacks and runs them only when told
// to. The CLI uses it so one-shot runs never race an expiry, and tests use
// it to fire expiries deterministically.
type ManualScheduler struct {
	mu     sync.Mutex
	timers []*ManualTimer
}

// ManualTimer state is guarded by its scheduler's mutex.
type ManualTimer struct {
	Delay   time.Duration
	fn      func()
	sched   *ManualScheduler
	stopped bool
	fired   bool
}

func (t *ManualTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()

	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &ManualTimer{Delay: d, fn: f, sched: s}
	s.timers = append(s.timers, t)
	return t
}

// Pending returns the number of timers that have neither fired nor been
// stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Fire runs the i-th scheduled callback even if it was stopped, which is
// what happens when a timer goroutine was already running at Stop time.
func (s *ManualScheduler) Fire(i int) {
	s.mu.Lock()
	t := s.timers[i]
	t.fired = true
	s.mu.Unlock()

	t.fn()
}

// FireAll runs every scheduled callback in scheduling order.
func (s *ManualScheduler) FireAll() {
	s.mu.Lock()
	timers := append([]*ManualTimer(nil), s.timers...)
	for _, t := range timers {
		t.fired = true
	}
	s.mu.Unlock()

	for _, t := range timers {
		t.fn()
	}
}

func (s *ManualScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
