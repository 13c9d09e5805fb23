package engine

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Scheduler owns every timer of a session under a name, so ending the
// session can cancel them all in one call and re-arming a timer never leaks
// its predecessor.
type Scheduler struct {
	mu     deadlock.Mutex
	timers map[string]*time.Timer
	closed bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: map[string]*time.Timer{}}
}

// After arms (or re-arms) the named timer to run fn once after d.
func (s *Scheduler) After(name string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.timers[name]; ok {
		t.Stop()
	}
	s.timers[name] = time.AfterFunc(d, fn)
}

// Every runs fn every d until the name is canceled. The next run is armed
// after fn returns, so a slow run delays the next one rather than stacking.
func (s *Scheduler) Every(name string, d time.Duration, fn func()) {
	var tick func()
	tick = func() {
		fn()
		s.After(name, d, tick)
	}
	s.After(name, d, tick)
}

// Cancel stops the named timer if armed.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
}

// CancelAll stops everything and refuses further arming.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
}
