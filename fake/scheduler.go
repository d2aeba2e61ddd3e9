// File: fake/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Manual clock for deterministic timer tests.

package fake

import (
	"sort"
	"sync"
	"time"

	"github.com/momentics/hioload-stomp/api"
)

var _ api.Scheduler = (*Scheduler)(nil)

// Scheduler is an api.Scheduler whose clock only moves on Advance.
// Due callbacks run synchronously on the goroutine calling Advance.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*timer
}

type timer struct {
	s       *Scheduler
	due     time.Time
	seq     uint64
	fn      func()
	stopped bool
}

func (t *timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	t.s.removeLocked(t)
	return true
}

// NewScheduler starts the clock at a fixed instant.
func NewScheduler() *Scheduler {
	return &Scheduler{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Scheduler) AfterFunc(d time.Duration, fn func()) api.Cancelable {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &timer{s: s, due: s.now.Add(d), seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Advance moves the clock forward by d, firing every timer that falls due,
// in due order, including timers armed by the callbacks themselves.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	for {
		next := s.nextLocked(target)
		if next == nil {
			break
		}
		next.stopped = true
		s.removeLocked(next)
		s.now = next.due
		s.mu.Unlock()
		next.fn()
		s.mu.Lock()
	}
	s.now = target
	s.mu.Unlock()
}

func (s *Scheduler) nextLocked(limit time.Time) *timer {
	if len(s.timers) == 0 {
		return nil
	}
	sort.Slice(s.timers, func(i, j int) bool {
		if s.timers[i].due.Equal(s.timers[j].due) {
			return s.timers[i].seq < s.timers[j].seq
		}
		return s.timers[i].due.Before(s.timers[j].due)
	})
	if s.timers[0].due.After(limit) {
		return nil
	}
	return s.timers[0]
}

func (s *Scheduler) removeLocked(t *timer) {
	for i, x := range s.timers {
		if x == t {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return
		}
	}
}
