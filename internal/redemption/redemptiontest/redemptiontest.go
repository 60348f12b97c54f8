// Package redemptiontest provides a controllable clock and scheduler for
// exercising countdowns without waiting on the wall clock.
package redemptiontest

import (
	"sort"
	"sync"
	"time"

	"github.com/noxly/redemptions/internal/redemption"
)

// FakeClock is a redemption.Clock whose time only moves when told to.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a clock fixed at t.
func NewFakeClock(t time.Time) *FakeClock { return &FakeClock{now: t} }

// Now implements redemption.Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type pending struct {
	seq     int
	due     time.Time
	fn      func()
	stopped bool
}

// Stop implements redemption.Timer.
func (p *pending) Stop() bool {
	if p.stopped {
		return false
	}
	p.stopped = true
	return true
}

// ManualScheduler is a redemption.Scheduler that fires callbacks only when
// Advance moves its clock past their due time.  Callbacks run on the
// goroutine calling Advance.
type ManualScheduler struct {
	Clock *FakeClock
	// Refuse makes Schedule return a nil Timer, as a torn-down host would.
	Refuse bool

	mu      sync.Mutex
	seq     int
	pending []*pending
}

// NewManualScheduler returns a scheduler driven by clock.
func NewManualScheduler(clock *FakeClock) *ManualScheduler {
	return &ManualScheduler{Clock: clock}
}

// Schedule implements redemption.Scheduler.
func (s *ManualScheduler) Schedule(d time.Duration, fn func()) redemption.Timer {
	if s.Refuse {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	p := &pending{seq: s.seq, due: s.Clock.Now().Add(d), fn: fn}
	s.pending = append(s.pending, p)
	return p
}

// Pending returns the number of callbacks waiting to fire.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.pending {
		if !p.stopped {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing every callback that falls
// due on the way in due order.  The clock is set to each callback's due
// time before it runs, so callbacks observe the instant they were
// scheduled for.
func (s *ManualScheduler) Advance(d time.Duration) {
	end := s.Clock.Now().Add(d)
	for {
		p := s.next(end)
		if p == nil {
			break
		}
		s.Clock.Set(p.due)
		p.fn()
	}
	s.Clock.Set(end)
}

// next pops the earliest live callback due at or before end.
func (s *ManualScheduler) next(end time.Time) *pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.pending[:0]
	for _, p := range s.pending {
		if !p.stopped {
			live = append(live, p)
		}
	}
	s.pending = live
	sort.SliceStable(s.pending, func(i, j int) bool {
		if s.pending[i].due.Equal(s.pending[j].due) {
			return s.pending[i].seq < s.pending[j].seq
		}
		return s.pending[i].due.Before(s.pending[j].due)
	})
	if len(s.pending) == 0 || s.pending[0].due.After(end) {
		return nil
	}
	p := s.pending[0]
	s.pending = s.pending[1:]
	return p
}
