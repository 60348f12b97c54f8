package redemption

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTickInterval is how often a countdown is refreshed.
const DefaultTickInterval = time.Second

// Tick is one countdown emission.
type Tick struct {
	Status    Status
	Remaining time.Duration
	Label     string
	Terminal  bool
}

// TickFunc receives countdown emissions.
type TickFunc func(Tick)

// ProjectorOption configures a Projector.
type ProjectorOption func(*Projector)

// WithWindow overrides DefaultWindow.
func WithWindow(w time.Duration) ProjectorOption {
	return func(p *Projector) { p.window = w }
}

// WithTickInterval overrides DefaultTickInterval.  Non-positive values are
// ignored.
func WithTickInterval(d time.Duration) ProjectorOption {
	return func(p *Projector) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock injects the clock used to evaluate each tick.
func WithClock(c Clock) ProjectorOption {
	return func(p *Projector) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithScheduler injects the scheduler that drives ticks after Start.
func WithScheduler(s Scheduler) ProjectorOption {
	return func(p *Projector) {
		if s != nil {
			p.sched = s
		}
	}
}

// Projector drives a live countdown for a single record.  Each tick
// re-evaluates the record and emits a Tick; once the record is USED or
// EXPIRED a single terminal tick is emitted and the projector stops.
//
// Ticks of one projector never overlap and at most one timer is pending at
// any time: a manual Tick supersedes the scheduled one.  Projectors share
// no state with each other.  The tick callback must not call Refresh; it
// may call Cancel.
type Projector struct {
	window   time.Duration
	interval time.Duration
	clock    Clock
	sched    Scheduler

	tickMu sync.Mutex // serialises ticks

	mu     sync.Mutex // guards rec, timer, gen and onTick
	rec    Record
	timer  Timer
	gen    uint64 // bumped whenever the pending timer is superseded
	onTick TickFunc

	started   atomic.Bool
	done      atomic.Bool
	cancelled atomic.Bool
}

// NewProjector returns a projector for rec.  It does nothing until Start or
// Tick is called.
func NewProjector(rec Record, opts ...ProjectorOption) *Projector {
	p := &Projector{
		window:   DefaultWindow,
		interval: DefaultTickInterval,
		clock:    SystemClock{},
		sched:    TimeScheduler{},
		rec:      rec,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnTick registers the emission callback, replacing any previous one.
func (p *Projector) OnTick(fn TickFunc) {
	p.mu.Lock()
	p.onTick = fn
	p.mu.Unlock()
}

// Start emits the first tick immediately and keeps ticking on the
// scheduler until a terminal state or Cancel.  Calling Start more than once
// has no effect.
func (p *Projector) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.Tick()
}

// Tick evaluates the record once and emits the result.  After an active
// tick the next one is scheduled for min(interval, remaining) so that the
// terminal label appears at the expiry instant; a timer left over from an
// earlier tick is stopped first.  Tick is a no-op once the projector is
// done or cancelled.
func (p *Projector) Tick() {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()
	p.tick(0, false)
}

// fire is the scheduled entry point.  A callback whose generation was
// superseded by a manual Tick or by Cancel does nothing.
func (p *Projector) fire(gen uint64) {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()
	p.tick(gen, true)
}

// tick runs with tickMu held.
func (p *Projector) tick(gen uint64, scheduled bool) {
	if p.Done() {
		return
	}
	p.mu.Lock()
	if scheduled && gen != p.gen {
		p.mu.Unlock()
		return
	}
	rec := p.rec
	p.mu.Unlock()

	ev := Evaluate(rec, p.clock.Now(), p.window)
	t := Tick{
		Status:    ev.Status,
		Remaining: ev.Remaining,
		Label:     ev.Label(),
		Terminal:  ev.Status.Terminal(),
	}

	// Cancel takes mu, so once it returns this check fails for every tick
	// that has not yet been handed to the callback.
	p.mu.Lock()
	if p.cancelled.Load() {
		p.mu.Unlock()
		return
	}
	fn := p.onTick
	p.stopTimerLocked()
	if t.Terminal {
		p.done.Store(true)
	}
	p.mu.Unlock()

	if fn != nil {
		fn(t)
	}
	if t.Terminal {
		return
	}

	next := p.interval
	if ev.Remaining < next {
		next = ev.Remaining
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled.Load() {
		return
	}
	armed := p.gen
	p.timer = p.sched.Schedule(next, func() { p.fire(armed) })
	if p.timer == nil {
		// scheduler refused; nothing else will fire
		p.done.Store(true)
	}
}

// stopTimerLocked drops the pending timer and invalidates any callback of
// it that already fired.  mu must be held.
func (p *Projector) stopTimerLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Refresh replaces the record snapshot, typically after the host re-fetched
// it following a change notification.  The new record is picked up by the
// next tick.  Refresh after the projector finished is ignored.
func (p *Projector) Refresh(rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec.ID != p.rec.ID {
		return fmt.Errorf("%w: refresh with id %q on projector for %q", ErrInvalidRecord, rec.ID, p.rec.ID)
	}
	if p.cancelled.Load() || p.done.Load() {
		return nil
	}
	p.rec = rec
	return nil
}

// Cancel stops the projector.  It is safe to call at any time, any number
// of times, including before Start and from inside the tick callback.  No
// tick is emitted after Cancel returns, including one whose evaluation was
// already under way on a scheduler goroutine.
func (p *Projector) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled.Store(true)
	p.stopTimerLocked()
}

// Done reports whether the projector reached a terminal state or was
// cancelled.
func (p *Projector) Done() bool {
	return p.cancelled.Load() || p.done.Load()
}
