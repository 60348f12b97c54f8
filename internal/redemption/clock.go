package redemption

import "time"

// Clock supplies the current instant.  Production code uses SystemClock;
// tests inject a fixed or manually advanced clock so that countdowns can be
// checked without real delays.
type Clock interface {
	Now() time.Time
}

// SystemClock reads wall-clock time in UTC.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts an ordinary function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing.  It reports whether the
	// call stopped the timer.
	Stop() bool
}

// Scheduler runs fn once after d has elapsed.  Implementations may return
// a nil Timer when they refuse to schedule (for example because the owning
// context has been torn down); callers treat that as a silent stop.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Timer
}

// TimeScheduler schedules callbacks on the runtime timer via time.AfterFunc.
type TimeScheduler struct{}

// Schedule implements Scheduler.
func (TimeScheduler) Schedule(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
