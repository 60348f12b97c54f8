package redemption

import (
	"fmt"
	"time"
)

// DefaultWindow is how long a freshly generated code stays redeemable.
const DefaultWindow = 3 * time.Minute

// Status is the derived lifecycle state of a redemption code.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusUsed    Status = "USED"
	StatusExpired Status = "EXPIRED"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool { return s == StatusUsed || s == StatusExpired }

// rank orders statuses for presentation: active codes first.
func (s Status) rank() int {
	switch s {
	case StatusActive:
		return 0
	case StatusUsed:
		return 1
	default:
		return 2
	}
}

// Evaluation is the result of evaluating a record at an instant.
// Remaining is zero unless Status is StatusActive.
type Evaluation struct {
	Status    Status
	Remaining time.Duration
}

// RemainingMs returns Remaining in whole milliseconds.
func (e Evaluation) RemainingMs() int64 { return e.Remaining.Milliseconds() }

// Label returns the display label: MM:SS while active, the status otherwise.
func (e Evaluation) Label() string {
	if e.Status == StatusActive {
		return FormatRemaining(e.Remaining)
	}
	return string(e.Status)
}

// Evaluate computes the lifecycle status of rec at now.  Consumption always
// wins over elapsed time.  The expiry instant itself is already expired.  A
// record created after now is treated as expired rather than reported with
// more time than the window allows.
func Evaluate(rec Record, now time.Time, window time.Duration) Evaluation {
	if rec.Consumed {
		return Evaluation{Status: StatusUsed}
	}
	if now.Before(rec.CreatedAt) {
		return Evaluation{Status: StatusExpired}
	}
	remaining := rec.CreatedAt.Add(window).Sub(now)
	if remaining <= 0 {
		return Evaluation{Status: StatusExpired}
	}
	return Evaluation{Status: StatusActive, Remaining: remaining}
}

// FormatRemaining renders d as MM:SS.  Seconds are floored, so 2.5s is
// "00:02" and anything under a second is "00:00".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := d.Milliseconds() / 1000
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
