package redemption

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 3, 6, 21, 0, 0, 0, time.UTC)

func activeRecord(id string, createdAt time.Time) Record {
	return Record{ID: id, Code: "482913", CreatedAt: createdAt, SubjectID: "coupon-7"}
}

func TestEvaluate_ActiveMidWindow(t *testing.T) {
	ev := Evaluate(activeRecord("r1", t0), t0.Add(60*time.Second), DefaultWindow)

	assert.Equal(t, StatusActive, ev.Status)
	assert.Equal(t, int64(120000), ev.RemainingMs())
	assert.Equal(t, "02:00", ev.Label())
}

func TestEvaluate_ExpiryInstantIsExpired(t *testing.T) {
	ev := Evaluate(activeRecord("r1", t0), t0.Add(DefaultWindow), DefaultWindow)

	assert.Equal(t, StatusExpired, ev.Status)
	assert.Zero(t, ev.Remaining)
	assert.Equal(t, "EXPIRED", ev.Label())
}

func TestEvaluate_LastMillisecondIsActive(t *testing.T) {
	ev := Evaluate(activeRecord("r1", t0), t0.Add(DefaultWindow-time.Millisecond), DefaultWindow)

	assert.Equal(t, StatusActive, ev.Status)
	assert.Equal(t, int64(1), ev.RemainingMs())
	assert.Equal(t, "00:00", ev.Label())
}

func TestEvaluate_ConsumedAlwaysUsed(t *testing.T) {
	rec := activeRecord("r1", t0)
	rec.Consumed = true

	for _, offset := range []time.Duration{-time.Minute, 0, 170 * time.Second, DefaultWindow, 200 * time.Second, 48 * time.Hour} {
		ev := Evaluate(rec, t0.Add(offset), DefaultWindow)
		assert.Equal(t, StatusUsed, ev.Status, "offset %s", offset)
		assert.Zero(t, ev.Remaining, "offset %s", offset)
	}
}

func TestEvaluate_RemainingStrictlyDecreases(t *testing.T) {
	rec := activeRecord("r1", t0)
	prev := Evaluate(rec, t0, DefaultWindow)
	assert.Equal(t, DefaultWindow, prev.Remaining)

	for now := t0.Add(7 * time.Second); now.Before(t0.Add(DefaultWindow)); now = now.Add(7 * time.Second) {
		ev := Evaluate(rec, now, DefaultWindow)
		assert.Equal(t, StatusActive, ev.Status)
		assert.Less(t, ev.Remaining, prev.Remaining)
		prev = ev
	}
	assert.Zero(t, Evaluate(rec, t0.Add(DefaultWindow), DefaultWindow).Remaining)
}

func TestEvaluate_Idempotent(t *testing.T) {
	rec := activeRecord("r1", t0)
	now := t0.Add(42 * time.Second)

	assert.Equal(t, Evaluate(rec, now, DefaultWindow), Evaluate(rec, now, DefaultWindow))
}

func TestEvaluate_CreatedInFutureIsExpired(t *testing.T) {
	ev := Evaluate(activeRecord("r1", t0.Add(time.Minute)), t0, DefaultWindow)

	assert.Equal(t, StatusExpired, ev.Status)
	assert.Zero(t, ev.Remaining)
}

func TestEvaluate_ZeroWindowExpiresImmediately(t *testing.T) {
	ev := Evaluate(activeRecord("r1", t0), t0, 0)

	assert.Equal(t, StatusExpired, ev.Status)
}

func TestFormatRemaining(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{-5 * time.Second, "00:00"},
		{999 * time.Millisecond, "00:00"},
		{2500 * time.Millisecond, "00:02"},
		{61999 * time.Millisecond, "01:01"},
		{120 * time.Second, "02:00"},
		{DefaultWindow, "03:00"},
		{59*time.Minute + 59*time.Second, "59:59"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatRemaining(tc.in), "FormatRemaining(%s)", tc.in)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusActive.Terminal())
	assert.True(t, StatusUsed.Terminal())
	assert.True(t, StatusExpired.Terminal())
}
