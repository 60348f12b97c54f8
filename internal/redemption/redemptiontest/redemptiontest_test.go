package redemptiontest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualSchedulerFiresInDueOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewFakeClock(base)
	s := NewManualScheduler(clock)

	var order []string
	var seen []time.Time
	s.Schedule(3*time.Second, func() { order = append(order, "c"); seen = append(seen, clock.Now()) })
	s.Schedule(time.Second, func() { order = append(order, "a"); seen = append(seen, clock.Now()) })
	stopped := s.Schedule(2*time.Second, func() { order = append(order, "b") })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())
	assert.Equal(t, 2, s.Pending())

	s.Advance(2 * time.Second)
	assert.Equal(t, []string{"a"}, order)
	assert.Equal(t, base.Add(2*time.Second), clock.Now())

	s.Advance(time.Second)
	assert.Equal(t, []string{"a", "c"}, order)
	assert.Equal(t, []time.Time{base.Add(time.Second), base.Add(3 * time.Second)}, seen)
	assert.Zero(t, s.Pending())
}

func TestManualSchedulerRefuse(t *testing.T) {
	s := NewManualScheduler(NewFakeClock(time.Now()))
	s.Refuse = true
	assert.Nil(t, s.Schedule(time.Second, func() {}))
}
