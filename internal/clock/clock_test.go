package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeAdvanceFiresInDeadlineOrder(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	var order []string

	c.AfterFunc(300*time.Millisecond, func() { order = append(order, "c") })
	c.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	c.AfterFunc(200*time.Millisecond, func() { order = append(order, "b") })

	c.Advance(250 * time.Millisecond)
	require.Equal(t, []string{"a", "b"}, order)
	require.Equal(t, 1, c.Pending())

	c.Advance(50 * time.Millisecond)
	require.Equal(t, []string{"a", "b", "c"}, order)
	require.Equal(t, time.Unix(0, 0).Add(300*time.Millisecond), c.Now())
}

func TestFakeStopPreventsCallback(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	require.True(t, timer.Stop())
	require.False(t, timer.Stop())

	c.Advance(2 * time.Second)
	require.False(t, fired)
	require.Zero(t, c.Pending())
}

func TestFakeRescheduleInsideCallback(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		c.AfterFunc(time.Second, tick)
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(3500 * time.Millisecond)
	require.Equal(t, 3, ticks)
	require.Equal(t, 1, c.Pending())
}
