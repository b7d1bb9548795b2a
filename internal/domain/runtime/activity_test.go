package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func tickFor(c *ActivityClock, from time.Time, seconds int, onEach func(now time.Time)) time.Time {
	now := from
	for i := 0; i < seconds; i++ {
		now = now.Add(time.Second)
		if onEach != nil {
			onEach(now)
		}
		c.Tick(now)
	}

	return now
}

func TestActivityClock_ContinuouslyActive(t *testing.T) {
	c := NewActivityClock(t0, time.Minute)
	c.SetHidden(false, t0)

	tickFor(c, t0, 600, func(now time.Time) {
		if now.Second()%30 == 0 {
			c.RecordInput(now)
		}
	})

	assert.Equal(t, int64(600), c.Accumulated())
}

func TestActivityClock_IdleWholeSession(t *testing.T) {
	c := NewActivityClock(t0, time.Minute)
	c.SetHidden(true, t0)

	tickFor(c, t0, 600, nil)

	assert.Zero(t, c.Accumulated())
	assert.False(t, c.Active(t0.Add(600*time.Second)))
}

func TestActivityClock_CountsFromFirstInput(t *testing.T) {
	c := NewActivityClock(t0, time.Minute)

	now := tickFor(c, t0, 300, nil)

	assert.Zero(t, c.Accumulated())

	c.RecordInput(now)
	now = tickFor(c, now, 10, nil)

	assert.Equal(t, int64(10), c.Accumulated())

	// после последнего ввода засчитывается не больше idleAfter
	tickFor(c, now, 300, nil)

	assert.Equal(t, int64(60), c.Accumulated())
}

func TestActivityClock_HiddenLongerThanIdleStopsCounting(t *testing.T) {
	c := NewActivityClock(t0, time.Minute)
	c.SetHidden(true, t0.Add(10*time.Second))

	tickFor(c, t0, 120, func(now time.Time) { c.RecordInput(now) })

	// скрыта с 10с, перестает считаться после 70с
	assert.Equal(t, int64(70), c.Accumulated())

	c.SetHidden(false, t0.Add(120*time.Second))
	assert.True(t, c.Active(t0.Add(121*time.Second)))
}

func TestActivityClock_NeverExceedsWallClock(t *testing.T) {
	c := NewActivityClock(t0, time.Minute)
	c.RecordInput(t0)

	// несколько тиков в одну и ту же секунду
	for i := 0; i < 5; i++ {
		c.Tick(t0.Add(2 * time.Second))
	}

	assert.Equal(t, int64(2), c.Accumulated())
}
