package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestTimerState_CycleIndexWraps(t *testing.T) {
	host := uuid.New()

	for initial := 0; initial <= 4; initial++ {
		for n := 1; n <= 9; n++ {
			s := NewTimerState(uuid.New(), host, t0)
			s.CycleIndex = initial

			for i := 0; i < n; i++ {
				s.StartFocus(host, t0)
			}

			assert.Equal(t, ((initial+n-1)%s.LongBreakEvery)+1, s.CycleIndex, "initial=%d n=%d", initial, n)
		}
	}
}

func TestTimerState_FourthBreakIsLong(t *testing.T) {
	host := uuid.New()
	s := NewTimerState(uuid.New(), host, t0)

	for cycle := 1; cycle <= 4; cycle++ {
		s.StartFocus(host, t0)
		require.Equal(t, TimerFocus, s.Phase)
		require.Equal(t, t0.Add(1500*time.Second), *s.EndsAt)

		s.StartBreak(host, t0)
		require.Equal(t, cycle, s.CycleIndex, "break must not advance the cycle")

		if cycle == 4 {
			assert.True(t, s.LongBreak)
			assert.Equal(t, t0.Add(900*time.Second), *s.EndsAt)
		} else {
			assert.False(t, s.LongBreak)
			assert.Equal(t, t0.Add(300*time.Second), *s.EndsAt)
		}
	}

	s.StartFocus(host, t0)
	assert.Equal(t, 1, s.CycleIndex)
}

func TestTimerState_Stop(t *testing.T) {
	host := uuid.New()
	s := NewTimerState(uuid.New(), host, t0)
	s.StartFocus(host, t0)
	s.StartFocus(host, t0)

	s.Stop(host, t0.Add(time.Minute))

	assert.Equal(t, TimerIdle, s.Phase)
	assert.Nil(t, s.EndsAt)
	assert.Zero(t, s.CycleIndex)
	assert.Equal(t, t0.Add(time.Minute), s.UpdatedAt)
	assert.Zero(t, s.Remaining(t0))
}

func TestTimerState_Remaining(t *testing.T) {
	host := uuid.New()
	s := NewTimerState(uuid.New(), host, t0)
	s.StartFocus(host, t0)

	assert.Equal(t, 1500*time.Second, s.Remaining(t0))
	assert.Equal(t, 500*time.Second, s.Remaining(t0.Add(1000*time.Second)))
	assert.Zero(t, s.Remaining(t0.Add(2000*time.Second)))
}

func TestTimerState_Reconfigure(t *testing.T) {
	host := uuid.New()
	s := NewTimerState(uuid.New(), host, t0)
	for i := 0; i < 3; i++ {
		s.StartFocus(host, t0)
	}

	err := s.Reconfigure(TimerConfig{FocusSeconds: 60, ShortBreakSeconds: 10, LongBreakSeconds: 30, LongBreakEvery: 2}, host, t0)
	require.NoError(t, err)
	assert.Equal(t, 2, s.CycleIndex)

	err = s.Reconfigure(TimerConfig{FocusSeconds: 60, ShortBreakSeconds: 10, LongBreakSeconds: 30, LongBreakEvery: 0}, host, t0)
	require.Error(t, err)
	assert.Equal(t, 2, s.LongBreakEvery)
}

func TestTimerState_CloneIsIndependent(t *testing.T) {
	host := uuid.New()
	s := NewTimerState(uuid.New(), host, t0)
	s.StartFocus(host, t0)

	c := s.Clone()
	s.Stop(host, t0)

	require.NotNil(t, c.EndsAt)
	assert.Equal(t, TimerFocus, c.Phase)
}
