package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/StudyRoom/internal/domain"
	"github.com/qrave1/StudyRoom/internal/domain/events"
	"github.com/qrave1/StudyRoom/internal/domain/models"
)

type timerFixture struct {
	uc        TimerUsecase
	clock     *clockwork.FakeClock
	publisher *fakePublisher
	timers    *fakeTimerRepo
	host      models.User
	room      *models.Room
}

func newTimerFixture() *timerFixture {
	host := newUser("host")
	room := newTestRoom(host, false)

	f := &timerFixture{
		clock:     clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)),
		publisher: newFakePublisher(),
		timers:    newFakeTimerRepo(),
		host:      host,
		room:      room,
	}

	f.uc = NewTimerUsecase(f.clock, NewSerializer(), f.publisher, newFakeRoomRepo(room), f.timers)

	return f
}

func TestTimer_GetDefaultsToIdle(t *testing.T) {
	f := newTimerFixture()

	state, err := f.uc.Get(context.Background(), f.room.ID)
	require.NoError(t, err)

	assert.Equal(t, models.TimerIdle, state.Phase)
	assert.Equal(t, models.DefaultTimerConfig(), state.TimerConfig)
	assert.Nil(t, state.EndsAt)
}

func TestTimer_HostStartsFocus(t *testing.T) {
	ctx := context.Background()
	f := newTimerFixture()
	now := f.clock.Now()

	state, err := f.uc.Transition(ctx, f.room.ID, f.host.ID, models.TimerActionStartFocus)
	require.NoError(t, err)

	assert.Equal(t, models.TimerFocus, state.Phase)
	assert.Equal(t, 1, state.CycleIndex)
	require.NotNil(t, state.EndsAt)
	assert.Equal(t, now.Add(1500*time.Second), *state.EndsAt)

	stored, err := f.timers.Get(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TimerFocus, stored.Phase)

	published := f.publisher.ofType(events.TimerState)
	require.Len(t, published, 1)
	assert.Equal(t, f.room.ID, published[0].roomID)
}

func TestTimer_NonHostForbidden(t *testing.T) {
	ctx := context.Background()
	f := newTimerFixture()

	_, err := f.uc.Transition(ctx, f.room.ID, newUser("student").ID, models.TimerActionStartFocus)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.uc.UpdateConfig(ctx, f.room.ID, newUser("student").ID, models.DefaultTimerConfig())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	assert.Empty(t, f.publisher.ofType(events.TimerState))
}

func TestTimer_PublishFailureRestoresState(t *testing.T) {
	ctx := context.Background()
	f := newTimerFixture()

	_, err := f.uc.Transition(ctx, f.room.ID, f.host.ID, models.TimerActionStartFocus)
	require.NoError(t, err)

	f.clock.Advance(25 * time.Minute)
	f.publisher.failOn(events.TimerState, errors.New("broker down"))

	_, err = f.uc.Transition(ctx, f.room.ID, f.host.ID, models.TimerActionStartBreak)
	require.ErrorIs(t, err, domain.ErrTransportUnavailable)

	stored, err := f.timers.Get(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TimerFocus, stored.Phase)
	assert.Equal(t, 1, stored.CycleIndex)
}

func TestTimer_FourthBreakIsLong(t *testing.T) {
	ctx := context.Background()
	f := newTimerFixture()

	var state *models.TimerState
	var err error

	for range 4 {
		_, err = f.uc.Transition(ctx, f.room.ID, f.host.ID, models.TimerActionStartFocus)
		require.NoError(t, err)

		state, err = f.uc.Transition(ctx, f.room.ID, f.host.ID, models.TimerActionStartBreak)
		require.NoError(t, err)
	}

	assert.True(t, state.LongBreak)
	assert.Equal(t, f.clock.Now().Add(900*time.Second), *state.EndsAt)

	state, err = f.uc.Transition(ctx, f.room.ID, f.host.ID, models.TimerActionStartFocus)
	require.NoError(t, err)
	assert.Equal(t, 1, state.CycleIndex)
}

func TestTimer_InvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newTimerFixture()

	_, err := f.uc.Transition(ctx, f.room.ID, f.host.ID, models.TimerAction("rewind"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.uc.UpdateConfig(ctx, f.room.ID, f.host.ID, models.TimerConfig{FocusSeconds: 60})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	state, err := f.uc.UpdateConfig(ctx, f.room.ID, f.host.ID, models.TimerConfig{
		FocusSeconds:      3000,
		ShortBreakSeconds: 600,
		LongBreakSeconds:  1200,
		LongBreakEvery:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3000, state.FocusSeconds)
}
