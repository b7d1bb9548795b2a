package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/StudyRoom/internal/domain/events"
	"github.com/qrave1/StudyRoom/internal/domain/runtime"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/memory"
)

const (
	testHeartbeat = 20 * time.Second
	testIdleAfter = time.Minute
)

type presenceFixture struct {
	uc        PresenceUsecase
	clock     *clockwork.FakeClock
	publisher *fakePublisher
	roomID    uuid.UUID
}

func newPresenceFixture() *presenceFixture {
	f := &presenceFixture{
		clock:     clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)),
		publisher: newFakePublisher(),
		roomID:    uuid.New(),
	}

	f.uc = NewPresenceUsecase(f.clock, f.publisher, testHeartbeat, 3*testHeartbeat, testIdleAfter, memory.NewPresenceRepository())

	return f
}

func TestPresence_ConnectSyncsNewcomerAndNotifiesOthers(t *testing.T) {
	ctx := context.Background()
	f := newPresenceFixture()

	first, second := uuid.New(), uuid.New()

	require.NoError(t, f.uc.Connect(ctx, f.roomID, first, newUser("alice")))
	require.NoError(t, f.uc.Connect(ctx, f.roomID, second, newUser("bob")))

	syncs := f.publisher.ofType(events.PresenceSync)
	require.Len(t, syncs, 2)
	assert.Equal(t, second, syncs[1].connID)

	payload, ok := syncs[1].env.Payload.(events.PresenceSyncPayload)
	require.True(t, ok)
	assert.Len(t, payload.Entries, 2)

	joins := f.publisher.ofType(events.PresenceJoin)
	require.Len(t, joins, 2)
	assert.Equal(t, second, joins[1].except)

	assert.Len(t, f.uc.Snapshot(ctx, f.roomID), 2)
}

func TestPresence_DisconnectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newPresenceFixture()
	connID := uuid.New()

	require.NoError(t, f.uc.Connect(ctx, f.roomID, connID, newUser("alice")))

	assert.True(t, f.uc.Disconnect(ctx, connID))
	assert.False(t, f.uc.Disconnect(ctx, connID))

	assert.Len(t, f.publisher.ofType(events.PresenceLeave), 1)
	assert.Empty(t, f.uc.Snapshot(ctx, f.roomID))
}

func TestPresence_IdleFlipPublishesUpdate(t *testing.T) {
	ctx := context.Background()
	f := newPresenceFixture()
	connID := uuid.New()

	require.NoError(t, f.uc.Connect(ctx, f.roomID, connID, newUser("alice")))

	f.clock.Advance(testIdleAfter + time.Second)
	f.uc.Heartbeat(ctx, connID)

	updates := f.publisher.ofType(events.PresenceUpdate)
	require.Len(t, updates, 1)

	view, ok := updates[0].env.Payload.(runtime.PresenceView)
	require.True(t, ok)
	assert.True(t, view.Idle)

	// без смены состояния событий нет
	f.uc.Heartbeat(ctx, connID)
	assert.Len(t, f.publisher.ofType(events.PresenceUpdate), 1)

	f.uc.Activity(ctx, connID)

	updates = f.publisher.ofType(events.PresenceUpdate)
	require.Len(t, updates, 2)
	assert.False(t, updates[1].env.Payload.(runtime.PresenceView).Idle)
}

func TestPresence_SweeperEvictsSilentConnections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newPresenceFixture()
	silent, alive := uuid.New(), uuid.New()

	require.NoError(t, f.uc.Connect(ctx, f.roomID, silent, newUser("alice")))
	require.NoError(t, f.uc.Connect(ctx, f.roomID, alive, newUser("bob")))

	evicted := make(chan uuid.UUID, 2)
	go f.uc.RunSweeper(ctx, func(_ context.Context, entry runtime.PresenceEntry) {
		evicted <- entry.ConnectionID
	})

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))

	// alive шлет heartbeat, silent молчит дольше трех интервалов
	for range 4 {
		f.clock.Advance(testHeartbeat)
		f.uc.Heartbeat(ctx, alive)
	}

	select {
	case id := <-evicted:
		assert.Equal(t, silent, id)
	case <-time.After(time.Second):
		t.Fatal("silent connection was not evicted")
	}

	assert.Eventually(t, func() bool {
		return len(f.uc.Snapshot(ctx, f.roomID)) == 1
	}, time.Second, time.Millisecond)

	assert.Equal(t, alive, f.uc.Snapshot(ctx, f.roomID)[0].ConnectionID)
}
