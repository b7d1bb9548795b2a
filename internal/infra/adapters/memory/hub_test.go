package memory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/StudyRoom/internal/domain/events"
)

func recv(t *testing.T, sub *Subscription) events.Envelope {
	t.Helper()

	select {
	case data := <-sub.Send():
		var env events.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return events.Envelope{}
	}
}

func TestHub_PublishPreservesOrderPerSubscriber(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(1024)
	room := uuid.New()

	subs := []*Subscription{
		hub.Subscribe(room, uuid.New(), uuid.New()),
		hub.Subscribe(room, uuid.New(), uuid.New()),
	}

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				assert.NoError(t, hub.Publish(ctx, room, events.New(events.ChatMessage, room, p*1000+i, time.Now())))
			}
		}(p)
	}
	wg.Wait()

	var first []string
	for i := 0; i < 400; i++ {
		first = append(first, recv(t, subs[0]).EventID.String())
	}

	for i := 0; i < 400; i++ {
		assert.Equal(t, first[i], recv(t, subs[1]).EventID.String())
	}
}

func TestHub_PublishExceptSkipsSender(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(8)
	room := uuid.New()

	sender := hub.Subscribe(room, uuid.New(), uuid.New())
	other := hub.Subscribe(room, uuid.New(), uuid.New())

	require.NoError(t, hub.PublishExcept(ctx, room, sender.ConnectionID, events.New(events.PresenceJoin, room, nil, time.Now())))

	assert.Equal(t, events.PresenceJoin, recv(t, other).Type)
	assert.Empty(t, sender.Send())
}

func TestHub_RoomsAreIsolated(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(8)
	roomA, roomB := uuid.New(), uuid.New()

	a := hub.Subscribe(roomA, uuid.New(), uuid.New())
	b := hub.Subscribe(roomB, uuid.New(), uuid.New())

	require.NoError(t, hub.Publish(ctx, roomA, events.New(events.TimerState, roomA, nil, time.Now())))

	assert.Len(t, a.Send(), 1)
	assert.Empty(t, b.Send())
}

func TestHub_EvictsSlowSubscriber(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(2)
	room := uuid.New()

	slow := hub.Subscribe(room, uuid.New(), uuid.New())

	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Publish(ctx, room, events.New(events.ChatMessage, room, i, time.Now())))
	}

	select {
	case <-slow.Done():
	default:
		t.Fatal("slow subscriber was not evicted")
	}

	assert.Zero(t, hub.Count(room))
}

func TestHub_EphemeralDropsInsteadOfEvicting(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(1)
	room := uuid.New()

	sub := hub.Subscribe(room, uuid.New(), uuid.New())

	require.NoError(t, hub.PublishEphemeral(ctx, room, events.New(events.Typing, room, nil, time.Now())))
	require.NoError(t, hub.PublishEphemeral(ctx, room, events.New(events.Typing, room, nil, time.Now())))

	select {
	case <-sub.Done():
		t.Fatal("ephemeral overflow must not evict")
	default:
	}

	assert.Equal(t, 1, hub.Count(room))
}

func TestHub_SendToAndUnsubscribe(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(4)
	room := uuid.New()

	sub := hub.Subscribe(room, uuid.New(), uuid.New())

	require.NoError(t, hub.SendTo(ctx, sub.ConnectionID, events.New(events.PresenceSync, room, nil, time.Now())))
	assert.Equal(t, events.PresenceSync, recv(t, sub).Type)

	hub.Unsubscribe(sub.ConnectionID)
	hub.Unsubscribe(sub.ConnectionID)

	<-sub.Done()
	require.NoError(t, hub.SendTo(ctx, sub.ConnectionID, events.New(events.PresenceSync, room, nil, time.Now())))
	assert.Zero(t, hub.Count(room))
}
