package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/qrave1/StudyRoom/internal/application/constant"
	"github.com/qrave1/StudyRoom/internal/application/metric"
	"github.com/qrave1/StudyRoom/internal/domain/events"
)

// Subscription - очередь отправки одного соединения.
// Закрытый Done означает, что подписчик отписан или вытеснен.
type Subscription struct {
	ConnectionID uuid.UUID
	RoomID       uuid.UUID
	UserID       uuid.UUID

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Subscription) Send() <-chan []byte {
	return s.send
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

type roomGroup struct {
	// mu держится на все время fan-out, так что все подписчики видят события в одном порядке
	mu   sync.Mutex
	subs map[uuid.UUID]*Subscription
}

// Hub - локальный транспорт комнат. Реализует events.Publisher.
type Hub struct {
	mu     sync.RWMutex
	groups map[uuid.UUID]*roomGroup
	subs   map[uuid.UUID]*Subscription

	bufferSize int
}

func NewHub(bufferSize int) *Hub {
	return &Hub{
		groups:     make(map[uuid.UUID]*roomGroup),
		subs:       make(map[uuid.UUID]*Subscription),
		bufferSize: bufferSize,
	}
}

func (h *Hub) Subscribe(roomID, connID, userID uuid.UUID) *Subscription {
	sub := &Subscription{
		ConnectionID: connID,
		RoomID:       roomID,
		UserID:       userID,
		send:         make(chan []byte, h.bufferSize),
		done:         make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.groups[roomID]
	if !ok {
		g = &roomGroup{subs: make(map[uuid.UUID]*Subscription)}
		h.groups[roomID] = g
	}

	g.mu.Lock()
	g.subs[connID] = sub
	g.mu.Unlock()

	h.subs[connID] = sub

	metric.IncrementWSActiveConnections()

	return sub
}

// Unsubscribe идемпотентен
func (h *Hub) Unsubscribe(connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(connID)
}

func (h *Hub) removeLocked(connID uuid.UUID) {
	sub, ok := h.subs[connID]
	if !ok {
		return
	}

	delete(h.subs, connID)

	if g, ok := h.groups[sub.RoomID]; ok {
		g.mu.Lock()
		delete(g.subs, connID)
		empty := len(g.subs) == 0
		g.mu.Unlock()

		if empty {
			delete(h.groups, sub.RoomID)
		}
	}

	sub.close()

	metric.DecrementWSActiveConnections()
}

func (h *Hub) Count(roomID uuid.UUID) int {
	h.mu.RLock()
	g, ok := h.groups[roomID]
	h.mu.RUnlock()

	if !ok {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.subs)
}

func (h *Hub) Publish(ctx context.Context, roomID uuid.UUID, env events.Envelope) error {
	return h.fanOut(ctx, roomID, uuid.Nil, env, false)
}

func (h *Hub) PublishExcept(ctx context.Context, roomID, exceptConnID uuid.UUID, env events.Envelope) error {
	return h.fanOut(ctx, roomID, exceptConnID, env, false)
}

func (h *Hub) PublishEphemeral(ctx context.Context, roomID uuid.UUID, env events.Envelope) error {
	return h.fanOut(ctx, roomID, uuid.Nil, env, true)
}

func (h *Hub) SendTo(ctx context.Context, connID uuid.UUID, env events.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	h.mu.RLock()
	sub, ok := h.subs[connID]
	h.mu.RUnlock()

	if !ok {
		return nil
	}

	g := h.group(sub.RoomID)
	if g == nil {
		return nil
	}

	g.mu.Lock()
	full := !deliver(sub, data)
	if full {
		sub.close()
	}
	g.mu.Unlock()

	if full {
		h.evict(sub)
	}

	return nil
}

// Deliver рассылает уже сериализованное событие. Используется ретранслятором NATS.
func (h *Hub) Deliver(roomID, exceptConnID uuid.UUID, data []byte, ephemeral bool) {
	g := h.group(roomID)
	if g == nil {
		return
	}

	var slow []*Subscription

	g.mu.Lock()
	for connID, sub := range g.subs {
		if connID == exceptConnID {
			continue
		}

		if !deliver(sub, data) && !ephemeral {
			// закрываем сразу под локом, чтобы следующее событие не ушло в обход пропущенного
			sub.close()
			slow = append(slow, sub)
		}
	}
	g.mu.Unlock()

	for _, sub := range slow {
		h.evict(sub)
	}
}

func (h *Hub) fanOut(ctx context.Context, roomID, exceptConnID uuid.UUID, env events.Envelope, ephemeral bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	h.Deliver(roomID, exceptConnID, data, ephemeral)

	metric.RecordRoomEvent(env.Type)

	return nil
}

func (h *Hub) group(roomID uuid.UUID) *roomGroup {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.groups[roomID]
}

// evict отключает подписчика, который не успевает читать: пропускать события нельзя
func (h *Hub) evict(sub *Subscription) {
	slog.Warn(
		"evict slow subscriber",
		slog.Any(constant.ConnectionID, sub.ConnectionID),
		slog.Any(constant.RoomID, sub.RoomID),
	)

	metric.IncrementEvictedSubscribers()

	h.Unsubscribe(sub.ConnectionID)
}

func deliver(sub *Subscription, data []byte) bool {
	select {
	case <-sub.done:
		return true
	default:
	}

	select {
	case sub.send <- data:
		return true
	default:
		return false
	}
}
