package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/qrave1/StudyRoom/internal/application/constant"
	"github.com/qrave1/StudyRoom/internal/application/metric"
	"github.com/qrave1/StudyRoom/internal/domain"
	"github.com/qrave1/StudyRoom/internal/domain/events"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/memory"
)

const flushTimeout = 2 * time.Second

// wireEvent - событие комнаты в NATS
type wireEvent struct {
	Except    uuid.UUID       `json:"except,omitempty"`
	Ephemeral bool            `json:"ephemeral,omitempty"`
	Envelope  json.RawMessage `json:"envelope"`
}

// Bus рассылает события комнат через NATS, чтобы их получили соединения
// на всех инстансах. Входящие события передаются в локальный Hub.
type Bus struct {
	nc     *nats.Conn
	hub    *memory.Hub
	prefix string
}

func NewBus(nc *nats.Conn, hub *memory.Hub, prefix string) *Bus {
	return &Bus{nc: nc, hub: hub, prefix: prefix}
}

func (b *Bus) subject(roomID uuid.UUID) string {
	return fmt.Sprintf("%s.rooms.%s", b.prefix, roomID)
}

func (b *Bus) Publish(ctx context.Context, roomID uuid.UUID, env events.Envelope) error {
	return b.publish(ctx, roomID, uuid.Nil, env, false)
}

func (b *Bus) PublishExcept(ctx context.Context, roomID, exceptConnID uuid.UUID, env events.Envelope) error {
	return b.publish(ctx, roomID, exceptConnID, env, false)
}

func (b *Bus) PublishEphemeral(ctx context.Context, roomID uuid.UUID, env events.Envelope) error {
	return b.publish(ctx, roomID, uuid.Nil, env, true)
}

// SendTo адресован конкретному соединению, а оно всегда локальное
func (b *Bus) SendTo(ctx context.Context, connID uuid.UUID, env events.Envelope) error {
	return b.hub.SendTo(ctx, connID, env)
}

func (b *Bus) publish(ctx context.Context, roomID, except uuid.UUID, env events.Envelope, ephemeral bool) error {
	envData, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	data, err := json.Marshal(wireEvent{Except: except, Ephemeral: ephemeral, Envelope: envData})
	if err != nil {
		return fmt.Errorf("marshal wire event: %w", err)
	}

	if err = b.nc.Publish(b.subject(roomID), data); err != nil {
		return fmt.Errorf("%w: publish to nats: %v", domain.ErrTransportUnavailable, err)
	}

	if !ephemeral {
		flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
		defer cancel()

		// ошибка сервера должна вернуться вызывающему до коммита
		if err = b.nc.FlushWithContext(flushCtx); err != nil {
			return fmt.Errorf("%w: flush nats: %v", domain.ErrTransportUnavailable, err)
		}
	}

	metric.RecordRoomEvent(env.Type)

	return nil
}

// Run подписывается на события всех комнат и ретранслирует их в локальный Hub
func (b *Bus) Run(ctx context.Context) error {
	sub, err := b.nc.Subscribe(b.prefix+".rooms.*", b.relay)
	if err != nil {
		return fmt.Errorf("subscribe to room events: %w", err)
	}

	<-ctx.Done()

	if err = sub.Unsubscribe(); err != nil && !b.nc.IsClosed() {
		slog.Warn("unsubscribe room events", slog.Any(constant.Error, err))
	}

	return nil
}

func (b *Bus) relay(msg *nats.Msg) {
	roomID, err := uuid.Parse(msg.Subject[strings.LastIndex(msg.Subject, ".")+1:])
	if err != nil {
		slog.Warn("room event with bad subject", slog.String(constant.Subject, msg.Subject))
		return
	}

	var ev wireEvent
	if err = json.Unmarshal(msg.Data, &ev); err != nil {
		slog.Warn("decode room event", slog.Any(constant.Error, err), slog.String(constant.Subject, msg.Subject))
		return
	}

	b.hub.Deliver(roomID, ev.Except, ev.Envelope, ev.Ephemeral)
}
